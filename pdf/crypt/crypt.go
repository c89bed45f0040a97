// Package crypt implements the PDF standard security handler.
package crypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"

	"github.com/georgepadayatti/pdfcompose/pdf/generic"
)

// Common errors
var (
	ErrInvalidPassword  = errors.New("invalid password")
	ErrUnsupportedCrypt = errors.New("unsupported encryption")
	ErrDecryptionFailed = errors.New("decryption failed")
)

// EncryptionRevision is the R entry of the encryption dictionary.
type EncryptionRevision int

const (
	RevisionR2 EncryptionRevision = 2 // 40-bit RC4
	RevisionR3 EncryptionRevision = 3 // variable RC4
	RevisionR4 EncryptionRevision = 4 // crypt filters, RC4 or AES-128
	RevisionR6 EncryptionRevision = 6 // AES-256
)

// Permissions is the P entry of the encryption dictionary.
type Permissions uint32

const (
	PermPrint            Permissions = 1 << 2
	PermModify           Permissions = 1 << 3
	PermCopy             Permissions = 1 << 4
	PermAnnotate         Permissions = 1 << 5
	PermFillForms        Permissions = 1 << 8
	PermAccessibility    Permissions = 1 << 9
	PermAssemble         Permissions = 1 << 10
	PermPrintHighQuality Permissions = 1 << 11

	// PermAll grants everything; it is written as P -4.
	PermAll Permissions = 0xFFFFFFFC
)

// SecurityHandler encrypts and decrypts the strings and streams of one
// document.
type SecurityHandler interface {
	DecryptString(data []byte, objNum, genNum int) ([]byte, error)
	DecryptStream(data []byte, objNum, genNum int) ([]byte, error)
	EncryptString(data []byte, objNum, genNum int) ([]byte, error)
	EncryptStream(data []byte, objNum, genNum int) ([]byte, error)
	// EncryptDict returns the Encrypt dictionary to store in the trailer.
	EncryptDict() *generic.DictionaryObject
}

// StandardSecurityHandler implements the password-based standard handler.
type StandardSecurityHandler struct {
	Revision        EncryptionRevision
	KeyLength       int // bits
	Permissions     Permissions
	OwnerKey        []byte // O
	UserKey         []byte // U
	OwnerE          []byte // OE
	UserE           []byte // UE
	Perms           []byte
	FileID          []byte
	EncryptMetadata bool

	cipher        CryptFilterType
	encryptionKey []byte
}

// NewAES256Handler creates a revision 6 handler. An empty owner password
// falls back to the user password.
func NewAES256Handler(userPassword, ownerPassword string, perms Permissions) (*StandardSecurityHandler, error) {
	if ownerPassword == "" {
		ownerPassword = userPassword
	}
	user, err := PreparePassword(userPassword)
	if err != nil {
		return nil, fmt.Errorf("user password: %w", err)
	}
	owner, err := PreparePassword(ownerPassword)
	if err != nil {
		return nil, fmt.Errorf("owner password: %w", err)
	}

	h := &StandardSecurityHandler{
		Revision:        RevisionR6,
		KeyLength:       256,
		Permissions:     perms,
		EncryptMetadata: true,
		cipher:          CryptFilterAESV3,
		encryptionKey:   make([]byte, 32),
	}
	// File key, then user and owner validation and key salts.
	random := make([]byte, 32+32)
	if _, err := rand.Read(random); err != nil {
		return nil, err
	}
	copy(h.encryptionKey, random[:32])
	uvs, uks, ovs, oks := random[32:40], random[40:48], random[48:56], random[56:64]

	h.UserKey = append(append(hashR6(user, uvs, nil), uvs...), uks...)
	if h.UserE, err = aesCBCNoPad(hashR6(user, uks, nil), h.encryptionKey, true); err != nil {
		return nil, err
	}
	h.OwnerKey = append(append(hashR6(owner, ovs, h.UserKey), ovs...), oks...)
	if h.OwnerE, err = aesCBCNoPad(hashR6(owner, oks, h.UserKey), h.encryptionKey, true); err != nil {
		return nil, err
	}
	if h.Perms, err = h.computePerms(); err != nil {
		return nil, err
	}
	return h, nil
}

// NewAES128Handler creates a revision 4 handler with the AESV2 crypt
// filter. fileID is the first element of the trailer ID.
func NewAES128Handler(userPassword, ownerPassword string, perms Permissions, fileID []byte) (*StandardSecurityHandler, error) {
	if ownerPassword == "" {
		ownerPassword = userPassword
	}
	h := &StandardSecurityHandler{
		Revision:        RevisionR4,
		KeyLength:       128,
		Permissions:     perms,
		FileID:          fileID,
		EncryptMetadata: true,
		cipher:          CryptFilterAESV2,
	}
	h.OwnerKey = h.computeOwnerKey([]byte(ownerPassword), []byte(userPassword))
	h.encryptionKey = h.computeKeyR2R4([]byte(userPassword))
	h.UserKey = h.computeUserKey(h.encryptionKey)
	return h, nil
}

// HandlerFromDict builds a handler from a document's Encrypt dictionary.
// Authenticate must succeed before strings and streams can be decrypted.
func HandlerFromDict(dict *generic.DictionaryObject, fileID []byte) (*StandardSecurityHandler, error) {
	if name := dict.GetName("Filter"); name != "Standard" {
		return nil, fmt.Errorf("%w: security handler %q", ErrUnsupportedCrypt, name)
	}
	r, _ := dict.GetInt("R")
	v, _ := dict.GetInt("V")
	p, _ := dict.GetInt("P")
	h := &StandardSecurityHandler{
		Revision:        EncryptionRevision(r),
		KeyLength:       40,
		Permissions:     Permissions(uint32(int32(p))),
		FileID:          fileID,
		EncryptMetadata: true,
		cipher:          CryptFilterV2,
	}
	if l, ok := dict.GetInt("Length"); ok && l >= 40 {
		h.KeyLength = int(l)
	}
	if em, ok := dict.Get("EncryptMetadata").(generic.BooleanObject); ok {
		h.EncryptMetadata = bool(em)
	}
	for key, dst := range map[string]*[]byte{"O": &h.OwnerKey, "U": &h.UserKey, "OE": &h.OwnerE, "UE": &h.UserE, "Perms": &h.Perms} {
		if s, ok := dict.Get(key).(*generic.StringObject); ok {
			*dst = s.Value
		}
	}

	switch {
	case h.Revision == RevisionR2 || h.Revision == RevisionR3:
	case h.Revision == RevisionR4 && v == 4:
		cfm := CryptFilterV2
		if cf := dict.GetDict("CF"); cf != nil {
			if std := cf.GetDict(dict.GetName("StmF")); std != nil {
				cfm = CryptFilterType(std.GetName("CFM"))
				if l, ok := std.GetInt("Length"); ok && l > 0 && l <= 16 {
					h.KeyLength = int(l) * 8
				}
			}
		}
		if cfm != CryptFilterV2 && cfm != CryptFilterAESV2 {
			return nil, fmt.Errorf("%w: crypt filter %q", ErrUnsupportedCrypt, cfm)
		}
		h.cipher = cfm
	case h.Revision == RevisionR6 && v == 5:
		h.KeyLength = 256
		h.cipher = CryptFilterAESV3
	default:
		return nil, fmt.Errorf("%w: V %d R %d", ErrUnsupportedCrypt, v, r)
	}
	return h, nil
}

// Authenticate tries password as the user password, then as the owner
// password.
func (h *StandardSecurityHandler) Authenticate(password string) error {
	if h.Revision == RevisionR6 {
		pw, err := PreparePassword(password)
		if err != nil {
			return err
		}
		if h.authenticateR6(pw, false) || h.authenticateR6(pw, true) {
			return nil
		}
		return ErrInvalidPassword
	}

	if h.authenticateUser([]byte(password)) {
		return nil
	}
	if h.authenticateUser(h.userPasswordFromOwner([]byte(password))) {
		return nil
	}
	return ErrInvalidPassword
}

func (h *StandardSecurityHandler) keyBytes() int {
	if h.Revision == RevisionR2 {
		return 5
	}
	return h.KeyLength / 8
}

// computeKeyR2R4 is algorithm 2: the file key from a user password.
func (h *StandardSecurityHandler) computeKeyR2R4(password []byte) []byte {
	d := md5.New()
	d.Write(padPassword(password))
	d.Write(h.OwnerKey)
	binary.Write(d, binary.LittleEndian, uint32(h.Permissions))
	d.Write(h.FileID)
	if h.Revision >= RevisionR4 && !h.EncryptMetadata {
		d.Write([]byte{0xff, 0xff, 0xff, 0xff})
	}
	key := d.Sum(nil)

	n := h.keyBytes()
	if h.Revision >= RevisionR3 {
		for i := 0; i < 50; i++ {
			sum := md5.Sum(key[:n])
			key = sum[:]
		}
	}
	return key[:n]
}

// computeUserKey is algorithms 4 and 5: the U entry for a file key.
func (h *StandardSecurityHandler) computeUserKey(key []byte) []byte {
	if h.Revision == RevisionR2 {
		u, _ := RC4Encrypt(key, passwordPadding)
		return u
	}
	d := md5.New()
	d.Write(passwordPadding)
	d.Write(h.FileID)
	u := d.Sum(nil)
	rc4Rounds(key, u, 0, 19)

	// The remaining 16 bytes are arbitrary.
	return append(u, passwordPadding[:16]...)
}

// ownerRC4Key is steps a to d of algorithm 3.
func (h *StandardSecurityHandler) ownerRC4Key(ownerPassword []byte) []byte {
	sum := md5.Sum(padPassword(ownerPassword))
	key := sum[:]
	n := h.keyBytes()
	if h.Revision >= RevisionR3 {
		for i := 0; i < 50; i++ {
			sum = md5.Sum(key)
			key = sum[:]
		}
	}
	return key[:n]
}

// computeOwnerKey is algorithm 3: the O entry.
func (h *StandardSecurityHandler) computeOwnerKey(ownerPassword, userPassword []byte) []byte {
	key := h.ownerRC4Key(ownerPassword)
	o := padPassword(userPassword)
	if h.Revision == RevisionR2 {
		o, _ = RC4Encrypt(key, o)
		return o
	}
	rc4Rounds(key, o, 0, 19)
	return o
}

// userPasswordFromOwner is algorithm 7: recover the padded user password.
func (h *StandardSecurityHandler) userPasswordFromOwner(ownerPassword []byte) []byte {
	key := h.ownerRC4Key(ownerPassword)
	u := bytes.Clone(h.OwnerKey)
	if h.Revision == RevisionR2 {
		u, _ = RC4Encrypt(key, u)
		return u
	}
	rc4Rounds(key, u, 19, 0)
	return u
}

// rc4Rounds encrypts buf in place with key XOR i for i from first to last.
func rc4Rounds(key, buf []byte, first, last int) {
	step := 1
	if first > last {
		step = -1
	}
	k := make([]byte, len(key))
	for i := first; ; i += step {
		for j := range key {
			k[j] = key[j] ^ byte(i)
		}
		c, _ := rc4.NewCipher(k)
		c.XORKeyStream(buf, buf)
		if i == last {
			return
		}
	}
}

func (h *StandardSecurityHandler) authenticateUser(password []byte) bool {
	if len(h.UserKey) < 16 {
		return false
	}
	key := h.computeKeyR2R4(password)
	computed := h.computeUserKey(key)
	n := 16
	if h.Revision == RevisionR2 {
		n = 32
	}
	if len(h.UserKey) < n || !bytes.Equal(computed[:n], h.UserKey[:n]) {
		return false
	}
	h.encryptionKey = key
	return true
}

// authenticateR6 is algorithm 2.A for either the user or the owner
// password.
func (h *StandardSecurityHandler) authenticateR6(password []byte, owner bool) bool {
	entry, wrapped := h.UserKey, h.UserE
	var udata []byte
	if owner {
		entry, wrapped = h.OwnerKey, h.OwnerE
		if len(h.UserKey) < 48 {
			return false
		}
		udata = h.UserKey[:48]
	}
	if len(entry) < 48 || len(wrapped) != 32 {
		return false
	}
	if !bytes.Equal(hashR6(password, entry[32:40], udata), entry[:32]) {
		return false
	}
	key, err := aesCBCNoPad(hashR6(password, entry[40:48], udata), wrapped, false)
	if err != nil {
		return false
	}
	h.encryptionKey = key
	return true
}

// hashR6 is algorithm 2.B.
func hashR6(password, salt, udata []byte) []byte {
	d := sha256.New()
	d.Write(password)
	d.Write(salt)
	d.Write(udata)
	k := d.Sum(nil)

	for round := 0; ; round++ {
		seq := make([]byte, 0, len(password)+len(k)+len(udata))
		seq = append(append(append(seq, password...), k...), udata...)
		k1 := bytes.Repeat(seq, 64)

		block, _ := aes.NewCipher(k[:16])
		e := make([]byte, len(k1))
		cipher.NewCBCEncrypter(block, k[16:32]).CryptBlocks(e, k1)

		sum := 0
		for _, b := range e[:16] {
			sum += int(b)
		}
		var next hash.Hash
		switch sum % 3 {
		case 0:
			next = sha256.New()
		case 1:
			next = sha512.New384()
		default:
			next = sha512.New()
		}
		next.Write(e)
		k = next.Sum(nil)

		if round >= 63 && int(e[len(e)-1]) <= round-31 {
			break
		}
	}
	return k[:32]
}

// computePerms is algorithm 10: the encrypted Perms entry.
func (h *StandardSecurityHandler) computePerms() ([]byte, error) {
	plain := make([]byte, 16)
	binary.LittleEndian.PutUint32(plain[0:4], uint32(h.Permissions))
	copy(plain[4:8], []byte{0xff, 0xff, 0xff, 0xff})
	plain[8] = 'T'
	if !h.EncryptMetadata {
		plain[8] = 'F'
	}
	copy(plain[9:12], "adb")
	if _, err := rand.Read(plain[12:16]); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(h.encryptionKey)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 16)
	block.Encrypt(out, plain)
	return out, nil
}

// DecryptString implements SecurityHandler.
func (h *StandardSecurityHandler) DecryptString(data []byte, objNum, genNum int) ([]byte, error) {
	return h.crypt(data, objNum, genNum, false)
}

// DecryptStream implements SecurityHandler.
func (h *StandardSecurityHandler) DecryptStream(data []byte, objNum, genNum int) ([]byte, error) {
	return h.crypt(data, objNum, genNum, false)
}

// EncryptString implements SecurityHandler.
func (h *StandardSecurityHandler) EncryptString(data []byte, objNum, genNum int) ([]byte, error) {
	return h.crypt(data, objNum, genNum, true)
}

// EncryptStream implements SecurityHandler.
func (h *StandardSecurityHandler) EncryptStream(data []byte, objNum, genNum int) ([]byte, error) {
	return h.crypt(data, objNum, genNum, true)
}

func (h *StandardSecurityHandler) crypt(data []byte, objNum, genNum int, encrypt bool) ([]byte, error) {
	if h.encryptionKey == nil {
		return nil, ErrInvalidPassword
	}
	key := h.encryptionKey
	if h.Revision != RevisionR6 {
		key = DeriveObjectKey(h.encryptionKey, objNum, genNum, h.cipher == CryptFilterAESV2)
	}

	switch h.cipher {
	case CryptFilterV2:
		return RC4Encrypt(key, data)
	case CryptFilterAESV2, CryptFilterAESV3:
		if encrypt {
			return AESCBCEncrypt(key, data)
		}
		if len(data) == 0 {
			return data, nil
		}
		return AESCBCDecrypt(key, data)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedCrypt, h.cipher)
}

// EncryptDict implements SecurityHandler.
func (h *StandardSecurityHandler) EncryptDict() *generic.DictionaryObject {
	dict := generic.NewDictionary()
	dict.Set("Filter", generic.NameObject("Standard"))

	switch h.Revision {
	case RevisionR6:
		dict.Set("V", generic.IntegerObject(5))
	case RevisionR4:
		dict.Set("V", generic.IntegerObject(4))
	case RevisionR3:
		dict.Set("V", generic.IntegerObject(2))
	default:
		dict.Set("V", generic.IntegerObject(1))
	}
	dict.Set("R", generic.IntegerObject(h.Revision))
	dict.Set("Length", generic.IntegerObject(h.KeyLength))

	if h.Revision >= RevisionR4 {
		std := generic.NewDictionary()
		std.Set("AuthEvent", generic.NameObject("DocOpen"))
		std.Set("CFM", generic.NameObject(h.cipher))
		std.Set("Length", generic.IntegerObject(h.KeyLength/8))
		cf := generic.NewDictionary()
		cf.Set("StdCF", std)
		dict.Set("CF", cf)
		dict.Set("StmF", generic.NameObject("StdCF"))
		dict.Set("StrF", generic.NameObject("StdCF"))
	}

	dict.Set("O", generic.NewHexString(h.OwnerKey))
	dict.Set("U", generic.NewHexString(h.UserKey))
	if h.Revision == RevisionR6 {
		dict.Set("OE", generic.NewHexString(h.OwnerE))
		dict.Set("UE", generic.NewHexString(h.UserE))
		dict.Set("Perms", generic.NewHexString(h.Perms))
	}
	dict.Set("P", generic.IntegerObject(int32(h.Permissions)))
	if !h.EncryptMetadata {
		dict.Set("EncryptMetadata", generic.BooleanObject(false))
	}
	return dict
}

// Password padding constant (32 bytes).
var passwordPadding = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

// padPassword pads or truncates a password to 32 bytes.
func padPassword(password []byte) []byte {
	result := make([]byte, 32)
	n := copy(result, password)
	copy(result[n:], passwordPadding)
	return result
}
