package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"errors"
)

var (
	ErrInvalidBlockSize = errors.New("data not multiple of block size")
)

// CryptFilterType names the cipher of a crypt filter (the CFM entry).
type CryptFilterType string

const (
	CryptFilterNone  CryptFilterType = "None"
	CryptFilterV2    CryptFilterType = "V2"    // RC4
	CryptFilterAESV2 CryptFilterType = "AESV2" // AES-128
	CryptFilterAESV3 CryptFilterType = "AESV3" // AES-256
)

// RC4Encrypt encrypts data using RC4. RC4 is symmetric, so this also
// decrypts.
func RC4Encrypt(key, data []byte) ([]byte, error) {
	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil, err
	}
	result := make([]byte, len(data))
	c.XORKeyStream(result, data)
	return result, nil
}

// AESCBCEncrypt encrypts data using AES-CBC with PKCS7 padding under a fresh
// random IV. The IV is prepended to the ciphertext.
func AESCBCEncrypt(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	padded := PKCS7Pad(data, aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)
	return out, nil
}

// AESCBCDecrypt decrypts AES-CBC data whose IV is prepended, removing PKCS7
// padding.
func AESCBCDecrypt(key, data []byte) ([]byte, error) {
	if len(data) < aes.BlockSize {
		return nil, ErrDecryptionFailed
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	iv, ciphertext := data[:aes.BlockSize], data[aes.BlockSize:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrInvalidBlockSize
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return PKCS7Unpad(plaintext), nil
}

// aesCBCNoPad runs AES-CBC with a zero IV and no padding, as used for the
// UE and OE entries.
func aesCBCNoPad(key, data []byte, encrypt bool) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(data)%aes.BlockSize != 0 {
		return nil, ErrInvalidBlockSize
	}
	iv := make([]byte, aes.BlockSize)
	out := make([]byte, len(data))
	if encrypt {
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, data)
	} else {
		cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
	}
	return out, nil
}

// PKCS7Pad adds PKCS7 padding to data.
func PKCS7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	out := make([]byte, len(data), len(data)+padLen)
	copy(out, data)
	for i := 0; i < padLen; i++ {
		out = append(out, byte(padLen))
	}
	return out
}

// PKCS7Unpad removes PKCS7 padding. Data with malformed padding is returned
// unchanged.
func PKCS7Unpad(data []byte) []byte {
	if len(data) == 0 {
		return data
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > aes.BlockSize || padLen > len(data) {
		return data
	}
	for _, b := range data[len(data)-padLen:] {
		if b != byte(padLen) {
			return data
		}
	}
	return data[:len(data)-padLen]
}

// DeriveObjectKey derives the per-object key of revisions 2 to 4.
func DeriveObjectKey(fileKey []byte, objNum, genNum int, useAES bool) []byte {
	h := md5.New()
	h.Write(fileKey)
	h.Write([]byte{byte(objNum), byte(objNum >> 8), byte(objNum >> 16)})
	h.Write([]byte{byte(genNum), byte(genNum >> 8)})
	if useAES {
		h.Write([]byte("sAlT"))
	}
	key := h.Sum(nil)

	keyLen := len(fileKey) + 5
	if keyLen > 16 {
		keyLen = 16
	}
	return key[:keyLen]
}
