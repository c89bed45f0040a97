package replicate

import (
	"errors"
	"fmt"
)

// ErrEncryption is the sentinel matched by every EncryptionError.
var ErrEncryption = errors.New("encryption failed")

// EncryptionError reports requested encryption that could not be applied.
// No unencrypted output accompanies it.
type EncryptionError struct {
	Reason string
	Err    error
}

func (e *EncryptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("encryption failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("encryption failed: %s", e.Reason)
}

func (e *EncryptionError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrEncryption.
func (e *EncryptionError) Is(target error) bool {
	return target == ErrEncryption
}
