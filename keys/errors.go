package keys

import "errors"

var (
	// ErrKeyFile wraps failures reading or writing a key bundle file.
	ErrKeyFile = errors.New("key file error")
	// ErrKeyJSON wraps malformed key bundle contents.
	ErrKeyJSON = errors.New("key bundle format error")
	// ErrInvalidKeyMaterial reports a bundle that decodes but is inconsistent.
	ErrInvalidKeyMaterial = errors.New("invalid key material")
	// ErrPublicKey reports a group key that cannot be used as a Bitcoin key.
	ErrPublicKey = errors.New("invalid group public key")
)
