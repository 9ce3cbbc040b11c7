package crypto

import (
	"encoding/hex"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// Key is the working symmetric key. It is derived once at startup and passed
// explicitly into every operation; nothing in this package holds a key in
// package state.
type Key [KeySize]byte

// LoadKey normalizes a configured secret into a working key.
//
// A 64-character hex string is decoded directly into the 32-byte key. Any
// other non-empty secret is treated as raw text: up to 32 bytes are copied
// into a zeroed buffer, so shorter secrets are zero-padded and longer ones
// truncated. The raw-text path exists only so credentials written under such
// keys stay readable; new deployments should configure a hex key (see
// `credctl keygen`).
func LoadKey(secret string) (Key, error) {
	var key Key

	if secret == "" {
		return key, &ConfigError{Reason: "no secret configured"}
	}

	if len(secret) == hex.EncodedLen(KeySize) {
		if decoded, err := hex.DecodeString(secret); err == nil {
			copy(key[:], decoded)
			return key, nil
		}
	}

	copy(key[:], secret)
	return key, nil
}

// IsHexKey reports whether the secret is in the recommended 64-hex-char form.
// Callers use it to warn about the weak raw-text fallback at startup.
func IsHexKey(secret string) bool {
	if len(secret) != hex.EncodedLen(KeySize) {
		return false
	}
	_, err := hex.DecodeString(secret)
	return err == nil
}
