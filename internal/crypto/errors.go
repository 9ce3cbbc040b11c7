package crypto

import "fmt"

// ConfigError reports missing or malformed key material. It is returned at
// startup, before any credential is touched.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "encryption key configuration: " + e.Reason
}

// FormatError reports an envelope string that does not match the expected
// "hex(iv):hex(ciphertext)" shape. The stored value was never produced by
// this package (or was truncated in storage).
type FormatError struct {
	Reason string
	Cause  error
}

func (e *FormatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed envelope: %s: %v", e.Reason, e.Cause)
	}
	return "malformed envelope: " + e.Reason
}

func (e *FormatError) Unwrap() error {
	return e.Cause
}

// CryptoError reports a decryption failure: wrong key or corrupted
// ciphertext. CBC envelopes carry no integrity tag, so the two cases are
// indistinguishable here.
type CryptoError struct {
	Reason string
	Cause  error
}

func (e *CryptoError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("decryption failed: %s: %v", e.Reason, e.Cause)
	}
	return "decryption failed: " + e.Reason
}

func (e *CryptoError) Unwrap() error {
	return e.Cause
}
