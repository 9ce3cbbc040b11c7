package crypto

import "crypto/subtle"

// Verify decrypts envelope with key and compares the result in constant
// time against expected. It is the round-trip check rotation runs before it
// persists anything, and doubles as a standalone diagnostic. It never
// mutates state and never reports why a mismatch happened.
func Verify(key Key, expected []byte, envelope string) bool {
	plaintext, err := Decrypt(key, envelope)
	if err != nil {
		return false
	}
	defer Zero(plaintext)
	return subtle.ConstantTimeCompare(plaintext, expected) == 1
}

// Zero overwrites a plaintext buffer. Callers use it to drop recovered
// secrets as soon as an operation is done with them.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
