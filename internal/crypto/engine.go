package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// aeadPrefix marks envelopes written with AES-256-GCM instead of the
// historic CBC format.
const aeadPrefix = "gcm:"

// Encrypt seals plaintext under key using AES-256-CBC with PKCS#7 padding
// and a fresh random IV, producing the envelope "hex(iv):hex(ciphertext)".
// This is the format every persisted credential matches.
func Encrypt(key Key, plaintext []byte) (string, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("failed to generate IV: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext), nil
}

// EncryptAEAD seals plaintext under key using AES-256-GCM, producing the
// envelope "gcm:hex(nonce||ciphertext||tag)". Unlike CBC envelopes these
// are tamper-evident; Decrypt reads both formats.
func EncryptAEAD(key Key, plaintext []byte) (string, error) {
	aead, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, plaintext, nil)
	return aeadPrefix + hex.EncodeToString(sealed), nil
}

// IsAEAD reports whether an envelope was written by EncryptAEAD. Callers
// re-sealing an envelope use it to keep the original format.
func IsAEAD(envelope string) bool {
	return strings.HasPrefix(envelope, aeadPrefix)
}

// Decrypt opens an envelope produced by Encrypt or EncryptAEAD.
//
// It returns *FormatError when the envelope does not have the expected
// shape, and *CryptoError when the shape is fine but decryption fails
// (wrong key or corrupted ciphertext).
func Decrypt(key Key, envelope string) ([]byte, error) {
	if strings.HasPrefix(envelope, aeadPrefix) {
		return decryptAEAD(key, strings.TrimPrefix(envelope, aeadPrefix))
	}
	return decryptCBC(key, envelope)
}

func decryptCBC(key Key, envelope string) ([]byte, error) {
	parts := strings.Split(envelope, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, &FormatError{Reason: "expected iv:ciphertext"}
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return nil, &FormatError{Reason: "iv is not hex", Cause: err}
	}
	ciphertext, err := hex.DecodeString(parts[1])
	if err != nil {
		return nil, &FormatError{Reason: "ciphertext is not hex", Cause: err}
	}
	if len(iv) != aes.BlockSize {
		return nil, &FormatError{Reason: fmt.Sprintf("iv is %d bytes, want %d", len(iv), aes.BlockSize)}
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, &CryptoError{Reason: "ciphertext length is not a block multiple"}
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		// CBC has no integrity tag: a wrong key and corruption both land here.
		return nil, &CryptoError{Reason: "padding check failed", Cause: err}
	}
	return unpadded, nil
}

func decryptAEAD(key Key, encoded string) ([]byte, error) {
	sealed, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, &FormatError{Reason: "gcm envelope is not hex", Cause: err}
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, &FormatError{Reason: "gcm envelope shorter than nonce"}
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, &CryptoError{Reason: "authentication failed", Cause: err}
	}
	return plaintext, nil
}

func newGCM(key Key) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(append(make([]byte, 0, len(data)+n), data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(data))
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("invalid padding byte %d", n)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return data[:len(data)-n], nil
}
