// Package crypto provides at-rest encryption for provider API keys.
//
// Stored credentials use the envelope format "hex(iv):hex(ciphertext)"
// (AES-256-CBC with PKCS#7 padding), which is what every already-persisted
// credential looks like. New call sites can opt into AES-256-GCM envelopes
// ("gcm:" prefix); Decrypt reads both formats transparently.
package crypto
