// Package domain holds the core types of the credential subsystem: accounts,
// their provider credentials, and the store interface the encryption and
// rotation layers consume. It has no knowledge of the wire or storage format
// beyond the fact that apiKey values are opaque envelopes.
package domain
