// Package database provides PostgreSQL connectivity and the credential store.
//
// Uses pgx for connection pooling. Provider credentials live in a single
// JSONB column per account and are replaced wholesale on every write; the
// repository implements domain.CredentialStore.
package database
