// Package server exposes the operational HTTP surface: liveness/readiness
// probes, prometheus metrics, and a masked per-account credential status
// endpoint. It never returns decrypted credential plaintext; the only
// opt-in reveal path is the CLI.
package server
