// Package metrics defines the prometheus collectors for the credential
// subsystem. Collectors are package-level promauto vars so every layer can
// record without plumbing a registry around.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Rotation Metrics
var (
	// RotationAccountsTotal tracks accounts processed by rotation, by result
	RotationAccountsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rotation_accounts_total",
			Help: "Accounts processed during key rotation by result (rotated/failed/skipped)",
		},
		[]string{"result"},
	)

	// RotationProvidersTotal tracks provider credentials re-encrypted
	RotationProvidersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rotation_providers_total",
			Help: "Provider credentials successfully re-encrypted during rotation",
		},
	)

	// RotationAccountDuration tracks per-account rotation duration
	RotationAccountDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rotation_account_duration_seconds",
			Help:    "Per-account rotation duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)
)

// Credential Decryption Metrics
var (
	// DecryptFailuresTotal tracks credential decryption failures by reason
	DecryptFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credential_decrypt_failures_total",
			Help: "Credential decryption failures by reason (format/crypto/other)",
		},
		[]string{"reason"},
	)

	// VerificationsTotal tracks diagnostic verification probes by result
	VerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credential_verifications_total",
			Help: "Credential verification probes by result (ok/unreadable)",
		},
		[]string{"result"},
	)
)

// Database Metrics
var (
	// DBQueryDuration tracks database query duration by query verb
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"query"},
	)

	// DBErrorsTotal tracks database errors by query verb
	DBErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_errors_total",
			Help: "Total database errors by query",
		},
		[]string{"query"},
	)
)

// Build Information Metrics
var (
	// BuildInfo is a gauge that always returns 1, with build metadata as labels
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build information with version, commit, build_time, and go_version labels (value is always 1)",
		},
		[]string{"version", "commit", "build_time", "go_version"},
	)
)
