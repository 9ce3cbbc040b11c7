package rotation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AccountError aggregates the per-provider failures that stopped one
// account's rotation. An account with any failed provider is never
// persisted, so this error always means "stored state untouched".
type AccountError struct {
	AccountID uuid.UUID
	Providers map[string]error
}

func (e *AccountError) Error() string {
	names := make([]string, 0, len(e.Providers))
	for name := range e.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %v", name, e.Providers[name]))
	}
	return fmt.Sprintf("account %s: %d credential(s) unreadable or unverifiable: %s",
		e.AccountID, len(names), strings.Join(parts, "; "))
}

// Unwrap exposes the per-provider errors for errors.Is/As.
func (e *AccountError) Unwrap() []error {
	errs := make([]error, 0, len(e.Providers))
	for _, err := range e.Providers {
		errs = append(errs, err)
	}
	return errs
}

// AccountResult is one account's outcome within a rotation batch.
type AccountResult struct {
	AccountID uuid.UUID
	Providers int
	Err       error
	Duration  time.Duration
}

// Rotated reports whether the account was re-encrypted and persisted.
func (r AccountResult) Rotated() bool {
	return r.Err == nil
}

// Report is the aggregate outcome of a rotation batch. A batch never aborts
// as a whole: every requested account appears here exactly once.
type Report struct {
	Results  []AccountResult
	Duration time.Duration
}

// RotatedCount returns the number of successfully rotated accounts.
func (r *Report) RotatedCount() int {
	n := 0
	for _, res := range r.Results {
		if res.Rotated() {
			n++
		}
	}
	return n
}

// FailedCount returns the number of accounts left untouched due to failure.
func (r *Report) FailedCount() int {
	return len(r.Results) - r.RotatedCount()
}

// Failures returns the failed results only.
func (r *Report) Failures() []AccountResult {
	var failed []AccountResult
	for _, res := range r.Results {
		if !res.Rotated() {
			failed = append(failed, res)
		}
	}
	return failed
}
