// Package apperr classifies failures across connector, store, and LLM
// operations into a small recovery-action enum, inspected with errors.As
// rather than string matching or sentinel errors.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies why an operation failed and how its caller should react.
type Kind int

const (
	// KindUnknown is the zero value — never intentionally constructed.
	KindUnknown Kind = iota
	// KindMissingCredentials: required config keys absent at run start.
	// Abort run, surface to UI.
	KindMissingCredentials
	// KindInvalidCredentials: adapter validation rejected the credential.
	// Abort run, prompt re-auth.
	KindInvalidCredentials
	// KindAuthenticationExpired: OAuth refresh failed. Abort run, prompt re-auth.
	KindAuthenticationExpired
	// KindRateLimited: 429 / vendor backoff header. Retry with backoff;
	// emit heartbeat; eventually abort after N attempts.
	KindRateLimited
	// KindTransient: 5xx / timeout / connection drop. Retry; then
	// per-item skip with counter increment.
	KindTransient
	// KindItemMalformed: source payload missing required fields. Per-item
	// skip, accumulate into error list.
	KindItemMalformed
	// KindEtlFailed: binary extraction returned empty/erroring.
	KindEtlFailed
	// KindDatabaseTransient: DB transport error on flush. Rollback batch,
	// retry once, then fail run.
	KindDatabaseTransient
	// KindDatabaseConstraint: unique-violation race on content_hash.
	// Silently convert to skipped-duplicate-content.
	KindDatabaseConstraint
	// KindLlmFailure: model returned malformed JSON or timed out.
	KindLlmFailure
)

func (k Kind) String() string {
	switch k {
	case KindMissingCredentials:
		return "missing_credentials"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindAuthenticationExpired:
		return "authentication_expired"
	case KindRateLimited:
		return "rate_limited"
	case KindTransient:
		return "transient"
	case KindItemMalformed:
		return "item_malformed"
	case KindEtlFailed:
		return "etl_failed"
	case KindDatabaseTransient:
		return "database_transient"
	case KindDatabaseConstraint:
		return "database_constraint"
	case KindLlmFailure:
		return "llm_failure"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with a Kind and a Retryable hint. Callers
// classify with errors.As(err, &apperr.Error{}) and switch on Kind, the
// same shape as mcp.ClassifyError's RecoveryAction switch.
type Error struct {
	Kind      Kind
	Err       error
	Retryable bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with the given kind and retryability.
func New(kind Kind, retryable bool, err error) *Error {
	return &Error{Kind: kind, Err: err, Retryable: retryable}
}

// Is classifies an arbitrary error against a Kind, defaulting to false when
// err doesn't carry an *Error at all.
func Is(err error, kind Kind) bool {
	var ae *Error
	if !errors.As(err, &ae) {
		return false
	}
	return ae.Kind == kind
}

// IsRunFatal reports whether err's kind aborts the whole run rather than
// being recovered per-item: everything local to a single item is
// recovered, anything global to the run aborts.
func IsRunFatal(err error) bool {
	var ae *Error
	if !errors.As(err, &ae) {
		return false
	}
	switch ae.Kind {
	case KindMissingCredentials, KindInvalidCredentials, KindAuthenticationExpired,
		KindDatabaseTransient:
		return true
	default:
		return false
	}
}
