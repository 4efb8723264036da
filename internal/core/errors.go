// Package core provides the ambient building blocks shared across the
// decant service: structured errors, logging, and configuration.
package core

import (
	"errors"
	"fmt"
)

// Kind identifies the taxonomy of errors defined by the import pipeline's
// error contract. Each Kind maps to one HTTP status in internal/httpapi;
// several kinds share a status.
type Kind string

const (
	KindURLRequired         Kind = "URL_REQUIRED"
	KindURLEmpty            Kind = "URL_EMPTY"
	KindURLInvalid          Kind = "URL_INVALID"
	KindURLInvalidProtocol  Kind = "URL_INVALID_PROTOCOL"
	KindURLNoHostname       Kind = "URL_NO_HOSTNAME"
	KindValidationFailed    Kind = "VALIDATION_FAILED"
	KindSSRFBlocked         Kind = "SSRF_BLOCKED"
	KindExtractionFailed    Kind = "EXTRACTION_FAILED"
	KindParsingError        Kind = "PARSING_ERROR"
	KindUnsupportedContent  Kind = "UNSUPPORTED_CONTENT_TYPE"
	KindContentNotFound     Kind = "CONTENT_NOT_FOUND"
	KindContentTooLarge     Kind = "CONTENT_TOO_LARGE"
	KindInvalidAPIKey       Kind = "INVALID_API_KEY"
	KindAPIKeyMissing       Kind = "API_KEY_MISSING"
	KindUnauthorized        Kind = "UNAUTHORIZED"
	KindForbidden           Kind = "FORBIDDEN"
	KindNetworkTimeout      Kind = "NETWORK_TIMEOUT"
	KindFetchFailed         Kind = "FETCH_FAILED"
	KindRateLimitExceeded   Kind = "RATE_LIMIT_EXCEEDED"
	KindDuplicateURL        Kind = "DUPLICATE_URL"
	KindNotFound            Kind = "NOT_FOUND"
	KindConflict            Kind = "CONFLICT"
	KindDatabaseError       Kind = "DATABASE_ERROR"
	KindLLMEmptyResponse    Kind = "LLM_EMPTY_RESPONSE"
	KindLLMParseError       Kind = "LLM_PARSE_ERROR"
	KindLLMSchemaError      Kind = "LLM_SCHEMA_ERROR"
	KindCircuitOpen         Kind = "CIRCUIT_OPEN"
	KindInternal            Kind = "INTERNAL_ERROR"
)

// FrameworkError is the structured error type carried through every layer
// of the pipeline. It always knows whether the failure is Recoverable,
// i.e. whether the orchestrator may downgrade the affected step and
// continue rather than aborting the import.
type FrameworkError struct {
	Op          string // operation that failed, e.g. "extractor.youtube.Extract"
	Kind        Kind
	Message     string
	Recoverable bool
	Err         error
}

func (e *FrameworkError) Error() string {
	if e.Op != "" && e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *FrameworkError) Unwrap() error { return e.Err }

// NewError builds a FrameworkError. Recoverable defaults to false; use
// NewRecoverableError for steps that should fall back instead of abort.
func NewError(op string, kind Kind, message string, err error) *FrameworkError {
	return &FrameworkError{Op: op, Kind: kind, Message: message, Err: err}
}

// NewRecoverableError builds a FrameworkError marked Recoverable.
func NewRecoverableError(op string, kind Kind, message string, err error) *FrameworkError {
	return &FrameworkError{Op: op, Kind: kind, Message: message, Err: err, Recoverable: true}
}

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *FrameworkError, otherwise returns KindInternal.
func KindOf(err error) Kind {
	var fe *FrameworkError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// IsRecoverable reports whether err is a *FrameworkError marked Recoverable.
// Non-FrameworkErrors are treated as non-recoverable.
func IsRecoverable(err error) bool {
	var fe *FrameworkError
	if errors.As(err, &fe) {
		return fe.Recoverable
	}
	return false
}

// Sentinel errors for comparison via errors.Is, used by internal packages
// that don't need the full FrameworkError context (e.g. cache misses).
var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicateURL    = errors.New("duplicate url")
	ErrNotInitialized  = errors.New("not initialized")
	ErrAlreadyApplied  = errors.New("migration already applied")
	ErrCircuitOpen     = errors.New("circuit breaker open")
	ErrMaxRetries      = errors.New("maximum retry attempts exceeded")
	ErrContextCanceled = errors.New("context canceled")
)

// IsNotFound reports whether err represents a "not found" condition,
// either via the sentinel or a FrameworkError of KindNotFound/KindContentNotFound.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	k := KindOf(err)
	return k == KindNotFound || k == KindContentNotFound
}

// IsConfigurationError reports whether err reflects bad/missing configuration.
func IsConfigurationError(err error) bool {
	k := KindOf(err)
	return k == KindAPIKeyMissing || k == KindInvalidAPIKey || k == KindValidationFailed
}
