// Package provider defines the shared result taxonomy for outbound
// messaging providers. Each concrete client (unipile, apollo, vapi, ...)
// maps its transport-level responses onto these categories so the
// executor and workflow driver can react uniformly.
package provider

import (
	"errors"
	"fmt"
)

// Category classifies the outcome of a provider call.
type Category string

const (
	// CategoryOK means the call succeeded.
	CategoryOK Category = "ok"
	// CategoryRateLimit means the provider throttled the account or API key.
	CategoryRateLimit Category = "rate_limit"
	// CategoryCredentials means the account's session or token is no longer
	// valid and the account needs to be reconnected.
	CategoryCredentials Category = "credentials_expired"
	// CategoryNotFound means the target (profile, person, resource) does not exist.
	CategoryNotFound Category = "not_found"
	// CategoryDuplicate means the action was already performed
	// (e.g. an invitation is already pending for the recipient).
	CategoryDuplicate Category = "duplicate"
	// CategoryCheckpoint means the provider is demanding an interactive
	// verification step that cannot be completed programmatically.
	CategoryCheckpoint Category = "checkpoint"
	// CategoryValidation means the request was rejected as malformed or
	// violating a provider rule other than rate limiting.
	CategoryValidation Category = "validation"
	// CategoryTransient means a retryable infrastructure failure
	// (timeouts, 5xx, connection resets).
	CategoryTransient Category = "transient"
	// CategoryUnknown is the fallback for unclassified failures.
	CategoryUnknown Category = "unknown"
)

// Error is a classified provider failure.
type Error struct {
	Category Category
	Provider string
	Message  string
	Status   int
	Err      error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (%s, status %d)", e.Provider, e.Message, e.Category, e.Status)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Provider, e.Message, e.Category)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError creates a classified provider error.
func NewError(providerName string, category Category, status int, message string, cause error) *Error {
	return &Error{
		Category: category,
		Provider: providerName,
		Message:  message,
		Status:   status,
		Err:      cause,
	}
}

// CategoryOf extracts the category from an error, returning CategoryUnknown
// for nil-category or untyped errors.
func CategoryOf(err error) Category {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Category
	}
	return CategoryUnknown
}

// IsCredentials reports whether err is a credentials_expired failure.
func IsCredentials(err error) bool {
	return CategoryOf(err) == CategoryCredentials
}

// IsRateLimit reports whether err is a rate_limit failure.
func IsRateLimit(err error) bool {
	return CategoryOf(err) == CategoryRateLimit
}

// IsRetryable reports whether the failure is worth retrying on the same
// account (transient infrastructure problems only).
func IsRetryable(err error) bool {
	return CategoryOf(err) == CategoryTransient
}

// ClassifyStatus maps an HTTP status code to an outcome category using the
// conventions shared by the messaging providers.
func ClassifyStatus(status int) Category {
	switch {
	case status >= 200 && status < 300:
		return CategoryOK
	case status == 401 || status == 403:
		return CategoryCredentials
	case status == 404:
		return CategoryNotFound
	case status == 409:
		return CategoryDuplicate
	case status == 429:
		return CategoryRateLimit
	case status == 422 || status == 400:
		return CategoryValidation
	case status >= 500:
		return CategoryTransient
	default:
		return CategoryUnknown
	}
}
