package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies scrape failures so the router and scheduler can
// choose between retry, re-route and terminal outcomes.
type ErrorKind string

const (
	ErrKindTransient   ErrorKind = "transient"    // Timeout, reset, 5xx, DNS
	ErrKindRateLimited ErrorKind = "rate_limited" // 429 or equivalent signal
	ErrKindBlocked     ErrorKind = "blocked"      // CAPTCHA or block page
	ErrKindEmpty       ErrorKind = "empty"        // Fetched but zero jobs extracted
	ErrKindParse       ErrorKind = "parse"        // Malformed HTML, missing fields
	ErrKindConfig      ErrorKind = "config"       // Missing board, invalid selectors
	ErrKindInternal    ErrorKind = "internal"     // Unexpected state
)

// ScrapeError is the typed error adapters return across the engine boundary.
type ScrapeError struct {
	Kind    ErrorKind
	Engine  EngineType
	Host    string
	Message string
	Err     error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError wraps err with a kind and context message.
func NewScrapeError(kind ErrorKind, message string, err error) *ScrapeError {
	return &ScrapeError{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the error kind from err, walking the wrap chain.
// Unclassified errors report ErrKindInternal.
func KindOf(err error) ErrorKind {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ErrKindInternal
}

// Retryable reports whether the scheduler should re-enqueue a task that
// failed with this kind. Config and blocked failures are terminal.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrKindTransient, ErrKindRateLimited, ErrKindEmpty:
		return true
	}
	return false
}
