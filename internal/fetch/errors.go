package fetch

import (
	"errors"
	"fmt"
)

// ErrorKind classifies fetch failures so callers can branch on kind rather
// than message text.
type ErrorKind int

const (
	// KindTransient covers network errors, timeouts, and retryable HTTP
	// statuses after all attempts are exhausted.
	KindTransient ErrorKind = iota
	// KindChallenge means the body kept resolving to an anti-bot shell page.
	KindChallenge
	// KindPermanent covers non-retryable HTTP statuses such as 404.
	KindPermanent
)

func (k ErrorKind) String() string {
	switch k {
	case KindChallenge:
		return "anti-bot challenge"
	case KindPermanent:
		return "permanent"
	default:
		return "transient"
	}
}

// Error is the failure type returned by Client once it gives up on a URL.
type Error struct {
	Kind       ErrorKind
	URL        string
	Attempts   int
	LastStatus int
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("fetch %s failed after %d attempt(s) [%s]", e.URL, e.Attempts, e.Kind)
	if e.LastStatus != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.LastStatus)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the error kind; non-fetch errors report as transient.
func KindOf(err error) ErrorKind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindTransient
}

// StatusOf returns the last HTTP status attached to a fetch error, or 0.
func StatusOf(err error) int {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.LastStatus
	}
	return 0
}

// IsChallenge reports whether the error is an anti-bot challenge failure.
func IsChallenge(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == KindChallenge
}
