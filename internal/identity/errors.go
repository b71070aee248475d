// errors.go -- Normalized identity service failures.
package identity

import (
	"errors"
	"fmt"
)

// Kind classifies why an identity service call failed.
type Kind string

const (
	// KindRejected: the service answered 4xx (bad session, expired identifier, auth denied).
	KindRejected Kind = "rejected"

	// KindThrottled: the service answered 429.
	KindThrottled Kind = "throttled"

	// KindUnavailable: the service answered 5xx or could not be reached.
	KindUnavailable Kind = "unavailable"

	// KindTimeout: the call exceeded its deadline.
	KindTimeout Kind = "timeout"

	// KindBadResponse: the request could not be built or the response made no sense.
	KindBadResponse Kind = "bad_response"

	// KindInternal is reported by KindOf for errors that are not *Error.
	KindInternal Kind = "internal"
)

// Error wraps an identity service failure with its Kind.
type Error struct {
	Kind       Kind
	StatusCode int // 0 when no HTTP response was received
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("identity service [%s]", e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" status %d", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the Kind from err, or KindInternal if err is not an *Error.
func KindOf(err error) Kind {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return KindInternal
}

// kindForStatus maps a non-2xx HTTP status to a Kind.
func kindForStatus(status int) Kind {
	switch {
	case status == 429:
		return KindThrottled
	case status >= 500:
		return KindUnavailable
	case status >= 400:
		return KindRejected
	default:
		return KindBadResponse
	}
}
