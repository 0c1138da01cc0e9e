// Package client implements the student-device side of phase completion:
// a durable completion queue, a coordinator that tracks time and submits
// completions with idempotency keys, bounded redrive of failed submissions,
// and navigation helpers that gate forward movement through a lesson.
package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a completion-submission failure. The classification decides
// whether a failed item is queued for redrive (transient) or dropped
// (permanent in all its flavors).
type Kind int

const (
	// KindTransient covers network failures without a status code, 5xx,
	// 408 and 429. Worth retrying.
	KindTransient Kind = iota
	// KindUnauthenticated is HTTP 401. The user must sign in again;
	// retrying blindly will not help.
	KindUnauthenticated
	// KindValidation is HTTP 400, a malformed request.
	KindValidation
	// KindAccessDenied is HTTP 403, a sequencing violation. The caller
	// should redirect the user to the correct phase instead of retrying.
	KindAccessDenied
	// KindNotFound is HTTP 404, an unknown lesson or phase.
	KindNotFound
	// KindConflict is HTTP 409, an idempotency key reuse conflict.
	KindConflict
	// KindPermanent covers every other 4xx.
	KindPermanent
)

// String returns a stable label for logs.
func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindValidation:
		return "validation"
	case KindAccessDenied:
		return "access_denied"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "permanent"
	}
}

// Retryable reports whether a failure of this kind should be queued and
// retried. Only transient failures qualify.
func (k Kind) Retryable() bool { return k == KindTransient }

// APIError is a completion-endpoint failure that carried an HTTP status.
// Failures without a status (connection refused, timeout before response)
// stay plain errors and classify as transient.
type APIError struct {
	Status  int
	Code    string // stable machine code from the error envelope, may be empty
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Kind maps the HTTP status onto the closed classification set.
func (e *APIError) Kind() Kind {
	switch {
	case e.Status >= 500,
		e.Status == http.StatusRequestTimeout,
		e.Status == http.StatusTooManyRequests:
		return KindTransient
	case e.Status == http.StatusUnauthorized:
		return KindUnauthenticated
	case e.Status == http.StatusBadRequest:
		return KindValidation
	case e.Status == http.StatusForbidden:
		return KindAccessDenied
	case e.Status == http.StatusNotFound:
		return KindNotFound
	case e.Status == http.StatusConflict:
		return KindConflict
	default:
		return KindPermanent
	}
}

// Classify resolves any error to a Kind. Errors that do not wrap an APIError
// never saw an HTTP status and are treated as transient network failures.
func Classify(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind()
	}
	return KindTransient
}
