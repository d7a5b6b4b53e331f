// Package fault defines the typed error taxonomy shared by the order and shipping pipeline.
package fault

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

// Kind classifies an error by the part of the pipeline that produced it.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindAuth              Kind = "auth"
	KindPayment           Kind = "payment"
	KindPOSOrder          Kind = "pos_order"
	KindLoyaltySync       Kind = "loyalty_sync"
	KindShippingRate      Kind = "shipping_rate"
	KindAddressValidation Kind = "address_validation"
	KindLabel             Kind = "label"
	KindTransport         Kind = "transport"
	KindNotFound          Kind = "not_found"
)

// BestEffort reports whether failures of this kind are swallowed by the layer that produced them.
func (k Kind) BestEffort() bool {
	return k == KindLoyaltySync || k == KindAddressValidation
}

// Error codes shared across services.
const (
	CodeMissingCredentials = "MISSING_CREDENTIALS"
	CodeInsufficientScope  = "INSUFFICIENT_SCOPE"
	CodeMediaTypeMismatch  = "MEDIA_TYPE_MISMATCH"
	CodeRejected           = "REJECTED"
	CodeTimeout            = "TIMEOUT"
	CodeNetwork            = "NETWORK"
	CodePaymentFailed      = "PAYMENT_FAILED"
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeAccessDenied       = "ACCESS_DENIED"
	CodeRateLimited        = "RATE_LIMITED"
	CodeUnavailable        = "UNAVAILABLE"
)

// Error is a categorized failure from a local check or a remote system.
type Error struct {
	Kind       Kind
	Service    string
	Code       string
	Message    string
	StatusCode int
	Cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	prefix := string(e.Kind)
	if e.Service != "" {
		prefix = e.Service + " " + prefix
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s error (%s): %s: %v", prefix, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error (%s): %s", prefix, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same kind, and of the same code when the target sets one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// New creates a new Error.
func New(kind Kind, service, code, message string) *Error {
	return &Error{
		Kind:    kind,
		Service: service,
		Code:    code,
		Message: message,
	}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithStatusCode adds the remote HTTP status code to the error.
func (e *Error) WithStatusCode(code int) *Error {
	e.StatusCode = code
	return e
}

// Validation creates a KindValidation error.
func Validation(message string) *Error {
	return New(KindValidation, "", CodeInvalidRequest, message)
}

// Sentinel errors for common scenarios.
var (
	// ErrNotFound indicates a locally tracked record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a record with the same id is already stored.
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnsupported indicates the configured carrier does not offer the capability.
	ErrUnsupported = errors.New("operation not supported")

	// ErrCarrierNotFound indicates the requested carrier is not registered.
	ErrCarrierNotFound = errors.New("carrier not found")
)

// Matchers for errors.Is.
var (
	Auth               = &Error{Kind: KindAuth}
	MissingCredentials = &Error{Kind: KindAuth, Code: CodeMissingCredentials}
	InsufficientScope  = &Error{Kind: KindAuth, Code: CodeInsufficientScope}
	Payment            = &Error{Kind: KindPayment}
	POSOrder           = &Error{Kind: KindPOSOrder}
	LoyaltySync        = &Error{Kind: KindLoyaltySync}
	ShippingRate       = &Error{Kind: KindShippingRate}
	Label              = &Error{Kind: KindLabel}
	ValidationFailure  = &Error{Kind: KindValidation}
)

// KindOf returns the kind of the first *Error in the chain, or "" when there is none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// CodeOf returns the code of the first *Error in the chain.
func CodeOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// IsBestEffort returns true if the error belongs to a kind that never aborts an order.
func IsBestEffort(err error) bool {
	return KindOf(err).BestEffort()
}

// Transport wraps a network-level failure from service, classifying timeouts separately.
// A *url.Error is replaced by its inner error: its text carries the request URL, and some
// remote APIs take credentials in the query string.
func Transport(service string, err error) *Error {
	cause := err
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		cause = urlErr.Err
	}

	if IsTimeout(err) {
		return New(KindTransport, service, CodeTimeout, "request timed out").WithCause(cause)
	}
	return New(KindTransport, service, CodeNetwork, "cannot reach remote service").WithCause(cause)
}

// Unavailable reports a remote endpoint that answered but could not serve the request
// (rate limited or 5xx). It is a transport failure, never a credential one.
func Unavailable(service string, status int, message string) *Error {
	code := CodeUnavailable
	if status == http.StatusTooManyRequests {
		code = CodeRateLimited
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return New(KindTransport, service, code, message).WithStatusCode(status)
}

// IsUnavailable returns true for 429 and 5xx answers from a remote endpoint.
func IsUnavailable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// Recast re-labels a transport error as kind while keeping its transport code and cause.
// Errors that are already typed are returned unchanged.
func Recast(kind Kind, err error) error {
	var fe *Error
	if !errors.As(err, &fe) {
		return err
	}
	if fe.Kind != KindTransport {
		return err
	}
	return &Error{
		Kind:    kind,
		Service: fe.Service,
		Code:    fe.Code,
		Message: fe.Message,
		Cause:   fe,
	}
}

// RootMessage returns the message of the innermost *Error in the chain, or the text of the
// first error below it.
func RootMessage(err error) string {
	var fe *Error
	for errors.As(err, &fe) {
		if fe.Cause == nil {
			return fe.Message
		}
		err = fe.Cause
		fe = nil
	}
	return err.Error()
}

// IsTimeout returns true for deadline and net timeouts.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsTransport returns true if err is a transport failure of any kind, including recast ones.
func IsTransport(err error) bool {
	code := CodeOf(err)
	return code == CodeTimeout || code == CodeNetwork
}
