// Package apierror maps failures onto the messages and HTTP statuses
// returned to Data API clients.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a failure that is reported to the client as {"error": Message}
// with StatusCode.
type Error struct {
	Message    string
	StatusCode int
	Cause      error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors with the same message and status, so sentinel errors
// can be compared after a cause has been attached.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Message == t.Message && e.StatusCode == t.StatusCode
}

// New creates an Error with the given message and status.
func New(message string, statusCode int) *Error {
	return &Error{Message: message, StatusCode: statusCode}
}

// NewWithCause creates an Error carrying the failure that produced it.
func NewWithCause(message string, statusCode int, cause error) *Error {
	return &Error{Message: message, StatusCode: statusCode, Cause: cause}
}

var (
	ErrInvalidTransactionID = New("Invalid transaction ID", http.StatusBadRequest)
	ErrInvalidSecretARN     = New("Invalid secret_arn", http.StatusBadRequest)
	ErrPayloadTooLarge      = New("Json payload size is bigger than allowed", http.StatusRequestEntityTooLarge)
)

// ResourceARNMismatch is returned when a request addresses a cluster other
// than the one this endpoint serves.
func ResourceARNMismatch(configured string) *Error {
	return New("HttpEndPoint is not enabled for "+configured, http.StatusBadRequest)
}

// InvalidPayload is returned when a request body cannot be decoded.
func InvalidPayload(cause error) *Error {
	return NewWithCause("Json deserialize error: "+cause.Error(), http.StatusBadRequest, cause)
}

// Translate converts any error into the Error reported to the client.
// Errors that already are *Error pass through unchanged; everything else
// is classified as a backend failure.
func Translate(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	apiErr = Classify(err).APIError()
	apiErr.Cause = err
	return apiErr
}
