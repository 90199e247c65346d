package domain

import "errors"

// ErrorKind classifies a failed session operation so callers can render it
// without parsing message text.
type ErrorKind string

const (
	// KindInvalidCoordinate means the selected point failed validation; no
	// helper call was attempted.
	KindInvalidCoordinate ErrorKind = "invalid_coordinate"
	// KindHelperUnavailable means the helper could not be reached or did not
	// answer in time. Transient: the same request may succeed later.
	KindHelperUnavailable ErrorKind = "helper_unavailable"
	// KindHelperRejected means the helper answered and refused the request.
	KindHelperRejected ErrorKind = "helper_rejected"
	// KindUnknown covers everything else.
	KindUnknown ErrorKind = "unknown"
)

// OpError is a classified operation failure. The session keeps the most
// recent one until the next successful transition clears it.
type OpError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// NewOpError builds a classified error.
func NewOpError(kind ErrorKind, message string) *OpError {
	return &OpError{Kind: kind, Message: message}
}

func (e *OpError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// AsOpError normalizes any error into an OpError, classifying unrecognized
// errors as KindUnknown. Returns nil for a nil error.
func AsOpError(err error) *OpError {
	if err == nil {
		return nil
	}
	var oe *OpError
	if errors.As(err, &oe) {
		return oe
	}
	return &OpError{Kind: KindUnknown, Message: err.Error()}
}
