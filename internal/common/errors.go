package common

import "net/http"

// Error codes shared by the HTTP surface.
const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeMissingParameters  = "MISSING_PARAMETERS"
	CodeVerificationFailed = "VERIFICATION_FAILED"
	CodeUpstream           = "UPSTREAM_ERROR"
	CodeStorage            = "STORAGE_ERROR"
	CodeMissingSignature   = "MISSING_SIGNATURE"
	CodeMissingBody        = "MISSING_BODY"
	CodeInvalidSignature   = "INVALID_SIGNATURE"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeNotFound           = "NOT_FOUND"
	CodeRateLimited        = "RATE_LIMITED"
	CodeIdempotentReplay   = "IDEMPOTENT_REPLAY"
	CodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	CodeInternal           = "INTERNAL"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	OrderID    string
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithOrder returns a copy of e tagged with the order id.
func (e *AppError) WithOrder(orderID string) *AppError {
	cp := *e
	cp.OrderID = orderID
	return &cp
}

// InvalidInput reports a rejected request field.
func InvalidInput(field, message string) *AppError {
	return &AppError{
		Code:       CodeInvalidInput,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"field": field},
	}
}
