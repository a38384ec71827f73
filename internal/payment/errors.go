package payment

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/noah-isme/backend-fold/internal/common"
)

// ErrUpstream matches every failure of the payment provider.
var ErrUpstream = errors.New("payment: upstream error")

// UpstreamError carries the provider's error details.
type UpstreamError struct {
	StatusCode  int
	Code        string
	Description string
	Err         error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Description != "":
		return fmt.Sprintf("razorpay: %s", e.Description)
	case e.Err != nil:
		return fmt.Sprintf("razorpay: %v", e.Err)
	default:
		return fmt.Sprintf("razorpay: status %d", e.StatusCode)
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrUpstream) hold for any UpstreamError.
func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

func missingParameters(fields []string) *common.AppError {
	return &common.AppError{
		Code:       common.CodeMissingParameters,
		Message:    "missing required fields: " + strings.Join(fields, ", "),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"missing": fields},
	}
}

func verificationFailed(orderID string) *common.AppError {
	return &common.AppError{
		Code:       common.CodeVerificationFailed,
		Message:    fmt.Sprintf("payment verification failed for order %s", orderID),
		HTTPStatus: http.StatusBadRequest,
		OrderID:    orderID,
	}
}

var (
	errVerifyInternal = &common.AppError{
		Code:       common.CodeVerificationFailed,
		Message:    "payment verification failed",
		HTTPStatus: http.StatusInternalServerError,
	}
	errDatabase = &common.AppError{
		Code:       common.CodeStorage,
		Message:    "database error",
		HTTPStatus: http.StatusInternalServerError,
	}
	errMissingSignature = &common.AppError{
		Code:       common.CodeMissingSignature,
		Message:    "missing X-Razorpay-Signature header",
		HTTPStatus: http.StatusBadRequest,
	}
	errMissingBody = &common.AppError{
		Code:       common.CodeMissingBody,
		Message:    "missing request body",
		HTTPStatus: http.StatusBadRequest,
	}
	errInvalidSignature = &common.AppError{
		Code:       common.CodeInvalidSignature,
		Message:    "invalid webhook signature",
		HTTPStatus: http.StatusForbidden,
	}
)

func upstreamAppError(err error) *common.AppError {
	appErr := &common.AppError{
		Code:       common.CodeUpstream,
		Message:    "failed to create order",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
	var up *UpstreamError
	if errors.As(err, &up) && up.Description != "" {
		appErr.Message = up.Description
		appErr.Details = map[string]any{"providerCode": up.Code, "providerStatus": up.StatusCode}
	}
	return appErr
}
