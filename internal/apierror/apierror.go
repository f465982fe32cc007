package apierror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/kassa-labs/recon/model"
	"github.com/sirupsen/logrus"
)

type ErrorCode string

const (
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrConflict       ErrorCode = "CONFLICT"
	ErrBadRequest     ErrorCode = "BAD_REQUEST"
	ErrInvalidInput   ErrorCode = "INVALID_INPUT"
	ErrInternalServer ErrorCode = "INTERNAL_SERVER_ERROR"
)

type APIError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(code ErrorCode, message string, details interface{}) APIError {
	if details != nil {
		logrus.Error(details)
	}
	return APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// FromError converts engine errors into an APIError. Conflicts keep their
// structured payload so a client can tell which side went stale.
func FromError(err error) APIError {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var conflict *model.ConflictError
	var validation *model.ValidationError
	var notFound *model.NotFoundError
	switch {
	case errors.As(err, &conflict):
		return APIError{Code: ErrConflict, Message: conflict.Error(), Details: conflict}
	case errors.As(err, &validation):
		return APIError{Code: ErrInvalidInput, Message: validation.Error(), Details: validation}
	case errors.As(err, &notFound):
		return APIError{Code: ErrNotFound, Message: notFound.Error()}
	}
	return NewAPIError(ErrInternalServer, "internal server error", err.Error())
}

func MapErrorToHTTPStatus(err error) int {
	switch FromError(err).Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrConflict:
		return http.StatusConflict
	case ErrInvalidInput, ErrBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
