package zitadel

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// gRPC status codes ZITADEL reports in its REST error bodies.
const (
	CodeInvalidArgument    = 3
	CodeNotFound           = 5
	CodeAlreadyExists      = 6
	CodePermissionDenied   = 7
	CodeFailedPrecondition = 9
	CodeUnauthenticated    = 16
)

// APIError is a non-2xx response from ZITADEL.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("zitadel: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("zitadel: %d %s", e.StatusCode, e.Message)
}

// Rejected reports whether ZITADEL refused the request itself (4xx), as opposed to failing to serve it.
func (e *APIError) Rejected() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var payload struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Code = payload.Code
		apiErr.Message = payload.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

func hasStatus(err error, status, code int) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == status || (apiErr.Code != 0 && apiErr.Code == code)
}

// IsRejected reports whether err is a 4xx answer from ZITADEL.
func IsRejected(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Rejected()
}

func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound, CodeNotFound)
}

func IsAlreadyExists(err error) bool {
	return hasStatus(err, http.StatusConflict, CodeAlreadyExists)
}

func IsUnauthenticated(err error) bool {
	return hasStatus(err, http.StatusUnauthorized, CodeUnauthenticated)
}

func IsPermissionDenied(err error) bool {
	return hasStatus(err, http.StatusForbidden, CodePermissionDenied)
}

func IsInvalidArgument(err error) bool {
	return hasStatus(err, http.StatusBadRequest, CodeInvalidArgument)
}

func IsFailedPrecondition(err error) bool {
	return hasStatus(err, http.StatusPreconditionFailed, CodeFailedPrecondition)
}
