package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/terraconstructs/gridlogin/internal/auth"
	"github.com/terraconstructs/gridlogin/internal/services/flow"
	"github.com/terraconstructs/gridlogin/internal/services/passkey"
	"github.com/terraconstructs/gridlogin/internal/validation"
	"github.com/terraconstructs/gridlogin/internal/zitadel"
)

// Error codes returned in ErrorResponse.Error.
const (
	CodeValidationFailed      = "validation_failed"
	CodeNoSession             = "no_session"
	CodeForbidden             = "forbidden"
	CodeAdminTokenUnavailable = "admin_token_unavailable"
	CodeRegistrationDisabled  = "registration_disabled"
	CodeInvalidCredentials    = "invalid_credentials"
	CodeAlreadyExists         = "already_exists"
	CodeProvisioningFailed    = "provisioning_failed"
	CodeActionFailed          = "action_failed"
	CodeCallbackFailed        = "callback_failed"
	CodeNotFound              = "not_found"
	CodeRejected              = "rejected"
	CodeUpstreamError         = "upstream_error"
	CodeInternalError         = "internal_error"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// classify maps a service error to its HTTP status and response body.
func classify(err error) (int, ErrorResponse) {
	var (
		validationErr *validation.ValidationError
		disabledErr   *flow.RegistrationDisabledError
		invalidErr    *flow.InvalidCredentialsError
		ruleErr       *flow.ActionRuleError
		bridgeErr     *flow.CallbackBridgeError
		provisionErr  *flow.ProvisioningError
		upstreamErr   *flow.UpstreamError
		apiErr        *zitadel.APIError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, ErrorResponse{CodeValidationFailed, validationErr.Error(), validationErr.Field}
	case errors.Is(err, auth.ErrNoSession):
		return http.StatusUnauthorized, ErrorResponse{Error: CodeNoSession, Message: "no active session"}
	case errors.Is(err, errSessionMismatch):
		return http.StatusForbidden, ErrorResponse{Error: CodeForbidden, Message: err.Error()}
	case errors.Is(err, flow.ErrAdminToken), errors.Is(err, passkey.ErrAdminToken):
		return http.StatusServiceUnavailable, ErrorResponse{Error: CodeAdminTokenUnavailable, Message: "identity service is unavailable"}
	case errors.As(err, &disabledErr):
		return http.StatusForbidden, ErrorResponse{Error: CodeRegistrationDisabled, Message: disabledErr.Error()}
	case errors.As(err, &invalidErr):
		return http.StatusUnauthorized, ErrorResponse{Error: CodeInvalidCredentials, Message: invalidErr.Error()}
	case errors.As(err, &ruleErr):
		return http.StatusBadGateway, ErrorResponse{Error: CodeActionFailed, Message: ruleErr.Error()}
	case errors.As(err, &bridgeErr):
		return http.StatusBadGateway, ErrorResponse{Error: CodeCallbackFailed, Message: bridgeErr.Error()}
	case errors.As(err, &provisionErr):
		if zitadel.IsAlreadyExists(err) {
			return http.StatusConflict, ErrorResponse{Error: CodeAlreadyExists, Message: "user already exists"}
		}
		return http.StatusBadGateway, ErrorResponse{Error: CodeProvisioningFailed, Message: provisionErr.Error()}
	case errors.As(err, &upstreamErr):
		return http.StatusBadGateway, ErrorResponse{Error: CodeUpstreamError, Message: upstreamErr.Error()}
	case errors.As(err, &apiErr):
		switch {
		case zitadel.IsNotFound(err):
			return http.StatusNotFound, ErrorResponse{Error: CodeNotFound, Message: apiErr.Message}
		case apiErr.Rejected():
			return http.StatusBadRequest, ErrorResponse{Error: CodeRejected, Message: apiErr.Message}
		}
		return http.StatusBadGateway, ErrorResponse{Error: CodeUpstreamError, Message: apiErr.Error()}
	}
	return http.StatusInternalServerError, ErrorResponse{Error: CodeInternalError, Message: "internal error"}
}

func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	fields := []zap.Field{
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields...)
	} else {
		h.logger.Info("request rejected", fields...)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
