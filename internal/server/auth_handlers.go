package server

import (
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/terraconstructs/gridlogin/internal/auth"
	"github.com/terraconstructs/gridlogin/internal/services/flow"
	"github.com/terraconstructs/gridlogin/internal/validation"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

type handlers struct {
	flows     FlowService
	passkeys  PasskeyService
	validator *validation.Validator
	cookies   *auth.Cookies
	logger    *zap.Logger
}

// decode reads and validates the body against schema. On failure the error response has
// already been written.
func (h *handlers) decode(w http.ResponseWriter, r *http.Request, schema string) (validation.Payload, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, r, &validation.ValidationError{Reason: "body could not be read"})
		return validation.Payload{}, false
	}
	payload, err := h.validator.Validate(schema, body)
	if err != nil {
		h.writeError(w, r, err)
		return validation.Payload{}, false
	}
	return payload, true
}

// register handles POST /api/register.
func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	p, ok := h.decode(w, r, validation.SchemaRegister)
	if !ok {
		return
	}
	result, err := h.flows.Register(r.Context(), flow.RegisterInput{
		OrgID:         p.String("orgId"),
		Username:      p.String("username"),
		Email:         p.String("email"),
		GivenName:     p.String("givenName"),
		FamilyName:    p.String("familyName"),
		Password:      p.String("password"),
		AuthRequestID: p.String("authRequestId"),
	}, h.cookies.Writer(w))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// login handles POST /api/login.
func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	p, ok := h.decode(w, r, validation.SchemaLogin)
	if !ok {
		return
	}
	result, err := h.flows.Login(r.Context(), flow.LoginInput{
		LoginName:     p.String("username"),
		Password:      p.String("password"),
		AuthRequestID: p.String("authRequestId"),
	}, h.cookies.Writer(w))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// logout handles POST /api/logout. The cookie is cleared even when ZITADEL fails, and a
// request without a session is already logged out.
func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	session, err := h.cookies.Read(r)
	h.cookies.Clear(w)
	if err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := h.flows.Logout(r.Context(), *session); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// finalize handles POST /api/auth_request/finalize.
func (h *handlers) finalize(w http.ResponseWriter, r *http.Request) {
	p, ok := h.decode(w, r, validation.SchemaFinalize)
	if !ok {
		return
	}
	session, err := h.cookies.Read(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	callbackURL, err := h.flows.FinalizeAuthRequest(r.Context(), *session, p.String("authRequestId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"callbackUrl": callbackURL})
}

// changePassword handles POST /api/users/password.
func (h *handlers) changePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := h.decode(w, r, validation.SchemaChangePassword)
	if !ok {
		return
	}
	err := h.flows.ChangePassword(r.Context(), flow.ChangePasswordInput{
		OrgID:           p.String("orgId"),
		UserID:          p.String("userId"),
		CurrentPassword: p.String("currentPassword"),
		NewPassword:     p.String("newPassword"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requestCode handles POST /api/users/request-code.
func (h *handlers) requestCode(w http.ResponseWriter, r *http.Request) {
	p, ok := h.decode(w, r, validation.SchemaRequestCode)
	if !ok {
		return
	}
	if err := h.flows.RequestPasswordReset(r.Context(), p.String("username")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// verifyCode handles POST /api/users/verify-code.
func (h *handlers) verifyCode(w http.ResponseWriter, r *http.Request) {
	p, ok := h.decode(w, r, validation.SchemaVerifyCode)
	if !ok {
		return
	}
	err := h.flows.ResetPassword(r.Context(), flow.ResetPasswordInput{
		OrgID:            p.String("orgId"),
		UserID:           p.String("userId"),
		VerificationCode: p.String("verificationCode"),
		Password:         p.String("password"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// externalStart handles POST /api/external/start.
func (h *handlers) externalStart(w http.ResponseWriter, r *http.Request) {
	p, ok := h.decode(w, r, validation.SchemaExternalStart)
	if !ok {
		return
	}
	authURL, err := h.flows.StartExternalLogin(r.Context(), flow.ExternalStartInput{
		IDPID:         p.String("idpId"),
		OrgID:         p.String("orgId"),
		AuthRequestID: p.String("authRequestId"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"authUrl": authURL})
}

// externalLogin handles POST /api/login/external.
func (h *handlers) externalLogin(w http.ResponseWriter, r *http.Request) {
	p, ok := h.decode(w, r, validation.SchemaExternalLogin)
	if !ok {
		return
	}
	err := h.flows.CompleteExternalLogin(r.Context(), flow.ExternalLoginInput{
		UserID:         p.String("userId"),
		IDPIntentID:    p.String("idpIntentId"),
		IDPIntentToken: p.String("idpIntentToken"),
	}, h.cookies.Writer(w))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
