package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/terraconstructs/gridlogin/internal/auth"
	"github.com/terraconstructs/gridlogin/internal/services/flow"
	"github.com/terraconstructs/gridlogin/internal/validation"
)

// errSessionMismatch rejects a passkey registration for a user other than the signed-in one.
var errSessionMismatch = errors.New("session does not belong to the user")

// requireOwnSession fails unless the caller's session belongs to userID.
func (h *handlers) requireOwnSession(r *http.Request, userID string) error {
	session, err := h.cookies.Read(r)
	if err != nil {
		return err
	}
	if session.UserID == "" || session.UserID != userID {
		return errSessionMismatch
	}
	return nil
}

// passkeyRegister handles POST /api/passkey/register. Only the signed-in user can register a
// passkey for their own account. The creation options are written as received from ZITADEL,
// without re-encoding.
func (h *handlers) passkeyRegister(w http.ResponseWriter, r *http.Request) {
	p, ok := h.decode(w, r, validation.SchemaPasskeyRegister)
	if !ok {
		return
	}
	if err := h.requireOwnSession(r, p.String("userId")); err != nil {
		h.writeError(w, r, err)
		return
	}
	reg, err := h.passkeys.BeginRegistration(r.Context(), p.String("orgId"), p.String("userId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	id, err := json.Marshal(reg.PasskeyID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	options := []byte(reg.Options)
	if len(options) == 0 {
		options = []byte("null")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"passkeyId":`))
	_, _ = w.Write(id)
	_, _ = w.Write([]byte(`,"publicKeyCredentialCreationOptions":`))
	_, _ = w.Write(options)
	_, _ = w.Write([]byte("}\n"))
}

// passkeyVerify handles POST /api/passkey/verify. Same session rule as passkeyRegister.
func (h *handlers) passkeyVerify(w http.ResponseWriter, r *http.Request) {
	p, ok := h.decode(w, r, validation.SchemaPasskeyVerify)
	if !ok {
		return
	}
	if err := h.requireOwnSession(r, p.String("userId")); err != nil {
		h.writeError(w, r, err)
		return
	}
	err := h.passkeys.FinishRegistration(r.Context(),
		p.String("orgId"),
		p.String("userId"),
		p.String("passkeyId"),
		p.Raw("credential"),
		p.String("passkeyName"),
	)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// passkeyStart handles POST /api/passkey/start. The unverified session goes into the
// pending cookie; the session cookie is left untouched.
func (h *handlers) passkeyStart(w http.ResponseWriter, r *http.Request) {
	p, ok := h.decode(w, r, validation.SchemaPasskeyStart)
	if !ok {
		return
	}
	challenge, err := h.flows.StartPasskeyLogin(r.Context(), p.String("username"), func(s auth.Session) error {
		return h.cookies.WritePending(w, s)
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, challenge)
}

// passkeyLogin handles POST /api/passkey/login.
func (h *handlers) passkeyLogin(w http.ResponseWriter, r *http.Request) {
	p, ok := h.decode(w, r, validation.SchemaPasskeyLogin)
	if !ok {
		return
	}
	pending, err := h.cookies.ReadPending(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.flows.FinishPasskeyLogin(r.Context(), flow.PasskeyLoginInput{
		Pending:       *pending,
		Credential:    p.Raw("webAuthN"),
		AuthRequestID: p.String("authRequestId"),
	}, h.cookies.Writer(w))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.cookies.ClearPending(w)
	writeJSON(w, http.StatusOK, result)
}
