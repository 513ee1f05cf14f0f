// Package zitadeltest provides an in-memory stand-in for the ZITADEL REST API, for tests.
package zitadeltest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/terraconstructs/gridlogin/internal/zitadel"
)

// Call is one request received by the stub.
type Call struct {
	Method        string
	Path          string
	RawQuery      string
	OrgID         string
	Authorization string
	RawBody       []byte
	Body          map[string]any
}

// Key renders the call as "METHOD /path".
func (c Call) Key() string {
	return c.Method + " " + c.Path
}

// Server records every call and answers with canned, configurable responses.
// Fields must be set before the code under test issues requests.
type Server struct {
	*httptest.Server

	mu    sync.Mutex
	calls []Call

	AllowRegister     bool
	UserID            string
	ResourceOwner     string
	SessionID         string
	SessionToken      string
	CallbackURL       string
	AuthURL           string
	PasskeyID         string
	PasskeyOptions    json.RawMessage
	SessionChallenges json.RawMessage

	// Users resolvable by login name. UserID is reused as their id when empty.
	Users map[string]zitadel.User

	// Status overrides, keyed by "METHOD /pattern" as registered on the mux
	// (e.g. "POST /v2/sessions"). A non-zero value turns the route into an error.
	Fail map[string]int
}

// NewServer starts a stub and closes it when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		AllowRegister:  true,
		UserID:         "user-123",
		ResourceOwner:  "org-default",
		SessionID:      "session-123",
		SessionToken:   "session-token-123",
		CallbackURL:    "https://app.example.com/callback?code=abc",
		AuthURL:        "https://idp.example.com/authorize?state=xyz",
		PasskeyID:      "passkey-123",
		PasskeyOptions: json.RawMessage(`{"publicKey":{"challenge":"Y2hhbGxlbmdl","rp":{"id":"example.com","name":"example"},"user":{"id":"dXNlcg","name":"jane"},"pubKeyCredParams":[{"type":"public-key","alg":-7}]}}`),
		Users:          map[string]zitadel.User{},
		Fail:           map[string]int{},
	}

	mux := http.NewServeMux()
	s.handle(mux, "GET /v2/settings/login", s.loginSettings)
	s.handle(mux, "POST /v2/users/human", s.addHumanUser)
	s.handle(mux, "POST /v2/users", s.listUsers)
	s.handle(mux, "GET /v2/users/{id}", s.getUser)
	s.handle(mux, "POST /v2/users/{id}/password", empty)
	s.handle(mux, "POST /v2/users/{id}/password_reset", empty)
	s.handle(mux, "POST /v2/sessions", s.createSession)
	s.handle(mux, "PATCH /v2/sessions/{id}", s.setSession)
	s.handle(mux, "DELETE /v2/sessions/{id}", empty)
	s.handle(mux, "GET /v2/oidc/auth_requests/{id}", s.getAuthRequest)
	s.handle(mux, "POST /v2/oidc/auth_requests/{id}", s.createCallback)
	s.handle(mux, "POST /v2beta/users/{id}/passkeys/registration_link", s.registrationLink)
	s.handle(mux, "POST /v2beta/users/{id}/passkeys", s.registerPasskey)
	s.handle(mux, "POST /v2beta/users/{id}/passkeys/{passkeyId}", empty)
	s.handle(mux, "POST /v2/idp_intents", s.startIntent)
	s.handle(mux, "POST /management/v1/users/{id}/grants", empty)
	s.handle(mux, "POST /management/v1/users/{id}/metadata/{key}", empty)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		s.record(r, nil)
		writeError(w, http.StatusNotFound, zitadel.CodeNotFound, "no stub for "+r.Method+" "+r.URL.Path)
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *Server) handle(mux *http.ServeMux, pattern string, h func(http.ResponseWriter, *http.Request, Call)) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		call := s.record(r, body)
		if status := s.Fail[pattern]; status != 0 {
			writeError(w, status, codeFor(status), "stubbed failure for "+pattern)
			return
		}
		h(w, r, call)
	})
}

func (s *Server) record(r *http.Request, body []byte) Call {
	call := Call{
		Method:        r.Method,
		Path:          r.URL.Path,
		RawQuery:      r.URL.RawQuery,
		OrgID:         r.Header.Get(zitadel.OrgIDHeader),
		Authorization: r.Header.Get("Authorization"),
		RawBody:       body,
	}
	if len(body) > 0 {
		_ = json.Unmarshal(body, &call.Body)
	}
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()
	return call
}

// Calls returns every request received so far, in arrival order.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Keys returns "METHOD /path" for every call, in arrival order.
func (s *Server) Keys() []string {
	calls := s.Calls()
	keys := make([]string, len(calls))
	for i, c := range calls {
		keys[i] = c.Key()
	}
	return keys
}

// Find returns the calls made with method to an exact path.
func (s *Server) Find(method, path string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Method == method && c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

func (s *Server) loginSettings(w http.ResponseWriter, _ *http.Request, _ Call) {
	writeJSON(w, map[string]any{
		"settings": zitadel.LoginSettings{
			AllowUsernamePassword: true,
			AllowRegister:         s.AllowRegister,
			AllowExternalIDP:      true,
			PasskeysType:          "PASSKEYS_TYPE_ALLOWED",
		},
	})
}

func (s *Server) addHumanUser(w http.ResponseWriter, _ *http.Request, call Call) {
	owner := s.ResourceOwner
	if org, ok := call.Body["organization"].(map[string]any); ok {
		if id, ok := org["orgId"].(string); ok && id != "" {
			owner = id
		}
	}
	writeJSON(w, zitadel.AddHumanUserResponse{
		UserID:  s.UserID,
		Details: zitadel.Details{Sequence: "1", ResourceOwner: owner},
	})
}

func (s *Server) listUsers(w http.ResponseWriter, _ *http.Request, call Call) {
	loginName := ""
	if queries, ok := call.Body["queries"].([]any); ok && len(queries) > 0 {
		if q, ok := queries[0].(map[string]any); ok {
			if lq, ok := q["loginNameQuery"].(map[string]any); ok {
				loginName, _ = lq["loginName"].(string)
			}
		}
	}
	result := []zitadel.User{}
	if u, ok := s.Users[loginName]; ok {
		result = append(result, s.withID(u))
	}
	writeJSON(w, map[string]any{
		"details": map[string]any{"totalResult": fmt.Sprint(len(result))},
		"result":  result,
	})
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request, _ Call) {
	id := r.PathValue("id")
	for _, u := range s.Users {
		if u = s.withID(u); u.UserID == id {
			writeJSON(w, map[string]any{"user": u})
			return
		}
	}
	writeError(w, http.StatusNotFound, zitadel.CodeNotFound, "User could not be found")
}

func (s *Server) withID(u zitadel.User) zitadel.User {
	if u.UserID == "" {
		u.UserID = s.UserID
	}
	return u
}

func (s *Server) createSession(w http.ResponseWriter, _ *http.Request, _ Call) {
	resp := zitadel.CreateSessionResponse{
		Details:      zitadel.Details{Sequence: "1", ResourceOwner: s.ResourceOwner},
		SessionID:    s.SessionID,
		SessionToken: s.SessionToken,
		Challenges:   s.SessionChallenges,
	}
	writeJSON(w, resp)
}

func (s *Server) setSession(w http.ResponseWriter, _ *http.Request, _ Call) {
	writeJSON(w, zitadel.SetSessionResponse{
		Details:      zitadel.Details{Sequence: "2"},
		SessionToken: s.SessionToken + "-updated",
	})
}

func (s *Server) getAuthRequest(w http.ResponseWriter, r *http.Request, _ Call) {
	writeJSON(w, map[string]any{
		"authRequest": zitadel.AuthRequest{
			ID:          r.PathValue("id"),
			ClientID:    "client-1",
			RedirectURI: "https://app.example.com/callback",
			Scope:       []string{"openid"},
		},
	})
}

func (s *Server) createCallback(w http.ResponseWriter, _ *http.Request, _ Call) {
	writeJSON(w, map[string]any{
		"details":     zitadel.Details{Sequence: "3"},
		"callbackUrl": s.CallbackURL,
	})
}

func (s *Server) registrationLink(w http.ResponseWriter, _ *http.Request, _ Call) {
	writeJSON(w, map[string]any{
		"details": zitadel.Details{Sequence: "4"},
		"code":    zitadel.PasskeyRegistrationCode{ID: "code-id", Code: "code-secret"},
	})
}

func (s *Server) registerPasskey(w http.ResponseWriter, _ *http.Request, _ Call) {
	w.Header().Set("Content-Type", "application/json")
	// Written by hand so the options bytes reach the client exactly as configured.
	fmt.Fprintf(w, `{"details":{"sequence":"5"},"passkeyId":%q,"publicKeyCredentialCreationOptions":%s}`,
		s.PasskeyID, s.PasskeyOptions)
}

func (s *Server) startIntent(w http.ResponseWriter, _ *http.Request, _ Call) {
	writeJSON(w, map[string]any{
		"details": zitadel.Details{Sequence: "6"},
		"authUrl": s.AuthURL,
	})
}

func empty(w http.ResponseWriter, _ *http.Request, _ Call) {
	writeJSON(w, map[string]any{"details": zitadel.Details{Sequence: "7"}})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "message": msg, "details": []any{}})
}

func codeFor(status int) int {
	switch status {
	case http.StatusBadRequest:
		return zitadel.CodeInvalidArgument
	case http.StatusUnauthorized:
		return zitadel.CodeUnauthenticated
	case http.StatusForbidden:
		return zitadel.CodePermissionDenied
	case http.StatusNotFound:
		return zitadel.CodeNotFound
	case http.StatusConflict:
		return zitadel.CodeAlreadyExists
	case http.StatusPreconditionFailed:
		return zitadel.CodeFailedPrecondition
	}
	if status >= http.StatusInternalServerError {
		return 13
	}
	return 2
}
