package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraconstructs/gridlogin/internal/auth"
	"github.com/terraconstructs/gridlogin/internal/services/flow"
	"github.com/terraconstructs/gridlogin/internal/services/passkey"
	"github.com/terraconstructs/gridlogin/internal/telemetry"
	"github.com/terraconstructs/gridlogin/internal/validation"
	"github.com/terraconstructs/gridlogin/internal/zitadel"
	"github.com/terraconstructs/gridlogin/internal/zitadel/zitadeltest"
)

type e2e struct {
	stub    *zitadeltest.Server
	server  *httptest.Server
	client  *http.Client
	metrics *telemetry.Metrics
}

func newE2E(t *testing.T) *e2e {
	t.Helper()
	stub := zitadeltest.NewServer(t)
	api := zitadel.New(stub.URL)
	tokens := auth.StaticToken("admin-token")
	metrics := telemetry.NewMetrics()

	validator, err := validation.NewValidator()
	require.NoError(t, err)

	router := NewRouter(RouterOptions{
		Flows: flow.NewService(flow.Dependencies{
			API:     api,
			Tokens:  tokens,
			Options: flow.Options{PasskeyDomain: "login.example.com"},
			Metrics: metrics,
		}),
		Passkeys:  passkey.NewService(api, tokens, "login.example.com", "", nil),
		Validator: validator,
		Cookies:   testCookies(t),
		Metrics:   metrics,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &e2e{
		stub:    stub,
		server:  server,
		client:  &http.Client{Jar: jar},
		metrics: metrics,
	}
}

func (e *e2e) post(t *testing.T, path, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := e.client.Post(e.server.URL+path, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func (e *e2e) cookie(t *testing.T, name string) *http.Cookie {
	t.Helper()
	u, err := url.Parse(e.server.URL)
	require.NoError(t, err)
	for _, c := range e.client.Jar.Cookies(u) {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestE2E_RegisterWithAuthRequest(t *testing.T) {
	e := newE2E(t)

	resp, body := e.post(t, "/api/register",
		`{"orgId":"org-1","username":"jane","email":"jane@example.com","givenName":"Jane","familyName":"Doe","password":"Secr3t!pass","authRequestId":"ar-1"}`)

	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"userId":"user-123","callbackUrl":"`+e.stub.CallbackURL+`"}`, string(body))
	assert.NotNil(t, e.cookie(t, "gridlogin.session"))
	assert.Equal(t, []string{
		"GET /v2/settings/login",
		"POST /v2/users/human",
		"POST /v2/sessions",
		"POST /v2/oidc/auth_requests/ar-1",
	}, e.stub.Keys())
}

func TestE2E_RegisterCallbackFailureStill200(t *testing.T) {
	e := newE2E(t)
	e.stub.Fail["POST /v2/oidc/auth_requests/{id}"] = http.StatusBadRequest

	resp, body := e.post(t, "/api/register",
		`{"username":"jane","email":"jane@example.com","givenName":"Jane","familyName":"Doe","password":"Secr3t!pass","authRequestId":"ar-1"}`)

	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"userId":"user-123"}`, string(body))
	assert.NotNil(t, e.cookie(t, "gridlogin.session"))
}

func TestE2E_RegistrationDisabled(t *testing.T) {
	e := newE2E(t)
	e.stub.AllowRegister = false

	resp, body := e.post(t, "/api/register",
		`{"username":"jane","email":"jane@example.com","givenName":"Jane","familyName":"Doe","password":"Secr3t!pass"}`)

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, string(body), CodeRegistrationDisabled)
	assert.Nil(t, e.cookie(t, "gridlogin.session"))
	assert.Empty(t, e.stub.Find(http.MethodPost, "/v2/users/human"))
}

func TestE2E_LoginFinalizeLogout(t *testing.T) {
	e := newE2E(t)
	e.stub.Users["jane"] = zitadel.User{Details: zitadel.Details{ResourceOwner: "org-1"}}

	resp, body := e.post(t, "/api/login", `{"username":"jane","password":"Secr3t!pass"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"userId":"user-123","changeRequired":false}`, string(body))
	require.NotNil(t, e.cookie(t, "gridlogin.session"))

	resp, body = e.post(t, "/api/auth_request/finalize", `{"authRequestId":"ar-2"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"callbackUrl":"`+e.stub.CallbackURL+`"}`, string(body))
	callback := e.stub.Find(http.MethodPost, "/v2/oidc/auth_requests/ar-2")
	require.Len(t, callback, 1)
	assert.Equal(t, map[string]any{"sessionId": "session-123", "sessionToken": "session-token-123"}, callback[0].Body["session"])

	resp, _ = e.post(t, "/api/logout", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Len(t, e.stub.Find(http.MethodDelete, "/v2/sessions/session-123"), 1)
	assert.Nil(t, e.cookie(t, "gridlogin.session"))
}

func TestE2E_PasskeyLogin(t *testing.T) {
	e := newE2E(t)
	e.stub.Users["jane"] = zitadel.User{}
	e.stub.SessionChallenges = json.RawMessage(`{"webAuthN":{"publicKeyCredentialRequestOptions":{"publicKey":{"challenge":"abc"}}}}`)

	resp, body := e.post(t, "/api/passkey/start", `{"username":"jane"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"userId":"user-123","challenges":`+string(e.stub.SessionChallenges)+`}`, string(body))
	require.NotNil(t, e.cookie(t, "gridlogin.session.pending"))
	assert.Nil(t, e.cookie(t, "gridlogin.session"))

	resp, body = e.post(t, "/api/passkey/login", `{"webAuthN":{"id":"cred-1","type":"public-key"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"userId":"user-123"}`, string(body))
	assert.NotNil(t, e.cookie(t, "gridlogin.session"))
	assert.Nil(t, e.cookie(t, "gridlogin.session.pending"))

	patch := e.stub.Find(http.MethodPatch, "/v2/sessions/session-123")
	require.Len(t, patch, 1)
	assert.Equal(t, map[string]any{"credentialAssertionData": map[string]any{"id": "cred-1", "type": "public-key"}},
		patch[0].Body["checks"].(map[string]any)["webAuthN"])
}

func TestE2E_PasskeyRegistration(t *testing.T) {
	e := newE2E(t)
	e.stub.Users["jane"] = zitadel.User{Details: zitadel.Details{ResourceOwner: "org-1"}}

	resp, body := e.post(t, "/api/login", `{"username":"jane","password":"Secr3t!pass"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = e.post(t, "/api/passkey/register", `{"orgId":"org-1","userId":"user-123"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), `"publicKeyCredentialCreationOptions":`+string(e.stub.PasskeyOptions))

	resp, body = e.post(t, "/api/passkey/verify",
		`{"orgId":"org-1","userId":"user-123","passkeyId":"passkey-123","credential":{"id":"cred-1"},"passkeyName":"laptop"}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode, string(body))
	verify := e.stub.Find(http.MethodPost, "/v2beta/users/user-123/passkeys/passkey-123")
	require.Len(t, verify, 1)
	assert.Equal(t, "laptop", verify[0].Body["passkeyName"])
	assert.Equal(t, "org-1", verify[0].OrgID)
}

func TestE2E_FlowMetrics(t *testing.T) {
	e := newE2E(t)
	e.stub.Fail["POST /v2/oidc/auth_requests/{id}"] = http.StatusInternalServerError

	e.post(t, "/api/register",
		`{"username":"jane","email":"jane@example.com","givenName":"Jane","familyName":"Doe","password":"Secr3t!pass","authRequestId":"ar-1"}`)

	resp, err := e.client.Get(e.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `gridlogin_flow_total{flow="register",outcome="callback_failed"} 1`)
	assert.Contains(t, string(raw), `gridlogin_http_requests_total{method="POST",route="/api/register",status="200"} 1`)
}

func TestE2E_PasskeyRegistrationRejectsOtherUsers(t *testing.T) {
	e := newE2E(t)

	anonymous := &http.Client{}
	resp, err := anonymous.Post(e.server.URL+"/api/passkey/register", "application/json",
		bytes.NewBufferString(`{"orgId":"org-victim","userId":"victim-user"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = anonymous.Post(e.server.URL+"/api/passkey/verify", "application/json",
		bytes.NewBufferString(`{"orgId":"org-victim","userId":"victim-user","passkeyId":"passkey-123","credential":{"id":"cred-1"}}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	e.stub.Users["jane"] = zitadel.User{}
	resp, body := e.post(t, "/api/login", `{"username":"jane","password":"Secr3t!pass"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = e.post(t, "/api/passkey/register", `{"orgId":"org-victim","userId":"victim-user"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, string(body), CodeForbidden)

	for _, call := range e.stub.Keys() {
		assert.NotContains(t, call, "/v2beta/users/victim-user")
	}
}
