package zitadel_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraconstructs/gridlogin/internal/zitadel"
	"github.com/terraconstructs/gridlogin/internal/zitadel/zitadeltest"
)

func TestClient_GetLoginSettings(t *testing.T) {
	stub := zitadeltest.NewServer(t)
	stub.AllowRegister = false
	client := zitadel.New(stub.URL)

	settings, err := client.GetLoginSettings(context.Background(), "admin-token", "org-1")
	require.NoError(t, err)
	assert.False(t, settings.AllowRegister)
	assert.True(t, settings.AllowUsernamePassword)

	calls := stub.Find(http.MethodGet, "/v2/settings/login")
	require.Len(t, calls, 1)
	assert.Equal(t, "Bearer admin-token", calls[0].Authorization)
	assert.Equal(t, "orgId=org-1", calls[0].RawQuery)
}

func TestClient_GetLoginSettings_InstanceDefault(t *testing.T) {
	stub := zitadeltest.NewServer(t)
	client := zitadel.New(stub.URL)

	_, err := client.GetLoginSettings(context.Background(), "admin-token", "")
	require.NoError(t, err)

	calls := stub.Find(http.MethodGet, "/v2/settings/login")
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].RawQuery)
}

func TestClient_AddHumanUser_OrganizationOmittedWhenEmpty(t *testing.T) {
	stub := zitadeltest.NewServer(t)
	client := zitadel.New(stub.URL)

	_, err := client.AddHumanUser(context.Background(), "admin-token", "", zitadel.AddHumanUserRequest{
		Username: "jane",
		Profile:  zitadel.HumanProfile{GivenName: "Jane", FamilyName: "Doe"},
		Email:    zitadel.HumanEmail{Email: "jane@example.com", IsVerified: true},
	})
	require.NoError(t, err)

	calls := stub.Find(http.MethodPost, "/v2/users/human")
	require.Len(t, calls, 1)
	assert.NotContains(t, calls[0].Body, "organization")
	assert.NotContains(t, calls[0].Body, "password")
	assert.Empty(t, calls[0].OrgID)
}

func TestClient_APIError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{name: "not found", status: http.StatusNotFound, check: zitadel.IsNotFound},
		{name: "already exists", status: http.StatusConflict, check: zitadel.IsAlreadyExists},
		{name: "unauthenticated", status: http.StatusUnauthorized, check: zitadel.IsUnauthenticated},
		{name: "permission denied", status: http.StatusForbidden, check: zitadel.IsPermissionDenied},
		{name: "invalid argument", status: http.StatusBadRequest, check: zitadel.IsInvalidArgument},
		{name: "failed precondition", status: http.StatusPreconditionFailed, check: zitadel.IsFailedPrecondition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := zitadeltest.NewServer(t)
			stub.Fail["POST /v2/sessions"] = tt.status
			client := zitadel.New(stub.URL)

			_, err := client.CreateSession(context.Background(), "admin-token", zitadel.CreateSessionRequest{})
			require.Error(t, err)

			var apiErr *zitadel.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.NotEmpty(t, apiErr.Message)
			assert.True(t, tt.check(err))
			assert.True(t, zitadel.IsRejected(err))
		})
	}
}

func TestClient_ServerErrorIsNotRejection(t *testing.T) {
	stub := zitadeltest.NewServer(t)
	stub.Fail["POST /v2/sessions"] = http.StatusServiceUnavailable
	client := zitadel.New(stub.URL)

	_, err := client.CreateSession(context.Background(), "admin-token", zitadel.CreateSessionRequest{})
	require.Error(t, err)
	assert.False(t, zitadel.IsRejected(err))
}

func TestClient_RegisterPasskey_RelaysOptionsVerbatim(t *testing.T) {
	stub := zitadeltest.NewServer(t)
	stub.PasskeyOptions = json.RawMessage(`{"publicKey":{"challenge":"abc",  "timeout":60000}}`)
	client := zitadel.New(stub.URL)

	resp, err := client.RegisterPasskey(context.Background(), "admin-token", "org-1", "user-1", zitadel.RegisterPasskeyRequest{
		Code:          &zitadel.PasskeyRegistrationCode{ID: "c", Code: "s"},
		Authenticator: zitadel.PasskeyAuthenticatorUnspecified,
		Domain:        "example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "passkey-123", resp.PasskeyID)
	assert.Equal(t, string(stub.PasskeyOptions), string(resp.PublicKeyCredentialCreationOptions))

	calls := stub.Find(http.MethodPost, "/v2beta/users/user-1/passkeys")
	require.Len(t, calls, 1)
	assert.Equal(t, "org-1", calls[0].OrgID)
}

func TestClient_SetUserMetadata_Base64Value(t *testing.T) {
	stub := zitadeltest.NewServer(t)
	client := zitadel.New(stub.URL)

	err := client.SetUserMetadata(context.Background(), "admin-token", "org-1", "user-1", "source", "selfservice")
	require.NoError(t, err)

	calls := stub.Find(http.MethodPost, "/management/v1/users/user-1/metadata/source")
	require.Len(t, calls, 1)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("selfservice")), calls[0].Body["value"])
	assert.Equal(t, "org-1", calls[0].OrgID)
}

func TestClient_CreateCallback(t *testing.T) {
	stub := zitadeltest.NewServer(t)
	client := zitadel.New(stub.URL)

	callbackURL, err := client.CreateCallback(context.Background(), "admin-token", "auth-req-1", zitadel.SessionRef{
		SessionID:    "s-1",
		SessionToken: "t-1",
	})
	require.NoError(t, err)
	assert.Equal(t, stub.CallbackURL, callbackURL)

	calls := stub.Find(http.MethodPost, "/v2/oidc/auth_requests/auth-req-1")
	require.Len(t, calls, 1)
	session, ok := calls[0].Body["session"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "s-1", session["sessionId"])
	assert.Equal(t, "t-1", session["sessionToken"])
}
