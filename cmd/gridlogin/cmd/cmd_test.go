package cmd

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraconstructs/gridlogin/internal/zitadel/zitadeltest"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "gridlogin dev (none)\n", out)
}

func TestPasskeyRegisterCommand(t *testing.T) {
	stub := zitadeltest.NewServer(t)
	t.Setenv("GRIDLOGIN_ZITADEL_URL", stub.URL)
	t.Setenv("GRIDLOGIN_ZITADEL_ADMIN_TOKEN", "admin-token")
	t.Setenv("GRIDLOGIN_PASSKEY_DOMAIN", "login.example.com")

	out, err := execute(t, "passkey", "register", "--org-id", "org-1", "--user-id", "user-123")
	require.NoError(t, err)
	assert.JSONEq(t, `{"passkeyId":"passkey-123","publicKeyCredentialCreationOptions":`+string(stub.PasskeyOptions)+`}`, out)

	link := stub.Find(http.MethodPost, "/v2beta/users/user-123/passkeys/registration_link")
	require.Len(t, link, 1)
	assert.Equal(t, "org-1", link[0].OrgID)
	assert.Equal(t, "Bearer admin-token", link[0].Authorization)
}

func TestPasskeyRegisterCommand_MissingZitadelURL(t *testing.T) {
	t.Setenv("GRIDLOGIN_ZITADEL_URL", "")
	t.Setenv("GRIDLOGIN_ZITADEL_ADMIN_TOKEN", "admin-token")

	_, err := execute(t, "passkey", "register", "--org-id", "org-1", "--user-id", "user-123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zitadel.url is required")
}
