package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraconstructs/gridlogin/internal/config"
)

// newIssuer starts a discovery document and a token endpoint served by tokenHandler.
func newIssuer(t *testing.T, tokenHandler http.HandlerFunc) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 srv.URL,
			"authorization_endpoint": srv.URL + "/oauth/v2/authorize",
			"token_endpoint":         srv.URL + "/oauth/v2/token",
			"userinfo_endpoint":      srv.URL + "/oidc/v1/userinfo",
			"jwks_uri":               srv.URL + "/oauth/v2/keys",
		})
	})
	mux.HandleFunc("/oauth/v2/token", tokenHandler)
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeToken(w http.ResponseWriter, token string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
}

func TestStaticToken(t *testing.T) {
	token, err := StaticToken("pat-value").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pat-value", token)

	_, err = StaticToken("").Token(context.Background())
	assert.Error(t, err)
}

func TestClientCredentials_Token(t *testing.T) {
	var requests atomic.Int32
	issuer := newIssuer(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Contains(t, r.PostForm.Get("scope"), "urn:zitadel:iam:org:project:id:zitadel:aud")

		id, secret, ok := r.BasicAuth()
		if !ok {
			id, secret = r.PostForm.Get("client_id"), r.PostForm.Get("client_secret")
		}
		if id != "svc" || secret != "secret" {
			http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
			return
		}
		writeToken(w, "cc-token")
	})

	provider, err := NewTokenProvider(config.AdminConfig{
		Mode:         config.AdminModeClientCredentials,
		ClientID:     "svc",
		ClientSecret: "secret",
	}, issuer.URL, issuer.Client())
	require.NoError(t, err)

	token, err := provider.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cc-token", token)

	// fresh per call
	_, err = provider.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), requests.Load())
}

func TestClientCredentials_TokenEndpointFailure(t *testing.T) {
	issuer := newIssuer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"server_error"}`, http.StatusInternalServerError)
	})

	provider := &ClientCredentials{Issuer: issuer.URL, ClientID: "svc", ClientSecret: "secret", HTTPClient: issuer.Client()}
	_, err := provider.Token(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client credentials")
}

func TestJWTProfile_Token(t *testing.T) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privateKey)})

	var issuerURL string
	issuer := newIssuer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "urn:ietf:params:oauth:grant-type:jwt-bearer", r.PostForm.Get("grant_type"))
		assert.Equal(t, "openid urn:zitadel:iam:org:project:id:zitadel:aud", r.PostForm.Get("scope"))

		claims := &jwt.RegisteredClaims{}
		parsed, err := jwt.ParseWithClaims(r.PostForm.Get("assertion"), claims, func(tok *jwt.Token) (any, error) {
			return &privateKey.PublicKey, nil
		}, jwt.WithValidMethods([]string{"RS256"}))
		if !assert.NoError(t, err) {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		assert.Equal(t, "key-1", parsed.Header["kid"])
		assert.Equal(t, "sa-user", claims.Issuer)
		assert.Equal(t, "sa-user", claims.Subject)
		assert.Equal(t, jwt.ClaimStrings{issuerURL}, claims.Audience)

		writeToken(w, "jwt-token")
	})
	issuerURL = issuer.URL

	keyPath := filepath.Join(t.TempDir(), "key.json")
	keyFile, err := json.Marshal(KeyFile{Type: "serviceaccount", KeyID: "key-1", Key: string(keyPEM), UserID: "sa-user"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(keyPath, keyFile, 0600))

	provider, err := NewTokenProvider(config.AdminConfig{
		Mode:    config.AdminModeJWTProfile,
		KeyPath: keyPath,
		Scopes:  config.DefaultAdminScopes,
	}, issuer.URL, issuer.Client())
	require.NoError(t, err)

	token, err := provider.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", token)
}

func TestLoadKeyFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "not json", content: "nope"},
		{name: "missing key", content: `{"type":"serviceaccount","keyId":"k","userId":"u"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "key.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0600))

			_, err := LoadKeyFile(path)
			assert.Error(t, err)
		})
	}

	_, err := LoadKeyFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestNewTokenProvider_UnknownMode(t *testing.T) {
	_, err := NewTokenProvider(config.AdminConfig{Mode: "kerberos"}, "https://issuer", nil)
	assert.Error(t, err)
}
