package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/zitadel/oidc/v3/pkg/client/rp"
	httphelper "github.com/zitadel/oidc/v3/pkg/http"
	"github.com/zitadel/oidc/v3/pkg/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/terraconstructs/gridlogin/internal/config"
)

// TokenProvider returns a bearer token for the ZITADEL service account.
// Implementations fetch a fresh token on every call.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// NewTokenProvider builds the provider selected by cfg.Mode.
func NewTokenProvider(cfg config.AdminConfig, issuer string, httpClient *http.Client) (TokenProvider, error) {
	if httpClient == nil {
		httpClient = defaultHTTPClient()
	}
	switch cfg.Mode {
	case config.AdminModePAT:
		return StaticToken(cfg.Token), nil
	case config.AdminModeClientCredentials:
		return &ClientCredentials{
			Issuer:       issuer,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       cfg.Scopes,
			HTTPClient:   httpClient,
		}, nil
	case config.AdminModeJWTProfile:
		key, err := LoadKeyFile(cfg.KeyPath)
		if err != nil {
			return nil, err
		}
		return NewJWTProfile(issuer, key, cfg.Scopes, httpClient)
	default:
		return nil, fmt.Errorf("unsupported admin token mode %q", cfg.Mode)
	}
}

// StaticToken is a personal access token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", errors.New("personal access token is empty")
	}
	return string(t), nil
}

// ClientCredentials exchanges a client id and secret for an access token.
type ClientCredentials struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	Scopes       []string
	HTTPClient   *http.Client
}

func (c *ClientCredentials) Token(ctx context.Context) (string, error) {
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = defaultHTTPClient()
	}

	// Discovery only provides the token endpoint
	discoverer, err := rp.NewRelyingPartyOIDC(
		ctx,
		c.Issuer,
		c.ClientID,
		c.ClientSecret,
		"", // redirectURI - not used for client credentials flow
		c.scopes(),
		rp.WithHTTPClient(httpClient),
	)
	if err != nil {
		return "", fmt.Errorf("failed to discover OIDC provider at %s: %w", c.Issuer, err)
	}

	ccConfig := clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     discoverer.OAuthConfig().Endpoint.TokenURL,
		Scopes:       c.scopes(),
	}

	token, err := ccConfig.Token(context.WithValue(ctx, oauth2.HTTPClient, httpClient))
	if err != nil {
		return "", fmt.Errorf("failed to exchange client credentials for token: %w", err)
	}
	return token.AccessToken, nil
}

func (c *ClientCredentials) scopes() []string {
	if len(c.Scopes) == 0 {
		return config.DefaultAdminScopes
	}
	return c.Scopes
}

// KeyFile is a ZITADEL service account key as downloaded from the console.
type KeyFile struct {
	Type   string `json:"type"`
	KeyID  string `json:"keyId"`
	Key    string `json:"key"`
	UserID string `json:"userId"`
}

// LoadKeyFile reads a service account key file.
func LoadKeyFile(path string) (*KeyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	var key KeyFile
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("failed to parse key file %s: %w", path, err)
	}
	if key.KeyID == "" || key.Key == "" || key.UserID == "" {
		return nil, fmt.Errorf("key file %s is missing keyId, key or userId", path)
	}
	return &key, nil
}

// JWTProfile authenticates with a signed assertion (RFC 7523) built from a service account key.
type JWTProfile struct {
	issuer     string
	keyID      string
	userID     string
	privateKey *rsa.PrivateKey
	scopes     []string
	httpClient *http.Client
	now        func() time.Time
}

// NewJWTProfile parses the RSA key of key and returns a provider for it.
func NewJWTProfile(issuer string, key *KeyFile, scopes []string, httpClient *http.Client) (*JWTProfile, error) {
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(key.Key))
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account key: %w", err)
	}
	if len(scopes) == 0 {
		scopes = config.DefaultAdminScopes
	}
	if httpClient == nil {
		httpClient = defaultHTTPClient()
	}
	return &JWTProfile{
		issuer:     issuer,
		keyID:      key.KeyID,
		userID:     key.UserID,
		privateKey: privateKey,
		scopes:     scopes,
		httpClient: httpClient,
		now:        time.Now,
	}, nil
}

func (j *JWTProfile) Token(ctx context.Context) (string, error) {
	discoverer, err := rp.NewRelyingPartyOIDC(ctx, j.issuer, j.userID, "", "", j.scopes, rp.WithHTTPClient(j.httpClient))
	if err != nil {
		return "", fmt.Errorf("failed to discover OIDC provider at %s: %w", j.issuer, err)
	}

	assertion, err := j.assertion()
	if err != nil {
		return "", err
	}

	form := url.Values{
		"grant_type": {string(oidc.GrantTypeBearer)},
		"assertion":  {assertion},
		"scope":      {strings.Join(j.scopes, " ")},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, discoverer.OAuthConfig().Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp oidc.AccessTokenResponse
	if err := httphelper.HttpRequest(j.httpClient, req, &resp); err != nil {
		return "", fmt.Errorf("failed to exchange jwt profile assertion for token: %w", err)
	}
	if resp.AccessToken == "" {
		return "", errors.New("token endpoint returned no access token")
	}
	return resp.AccessToken, nil
}

func (j *JWTProfile) assertion() (string, error) {
	now := j.now()
	claims := jwt.RegisteredClaims{
		Issuer:    j.userID,
		Subject:   j.userID,
		Audience:  jwt.ClaimStrings{j.issuer},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = j.keyID

	signed, err := token.SignedString(j.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign jwt profile assertion: %w", err)
	}
	return signed, nil
}

// defaultHTTPClient returns an HTTP client with reasonable timeout for OIDC operations.
func defaultHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
	}
}
