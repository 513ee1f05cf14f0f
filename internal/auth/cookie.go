package auth

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	httphelper "github.com/zitadel/oidc/v3/pkg/http"
	"go.uber.org/zap/zapcore"

	"github.com/terraconstructs/gridlogin/internal/config"
)

// ErrNoSession is returned by Read when the request carries no valid session cookie.
var ErrNoSession = errors.New("no session cookie")

const pendingSuffix = ".pending"

// Session is an established ZITADEL session as stored in the browser.
type Session struct {
	SessionID    string `json:"sessionId"`
	SessionToken string `json:"sessionToken"`
	UserID       string `json:"userId"`
}

// MarshalLogObject omits the session token.
func (s Session) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("session_id", s.SessionID)
	enc.AddString("user_id", s.UserID)
	return nil
}

// Cookies stores sessions in encrypted, signed cookies.
//
// The main cookie holds an authenticated session. The pending cookie holds a session whose
// checks are not complete yet (between passkey login start and finish).
type Cookies struct {
	handler *httphelper.CookieHandler
	name    string
}

// NewCookies builds the cookie store. hashKey signs and encryptKey (16, 24 or 32 bytes) encrypts.
func NewCookies(name string, hashKey, encryptKey []byte, path string, insecure bool, maxAge int) *Cookies {
	if path == "" {
		path = "/"
	}
	opts := []httphelper.CookieHandlerOpt{
		httphelper.WithPath(path),
		httphelper.WithSameSite(http.SameSiteLaxMode),
	}
	if insecure {
		opts = append(opts, httphelper.WithUnsecure())
	}
	if maxAge > 0 {
		opts = append(opts, httphelper.WithMaxAge(maxAge))
	}
	return &Cookies{
		handler: httphelper.NewCookieHandler(hashKey, encryptKey, opts...),
		name:    name,
	}
}

// CookieKeys decodes the configured hex keys. Missing keys are generated, which invalidates
// existing cookies on restart; generated reports whether that happened.
func CookieKeys(cfg config.CookieConfig) (hashKey, encryptKey []byte, generated bool, err error) {
	hashKey, gh, err := decodeOrGenerate("cookie.hash_key", cfg.HashKey)
	if err != nil {
		return nil, nil, false, err
	}
	encryptKey, ge, err := decodeOrGenerate("cookie.encrypt_key", cfg.EncryptKey)
	if err != nil {
		return nil, nil, false, err
	}
	switch len(encryptKey) {
	case 16, 24, 32:
	default:
		return nil, nil, false, fmt.Errorf("cookie.encrypt_key must be 16, 24 or 32 bytes, got %d", len(encryptKey))
	}
	return hashKey, encryptKey, gh || ge, nil
}

func decodeOrGenerate(key, value string) ([]byte, bool, error) {
	if value == "" {
		b, err := generateRandomBytes(32)
		return b, true, err
	}
	b, err := hex.DecodeString(value)
	if err != nil {
		return nil, false, fmt.Errorf("%s must be hex encoded: %w", key, err)
	}
	return b, false, nil
}

// Write stores session in the response.
func (c *Cookies) Write(w http.ResponseWriter, session Session) error {
	return c.write(w, c.name, session)
}

// Read returns the session from the request or ErrNoSession.
func (c *Cookies) Read(r *http.Request) (*Session, error) {
	return c.read(r, c.name)
}

// Clear expires the session cookie.
func (c *Cookies) Clear(w http.ResponseWriter) {
	c.handler.DeleteCookie(w, c.name)
}

// WritePending stores a session that still awaits a check.
func (c *Cookies) WritePending(w http.ResponseWriter, session Session) error {
	return c.write(w, c.name+pendingSuffix, session)
}

func (c *Cookies) ReadPending(r *http.Request) (*Session, error) {
	return c.read(r, c.name+pendingSuffix)
}

func (c *Cookies) ClearPending(w http.ResponseWriter) {
	c.handler.DeleteCookie(w, c.name+pendingSuffix)
}

// Writer binds Write to w.
func (c *Cookies) Writer(w http.ResponseWriter) func(Session) error {
	return func(s Session) error {
		return c.Write(w, s)
	}
}

func (c *Cookies) write(w http.ResponseWriter, name string, session Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session cookie: %w", err)
	}
	if err := c.handler.SetCookie(w, name, string(data)); err != nil {
		return fmt.Errorf("set session cookie: %w", err)
	}
	return nil
}

func (c *Cookies) read(r *http.Request, name string) (*Session, error) {
	value, err := c.handler.CheckCookie(r, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	var session Session
	if err := json.Unmarshal([]byte(value), &session); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	if session.SessionID == "" || session.SessionToken == "" {
		return nil, ErrNoSession
	}
	return &session, nil
}

// generateRandomBytes creates a slice of random bytes of a specified size.
func generateRandomBytes(size int) ([]byte, error) {
	b := make([]byte, size)
	_, err := io.ReadFull(rand.Reader, b)
	if err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}
