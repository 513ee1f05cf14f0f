// Package passkey drives the two halves of a WebAuthn passkey registration against ZITADEL.
// The browser performs the ceremony; this package only relays options and credentials.
package passkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/terraconstructs/gridlogin/internal/auth"
	"github.com/terraconstructs/gridlogin/internal/telemetry"
	"github.com/terraconstructs/gridlogin/internal/zitadel"
)

const tracerName = "gridlogin/services/passkey"

// DefaultName labels a passkey when the browser did not provide a name.
const DefaultName = "passkey"

// ErrAdminToken wraps every failure to obtain the service account token.
var ErrAdminToken = errors.New("admin token unavailable")

// API is the part of the ZITADEL client the ceremony calls.
type API interface {
	CreatePasskeyRegistrationLink(ctx context.Context, token, orgID, userID string) (*zitadel.PasskeyRegistrationCode, error)
	RegisterPasskey(ctx context.Context, token, orgID, userID string, req zitadel.RegisterPasskeyRequest) (*zitadel.RegisterPasskeyResponse, error)
	VerifyPasskeyRegistration(ctx context.Context, token, orgID, userID, passkeyID string, credential json.RawMessage, name string) error
}

// Registration is handed to the browser to call navigator.credentials.create.
type Registration struct {
	PasskeyID string          `json:"passkeyId"`
	Options   json.RawMessage `json:"publicKeyCredentialCreationOptions"`
}

type Service struct {
	api           API
	tokens        auth.TokenProvider
	domain        string
	authenticator string
	logger        *zap.Logger
}

// NewService returns a ceremony helper for the relying party domain. An empty authenticator
// leaves the choice to the browser.
func NewService(api API, tokens auth.TokenProvider, domain, authenticator string, logger *zap.Logger) *Service {
	if authenticator == "" {
		authenticator = zitadel.PasskeyAuthenticatorUnspecified
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		api:           api,
		tokens:        tokens,
		domain:        domain,
		authenticator: authenticator,
		logger:        logger,
	}
}

// BeginRegistration requests a registration code for the user and starts a passkey
// registration with it. The creation options are returned exactly as ZITADEL sent them.
func (s *Service) BeginRegistration(ctx context.Context, orgID, userID string) (*Registration, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "passkey.BeginRegistration",
		attribute.String(telemetry.AttrOrgID, orgID),
		attribute.String(telemetry.AttrUserID, userID),
	)
	defer span.End()

	token, err := s.tokens.Token(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrAdminToken, err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	code, err := s.api.CreatePasskeyRegistrationLink(ctx, token, orgID, userID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("create registration link: %w", err)
	}
	telemetry.AddEvent(span, "registration_code_issued")

	resp, err := s.api.RegisterPasskey(ctx, token, orgID, userID, zitadel.RegisterPasskeyRequest{
		Code:          code,
		Authenticator: s.authenticator,
		Domain:        s.domain,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("register passkey: %w", err)
	}
	span.SetAttributes(attribute.String(telemetry.AttrPasskeyID, resp.PasskeyID))
	s.logger.Debug("passkey registration started",
		zap.String("user_id", userID),
		zap.String("passkey_id", resp.PasskeyID),
	)

	return &Registration{PasskeyID: resp.PasskeyID, Options: resp.PublicKeyCredentialCreationOptions}, nil
}

// FinishRegistration submits the browser's attestation for passkeyID.
func (s *Service) FinishRegistration(ctx context.Context, orgID, userID, passkeyID string, credential json.RawMessage, name string) error {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "passkey.FinishRegistration",
		attribute.String(telemetry.AttrOrgID, orgID),
		attribute.String(telemetry.AttrUserID, userID),
		attribute.String(telemetry.AttrPasskeyID, passkeyID),
	)
	defer span.End()

	if name == "" {
		name = DefaultName
	}

	token, err := s.tokens.Token(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrAdminToken, err)
		telemetry.RecordError(span, err)
		return err
	}

	if err := s.api.VerifyPasskeyRegistration(ctx, token, orgID, userID, passkeyID, credential, name); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("verify passkey registration: %w", err)
	}
	s.logger.Info("passkey registered", zap.String("user_id", userID), zap.String("passkey_id", passkeyID))
	return nil
}
