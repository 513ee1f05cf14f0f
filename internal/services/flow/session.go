package flow

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/terraconstructs/gridlogin/internal/auth"
	"github.com/terraconstructs/gridlogin/internal/telemetry"
	"github.com/terraconstructs/gridlogin/internal/zitadel"
)

// Logout terminates the session in ZITADEL. A session ZITADEL no longer knows is not an error.
func (s *Service) Logout(ctx context.Context, session auth.Session) error {
	ctx, r := s.begin(ctx, "logout", attribute.String(telemetry.AttrSessionID, session.SessionID))
	defer r.finish()

	token, err := s.adminToken(ctx, r)
	if err != nil {
		return r.fail(err)
	}
	if err := s.api.DeleteSession(ctx, token, session.SessionID, session.SessionToken); err != nil {
		if zitadel.IsNotFound(err) {
			r.logger.Debug("session already gone")
			return nil
		}
		return r.fail(&UpstreamError{Op: "delete session", Err: err})
	}
	return nil
}

// FinalizeAuthRequest links the signed-in session to a pending OIDC auth request and
// returns the callback URL. Unlike registration and login, the URL is the whole point of
// this call, so a bridge failure is returned.
func (s *Service) FinalizeAuthRequest(ctx context.Context, session auth.Session, authRequestID string) (string, error) {
	ctx, r := s.begin(ctx, "finalize",
		attribute.String(telemetry.AttrSessionID, session.SessionID),
		attribute.String(telemetry.AttrAuthRequestID, authRequestID),
	)
	defer r.finish()

	token, err := s.adminToken(ctx, r)
	if err != nil {
		return "", r.fail(err)
	}
	if _, err := s.api.GetAuthRequest(ctx, token, authRequestID); err != nil {
		return "", r.fail(&CallbackBridgeError{AuthRequestID: authRequestID, Err: err})
	}
	callbackURL, err := s.bridge(ctx, r, token, authRequestID, zitadel.SessionRef{
		SessionID:    session.SessionID,
		SessionToken: session.SessionToken,
	})
	if err != nil {
		return "", r.fail(err)
	}
	return callbackURL, nil
}
