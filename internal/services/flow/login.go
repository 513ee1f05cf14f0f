package flow

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/terraconstructs/gridlogin/internal/actions"
	"github.com/terraconstructs/gridlogin/internal/auth"
	"github.com/terraconstructs/gridlogin/internal/zitadel"
)

type LoginInput struct {
	LoginName     string
	Password      string
	AuthRequestID string
}

type LoginResult struct {
	UserID         string `json:"userId"`
	ChangeRequired bool   `json:"changeRequired"`
	CallbackURL    string `json:"callbackUrl,omitempty"`
}

// Login checks a login name and password, runs the postAuthentication rules and persists
// the session.
func (s *Service) Login(ctx context.Context, in LoginInput, write SessionWriter) (*LoginResult, error) {
	ctx, r := s.begin(ctx, "login")
	defer r.finish()
	r.transition(StateValidated)

	token, err := s.adminToken(ctx, r)
	if err != nil {
		return nil, r.fail(err)
	}

	user, err := s.resolveUser(ctx, r, token, in.LoginName)
	if err != nil {
		return nil, r.fail(err)
	}

	session, err := s.establishSession(ctx, r, token, zitadel.CreateSessionRequest{
		Checks: &zitadel.Checks{
			User:     &zitadel.CheckUser{LoginName: in.LoginName},
			Password: &zitadel.CheckPassword{Password: in.Password},
		},
	})
	if err != nil {
		return nil, r.fail(err)
	}

	subject := actions.User{UserID: user.UserID, OrgID: user.Details.ResourceOwner}
	if err := s.runActions(ctx, r, actions.FlowInternalAuthentication, actions.TriggerPostAuthentication, subject, token); err != nil {
		return nil, r.fail(err)
	}

	if err := s.persist(r, write, auth.Session{
		SessionID:    session.SessionID,
		SessionToken: session.SessionToken,
		UserID:       user.UserID,
	}); err != nil {
		return nil, r.fail(err)
	}

	result := &LoginResult{
		UserID:         user.UserID,
		ChangeRequired: user.Human != nil && user.Human.PasswordChangeRequired,
	}
	result.CallbackURL = s.bridgeBestEffort(ctx, r, token, in.AuthRequestID, zitadel.SessionRef{
		SessionID:    session.SessionID,
		SessionToken: session.SessionToken,
	})
	return result, nil
}

// PasskeyChallenge is the first half of a passkey login. Challenges holds ZITADEL's
// WebAuthn request options verbatim.
type PasskeyChallenge struct {
	UserID     string          `json:"userId"`
	Challenges json.RawMessage `json:"challenges"`
}

// StartPasskeyLogin creates a session for the user that still lacks a factor and asks
// ZITADEL for a WebAuthn challenge. The unfinished session is handed to writePending.
func (s *Service) StartPasskeyLogin(ctx context.Context, loginName string, writePending SessionWriter) (*PasskeyChallenge, error) {
	ctx, r := s.begin(ctx, "passkey_login_start")
	defer r.finish()
	r.transition(StateValidated)

	token, err := s.adminToken(ctx, r)
	if err != nil {
		return nil, r.fail(err)
	}

	user, err := s.resolveUser(ctx, r, token, loginName)
	if err != nil {
		return nil, r.fail(err)
	}

	session, err := s.establishSession(ctx, r, token, zitadel.CreateSessionRequest{
		Checks: &zitadel.Checks{User: &zitadel.CheckUser{UserID: user.UserID}},
		Challenges: &zitadel.RequestChallenges{
			WebAuthN: &zitadel.RequestWebAuthN{
				Domain:                      s.opts.PasskeyDomain,
				UserVerificationRequirement: zitadel.UserVerificationRequired,
			},
		},
	})
	if err != nil {
		return nil, r.fail(err)
	}

	if err := s.persist(r, writePending, auth.Session{
		SessionID:    session.SessionID,
		SessionToken: session.SessionToken,
		UserID:       user.UserID,
	}); err != nil {
		return nil, r.fail(err)
	}
	return &PasskeyChallenge{UserID: user.UserID, Challenges: session.Challenges}, nil
}

type PasskeyLoginInput struct {
	Pending       auth.Session
	Credential    json.RawMessage
	AuthRequestID string
}

type PasskeyLoginResult struct {
	UserID      string `json:"userId"`
	CallbackURL string `json:"callbackUrl,omitempty"`
}

// FinishPasskeyLogin adds the browser's assertion to the pending session. Only a verified
// session is written.
func (s *Service) FinishPasskeyLogin(ctx context.Context, in PasskeyLoginInput, write SessionWriter) (*PasskeyLoginResult, error) {
	ctx, r := s.begin(ctx, "passkey_login_finish")
	defer r.finish()
	r.transition(StateValidated, zap.String("session_id", in.Pending.SessionID))

	token, err := s.adminToken(ctx, r)
	if err != nil {
		return nil, r.fail(err)
	}

	updated, err := s.api.SetSession(ctx, token, in.Pending.SessionID, zitadel.SetSessionRequest{
		SessionToken: in.Pending.SessionToken,
		Checks: &zitadel.Checks{
			WebAuthN: &zitadel.CheckWebAuthN{CredentialAssertionData: in.Credential},
		},
	})
	if err != nil {
		if zitadel.IsRejected(err) {
			return nil, r.fail(&InvalidCredentialsError{Err: err})
		}
		return nil, r.fail(&UpstreamError{Op: "set session", Err: err})
	}
	r.transition(StateSessionEstablished)

	orgID, err := s.ownerOf(ctx, token, in.Pending.UserID)
	if err != nil {
		return nil, r.fail(err)
	}
	subject := actions.User{UserID: in.Pending.UserID, OrgID: orgID}
	if err := s.runActions(ctx, r, actions.FlowInternalAuthentication, actions.TriggerPostAuthentication, subject, token); err != nil {
		return nil, r.fail(err)
	}

	if err := s.persist(r, write, auth.Session{
		SessionID:    in.Pending.SessionID,
		SessionToken: updated.SessionToken,
		UserID:       in.Pending.UserID,
	}); err != nil {
		return nil, r.fail(err)
	}

	result := &PasskeyLoginResult{UserID: in.Pending.UserID}
	result.CallbackURL = s.bridgeBestEffort(ctx, r, token, in.AuthRequestID, zitadel.SessionRef{
		SessionID:    in.Pending.SessionID,
		SessionToken: updated.SessionToken,
	})
	return result, nil
}
