package flow

import (
	"context"
	"fmt"
	"net/url"

	"go.opentelemetry.io/otel/attribute"

	"github.com/terraconstructs/gridlogin/internal/actions"
	"github.com/terraconstructs/gridlogin/internal/auth"
	"github.com/terraconstructs/gridlogin/internal/telemetry"
	"github.com/terraconstructs/gridlogin/internal/zitadel"
)

type ExternalStartInput struct {
	IDPID         string
	OrgID         string
	AuthRequestID string
}

// StartExternalLogin starts an identity provider intent and returns the URL to send the
// browser to. The organization and auth request travel back on the redirect URLs.
func (s *Service) StartExternalLogin(ctx context.Context, in ExternalStartInput) (string, error) {
	ctx, r := s.begin(ctx, "external_start",
		attribute.String(telemetry.AttrIDPID, in.IDPID),
		attribute.String(telemetry.AttrOrgID, in.OrgID),
	)
	defer r.finish()

	token, err := s.adminToken(ctx, r)
	if err != nil {
		return "", r.fail(err)
	}

	params := url.Values{}
	if in.OrgID != "" {
		params.Set("organization", in.OrgID)
	}
	if in.AuthRequestID != "" {
		params.Set("authRequestId", in.AuthRequestID)
	}
	successURL, err := withQuery(s.opts.IDPSuccessURL, params)
	if err != nil {
		return "", r.fail(err)
	}
	failureURL, err := withQuery(s.opts.IDPFailureURL, params)
	if err != nil {
		return "", r.fail(err)
	}

	authURL, err := s.api.StartIdentityProviderIntent(ctx, token, in.IDPID, zitadel.RedirectURLs{
		SuccessURL: successURL,
		FailureURL: failureURL,
	})
	if err != nil {
		if zitadel.IsRejected(err) {
			return "", r.fail(&InvalidCredentialsError{Err: err})
		}
		return "", r.fail(&UpstreamError{Op: "start idp intent", Err: err})
	}
	return authURL, nil
}

type ExternalLoginInput struct {
	UserID         string
	IDPIntentID    string
	IDPIntentToken string
}

// CompleteExternalLogin signs in a user who came back from an identity provider and runs
// the externalAuthentication rules.
func (s *Service) CompleteExternalLogin(ctx context.Context, in ExternalLoginInput, write SessionWriter) error {
	ctx, r := s.begin(ctx, "external_login", attribute.String(telemetry.AttrUserID, in.UserID))
	defer r.finish()
	r.transition(StateValidated)

	token, err := s.adminToken(ctx, r)
	if err != nil {
		return r.fail(err)
	}

	session, err := s.establishSession(ctx, r, token, zitadel.CreateSessionRequest{
		Checks: &zitadel.Checks{
			User: &zitadel.CheckUser{UserID: in.UserID},
			IDPIntent: &zitadel.CheckIDPIntent{
				IDPIntentID:    in.IDPIntentID,
				IDPIntentToken: in.IDPIntentToken,
			},
		},
	})
	if err != nil {
		return r.fail(err)
	}

	orgID, err := s.ownerOf(ctx, token, in.UserID)
	if err != nil {
		return r.fail(err)
	}
	subject := actions.User{UserID: in.UserID, OrgID: orgID}
	if err := s.runActions(ctx, r, actions.FlowExternalAuthentication, actions.TriggerPostAuthentication, subject, token); err != nil {
		return r.fail(err)
	}

	if err := s.persist(r, write, auth.Session{
		SessionID:    session.SessionID,
		SessionToken: session.SessionToken,
		UserID:       in.UserID,
	}); err != nil {
		return r.fail(err)
	}
	return nil
}

func withQuery(base string, params url.Values) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse redirect url %q: %w", base, err)
	}
	if len(params) == 0 {
		return u.String(), nil
	}
	q := u.Query()
	for k, v := range params {
		q[k] = v
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
