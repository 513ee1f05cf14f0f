package flow

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/terraconstructs/gridlogin/internal/actions"
	"github.com/terraconstructs/gridlogin/internal/auth"
	"github.com/terraconstructs/gridlogin/internal/telemetry"
	"github.com/terraconstructs/gridlogin/internal/zitadel"
)

// RegisterInput is a validated registration request. OrgID and AuthRequestID may be empty.
type RegisterInput struct {
	OrgID         string
	Username      string
	Email         string
	GivenName     string
	FamilyName    string
	Password      string
	AuthRequestID string
}

// RegisterResult is returned to the browser. CallbackURL is set only when an auth request
// was given and the OIDC bridge succeeded.
type RegisterResult struct {
	UserID      string `json:"userId"`
	CallbackURL string `json:"callbackUrl,omitempty"`
}

// Register creates a human user with a verified email and a password, runs the
// postCreation rules, signs the user in and, when AuthRequestID is set, links the new
// session to the pending OIDC request.
func (s *Service) Register(ctx context.Context, in RegisterInput, write SessionWriter) (*RegisterResult, error) {
	ctx, r := s.begin(ctx, "register", attribute.String(telemetry.AttrOrgID, in.OrgID))
	defer r.finish()
	r.transition(StateValidated)

	token, err := s.adminToken(ctx, r)
	if err != nil {
		return nil, r.fail(err)
	}

	if err := s.checkRegistrationAllowed(ctx, r, token, in.OrgID); err != nil {
		return nil, r.fail(err)
	}

	created, err := s.api.AddHumanUser(ctx, token, in.OrgID, humanUserRequest(in))
	if err != nil {
		return nil, r.fail(&ProvisioningError{Op: "create user", Err: err})
	}
	resourceOwner := created.Details.ResourceOwner
	if resourceOwner == "" {
		resourceOwner = in.OrgID
	}
	r.span.SetAttributes(attribute.String(telemetry.AttrUserID, created.UserID))
	r.transition(StateAccountProvisioned, zap.String("user_id", created.UserID), zap.String("resource_owner", resourceOwner))

	user := actions.User{UserID: created.UserID, OrgID: resourceOwner}
	if err := s.runActions(ctx, r, actions.FlowInternalAuthentication, actions.TriggerPostCreation, user, token); err != nil {
		return nil, r.fail(err)
	}

	session, err := s.establishSession(ctx, r, token, zitadel.CreateSessionRequest{
		Checks: &zitadel.Checks{
			User:     &zitadel.CheckUser{LoginName: in.Email},
			Password: &zitadel.CheckPassword{Password: in.Password},
		},
	})
	if err != nil {
		return nil, r.fail(err)
	}

	if err := s.persist(r, write, auth.Session{
		SessionID:    session.SessionID,
		SessionToken: session.SessionToken,
		UserID:       created.UserID,
	}); err != nil {
		return nil, r.fail(err)
	}

	result := &RegisterResult{UserID: created.UserID}
	result.CallbackURL = s.bridgeBestEffort(ctx, r, token, in.AuthRequestID, zitadel.SessionRef{
		SessionID:    session.SessionID,
		SessionToken: session.SessionToken,
	})
	r.logger.Info("user registered", zap.String("user_id", created.UserID), zap.String("org_id", resourceOwner))
	return result, nil
}

func (s *Service) checkRegistrationAllowed(ctx context.Context, r *run, token, orgID string) error {
	settings, err := s.api.GetLoginSettings(ctx, token, orgID)
	if err != nil {
		return &ProvisioningError{Op: "fetch login settings", Err: err}
	}
	if !settings.AllowRegister {
		return &RegistrationDisabledError{OrgID: orgID}
	}
	r.transition(StatePolicyChecked)
	return nil
}

func humanUserRequest(in RegisterInput) zitadel.AddHumanUserRequest {
	req := zitadel.AddHumanUserRequest{
		Username: in.Username,
		Profile: zitadel.HumanProfile{
			GivenName:   in.GivenName,
			FamilyName:  in.FamilyName,
			DisplayName: in.GivenName + " " + in.FamilyName,
			Gender:      zitadel.GenderUnspecified,
		},
		Email:    zitadel.HumanEmail{Email: in.Email, IsVerified: true},
		Password: &zitadel.Password{Password: in.Password, ChangeRequired: false},
	}
	if in.OrgID != "" {
		req.Organization = &zitadel.Organization{OrgID: in.OrgID}
	}
	return req
}
