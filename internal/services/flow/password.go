package flow

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"github.com/terraconstructs/gridlogin/internal/telemetry"
	"github.com/terraconstructs/gridlogin/internal/zitadel"
)

type ChangePasswordInput struct {
	OrgID           string
	UserID          string
	CurrentPassword string
	NewPassword     string
}

// ChangePassword replaces a password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, in ChangePasswordInput) error {
	return s.setPassword(ctx, "change_password", in.OrgID, in.UserID, zitadel.SetPasswordRequest{
		NewPassword:     zitadel.Password{Password: in.NewPassword},
		CurrentPassword: in.CurrentPassword,
	})
}

type ResetPasswordInput struct {
	OrgID            string
	UserID           string
	VerificationCode string
	Password         string
}

// ResetPassword sets a new password with the code ZITADEL sent after RequestPasswordReset.
func (s *Service) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	return s.setPassword(ctx, "verify_code", in.OrgID, in.UserID, zitadel.SetPasswordRequest{
		NewPassword:      zitadel.Password{Password: in.Password},
		VerificationCode: in.VerificationCode,
	})
}

func (s *Service) setPassword(ctx context.Context, name, orgID, userID string, req zitadel.SetPasswordRequest) error {
	ctx, r := s.begin(ctx, name,
		attribute.String(telemetry.AttrOrgID, orgID),
		attribute.String(telemetry.AttrUserID, userID),
	)
	defer r.finish()

	token, err := s.adminToken(ctx, r)
	if err != nil {
		return r.fail(err)
	}
	if err := s.api.SetPassword(ctx, token, orgID, userID, req); err != nil {
		if zitadel.IsRejected(err) {
			return r.fail(&InvalidCredentialsError{Err: err})
		}
		return r.fail(&UpstreamError{Op: "set password", Err: err})
	}
	return nil
}

// RequestPasswordReset asks ZITADEL to send a reset code to the user. An unknown login name
// succeeds silently.
func (s *Service) RequestPasswordReset(ctx context.Context, loginName string) error {
	ctx, r := s.begin(ctx, "request_code")
	defer r.finish()

	token, err := s.adminToken(ctx, r)
	if err != nil {
		return r.fail(err)
	}
	user, err := s.resolveUser(ctx, r, token, loginName)
	if err != nil {
		if errors.Is(err, errUnknownUser) {
			r.logger.Debug("password reset requested for unknown login name")
			return nil
		}
		return r.fail(err)
	}
	if err := s.api.PasswordReset(ctx, token, user.UserID); err != nil {
		return r.fail(&UpstreamError{Op: "password reset", Err: err})
	}
	return nil
}
