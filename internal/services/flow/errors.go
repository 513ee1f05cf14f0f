package flow

import (
	"errors"
	"fmt"
)

// ErrAdminToken wraps every failure to obtain the service account token.
var ErrAdminToken = errors.New("admin token unavailable")

// RegistrationDisabledError means the organization's login policy forbids self-registration.
type RegistrationDisabledError struct {
	OrgID string
}

func (e *RegistrationDisabledError) Error() string {
	if e.OrgID == "" {
		return "registration is not allowed"
	}
	return fmt.Sprintf("registration is not allowed for organization %s", e.OrgID)
}

// ProvisioningError is a failed policy lookup or user creation.
type ProvisioningError struct {
	Op  string
	Err error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning failed (%s): %v", e.Op, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// ActionRuleError is the first action rule that failed. The account it ran for still exists.
type ActionRuleError struct {
	Rule   string
	UserID string
	Err    error
}

func (e *ActionRuleError) Error() string {
	return fmt.Sprintf("action rule %q failed for user %s: %v", e.Rule, e.UserID, e.Err)
}

func (e *ActionRuleError) Unwrap() error { return e.Err }

// InvalidCredentialsError means ZITADEL rejected the presented factors, or the user is unknown.
type InvalidCredentialsError struct {
	Err error
}

func (e *InvalidCredentialsError) Error() string {
	return "invalid credentials"
}

func (e *InvalidCredentialsError) Unwrap() error { return e.Err }

// CallbackBridgeError is a failure to turn a session into an OIDC callback URL.
type CallbackBridgeError struct {
	AuthRequestID string
	Err           error
}

func (e *CallbackBridgeError) Error() string {
	return fmt.Sprintf("oidc callback for auth request %s failed: %v", e.AuthRequestID, e.Err)
}

func (e *CallbackBridgeError) Unwrap() error { return e.Err }

// UpstreamError is any other ZITADEL call that failed without rejecting the request's input.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

var errUnknownUser = errors.New("no user with this login name")
