package zitadel

import "encoding/json"

// Details is the object metadata ZITADEL attaches to mutations.
type Details struct {
	Sequence      string `json:"sequence,omitempty"`
	ChangeDate    string `json:"changeDate,omitempty"`
	ResourceOwner string `json:"resourceOwner,omitempty"`
}

// LoginSettings is the login policy of an organization (or the instance default).
type LoginSettings struct {
	AllowUsernamePassword bool   `json:"allowUsernamePassword"`
	AllowRegister         bool   `json:"allowRegister"`
	AllowExternalIDP      bool   `json:"allowExternalIdp"`
	ForceMFA              bool   `json:"forceMfa"`
	PasskeysType          string `json:"passkeysType,omitempty"`
	HidePasswordReset     bool   `json:"hidePasswordReset"`
	DefaultRedirectURI    string `json:"defaultRedirectUri,omitempty"`
}

// Gender values accepted in a human profile.
const GenderUnspecified = "GENDER_UNSPECIFIED"

// AddHumanUserRequest is the body of POST /v2/users/human.
type AddHumanUserRequest struct {
	UserID       string        `json:"userId,omitempty"`
	Username     string        `json:"username,omitempty"`
	Organization *Organization `json:"organization,omitempty"`
	Profile      HumanProfile  `json:"profile"`
	Email        HumanEmail    `json:"email"`
	Password     *Password     `json:"password,omitempty"`
}

// Organization selects the owner of a new user.
type Organization struct {
	OrgID string `json:"orgId"`
}

type HumanProfile struct {
	GivenName         string `json:"givenName"`
	FamilyName        string `json:"familyName"`
	NickName          string `json:"nickName,omitempty"`
	DisplayName       string `json:"displayName,omitempty"`
	PreferredLanguage string `json:"preferredLanguage,omitempty"`
	Gender            string `json:"gender,omitempty"`
}

type HumanEmail struct {
	Email      string `json:"email"`
	IsVerified bool   `json:"isVerified"`
}

type Password struct {
	Password       string `json:"password"`
	ChangeRequired bool   `json:"changeRequired"`
}

type AddHumanUserResponse struct {
	UserID  string  `json:"userId"`
	Details Details `json:"details"`
}

// User is a ZITADEL user as returned by the v2 user service.
type User struct {
	UserID             string     `json:"userId"`
	Details            Details    `json:"details"`
	State              string     `json:"state,omitempty"`
	Username           string     `json:"username,omitempty"`
	LoginNames         []string   `json:"loginNames,omitempty"`
	PreferredLoginName string     `json:"preferredLoginName,omitempty"`
	Human              *HumanUser `json:"human,omitempty"`
}

type HumanUser struct {
	Profile                HumanProfile `json:"profile"`
	Email                  HumanEmail   `json:"email"`
	PasswordChangeRequired bool         `json:"passwordChangeRequired"`
}

// Checks are the factors verified when creating or updating a session.
type Checks struct {
	User      *CheckUser      `json:"user,omitempty"`
	Password  *CheckPassword  `json:"password,omitempty"`
	WebAuthN  *CheckWebAuthN  `json:"webAuthN,omitempty"`
	IDPIntent *CheckIDPIntent `json:"idpIntent,omitempty"`
}

// CheckUser identifies the user by id or by login name; exactly one should be set.
type CheckUser struct {
	UserID    string `json:"userId,omitempty"`
	LoginName string `json:"loginName,omitempty"`
}

type CheckPassword struct {
	Password string `json:"password"`
}

// CheckWebAuthN carries the browser's assertion response verbatim.
type CheckWebAuthN struct {
	CredentialAssertionData json.RawMessage `json:"credentialAssertionData"`
}

type CheckIDPIntent struct {
	IDPIntentID    string `json:"idpIntentId"`
	IDPIntentToken string `json:"idpIntentToken"`
}

// User verification requirements for WebAuthn challenges.
const (
	UserVerificationRequired    = "USER_VERIFICATION_REQUIREMENT_REQUIRED"
	UserVerificationPreferred   = "USER_VERIFICATION_REQUIREMENT_PREFERRED"
	UserVerificationDiscouraged = "USER_VERIFICATION_REQUIREMENT_DISCOURAGED"
)

type RequestChallenges struct {
	WebAuthN *RequestWebAuthN `json:"webAuthN,omitempty"`
}

type RequestWebAuthN struct {
	Domain                      string `json:"domain"`
	UserVerificationRequirement string `json:"userVerificationRequirement"`
}

type CreateSessionRequest struct {
	Checks     *Checks            `json:"checks,omitempty"`
	Challenges *RequestChallenges `json:"challenges,omitempty"`
	Lifetime   string             `json:"lifetime,omitempty"`
}

// CreateSessionResponse holds the new session. Challenges is relayed to the browser untouched.
type CreateSessionResponse struct {
	Details      Details         `json:"details"`
	SessionID    string          `json:"sessionId"`
	SessionToken string          `json:"sessionToken"`
	Challenges   json.RawMessage `json:"challenges,omitempty"`
}

type SetSessionRequest struct {
	SessionToken string             `json:"sessionToken,omitempty"`
	Checks       *Checks            `json:"checks,omitempty"`
	Challenges   *RequestChallenges `json:"challenges,omitempty"`
}

type SetSessionResponse struct {
	Details      Details         `json:"details"`
	SessionToken string          `json:"sessionToken"`
	Challenges   json.RawMessage `json:"challenges,omitempty"`
}

// SessionRef identifies an established session when linking it to an auth request.
type SessionRef struct {
	SessionID    string `json:"sessionId"`
	SessionToken string `json:"sessionToken"`
}

// AuthRequest is a pending OIDC authorization request waiting for a session.
type AuthRequest struct {
	ID           string   `json:"id"`
	CreationDate string   `json:"creationDate,omitempty"`
	ClientID     string   `json:"clientId"`
	Scope        []string `json:"scope,omitempty"`
	RedirectURI  string   `json:"redirectUri"`
	Prompt       []string `json:"prompt,omitempty"`
	LoginHint    string   `json:"loginHint,omitempty"`
	HintUserID   string   `json:"hintUserId,omitempty"`
}

// PasskeyRegistrationCode is the one-time code returned by a registration link request.
type PasskeyRegistrationCode struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

// Passkey authenticator hints.
const (
	PasskeyAuthenticatorUnspecified = "PASSKEY_AUTHENTICATOR_UNSPECIFIED"
	PasskeyAuthenticatorPlatform    = "PASSKEY_AUTHENTICATOR_PLATFORM"
	PasskeyAuthenticatorCrossPlat   = "PASSKEY_AUTHENTICATOR_CROSS_PLATFORM"
)

type RegisterPasskeyRequest struct {
	Code          *PasskeyRegistrationCode `json:"code,omitempty"`
	Authenticator string                   `json:"authenticator"`
	Domain        string                   `json:"domain"`
}

// RegisterPasskeyResponse carries the WebAuthn creation options exactly as ZITADEL produced them.
type RegisterPasskeyResponse struct {
	Details                            Details         `json:"details"`
	PasskeyID                          string          `json:"passkeyId"`
	PublicKeyCredentialCreationOptions json.RawMessage `json:"publicKeyCredentialCreationOptions"`
}

// SetPasswordRequest changes a password. Exactly one of CurrentPassword and VerificationCode is set.
type SetPasswordRequest struct {
	NewPassword      Password `json:"newPassword"`
	CurrentPassword  string   `json:"currentPassword,omitempty"`
	VerificationCode string   `json:"verificationCode,omitempty"`
}

// RedirectURLs are where ZITADEL sends the browser after an external IdP intent.
type RedirectURLs struct {
	SuccessURL string `json:"successUrl"`
	FailureURL string `json:"failureUrl"`
}
