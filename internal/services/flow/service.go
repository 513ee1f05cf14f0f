// Package flow sequences the ZITADEL calls behind each login page action: registration,
// password and passkey login, external IdP login, logout and password management.
//
// Every flow runs its steps strictly in order and stops at the first failure. Nothing is
// rolled back: an account created before a later step fails stays in ZITADEL.
package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/terraconstructs/gridlogin/internal/actions"
	"github.com/terraconstructs/gridlogin/internal/auth"
	"github.com/terraconstructs/gridlogin/internal/telemetry"
	"github.com/terraconstructs/gridlogin/internal/zitadel"
)

const tracerName = "gridlogin/services/flow"

// IdentityAPI is the part of the ZITADEL client the flows call.
type IdentityAPI interface {
	GetLoginSettings(ctx context.Context, token, orgID string) (*zitadel.LoginSettings, error)
	AddHumanUser(ctx context.Context, token, orgID string, req zitadel.AddHumanUserRequest) (*zitadel.AddHumanUserResponse, error)
	GetUserByID(ctx context.Context, token, userID string) (*zitadel.User, error)
	ListUsersByLoginName(ctx context.Context, token, loginName string) ([]zitadel.User, error)
	CreateSession(ctx context.Context, token string, req zitadel.CreateSessionRequest) (*zitadel.CreateSessionResponse, error)
	SetSession(ctx context.Context, token, sessionID string, req zitadel.SetSessionRequest) (*zitadel.SetSessionResponse, error)
	DeleteSession(ctx context.Context, token, sessionID, sessionToken string) error
	GetAuthRequest(ctx context.Context, token, authRequestID string) (*zitadel.AuthRequest, error)
	CreateCallback(ctx context.Context, token, authRequestID string, session zitadel.SessionRef) (string, error)
	SetPassword(ctx context.Context, token, orgID, userID string, req zitadel.SetPasswordRequest) error
	PasswordReset(ctx context.Context, token, userID string) error
	StartIdentityProviderIntent(ctx context.Context, token, idpID string, urls zitadel.RedirectURLs) (string, error)
}

// FlowRecorder counts finished flows by outcome.
type FlowRecorder interface {
	RecordFlow(flow, outcome string)
}

// SessionWriter persists an established session, normally into the response cookie.
type SessionWriter func(auth.Session) error

// Options are the deployment-specific values the flows forward to ZITADEL.
type Options struct {
	PasskeyDomain string
	IDPSuccessURL string
	IDPFailureURL string
}

// Dependencies groups the collaborators of a Service.
type Dependencies struct {
	API     IdentityAPI
	Tokens  auth.TokenProvider
	Actions *actions.Table
	Options Options
	Logger  *zap.Logger
	Metrics FlowRecorder
}

// Service runs the flows. It holds no per-request state and is safe for concurrent use.
type Service struct {
	api     IdentityAPI
	tokens  auth.TokenProvider
	actions *actions.Table
	opts    Options
	logger  *zap.Logger
	metrics FlowRecorder
}

func NewService(deps Dependencies) *Service {
	s := &Service{
		api:     deps.API,
		tokens:  deps.Tokens,
		actions: deps.Actions,
		opts:    deps.Options,
		logger:  deps.Logger,
		metrics: deps.Metrics,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.metrics == nil {
		s.metrics = noopRecorder{}
	}
	return s
}

type noopRecorder struct{}

func (noopRecorder) RecordFlow(string, string) {}

// Flow states, recorded as span events and debug logs.
const (
	StateStart              = "start"
	StateValidated          = "validated"
	StateTokenObtained      = "token_obtained"
	StatePolicyChecked      = "policy_checked"
	StateAccountProvisioned = "account_provisioned"
	StateUserResolved       = "user_resolved"
	StateActionsRun         = "actions_run"
	StateSessionEstablished = "session_established"
	StateCookieWritten      = "cookie_written"
	StateOIDCBridged        = "oidc_bridged"
	StateDone               = "done"
	StateFailed             = "failed"
)

// run tracks one execution of a flow.
type run struct {
	id       string
	name     string
	span     trace.Span
	logger   *zap.Logger
	metrics  FlowRecorder
	outcome  string
	finished bool
}

func (s *Service) begin(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *run) {
	id := uuid.NewString()
	attrs = append(attrs,
		attribute.String(telemetry.AttrFlowID, id),
		attribute.String(telemetry.AttrFlowName, name),
	)
	ctx, span := telemetry.StartSpan(ctx, tracerName, "flow."+name, attrs...)
	r := &run{
		id:      id,
		name:    name,
		span:    span,
		logger:  s.logger.With(zap.String("flow", name), zap.String("flow_id", id)),
		metrics: s.metrics,
		outcome: telemetry.OutcomeSuccess,
	}
	r.transition(StateStart)
	return ctx, r
}

func (r *run) transition(state string, fields ...zap.Field) {
	telemetry.AddEvent(r.span, state, attribute.String(telemetry.AttrFlowState, state))
	r.logger.Debug("flow transition", append([]zap.Field{zap.String("state", state)}, fields...)...)
}

// fail records err as the flow's terminal state and returns it unchanged.
func (r *run) fail(err error) error {
	telemetry.RecordError(r.span, err)
	r.transition(StateFailed, zap.Error(err))
	r.outcome = telemetry.OutcomeError
	r.finish()
	return err
}

// degrade notes a non-fatal failure: the flow still succeeds.
func (r *run) degrade(outcome, msg string, err error) {
	telemetry.RecordError(r.span, err)
	r.logger.Warn(msg, zap.Error(err))
	r.outcome = outcome
}

func (r *run) finish() {
	if r.finished {
		return
	}
	r.finished = true
	if r.outcome != telemetry.OutcomeError {
		r.transition(StateDone)
	}
	r.metrics.RecordFlow(r.name, r.outcome)
	r.span.End()
}

func (s *Service) adminToken(ctx context.Context, r *run) (string, error) {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAdminToken, err)
	}
	r.transition(StateTokenObtained)
	return token, nil
}

// establishSession creates a session with checks. Any 4xx from ZITADEL means the factors were rejected.
func (s *Service) establishSession(ctx context.Context, r *run, token string, req zitadel.CreateSessionRequest) (*zitadel.CreateSessionResponse, error) {
	resp, err := s.api.CreateSession(ctx, token, req)
	if err != nil {
		if zitadel.IsRejected(err) {
			return nil, &InvalidCredentialsError{Err: err}
		}
		return nil, &UpstreamError{Op: "create session", Err: err}
	}
	r.span.SetAttributes(attribute.String(telemetry.AttrSessionID, resp.SessionID))
	r.transition(StateSessionEstablished, zap.String("session_id", resp.SessionID))
	return resp, nil
}

func (s *Service) persist(r *run, write SessionWriter, session auth.Session) error {
	if err := write(session); err != nil {
		return fmt.Errorf("write session cookie: %w", err)
	}
	r.transition(StateCookieWritten, zap.Object("session", session))
	return nil
}

// resolveUser finds exactly the user with loginName. Unknown users are reported as invalid
// credentials so the response does not reveal which login names exist.
func (s *Service) resolveUser(ctx context.Context, r *run, token, loginName string) (*zitadel.User, error) {
	users, err := s.api.ListUsersByLoginName(ctx, token, loginName)
	if err != nil {
		return nil, &UpstreamError{Op: "list users", Err: err}
	}
	if len(users) != 1 {
		return nil, &InvalidCredentialsError{Err: errUnknownUser}
	}
	user := users[0]
	r.span.SetAttributes(attribute.String(telemetry.AttrUserID, user.UserID))
	r.transition(StateUserResolved, zap.String("user_id", user.UserID))
	return &user, nil
}

func (s *Service) runActions(ctx context.Context, r *run, flowType actions.FlowType, trigger actions.Trigger, user actions.User, token string) error {
	if err := s.actions.Run(ctx, flowType, trigger, user, token); err != nil {
		var ruleErr *actions.RuleError
		if errors.As(err, &ruleErr) {
			r.span.SetAttributes(attribute.String(telemetry.AttrActionRule, ruleErr.Rule))
			return &ActionRuleError{Rule: ruleErr.Rule, UserID: user.UserID, Err: ruleErr.Err}
		}
		return err
	}
	r.transition(StateActionsRun)
	return nil
}

// bridge links session to an OIDC auth request and returns the callback URL.
func (s *Service) bridge(ctx context.Context, r *run, token, authRequestID string, session zitadel.SessionRef) (string, error) {
	r.span.SetAttributes(attribute.String(telemetry.AttrAuthRequestID, authRequestID))
	callbackURL, err := s.api.CreateCallback(ctx, token, authRequestID, session)
	if err != nil {
		return "", &CallbackBridgeError{AuthRequestID: authRequestID, Err: err}
	}
	r.transition(StateOIDCBridged)
	return callbackURL, nil
}

// bridgeBestEffort bridges when authRequestID is set. The session is already persisted, so a
// failure only drops the callback URL from the result.
func (s *Service) bridgeBestEffort(ctx context.Context, r *run, token, authRequestID string, session zitadel.SessionRef) string {
	if authRequestID == "" {
		return ""
	}
	callbackURL, err := s.bridge(ctx, r, token, authRequestID, session)
	if err != nil {
		r.degrade(telemetry.OutcomeCallbackFailed, "session established but OIDC callback failed", err)
		return ""
	}
	return callbackURL
}

// ownerOf returns the resource owner of userID, used to match action rules.
func (s *Service) ownerOf(ctx context.Context, token, userID string) (string, error) {
	user, err := s.api.GetUserByID(ctx, token, userID)
	if err != nil {
		return "", &UpstreamError{Op: "get user", Err: err}
	}
	return user.Details.ResourceOwner, nil
}
