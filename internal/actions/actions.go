// Package actions runs configured follow-up work (grants, metadata) after account creation
// or authentication, in declaration order.
package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-bexpr"
	"go.uber.org/zap"
)

// FlowType distinguishes how the user authenticated.
type FlowType string

const (
	FlowInternalAuthentication FlowType = "internalAuthentication"
	FlowExternalAuthentication FlowType = "externalAuthentication"
)

// Trigger is the point in a flow at which rules fire.
type Trigger string

const (
	TriggerPreCreation        Trigger = "preCreation"
	TriggerPostCreation       Trigger = "postCreation"
	TriggerPostAuthentication Trigger = "postAuthentication"
)

// User is the subject an action runs for. OrgID is the user's resource owner.
type User struct {
	UserID string
	OrgID  string
}

// Action performs the side effect of a rule, authorized with the admin token.
type Action func(ctx context.Context, user User, token string) error

// Rule binds an action to a flow type, trigger and organization predicate.
type Rule struct {
	Name     string
	FlowType FlowType
	Trigger  Trigger
	// Predicate is a go-bexpr expression over {orgId}. Empty matches every organization.
	Predicate string
	Action    Action

	evaluator *bexpr.Evaluator
}

// RuleError is the first failing rule of a run. Rules after it did not run.
type RuleError struct {
	Rule string
	Err  error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("action rule %q failed: %v", e.Rule, e.Err)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}

// Table is the static, ordered rule set. It is safe for concurrent use.
type Table struct {
	rules  []Rule
	logger *zap.Logger
}

// NewTable compiles every predicate. A rule with an unknown flow type or trigger, a
// missing action or a predicate that does not parse is rejected.
func NewTable(logger *zap.Logger, rules ...Rule) (*Table, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	compiled := make([]Rule, 0, len(rules))
	for i, rule := range rules {
		if rule.Name == "" {
			rule.Name = fmt.Sprintf("rule-%d", i)
		}
		switch rule.FlowType {
		case FlowInternalAuthentication, FlowExternalAuthentication:
		default:
			return nil, fmt.Errorf("action rule %q: unknown flow type %q", rule.Name, rule.FlowType)
		}
		switch rule.Trigger {
		case TriggerPreCreation, TriggerPostCreation, TriggerPostAuthentication:
		default:
			return nil, fmt.Errorf("action rule %q: unknown trigger %q", rule.Name, rule.Trigger)
		}
		if rule.Action == nil {
			return nil, fmt.Errorf("action rule %q: no action", rule.Name)
		}
		if strings.TrimSpace(rule.Predicate) != "" {
			evaluator, err := bexpr.CreateEvaluator(rule.Predicate)
			if err != nil {
				return nil, fmt.Errorf("action rule %q: invalid predicate: %w", rule.Name, err)
			}
			rule.evaluator = evaluator
		}
		compiled = append(compiled, rule)
	}
	return &Table{rules: compiled, logger: logger}, nil
}

// Len returns the number of rules.
func (t *Table) Len() int {
	return len(t.rules)
}

// ShouldTrigger reports whether the rule applies to a flow of flowType at trigger for orgID.
func (r Rule) ShouldTrigger(flowType FlowType, trigger Trigger, orgID string) bool {
	if r.FlowType != flowType || r.Trigger != trigger {
		return false
	}
	if r.evaluator == nil {
		return true
	}
	matches, err := r.evaluator.Evaluate(map[string]any{"orgId": orgID})
	if err != nil {
		// Evaluation errors (e.g. unknown selector) never match
		return false
	}
	return matches
}

// Matching returns the rules that apply, in declaration order.
func (t *Table) Matching(flowType FlowType, trigger Trigger, orgID string) []Rule {
	var out []Rule
	for _, rule := range t.rules {
		if rule.ShouldTrigger(flowType, trigger, orgID) {
			out = append(out, rule)
		}
	}
	return out
}

// Run executes the matching rules one after another. The first failure stops the run and is
// returned as a *RuleError. Effects of rules that already ran are kept.
func (t *Table) Run(ctx context.Context, flowType FlowType, trigger Trigger, user User, token string) error {
	if t == nil {
		return nil
	}
	for _, rule := range t.Matching(flowType, trigger, user.OrgID) {
		t.logger.Debug("running action rule",
			zap.String("rule", rule.Name),
			zap.String("flow_type", string(flowType)),
			zap.String("trigger", string(trigger)),
			zap.String("user_id", user.UserID),
			zap.String("org_id", user.OrgID),
		)
		if err := rule.Action(ctx, user, token); err != nil {
			return &RuleError{Rule: rule.Name, Err: err}
		}
	}
	return nil
}
