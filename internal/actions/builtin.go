package actions

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/terraconstructs/gridlogin/internal/config"
)

// Built-in action kinds accepted in configuration.
const (
	KindUserGrant = "user_grant"
	KindMetadata  = "metadata"
)

// ManagementAPI is the part of the ZITADEL client the built-in actions use.
type ManagementAPI interface {
	AddUserGrant(ctx context.Context, token, orgID, userID, projectID string, roleKeys []string) error
	SetUserMetadata(ctx context.Context, token, orgID, userID, key, value string) error
}

// UserGrant grants roleKeys on projectID to the user within the user's organization.
func UserGrant(api ManagementAPI, projectID string, roleKeys []string) Action {
	return func(ctx context.Context, user User, token string) error {
		return api.AddUserGrant(ctx, token, user.OrgID, user.UserID, projectID, roleKeys)
	}
}

// Metadata stores key=value on the user.
func Metadata(api ManagementAPI, key, value string) Action {
	return func(ctx context.Context, user User, token string) error {
		return api.SetUserMetadata(ctx, token, user.OrgID, user.UserID, key, value)
	}
}

// FromConfig builds the rule table from the `actions` configuration list, keeping its order.
func FromConfig(cfgs []config.ActionRuleConfig, api ManagementAPI, logger *zap.Logger) (*Table, error) {
	rules := make([]Rule, 0, len(cfgs))
	for i, c := range cfgs {
		name := c.Name
		if name == "" {
			name = fmt.Sprintf("rule-%d", i)
		}
		action, err := buildAction(c.Action, api)
		if err != nil {
			return nil, fmt.Errorf("action rule %q: %w", name, err)
		}
		rules = append(rules, Rule{
			Name:      name,
			FlowType:  FlowType(c.FlowType),
			Trigger:   Trigger(c.Trigger),
			Predicate: c.OrgExpr,
			Action:    action,
		})
	}
	return NewTable(logger, rules...)
}

func buildAction(c config.ActionConfig, api ManagementAPI) (Action, error) {
	switch c.Type {
	case KindUserGrant:
		if c.ProjectID == "" {
			return nil, fmt.Errorf("%s requires project_id", KindUserGrant)
		}
		return UserGrant(api, c.ProjectID, c.RoleKeys), nil
	case KindMetadata:
		if c.Key == "" {
			return nil, fmt.Errorf("%s requires key", KindMetadata)
		}
		return Metadata(api, c.Key, c.Value), nil
	default:
		return nil, fmt.Errorf("unknown action type %q", c.Type)
	}
}
