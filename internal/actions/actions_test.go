package actions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraconstructs/gridlogin/internal/config"
)

// mockManagementAPI is a function-field fake of the ZITADEL management calls.
type mockManagementAPI struct {
	addUserGrantFunc    func(ctx context.Context, token, orgID, userID, projectID string, roleKeys []string) error
	setUserMetadataFunc func(ctx context.Context, token, orgID, userID, key, value string) error
}

func (m *mockManagementAPI) AddUserGrant(ctx context.Context, token, orgID, userID, projectID string, roleKeys []string) error {
	if m.addUserGrantFunc != nil {
		return m.addUserGrantFunc(ctx, token, orgID, userID, projectID, roleKeys)
	}
	return nil
}

func (m *mockManagementAPI) SetUserMetadata(ctx context.Context, token, orgID, userID, key, value string) error {
	if m.setUserMetadataFunc != nil {
		return m.setUserMetadataFunc(ctx, token, orgID, userID, key, value)
	}
	return nil
}

func recordingAction(name string, log *[]string, err error) Action {
	return func(ctx context.Context, user User, token string) error {
		*log = append(*log, name)
		return err
	}
}

func TestRule_ShouldTrigger(t *testing.T) {
	tests := []struct {
		name      string
		predicate string
		flowType  FlowType
		trigger   Trigger
		orgID     string
		expected  bool
	}{
		{name: "empty predicate matches any org", orgID: "anything", flowType: FlowInternalAuthentication, trigger: TriggerPostCreation, expected: true},
		{name: "equality match", predicate: `orgId == "243"`, orgID: "243", flowType: FlowInternalAuthentication, trigger: TriggerPostCreation, expected: true},
		{name: "equality mismatch", predicate: `orgId == "243"`, orgID: "999", flowType: FlowInternalAuthentication, trigger: TriggerPostCreation, expected: false},
		{name: "disjunction", predicate: `orgId == "1" or orgId == "2"`, orgID: "2", flowType: FlowInternalAuthentication, trigger: TriggerPostCreation, expected: true},
		{name: "regex", predicate: `orgId matches "^24"`, orgID: "2438", flowType: FlowInternalAuthentication, trigger: TriggerPostCreation, expected: true},
		{name: "other flow type", orgID: "243", flowType: FlowExternalAuthentication, trigger: TriggerPostCreation, expected: false},
		{name: "other trigger", orgID: "243", flowType: FlowInternalAuthentication, trigger: TriggerPostAuthentication, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := NewTable(nil, Rule{
				Name:      "r",
				FlowType:  FlowInternalAuthentication,
				Trigger:   TriggerPostCreation,
				Predicate: tt.predicate,
				Action:    func(context.Context, User, string) error { return nil },
			})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, table.rules[0].ShouldTrigger(tt.flowType, tt.trigger, tt.orgID))
		})
	}
}

func TestTable_RunInDeclarationOrder(t *testing.T) {
	var log []string
	table, err := NewTable(nil,
		Rule{Name: "first", FlowType: FlowInternalAuthentication, Trigger: TriggerPostCreation, Action: recordingAction("first", &log, nil)},
		Rule{Name: "skipped", FlowType: FlowInternalAuthentication, Trigger: TriggerPostCreation, Predicate: `orgId == "other"`, Action: recordingAction("skipped", &log, nil)},
		Rule{Name: "second", FlowType: FlowInternalAuthentication, Trigger: TriggerPostCreation, Predicate: `orgId == "org-1"`, Action: recordingAction("second", &log, nil)},
		Rule{Name: "login-only", FlowType: FlowInternalAuthentication, Trigger: TriggerPostAuthentication, Action: recordingAction("login-only", &log, nil)},
		Rule{Name: "third", FlowType: FlowInternalAuthentication, Trigger: TriggerPostCreation, Action: recordingAction("third", &log, nil)},
	)
	require.NoError(t, err)

	err = table.Run(context.Background(), FlowInternalAuthentication, TriggerPostCreation, User{UserID: "u", OrgID: "org-1"}, "token")
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, log)
}

func TestTable_RunStopsAtFirstFailure(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	table, err := NewTable(nil,
		Rule{Name: "ok", FlowType: FlowInternalAuthentication, Trigger: TriggerPostCreation, Action: recordingAction("ok", &log, nil)},
		Rule{Name: "fails", FlowType: FlowInternalAuthentication, Trigger: TriggerPostCreation, Action: recordingAction("fails", &log, boom)},
		Rule{Name: "never", FlowType: FlowInternalAuthentication, Trigger: TriggerPostCreation, Action: recordingAction("never", &log, nil)},
	)
	require.NoError(t, err)

	err = table.Run(context.Background(), FlowInternalAuthentication, TriggerPostCreation, User{UserID: "u", OrgID: "o"}, "token")
	require.Error(t, err)

	var ruleErr *RuleError
	require.ErrorAs(t, err, &ruleErr)
	assert.Equal(t, "fails", ruleErr.Rule)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"ok", "fails"}, log)
}

func TestNilTableRunsNothing(t *testing.T) {
	var table *Table
	assert.NoError(t, table.Run(context.Background(), FlowInternalAuthentication, TriggerPostCreation, User{}, "token"))
}

func TestNewTable_Rejects(t *testing.T) {
	noop := func(context.Context, User, string) error { return nil }
	tests := []struct {
		name string
		rule Rule
		want string
	}{
		{name: "bad flow type", rule: Rule{FlowType: "batch", Trigger: TriggerPostCreation, Action: noop}, want: "unknown flow type"},
		{name: "bad trigger", rule: Rule{FlowType: FlowInternalAuthentication, Trigger: "later", Action: noop}, want: "unknown trigger"},
		{name: "no action", rule: Rule{FlowType: FlowInternalAuthentication, Trigger: TriggerPostCreation}, want: "no action"},
		{name: "bad predicate", rule: Rule{FlowType: FlowInternalAuthentication, Trigger: TriggerPostCreation, Predicate: `orgId ==`, Action: noop}, want: "invalid predicate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(nil, tt.rule)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFromConfig(t *testing.T) {
	type grant struct {
		orgID, userID, projectID string
		roles                    []string
	}
	var grants []grant
	var metadata []string

	api := &mockManagementAPI{
		addUserGrantFunc: func(ctx context.Context, token, orgID, userID, projectID string, roleKeys []string) error {
			assert.Equal(t, "admin-token", token)
			grants = append(grants, grant{orgID, userID, projectID, roleKeys})
			return nil
		},
		setUserMetadataFunc: func(ctx context.Context, token, orgID, userID, key, value string) error {
			metadata = append(metadata, key+"="+value)
			return nil
		},
	}

	table, err := FromConfig([]config.ActionRuleConfig{
		{
			Name:     "grant",
			FlowType: "internalAuthentication",
			Trigger:  "postCreation",
			OrgExpr:  `orgId == "org-1"`,
			Action:   config.ActionConfig{Type: KindUserGrant, ProjectID: "p-1", RoleKeys: []string{"viewer"}},
		},
		{
			FlowType: "internalAuthentication",
			Trigger:  "postCreation",
			Action:   config.ActionConfig{Type: KindMetadata, Key: "source", Value: "selfservice"},
		},
	}, api, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())

	err = table.Run(context.Background(), FlowInternalAuthentication, TriggerPostCreation, User{UserID: "u-1", OrgID: "org-1"}, "admin-token")
	require.NoError(t, err)

	require.Len(t, grants, 1)
	assert.Equal(t, grant{"org-1", "u-1", "p-1", []string{"viewer"}}, grants[0])
	assert.Equal(t, []string{"source=selfservice"}, metadata)
}

func TestFromConfig_InvalidAction(t *testing.T) {
	tests := []struct {
		name   string
		action config.ActionConfig
		want   string
	}{
		{name: "unknown type", action: config.ActionConfig{Type: "webhook"}, want: "unknown action type"},
		{name: "grant without project", action: config.ActionConfig{Type: KindUserGrant}, want: "requires project_id"},
		{name: "metadata without key", action: config.ActionConfig{Type: KindMetadata}, want: "requires key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromConfig([]config.ActionRuleConfig{{
				FlowType: "internalAuthentication",
				Trigger:  "postCreation",
				Action:   tt.action,
			}}, &mockManagementAPI{}, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
