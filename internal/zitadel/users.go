package zitadel

import (
	"context"
	"net/http"
	"net/url"
)

// AddHumanUser creates a human user. orgID, when set, is sent as the org scoping header as well.
func (c *Client) AddHumanUser(ctx context.Context, token, orgID string, req AddHumanUserRequest) (*AddHumanUserResponse, error) {
	var resp AddHumanUserResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/v2/users/human",
		token:  token,
		orgID:  orgID,
		body:   req,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetUserByID fetches a single user.
func (c *Client) GetUserByID(ctx context.Context, token, userID string) (*User, error) {
	var resp struct {
		User User `json:"user"`
	}
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/v2/users/" + url.PathEscape(userID),
		token:  token,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// ListUsersByLoginName returns the users whose login name equals loginName.
func (c *Client) ListUsersByLoginName(ctx context.Context, token, loginName string) ([]User, error) {
	body := map[string]any{
		"queries": []any{
			map[string]any{
				"loginNameQuery": map[string]any{
					"loginName": loginName,
					"method":    "TEXT_QUERY_METHOD_EQUALS",
				},
			},
		},
	}
	var resp struct {
		Result []User `json:"result"`
	}
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/v2/users",
		token:  token,
		body:   body,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// SetPassword sets a new password, authorized either by the current password or by a verification code.
func (c *Client) SetPassword(ctx context.Context, token, orgID, userID string, req SetPasswordRequest) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/v2/users/" + url.PathEscape(userID) + "/password",
		token:  token,
		orgID:  orgID,
		body:   req,
	}, nil)
}

// PasswordReset asks ZITADEL to send the user a password reset link.
func (c *Client) PasswordReset(ctx context.Context, token, userID string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/v2/users/" + url.PathEscape(userID) + "/password_reset",
		token:  token,
		body:   map[string]any{"sendLink": map[string]any{}},
	}, nil)
}
