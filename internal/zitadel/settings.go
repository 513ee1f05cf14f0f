package zitadel

import (
	"context"
	"net/http"
	"net/url"
)

// GetLoginSettings returns the login policy for orgID. An empty orgID yields the instance default.
func (c *Client) GetLoginSettings(ctx context.Context, token, orgID string) (*LoginSettings, error) {
	var query url.Values
	if orgID != "" {
		query = url.Values{"orgId": {orgID}}
	}
	var resp struct {
		Settings LoginSettings `json:"settings"`
	}
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/v2/settings/login",
		token:  token,
		query:  query,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.Settings, nil
}
