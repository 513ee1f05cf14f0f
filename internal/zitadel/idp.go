package zitadel

import (
	"context"
	"net/http"
)

// StartIdentityProviderIntent begins an external IdP login and returns the URL to redirect the browser to.
func (c *Client) StartIdentityProviderIntent(ctx context.Context, token, idpID string, urls RedirectURLs) (string, error) {
	var resp struct {
		Details Details `json:"details"`
		AuthURL string  `json:"authUrl"`
	}
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/v2/idp_intents",
		token:  token,
		body: map[string]any{
			"idpId": idpID,
			"urls":  urls,
		},
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.AuthURL, nil
}
