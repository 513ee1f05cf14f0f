package zitadel

import (
	"context"
	"net/http"
	"net/url"
)

func (c *Client) GetAuthRequest(ctx context.Context, token, authRequestID string) (*AuthRequest, error) {
	var resp struct {
		AuthRequest AuthRequest `json:"authRequest"`
	}
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/v2/oidc/auth_requests/" + url.PathEscape(authRequestID),
		token:  token,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.AuthRequest, nil
}

// CreateCallback finalizes an auth request with session and returns the URL the browser must follow.
func (c *Client) CreateCallback(ctx context.Context, token, authRequestID string, session SessionRef) (string, error) {
	var resp struct {
		Details     Details `json:"details"`
		CallbackURL string  `json:"callbackUrl"`
	}
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/v2/oidc/auth_requests/" + url.PathEscape(authRequestID),
		token:  token,
		body:   map[string]any{"session": session},
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.CallbackURL, nil
}
