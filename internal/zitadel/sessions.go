package zitadel

import (
	"context"
	"net/http"
	"net/url"
)

func (c *Client) CreateSession(ctx context.Context, token string, req CreateSessionRequest) (*CreateSessionResponse, error) {
	var resp CreateSessionResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/v2/sessions",
		token:  token,
		body:   req,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetSession adds checks or challenges to an existing session and returns the rotated token.
func (c *Client) SetSession(ctx context.Context, token, sessionID string, req SetSessionRequest) (*SetSessionResponse, error) {
	var resp SetSessionResponse
	err := c.do(ctx, request{
		method: http.MethodPatch,
		path:   "/v2/sessions/" + url.PathEscape(sessionID),
		token:  token,
		body:   req,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) DeleteSession(ctx context.Context, token, sessionID, sessionToken string) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/v2/sessions/" + url.PathEscape(sessionID),
		token:  token,
		body:   map[string]string{"sessionToken": sessionToken},
	}, nil)
}
