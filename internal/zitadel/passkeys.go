package zitadel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// CreatePasskeyRegistrationLink requests a one-time registration code returned in the response.
func (c *Client) CreatePasskeyRegistrationLink(ctx context.Context, token, orgID, userID string) (*PasskeyRegistrationCode, error) {
	var resp struct {
		Details Details                  `json:"details"`
		Code    *PasskeyRegistrationCode `json:"code"`
	}
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/v2beta/users/" + url.PathEscape(userID) + "/passkeys/registration_link",
		token:  token,
		orgID:  orgID,
		body:   map[string]any{"returnCode": map[string]any{}},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Code == nil {
		return nil, &APIError{StatusCode: http.StatusBadGateway, Message: "registration link response carried no code"}
	}
	return resp.Code, nil
}

func (c *Client) RegisterPasskey(ctx context.Context, token, orgID, userID string, req RegisterPasskeyRequest) (*RegisterPasskeyResponse, error) {
	var resp RegisterPasskeyResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/v2beta/users/" + url.PathEscape(userID) + "/passkeys",
		token:  token,
		orgID:  orgID,
		body:   req,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyPasskeyRegistration submits the browser's attestation for a pending passkey.
func (c *Client) VerifyPasskeyRegistration(ctx context.Context, token, orgID, userID, passkeyID string, credential json.RawMessage, name string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/v2beta/users/" + url.PathEscape(userID) + "/passkeys/" + url.PathEscape(passkeyID),
		token:  token,
		orgID:  orgID,
		body: struct {
			PublicKeyCredential json.RawMessage `json:"publicKeyCredential"`
			PasskeyName         string          `json:"passkeyName"`
		}{credential, name},
	}, nil)
}
