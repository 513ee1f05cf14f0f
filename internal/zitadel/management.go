package zitadel

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
)

// AddUserGrant grants roleKeys of projectID to the user, within orgID.
func (c *Client) AddUserGrant(ctx context.Context, token, orgID, userID, projectID string, roleKeys []string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/management/v1/users/" + url.PathEscape(userID) + "/grants",
		token:  token,
		orgID:  orgID,
		body: map[string]any{
			"projectId": projectID,
			"roleKeys":  roleKeys,
		},
	}, nil)
}

// SetUserMetadata stores key=value on the user. The management API expects the value base64 encoded.
func (c *Client) SetUserMetadata(ctx context.Context, token, orgID, userID, key, value string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/management/v1/users/" + url.PathEscape(userID) + "/metadata/" + url.PathEscape(key),
		token:  token,
		orgID:  orgID,
		body:   map[string]string{"value": base64.StdEncoding.EncodeToString([]byte(value))},
	}, nil)
}
