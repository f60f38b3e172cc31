package momo

import (
	"context"
	"net/http"
	"net/url"
)

// sandboxの資格情報を発行する（cmd/momo-setup用）。subscription keyだけで呼べる

// CreateAPIUser はreferenceIDをユーザーIDとしてAPIユーザーを作る（201）
func (c *Client) CreateAPIUser(ctx context.Context, referenceID string, callbackHost string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/v1_0/apiuser", map[string]string{
		"providerCallbackHost": callbackHost,
	})
	if err != nil {
		return err
	}
	req.Header.Set("X-Reference-Id", referenceID)
	return c.do(req, "create api user", nil)
}

func (c *Client) GetAPIUser(ctx context.Context, referenceID string) (APIUser, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/v1_0/apiuser/"+url.PathEscape(referenceID), nil)
	if err != nil {
		return APIUser{}, err
	}
	var u APIUser
	if err := c.do(req, "get api user", &u); err != nil {
		return APIUser{}, err
	}
	return u, nil
}

// CreateAPIKey はAPIキーを発行する
func (c *Client) CreateAPIKey(ctx context.Context, referenceID string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/v1_0/apiuser/"+url.PathEscape(referenceID)+"/apikey", nil)
	if err != nil {
		return "", err
	}
	var out struct {
		APIKey string `json:"apiKey"`
	}
	if err := c.do(req, "create api key", &out); err != nil {
		return "", err
	}
	return out.APIKey, nil
}
