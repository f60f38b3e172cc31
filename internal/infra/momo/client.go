package momo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const tokenCacheKey = "momo:collection:access_token"

// アクセストークンのキャッシュ先（redis/メモリ）
type TokenCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type Config struct {
	BaseURL         string
	SubscriptionKey string
	APIUserID       string
	APIKey          string
	Environment     string
	CallbackURL     string
	Timeout         time.Duration
}

type Client struct {
	cfg    Config
	http   *http.Client
	tokens TokenCache
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// tokensがnilならキャッシュしない
func NewClient(cfg Config, tokens TokenCache, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout},
		tokens: tokens,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// RequestToken は新しいアクセストークンを取得する
func (c *Client) RequestToken(ctx context.Context) (Token, error) {
	if c.cfg.APIUserID == "" || c.cfg.APIKey == "" || c.cfg.SubscriptionKey == "" {
		return Token{}, ErrNotConfigured
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/collection/token/", nil)
	if err != nil {
		return Token{}, err
	}
	req.SetBasicAuth(c.cfg.APIUserID, c.cfg.APIKey)

	var tok Token
	if err := c.do(req, "token", &tok); err != nil {
		return Token{}, err
	}
	if tok.AccessToken == "" {
		return Token{}, fmt.Errorf("momo: token: empty access_token")
	}
	return tok, nil
}

// キャッシュがあればそれを使う。期限の60秒前に切らす
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if c.tokens != nil {
		if v, ok, err := c.tokens.Get(ctx, tokenCacheKey); err == nil && ok {
			return v, nil
		}
	}

	tok, err := c.RequestToken(ctx)
	if err != nil {
		return "", err
	}

	if c.tokens != nil {
		ttl := time.Duration(tok.ExpiresIn)*time.Second - time.Minute
		if ttl > 0 {
			_ = c.tokens.Set(ctx, tokenCacheKey, tok.AccessToken, ttl)
		}
	}
	return tok.AccessToken, nil
}

// RequestToPay は支払い依頼を送る（202 Accepted）
func (c *Client) RequestToPay(ctx context.Context, referenceID string, body RequestToPay) error {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/collection/v1_0/requesttopay", body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Reference-Id", referenceID)
	req.Header.Set("X-Target-Environment", c.cfg.Environment)
	if c.cfg.CallbackURL != "" {
		req.Header.Set("X-Callback-Url", c.cfg.CallbackURL)
	}

	err = c.do(req, "requesttopay", nil)
	c.dropTokenOnUnauthorized(ctx, err)
	return err
}

// GetRequestToPayStatus は支払い依頼の状態を照会する
func (c *Client) GetRequestToPayStatus(ctx context.Context, referenceID string) (RequestToPayResult, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return RequestToPayResult{}, err
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/collection/v1_0/requesttopay/"+url.PathEscape(referenceID), nil)
	if err != nil {
		return RequestToPayResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Target-Environment", c.cfg.Environment)

	var res RequestToPayResult
	if err := c.do(req, "requesttopay status", &res); err != nil {
		c.dropTokenOnUnauthorized(ctx, err)
		return RequestToPayResult{}, err
	}
	if res.ReferenceID == "" {
		res.ReferenceID = referenceID
	}
	return res, nil
}

// 401なら失効したトークンとみなし、次回は取り直す
func (c *Client) dropTokenOnUnauthorized(ctx context.Context, err error) {
	var apiErr *APIError
	if c.tokens == nil || !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		return
	}
	_ = c.tokens.Delete(ctx, tokenCacheKey)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("momo: encode body: %w", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.SubscriptionKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// 2xx以外はAPIError。outがnilならボディは読み捨てる
func (c *Client) do(req *http.Request, op string, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("momo: %s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("momo: %s: read body: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("momo: %s: decode: %w", op, err)
	}
	return nil
}
