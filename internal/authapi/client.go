// Package authapi holds the typed calls to the backend's auth and profile endpoints.
package authapi

import (
	"context"
	"net/http"

	"github.com/fedtaxi/hojaruta/internal/credtransport"
	"github.com/fedtaxi/hojaruta/internal/models"
	"github.com/fedtaxi/hojaruta/internal/pipeline"
)

// Client calls the auth endpoints. do is the full authenticated chain; raw skips
// the refresh coordinator and bearer attachment and is used for credential exchanges.
type Client struct {
	baseURL   string
	do        pipeline.Handler
	raw       pipeline.Handler
	transport credtransport.CredentialTransport
}

func New(baseURL string, t credtransport.CredentialTransport, do, raw pipeline.Handler) *Client {
	return &Client{baseURL: baseURL, do: do, raw: raw, transport: t}
}

func (c *Client) send(h pipeline.Handler, req *http.Request, out interface{}) error {
	resp, err := h(req)
	if err != nil {
		return err
	}
	return pipeline.Decode(resp, out)
}

// Login exchanges credentials for a grant. Tokens are not stored here.
func (c *Client) Login(ctx context.Context, identifier, password string) (*models.Grant, error) {
	req, err := pipeline.NewJSONRequest(ctx, http.MethodPost, c.baseURL+credtransport.PathLogin, models.LoginRequest{Identifier: identifier, Password: password})
	if err != nil {
		return nil, err
	}
	var g models.Grant
	if err := c.send(c.raw, req, &g); err != nil {
		return nil, err
	}
	if g.AccessToken == "" {
		return nil, credtransport.ErrEmptyGrant
	}
	return &g, nil
}

func (c *Client) Register(ctx context.Context, in models.RegisterRequest) (*models.RegisterResult, error) {
	req, err := pipeline.NewJSONRequest(ctx, http.MethodPost, c.baseURL+credtransport.PathRegister, in)
	if err != nil {
		return nil, err
	}
	var res models.RegisterResult
	if err := c.send(c.raw, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Refresh calls the variant's refresh endpoint and stores the rotated pair.
// Any failure, including a 2xx without an access token, is an error.
func (c *Client) Refresh(ctx context.Context) (*models.Grant, error) {
	req, err := c.transport.NewRefreshRequest(ctx, c.baseURL)
	if err != nil {
		return nil, err
	}
	var g models.Grant
	if err := c.send(c.raw, req, &g); err != nil {
		return nil, err
	}
	if err := c.transport.Accept(ctx, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// Logout asks the backend to revoke the session. Callers treat failures as best effort.
func (c *Client) Logout(ctx context.Context) error {
	req, err := c.transport.NewLogoutRequest(ctx, c.baseURL)
	if err != nil {
		return err
	}
	return c.send(c.do, req, nil)
}

func (c *Client) Me(ctx context.Context) (*models.User, error) {
	req, err := pipeline.NewJSONRequest(ctx, http.MethodGet, c.baseURL+"/me", nil)
	if err != nil {
		return nil, err
	}
	var u models.User
	if err := c.send(c.do, req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	req, err := pipeline.NewJSONRequest(ctx, http.MethodPost, c.baseURL+"/me/change-password", models.ChangePasswordRequest{CurrentPassword: current, NewPassword: next})
	if err != nil {
		return err
	}
	return c.send(c.do, req, nil)
}

func (c *Client) ForgotPassword(ctx context.Context, identifier string) error {
	req, err := pipeline.NewJSONRequest(ctx, http.MethodPost, c.baseURL+credtransport.PathForgotPassword, map[string]string{"identifier": identifier})
	if err != nil {
		return err
	}
	return c.send(c.raw, req, nil)
}
