package authapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fedtaxi/hojaruta/internal/apierr"
	"github.com/fedtaxi/hojaruta/internal/credtransport"
	"github.com/fedtaxi/hojaruta/internal/models"
	"github.com/fedtaxi/hojaruta/internal/pipeline"
	"github.com/fedtaxi/hojaruta/internal/tokenstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, mux *http.ServeMux) (*Client, *credtransport.Body) {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	tr := credtransport.NewBody(tokenstore.NewPersistent(tokenstore.NewMemoryBackend(), nil))
	raw := pipeline.Chain(pipeline.Client(srv.Client()), pipeline.Annotate(tr.Headers()))
	do := pipeline.Chain(pipeline.Client(srv.Client()), pipeline.Annotate(tr.Headers()), pipeline.BearerAuth(tr.Store()))
	return New(srv.URL, tr, do, raw), tr
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLogin(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var in models.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&in)
		assert.Equal(t, "mobile", r.Header.Get("X-Client-Type"))
		if in.Password != "secret" {
			writeJSON(w, http.StatusUnauthorized, models.ErrorBody{Error: "invalid credentials", Code: "invalid_credentials"})
			return
		}
		writeJSON(w, http.StatusOK, models.Grant{AccessToken: "A1", RefreshToken: "R1", MustChangePassword: true, User: &models.User{ID: "u1"}})
	})
	c, tr := newClient(t, mux)
	ctx := context.Background()

	g, err := c.Login(ctx, "ana@fed.mx", "secret")
	require.NoError(t, err)
	assert.Equal(t, "A1", g.AccessToken)
	assert.True(t, g.MustChangePassword)
	assert.Equal(t, "u1", g.User.ID)
	assert.Empty(t, tr.Store().AccessToken(ctx), "login must not store tokens by itself")

	_, err = c.Login(ctx, "ana@fed.mx", "wrong")
	var ae *apierr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusUnauthorized, ae.Status)
	assert.Equal(t, "invalid_credentials", ae.Code)
	assert.Equal(t, "invalid credentials", ae.Message)
}

func TestRefreshStoresRotatedPair(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/mobile/refresh", func(w http.ResponseWriter, r *http.Request) {
		var in models.RefreshRequest
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in.RefreshToken != "R1" {
			writeJSON(w, http.StatusUnauthorized, models.ErrorBody{Error: "invalid refresh token"})
			return
		}
		writeJSON(w, http.StatusOK, models.Grant{AccessToken: "A2", RefreshToken: "R2"})
	})
	c, tr := newClient(t, mux)
	ctx := context.Background()
	require.NoError(t, tr.Store().SetTokens(ctx, "A1", "R1"))

	g, err := c.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, "A2", g.AccessToken)
	assert.Equal(t, "A2", tr.Store().AccessToken(ctx))
	assert.Equal(t, "R2", tr.Store().RefreshToken(ctx))

	// R1 was rotated away
	require.NoError(t, tr.Store().SetTokens(ctx, "A2", "R1"))
	_, err = c.Refresh(ctx)
	assert.True(t, apierr.IsUnauthorized(err))
}

func TestRefreshWithoutAccessTokenFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/mobile/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{})
	})
	c, tr := newClient(t, mux)
	ctx := context.Background()
	require.NoError(t, tr.Store().SetTokens(ctx, "A1", "R1"))
	_, err := c.Refresh(ctx)
	assert.ErrorIs(t, err, credtransport.ErrEmptyGrant)
	assert.Equal(t, "A1", tr.Store().AccessToken(ctx))
}

func TestRefreshWithoutStoredToken(t *testing.T) {
	c, _ := newClient(t, http.NewServeMux())
	_, err := c.Refresh(context.Background())
	assert.ErrorIs(t, err, tokenstore.ErrNoRefreshToken)
}

func TestMeAndLogoutCarryBearer(t *testing.T) {
	var logoutBody models.RefreshRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer A1" {
			writeJSON(w, http.StatusUnauthorized, models.ErrorBody{Error: "missing token"})
			return
		}
		writeJSON(w, http.StatusOK, models.User{ID: "u1", Name: "Ana"})
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer A1", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&logoutBody)
		writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
	})
	c, tr := newClient(t, mux)
	ctx := context.Background()
	require.NoError(t, tr.Store().SetTokens(ctx, "A1", "R1"))

	u, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ana", u.Name)

	require.NoError(t, c.Logout(ctx))
	assert.Equal(t, "R1", logoutBody.RefreshToken)
}

func TestChangePasswordStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/me/change-password", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, models.ErrorBody{Error: "current password incorrect", Code: "current_password_incorrect"})
	})
	c, _ := newClient(t, mux)
	err := c.ChangePassword(context.Background(), "old", "new-password")
	assert.Equal(t, http.StatusBadRequest, apierr.StatusOf(err))
}

func TestRegisterAndForgotPassword(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/register", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, models.RegisterResult{Status: "pending", Message: "awaiting approval"})
	})
	mux.HandleFunc("/auth/forgot-password", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusAccepted, map[string]string{"message": "ok"})
	})
	c, _ := newClient(t, mux)
	res, err := c.Register(context.Background(), models.RegisterRequest{Identifier: "ana@fed.mx", Name: "Ana", Password: "long-enough"})
	require.NoError(t, err)
	assert.True(t, res.Pending())
	assert.NoError(t, c.ForgotPassword(context.Background(), "ana@fed.mx"))
}
