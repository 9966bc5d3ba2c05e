package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/fedtaxi/hojaruta/internal/config"
	"github.com/fedtaxi/hojaruta/internal/models"
	rsservice "github.com/fedtaxi/hojaruta/internal/routesheet/service"
	"github.com/fedtaxi/hojaruta/internal/sessions"
	"github.com/fedtaxi/hojaruta/internal/tokens"
	"github.com/fedtaxi/hojaruta/internal/users"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	router *gin.Engine
	users  *users.Service
	issuer *tokens.Issuer
	mr     *mr.Miniredis
}

func newTestEnv(t *testing.T, tweaks ...func(*config.Config)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})

	cfg := &config.Config{}
	cfg.JWT.Secret = "handlers-test-secret-32-bytes-xx"
	cfg.Cookie = config.CookieConfig{Name: "refresh_token", Path: "/auth", SameSite: "strict"}
	for _, fn := range tweaks {
		fn(cfg)
	}

	uSvc := users.NewServiceWithCost(users.NewMemoryUserRepository(), bcrypt.MinCost)
	issuer := tokens.NewIssuer(cfg.JWT.Secret, time.Minute)
	d := Deps{
		Config:      cfg,
		Users:       uSvc,
		Sessions:    sessions.NewService(sessions.NewRedisRepository(client, "session:"), time.Hour),
		Issuer:      issuer,
		Blacklist:   sessions.NewBlacklist(client),
		RouteSheets: rsservice.NewMemoryService(),
		Redis:       client,
		Checks: map[string]func(ctx context.Context) error{
			"redis": func(ctx context.Context) error { return client.Ping(ctx).Err() },
		},
	}
	return &testEnv{router: NewRouter(d), users: uSvc, issuer: issuer, mr: m}
}

// approvedDriver registers and approves a driver, returning its id.
func (e *testEnv) approvedDriver(t *testing.T, identifier, password string) string {
	t.Helper()
	u, err := e.users.Register(context.Background(), models.RegisterRequest{Identifier: identifier, Name: "Driver", Password: password})
	require.NoError(t, err)
	_, err = e.users.Approve(context.Background(), u.ID)
	require.NoError(t, err)
	return u.ID
}

type call struct {
	method, path, body string
	bearer             string
	web                bool
	cookies            []*http.Cookie
}

func (e *testEnv) do(c call) *httptest.ResponseRecorder {
	var req *http.Request
	if c.body != "" {
		req = httptest.NewRequest(c.method, c.path, strings.NewReader(c.body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(c.method, c.path, nil)
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	if c.web {
		req.Header.Set(ClientTypeHeader, "web")
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeGrant(t *testing.T, w *httptest.ResponseRecorder) models.Grant {
	t.Helper()
	var g models.Grant
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &g))
	return g
}

func refreshCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, ck := range w.Result().Cookies() {
		if ck.Name == "refresh_token" {
			return ck
		}
	}
	return nil
}
