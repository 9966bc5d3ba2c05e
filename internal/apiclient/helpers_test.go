package apiclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/fedtaxi/hojaruta/handlers"
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

type seen struct {
	path string
	auth string
}

// backend is the reference API served over httptest, recording every request.
type backend struct {
	srv       *httptest.Server
	users     *users.Service
	sessions  *sessions.Service
	blacklist *sessions.Blacklist

	mu   sync.Mutex
	reqs []seen
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	gin.SetMode(gin.TestMode)
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	rdb := redis.NewClient(&redis.Options{Addr: m.Addr()})

	cfg := &config.Config{}
	cfg.JWT.Secret = "apiclient-test-secret-32-bytes-x"
	cfg.Cookie = config.CookieConfig{Name: "refresh_token", Path: "/auth", SameSite: "strict"}

	b := &backend{
		users:     users.NewServiceWithCost(users.NewMemoryUserRepository(), bcrypt.MinCost),
		sessions:  sessions.NewService(sessions.NewRedisRepository(rdb, "session:"), time.Hour),
		blacklist: sessions.NewBlacklist(rdb),
	}
	router := handlers.NewRouter(handlers.Deps{
		Config:      cfg,
		Users:       b.users,
		Sessions:    b.sessions,
		Issuer:      tokens.NewIssuer(cfg.JWT.Secret, time.Minute),
		Blacklist:   b.blacklist,
		RouteSheets: rsservice.NewMemoryService(),
		Redis:       rdb,
	})
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.reqs = append(b.reqs, seen{path: r.URL.Path, auth: strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")})
		b.mu.Unlock()
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(b.srv.Close)
	return b
}

// hits counts requests whose path ends in suffix.
func (b *backend) hits(suffix string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, r := range b.reqs {
		if strings.HasSuffix(r.path, suffix) {
			n++
		}
	}
	return n
}

// sentWith counts requests carrying token.
func (b *backend) sentWith(token string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, r := range b.reqs {
		if r.auth == token {
			n++
		}
	}
	return n
}

func (b *backend) driver(t *testing.T, identifier, password string) string {
	t.Helper()
	ctx := context.Background()
	u, err := b.users.Register(ctx, models.RegisterRequest{Identifier: identifier, Name: "Driver", Password: password})
	require.NoError(t, err)
	_, err = b.users.Approve(ctx, u.ID)
	require.NoError(t, err)
	return u.ID
}

// revoke makes the backend reject token from now on, as an expiry would.
func (b *backend) revoke(t *testing.T, token string) {
	t.Helper()
	require.NoError(t, b.blacklist.Add(context.Background(), token, time.Minute))
}

func (b *backend) clientConfig(variant string) config.ClientConfig {
	return config.ClientConfig{
		BaseURL:        b.srv.URL,
		Variant:        variant,
		Timeout:        5 * time.Second,
		RefreshTimeout: 5 * time.Second,
		Breaker:        true,
		PDFCacheSize:   4,
	}
}

func (b *backend) newClient(t *testing.T, variant string, opts Options) *Client {
	t.Helper()
	opts.HTTPClient = b.srv.Client()
	c, err := New(b.clientConfig(variant), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

var variants = []string{config.VariantWeb, config.VariantMobile}

func sampleSheet() models.CreateRouteSheetRequest {
	return models.CreateRouteSheetRequest{
		ServiceDate:  "2026-10-19",
		VehiclePlate: "abc 123",
		Origin:       "Aeropuerto T1",
		Destination:  "Centro",
		Passengers:   2,
	}
}
