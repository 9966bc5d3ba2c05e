package credtransport

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"github.com/fedtaxi/hojaruta/internal/config"
	"github.com/fedtaxi/hojaruta/internal/models"
	"github.com/fedtaxi/hojaruta/internal/tokenstore"
	"github.com/fedtaxi/hojaruta/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

// resettableJar is a cookie jar whose contents can be dropped while the
// http.Client keeps the same Jar value.
type resettableJar struct {
	mu  sync.RWMutex
	jar *cookiejar.Jar
}

func newJar() (*resettableJar, error) {
	j, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	return &resettableJar{jar: j}, nil
}

func (r *resettableJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.jar.SetCookies(u, cookies)
}

func (r *resettableJar) Cookies(u *url.URL) []*http.Cookie {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.jar.Cookies(u)
}

func (r *resettableJar) reset() error {
	j, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.jar = j
	r.mu.Unlock()
	return nil
}

// Cookie is the web variant. The refresh token lives only in the httpOnly cookie
// the backend sets; client code never sees it. The access token is memory-only.
type Cookie struct {
	store *tokenstore.Store
	jar   *resettableJar
	log   *zap.SugaredLogger
}

// NewCookie returns a web transport with an empty jar and a volatile store.
func NewCookie(log *zap.SugaredLogger) (*Cookie, error) {
	if log == nil {
		log = logger.L("credtransport")
	}
	jar, err := newJar()
	if err != nil {
		return nil, err
	}
	return &Cookie{store: tokenstore.NewVolatile(log), jar: jar, log: log}, nil
}

func (c *Cookie) Variant() string          { return config.VariantWeb }
func (c *Cookie) Store() *tokenstore.Store { return c.store }
func (c *Cookie) Jar() http.CookieJar      { return c.jar }
func (c *Cookie) Headers() http.Header     { return headersFor(config.VariantWeb) }

// NewRefreshRequest posts without a body; the jar supplies the cookie.
func (c *Cookie) NewRefreshRequest(ctx context.Context, baseURL string) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, http.MethodPost, baseURL+PathRefresh, nil)
}

func (c *Cookie) NewLogoutRequest(ctx context.Context, baseURL string) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, http.MethodPost, baseURL+PathLogout, nil)
}

func (c *Cookie) Accept(ctx context.Context, g *models.Grant) error {
	if g == nil || g.AccessToken == "" {
		return ErrEmptyGrant
	}
	if g.RefreshToken != "" {
		c.log.Warn("backend returned a refresh token in the body of a web response; ignoring it")
	}
	return c.store.SetTokens(ctx, g.AccessToken, "")
}

func (c *Cookie) HasCredentials(ctx context.Context) bool {
	return c.store.AccessToken(ctx) != ""
}

func (c *Cookie) Reset(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return err
	}
	return c.jar.reset()
}
