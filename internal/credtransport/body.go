package credtransport

import (
	"context"
	"net/http"

	"github.com/fedtaxi/hojaruta/internal/config"
	"github.com/fedtaxi/hojaruta/internal/models"
	"github.com/fedtaxi/hojaruta/internal/pipeline"
	"github.com/fedtaxi/hojaruta/internal/tokenstore"
)

// Body is the mobile variant: both tokens are persisted and the refresh token is
// sent in the JSON body of refresh and logout calls.
type Body struct {
	store *tokenstore.Store
}

func NewBody(store *tokenstore.Store) *Body { return &Body{store: store} }

func (b *Body) Variant() string          { return config.VariantMobile }
func (b *Body) Store() *tokenstore.Store { return b.store }
func (b *Body) Jar() http.CookieJar      { return nil }
func (b *Body) Headers() http.Header     { return headersFor(config.VariantMobile) }

func (b *Body) NewRefreshRequest(ctx context.Context, baseURL string) (*http.Request, error) {
	rt := b.store.RefreshToken(ctx)
	if rt == "" {
		return nil, tokenstore.ErrNoRefreshToken
	}
	return pipeline.NewJSONRequest(ctx, http.MethodPost, baseURL+PathMobileRefresh, models.RefreshRequest{RefreshToken: rt})
}

// NewLogoutRequest includes the refresh token when one is stored so the backend can revoke it.
func (b *Body) NewLogoutRequest(ctx context.Context, baseURL string) (*http.Request, error) {
	rt := b.store.RefreshToken(ctx)
	if rt == "" {
		return pipeline.NewJSONRequest(ctx, http.MethodPost, baseURL+PathLogout, nil)
	}
	return pipeline.NewJSONRequest(ctx, http.MethodPost, baseURL+PathLogout, models.RefreshRequest{RefreshToken: rt})
}

// Accept persists the pair. An empty refresh token keeps the stored one.
func (b *Body) Accept(ctx context.Context, g *models.Grant) error {
	if g == nil || g.AccessToken == "" {
		return ErrEmptyGrant
	}
	return b.store.SetTokens(ctx, g.AccessToken, g.RefreshToken)
}

func (b *Body) HasCredentials(ctx context.Context) bool {
	return b.store.AccessToken(ctx) != "" || b.store.RefreshToken(ctx) != ""
}

func (b *Body) Reset(ctx context.Context) error { return b.store.Clear(ctx) }
