// Package credtransport decides how the refresh credential travels between the
// client and the backend: in an httpOnly cookie (web) or in request bodies (mobile).
package credtransport

import (
	"context"
	"errors"
	"net/http"

	"github.com/fedtaxi/hojaruta/internal/config"
	"github.com/fedtaxi/hojaruta/internal/models"
	"github.com/fedtaxi/hojaruta/internal/tokenstore"
)

// ClientTypeHeader tells the backend which variant is calling.
const ClientTypeHeader = "X-Client-Type"

// Auth endpoint paths, relative to the API base URL.
const (
	PathLogin          = "/auth/login"
	PathRegister       = "/auth/register"
	PathRefresh        = "/auth/refresh"
	PathMobileRefresh  = "/auth/mobile/refresh"
	PathLogout         = "/auth/logout"
	PathForgotPassword = "/auth/forgot-password"
)

// AuthPaths lists every endpoint whose 401 means "bad credentials", never "expired session".
var AuthPaths = []string{PathLogin, PathRegister, PathRefresh, PathMobileRefresh, PathLogout, PathForgotPassword}

// ErrEmptyGrant is returned when a login or refresh response carries no access token.
var ErrEmptyGrant = errors.New("grant carries no access token")

// CredentialTransport is the variant-specific half of the session protocol.
type CredentialTransport interface {
	// Variant is config.VariantWeb or config.VariantMobile.
	Variant() string
	// Store holds the credentials this transport manages.
	Store() *tokenstore.Store
	// Jar is installed on the http.Client; nil when cookies are not used.
	Jar() http.CookieJar
	// Headers are attached to every request.
	Headers() http.Header
	NewRefreshRequest(ctx context.Context, baseURL string) (*http.Request, error)
	NewLogoutRequest(ctx context.Context, baseURL string) (*http.Request, error)
	// Accept stores the credentials of a login or refresh response.
	Accept(ctx context.Context, g *models.Grant) error
	// HasCredentials reports whether a logout has anything to invalidate.
	HasCredentials(ctx context.Context) bool
	// Reset forgets every local credential, including cookies.
	Reset(ctx context.Context) error
}

// New returns the transport for variant. backend is only used by the mobile variant.
func New(variant string, backend tokenstore.Backend) (CredentialTransport, error) {
	switch variant {
	case config.VariantWeb:
		c, err := NewCookie(nil)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.VariantMobile:
		if backend == nil {
			backend = tokenstore.NewMemoryBackend()
		}
		return NewBody(tokenstore.NewPersistent(backend, nil)), nil
	}
	return nil, errors.New("unknown client variant: " + variant)
}

func headersFor(variant string) http.Header {
	return http.Header{ClientTypeHeader: {variant}}
}
