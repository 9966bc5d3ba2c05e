// Package pipeline is the client's explicit request middleware chain.
package pipeline

import (
	"context"
	"net/http"

	"github.com/fedtaxi/hojaruta/internal/apierr"
)

// Handler sends a request and returns the response. Non-2xx statuses are
// responses, not errors; errors are transport failures (*apierr.Error).
type Handler func(req *http.Request) (*http.Response, error)

// Middleware wraps next. It may inspect or replace req and the response.
type Middleware func(req *http.Request, next Handler) (*http.Response, error)

// Chain composes mws around final. The first middleware is the outermost.
func Chain(final Handler, mws ...Middleware) Handler {
	h := final
	for i := len(mws) - 1; i >= 0; i-- {
		mw, next := mws[i], h
		h = func(req *http.Request) (*http.Response, error) {
			return mw(req, next)
		}
	}
	return h
}

// Client is the terminal handler: it sends through c (cookie jar, timeout) and
// classifies transport failures.
func Client(c *http.Client) Handler {
	return func(req *http.Request) (*http.Response, error) {
		if a := AttemptFrom(req.Context()); a != nil && a.OnDispatch != nil {
			a.OnDispatch()
		}
		resp, err := c.Do(req)
		if err != nil {
			return nil, apierr.FromTransport(err)
		}
		return resp, nil
	}
}

// Attempt is per-request bookkeeping shared by the middlewares of one send.
type Attempt struct {
	// Retried is set on the single replay after a refresh.
	Retried bool
	// Token is the access token attached to this send ("" if none).
	Token string
	// OnDispatch, when set, is called by Client right before the request is sent.
	OnDispatch func()
}

type attemptKey struct{}

// WithAttempt returns ctx carrying a.
func WithAttempt(ctx context.Context, a *Attempt) context.Context {
	return context.WithValue(ctx, attemptKey{}, a)
}

// AttemptFrom returns the Attempt carried by ctx, or nil.
func AttemptFrom(ctx context.Context) *Attempt {
	a, _ := ctx.Value(attemptKey{}).(*Attempt)
	return a
}

// TokenSource yields the current access token ("" when logged out).
type TokenSource interface {
	AccessToken(ctx context.Context) string
}

// BearerAuth attaches "Authorization: Bearer <token>" when a token exists.
// The caller's request is never modified; a clone is sent.
func BearerAuth(src TokenSource) Middleware {
	return func(req *http.Request, next Handler) (*http.Response, error) {
		ctx := req.Context()
		out := req.Clone(ctx)
		tok := src.AccessToken(ctx)
		if tok != "" {
			out.Header.Set("Authorization", "Bearer "+tok)
		} else {
			out.Header.Del("Authorization")
		}
		if a := AttemptFrom(ctx); a != nil {
			a.Token = tok
		}
		return next(out)
	}
}

// Annotate sets static headers on every request (client type, user agent).
func Annotate(headers http.Header) Middleware {
	return func(req *http.Request, next Handler) (*http.Response, error) {
		out := req.Clone(req.Context())
		for k, v := range headers {
			out.Header[k] = append([]string(nil), v...)
		}
		return next(out)
	}
}

type roundTripper struct{ h Handler }

func (rt roundTripper) RoundTrip(req *http.Request) (*http.Response, error) { return rt.h(req) }

// RoundTripper adapts h for use as an http.Client transport. h must not send
// through the same client.
func RoundTripper(h Handler) http.RoundTripper { return roundTripper{h: h} }
