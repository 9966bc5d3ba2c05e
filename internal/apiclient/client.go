// Package apiclient assembles the client core: credential transport, request
// pipeline, refresh coordinator and session, plus the route-sheet calls built on them.
package apiclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/fedtaxi/hojaruta/internal/apierr"
	"github.com/fedtaxi/hojaruta/internal/authapi"
	"github.com/fedtaxi/hojaruta/internal/config"
	"github.com/fedtaxi/hojaruta/internal/credtransport"
	"github.com/fedtaxi/hojaruta/internal/models"
	"github.com/fedtaxi/hojaruta/internal/pdfcache"
	"github.com/fedtaxi/hojaruta/internal/pipeline"
	"github.com/fedtaxi/hojaruta/internal/refresh"
	"github.com/fedtaxi/hojaruta/internal/session"
	"github.com/fedtaxi/hojaruta/internal/storage"
	"github.com/fedtaxi/hojaruta/internal/tokenstore"
	"github.com/fedtaxi/hojaruta/pkg/logger"
	"go.uber.org/zap"
)

const (
	defaultPDFCacheSize = 20
	maxPDFBytes         = 32 << 20
)

// Options carries the collaborators New does not build from config.
type Options struct {
	// Backend persists mobile credentials; nil keeps them in memory.
	Backend tokenstore.Backend
	// Blobs backs the PDF cache; nil keeps documents in memory.
	Blobs  storage.BlobStore
	Logger *zap.SugaredLogger
	// HTTPClient is copied; its Jar is replaced by the transport's.
	HTTPClient *http.Client
	// Closers run on Close, after the session is detached.
	Closers []func() error
}

// Client is one logged-in (or logged-out) API client.
type Client struct {
	cfg       config.ClientConfig
	transport credtransport.CredentialTransport
	coord     *refresh.Coordinator
	auth      *authapi.Client
	session   *session.Manager
	pdfs      *pdfcache.Cache
	do        pipeline.Handler
	log       *zap.SugaredLogger
	closers   []func() error
	unwatch   func()
}

// New wires the client core for cfg.Variant.
func New(cfg config.ClientConfig, opts Options) (*Client, error) {
	log := opts.Logger
	if log == nil {
		log = logger.L("apiclient")
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}

	t, err := credtransport.New(cfg.Variant, opts.Backend)
	if err != nil {
		return nil, err
	}

	hc := &http.Client{Timeout: cfg.Timeout}
	if opts.HTTPClient != nil {
		cp := *opts.HTTPClient
		hc = &cp
		if hc.Timeout == 0 {
			hc.Timeout = cfg.Timeout
		}
	}
	hc.Jar = t.Jar()

	final := pipeline.Client(hc)
	outer := []pipeline.Middleware{pipeline.Logging(log.Named("http")), pipeline.Annotate(t.Headers())}
	var inner []pipeline.Middleware
	if cfg.Breaker {
		inner = append(inner, pipeline.Breaker(pipeline.DefaultBreakerConfig("hojaruta-api")))
	}
	raw := pipeline.Chain(final, concat(outer, inner)...)

	c := &Client{cfg: cfg, transport: t, log: log, closers: opts.Closers}
	c.auth = authapi.New(cfg.BaseURL, t, func(req *http.Request) (*http.Response, error) { return c.do(req) }, raw)
	c.coord = refresh.New(c.auth, t.Store(), refresh.Options{
		RefreshTimeout: cfg.RefreshTimeout,
		AuthPaths:      credtransport.AuthPaths,
		Logger:         log.Named("refresh"),
	})
	c.do = pipeline.Chain(final, concat(outer, []pipeline.Middleware{c.coord.Middleware(), pipeline.BearerAuth(t.Store())}, inner)...)
	c.session = session.NewManager(c.auth, t, c.coord, log.Named("session"))

	size := cfg.PDFCacheSize
	if size <= 0 {
		size = defaultPDFCacheSize
	}
	blobs := opts.Blobs
	if blobs == nil {
		blobs = storage.NewMemoryStore()
	}
	if c.pdfs, err = pdfcache.New(blobs, size, log.Named("pdfcache")); err != nil {
		return nil, err
	}
	c.unwatch = c.session.Subscribe(c.purgeOnLogout)
	return c, nil
}

func concat(groups ...[]pipeline.Middleware) []pipeline.Middleware {
	var out []pipeline.Middleware
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// purgeOnLogout drops cached documents once nobody is logged in.
func (c *Client) purgeOnLogout(st session.State) {
	if st.User != nil || st.Loading || c.pdfs.Len() == 0 {
		return
	}
	if err := c.pdfs.Purge(context.Background()); err != nil {
		c.log.Warnw("purging pdf cache failed", "error", err)
	}
}

func (c *Client) Session() *session.Manager { return c.session }

func (c *Client) Coordinator() *refresh.Coordinator { return c.coord }

func (c *Client) Auth() *authapi.Client { return c.auth }

func (c *Client) Transport() credtransport.CredentialTransport { return c.transport }

func (c *Client) PDFCache() *pdfcache.Cache { return c.pdfs }

// HTTPClient returns an http.Client whose requests go through the authenticated chain.
func (c *Client) HTTPClient() *http.Client {
	return &http.Client{Transport: pipeline.RoundTripper(c.do)}
}

// Close detaches the session and releases backends.
func (c *Client) Close() error {
	c.unwatch()
	c.session.Close()
	var errs []error
	for _, fn := range c.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	ctx = pipeline.WithAttempt(ctx, &pipeline.Attempt{})
	return pipeline.NewJSONRequest(ctx, method, c.cfg.BaseURL+path, body)
}

func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	return pipeline.Decode(resp, out)
}

func (c *Client) ListRouteSheets(ctx context.Context) ([]models.RouteSheet, error) {
	var out []models.RouteSheet
	if err := c.call(ctx, http.MethodGet, "/route-sheets", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetRouteSheet(ctx context.Context, id string) (*models.RouteSheet, error) {
	var rs models.RouteSheet
	if err := c.call(ctx, http.MethodGet, "/route-sheets/"+url.PathEscape(id), nil, &rs); err != nil {
		return nil, err
	}
	return &rs, nil
}

func (c *Client) CreateRouteSheet(ctx context.Context, in models.CreateRouteSheetRequest) (*models.RouteSheet, error) {
	var rs models.RouteSheet
	if err := c.call(ctx, http.MethodPost, "/route-sheets", in, &rs); err != nil {
		return nil, err
	}
	return &rs, nil
}

// RouteSheetPDF serves the document from the cache when present.
func (c *Client) RouteSheetPDF(ctx context.Context, id string) ([]byte, error) {
	if data, ok, err := c.pdfs.Get(ctx, id); err != nil {
		c.log.Warnw("pdf cache read failed", "id", id, "error", err)
	} else if ok {
		return data, nil
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/route-sheets/"+url.PathEscape(id)+"/pdf", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/pdf")
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if err := apierr.CheckResponse(resp); err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPDFBytes))
	if err != nil {
		return nil, apierr.FromTransport(err)
	}
	if err := c.pdfs.Put(ctx, id, data); err != nil {
		c.log.Warnw("pdf cache write failed", "id", id, "error", err)
	}
	return data, nil
}
