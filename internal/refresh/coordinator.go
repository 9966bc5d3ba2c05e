// Package refresh recovers from expired access tokens: one refresh at a time,
// every request that hit a 401 meanwhile waits for it and is replayed once.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fedtaxi/hojaruta/internal/apierr"
	"github.com/fedtaxi/hojaruta/internal/models"
	"github.com/fedtaxi/hojaruta/internal/pipeline"
	"github.com/fedtaxi/hojaruta/internal/tokenstore"
	"github.com/fedtaxi/hojaruta/pkg/logger"
	"github.com/fedtaxi/hojaruta/pkg/metrics"
	"go.uber.org/zap"
)

var (
	// ErrRefreshFailed wraps the cause of any failed refresh. The session is gone.
	ErrRefreshFailed = errors.New("session refresh failed")
	// ErrSessionExpired marks a refresh the backend rejected, as opposed to one
	// that could not reach it.
	ErrSessionExpired = errors.New("session expired")
	errNoAccessToken  = errors.New("refresh response carried no access token")
)

// Refresher performs the refresh call and stores the rotated credentials.
type Refresher interface {
	Refresh(ctx context.Context) (*models.Grant, error)
}

// Credentials is the part of the token store the coordinator reads and clears.
type Credentials interface {
	AccessToken(ctx context.Context) string
	Clear(ctx context.Context) error
}

// Listener observes refresh outcomes. Calls happen outside the coordinator's lock,
// before any waiter is released.
type Listener interface {
	Refreshed(g *models.Grant)
	Expired(err error)
}

// State of the coordinator.
type State int

const (
	Idle State = iota
	Refreshing
)

func (s State) String() string {
	if s == Refreshing {
		return "refreshing"
	}
	return "idle"
}

// Options tune a Coordinator. Zero values select defaults.
type Options struct {
	// RefreshTimeout bounds the refresh call; it is not tied to any caller's context.
	RefreshTimeout time.Duration
	// AuthPaths are URL path suffixes whose 401s are returned untouched.
	AuthPaths []string
	Logger    *zap.SugaredLogger
}

const defaultRefreshTimeout = 10 * time.Second

type outcome struct {
	grant *models.Grant
	err   error
}

type waiter struct {
	ctx        context.Context
	result     chan outcome
	dispatched chan struct{}
	once       sync.Once
}

func newWaiter(ctx context.Context) *waiter {
	return &waiter{ctx: ctx, result: make(chan outcome, 1), dispatched: make(chan struct{})}
}

// ack tells the drain this waiter has been dispatched (or gave up).
func (w *waiter) ack() { w.once.Do(func() { close(w.dispatched) }) }

// Coordinator owns the refresh state of one client instance.
type Coordinator struct {
	refresher Refresher
	creds     Credentials
	timeout   time.Duration
	authPaths []string
	log       *zap.SugaredLogger

	mu        sync.Mutex
	state     State
	queue     []*waiter
	suspended bool
	listeners map[int]Listener
	nextID    int
}

// New returns an idle coordinator.
func New(r Refresher, creds Credentials, opts Options) *Coordinator {
	c := &Coordinator{
		refresher: r,
		creds:     creds,
		timeout:   opts.RefreshTimeout,
		authPaths: opts.AuthPaths,
		log:       opts.Logger,
		listeners: map[int]Listener{},
	}
	if c.timeout <= 0 {
		c.timeout = defaultRefreshTimeout
	}
	if c.log == nil {
		c.log = logger.L("refresh")
	}
	return c
}

// Subscribe registers l and returns a function that removes it.
func (c *Coordinator) Subscribe(l Listener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = l
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Suspend makes every later 401 terminal until Resume or a successful Refresh.
func (c *Coordinator) Suspend() {
	c.mu.Lock()
	c.suspended = true
	c.mu.Unlock()
}

// Resume re-enables automatic refresh; called after a login.
func (c *Coordinator) Resume() {
	c.mu.Lock()
	c.suspended = false
	c.mu.Unlock()
}

func (c *Coordinator) Suspended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.suspended
}

// State reports whether a refresh is in flight.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// QueueLen is the number of requests parked behind the in-flight refresh.
func (c *Coordinator) QueueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

type role int

const (
	roleLead role = iota
	roleWait
	roleRotated
	rolePass
)

// join decides, in one critical section, whether the caller starts the refresh,
// waits for the one in flight, replays at once because the token it was sent
// with has already been rotated, or hands the 401 back because the session is
// suspended. sentWith and suspension are ignored when explicit.
func (c *Coordinator) join(ctx context.Context, sentWith string, explicit bool) (*waiter, role) {
	if !explicit {
		// loads the store from its backend outside the lock; the read below is a cache hit
		c.creds.AccessToken(ctx)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Refreshing {
		w := newWaiter(ctx)
		c.queue = append(c.queue, w)
		metrics.RefreshQueued.Inc()
		return w, roleWait
	}
	if !explicit {
		if c.suspended {
			return nil, rolePass
		}
		if cur := c.creds.AccessToken(ctx); cur != "" && cur != sentWith {
			return nil, roleRotated
		}
	}
	c.state = Refreshing
	return nil, roleLead
}

func (c *Coordinator) snapshotListeners() []Listener {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		out = append(out, l)
	}
	return out
}

// lead runs the refresh and settles every waiter. It must only be called by the
// goroutine that moved the state to Refreshing.
func (c *Coordinator) lead(ctx context.Context) outcome {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	start := time.Now()
	g, err := c.refresher.Refresh(rctx)
	if err == nil && (g == nil || g.AccessToken == "") {
		err = errNoAccessToken
	}

	var o outcome
	if err != nil {
		metrics.RefreshTotal.WithLabelValues("failure").Inc()
		o.err = classify(err)
		c.log.Warnw("refresh failed; ending session", "error", err, "took", time.Since(start).Round(time.Millisecond).String())
		// rctx may already be spent when the refresh timed out
		cctx, ccancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		if cerr := c.creds.Clear(cctx); cerr != nil {
			c.log.Warnw("clearing credentials failed", "error", cerr)
		}
		ccancel()
		c.mu.Lock()
		c.suspended = true
		c.mu.Unlock()
		for _, l := range c.snapshotListeners() {
			l.Expired(o.err)
		}
	} else {
		metrics.RefreshTotal.WithLabelValues("success").Inc()
		o.grant = g
		c.log.Debugw("refresh succeeded", "took", time.Since(start).Round(time.Millisecond).String())
		c.mu.Lock()
		c.suspended = false
		c.mu.Unlock()
		for _, l := range c.snapshotListeners() {
			l.Refreshed(g)
		}
	}
	c.drain(o)
	return o
}

// drain releases waiters in enqueue order, each one dispatched before the next
// is released, then returns the coordinator to Idle.
func (c *Coordinator) drain(o outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range c.queue {
		w.result <- o
		select {
		case <-w.dispatched:
		case <-w.ctx.Done():
		}
	}
	c.queue = nil
	c.state = Idle
}

func classify(err error) error {
	if apierr.IsUnauthorized(err) || apierr.IsForbidden(err) || errors.Is(err, tokenstore.ErrNoRefreshToken) {
		return fmt.Errorf("%w: %w: %w", ErrRefreshFailed, ErrSessionExpired, err)
	}
	return fmt.Errorf("%w: %w", ErrRefreshFailed, err)
}

// wait blocks until the leader settles w or ctx ends. The caller must ack.
func (w *waiter) wait() outcome {
	select {
	case o := <-w.result:
		return o
	case <-w.ctx.Done():
		w.ack()
		return outcome{err: w.ctx.Err()}
	}
}

// Refresh performs an explicit refresh, joining one already in flight. It runs
// even while suspended and clears the suspension on success.
func (c *Coordinator) Refresh(ctx context.Context) (*models.Grant, error) {
	w, r := c.join(ctx, "", true)
	if r == roleLead {
		o := c.lead(ctx)
		return o.grant, o.err
	}
	o := w.wait()
	w.ack()
	return o.grant, o.err
}

func (c *Coordinator) isAuthEndpoint(path string) bool {
	for _, p := range c.authPaths {
		if strings.HasSuffix(path, p) {
			return true
		}
	}
	return false
}

func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

// replay clones req with a fresh body. The Attempt in its context is shared.
func replay(req *http.Request) (*http.Request, error) {
	out := req.Clone(req.Context())
	if req.Body != nil && req.Body != http.NoBody {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
		out.Body = body
	}
	return out, nil
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

// Middleware sits outside the bearer middleware so replays pick up the rotated token.
func (c *Coordinator) Middleware() pipeline.Middleware {
	return func(req *http.Request, next pipeline.Handler) (*http.Response, error) {
		att := pipeline.AttemptFrom(req.Context())
		if att == nil {
			att = &pipeline.Attempt{}
			req = req.WithContext(pipeline.WithAttempt(req.Context(), att))
		}
		resp, err := next(req)
		if err != nil || resp.StatusCode != http.StatusUnauthorized {
			return resp, err
		}
		if att.Retried || c.isAuthEndpoint(req.URL.Path) || !replayable(req) {
			return resp, nil
		}

		w, r := c.join(req.Context(), att.Token, false)
		switch r {
		case rolePass:
			return resp, nil
		case roleRotated:
			discard(resp)
			metrics.Replays.WithLabelValues("rotated").Inc()
			return c.send(req, att, next, nil)
		case roleWait:
			discard(resp)
			o := w.wait()
			if o.err != nil {
				w.ack()
				return nil, o.err
			}
			metrics.Replays.WithLabelValues("refreshed").Inc()
			return c.send(req, att, next, w)
		default:
			discard(resp)
			o := c.lead(req.Context())
			if o.err != nil {
				return nil, o.err
			}
			metrics.Replays.WithLabelValues("refreshed").Inc()
			return c.send(req, att, next, nil)
		}
	}
}

// send replays req once. A waiter is acked when the replay reaches the wire, or
// when it returns, whichever comes first.
func (c *Coordinator) send(req *http.Request, att *pipeline.Attempt, next pipeline.Handler, w *waiter) (*http.Response, error) {
	att.Retried = true
	out, err := replay(req)
	if w != nil {
		defer w.ack()
		att.OnDispatch = w.ack
	}
	if err != nil {
		return nil, err
	}
	return next(out)
}
