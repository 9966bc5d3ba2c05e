// Package session is the caller-facing view of authentication: who is logged
// in, whether the session is still loading, and the operations that change it.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/fedtaxi/hojaruta/internal/apierr"
	"github.com/fedtaxi/hojaruta/internal/config"
	"github.com/fedtaxi/hojaruta/internal/credtransport"
	"github.com/fedtaxi/hojaruta/internal/models"
	"github.com/fedtaxi/hojaruta/internal/refresh"
	"github.com/fedtaxi/hojaruta/pkg/logger"
	"github.com/fedtaxi/hojaruta/pkg/metrics"
	"go.uber.org/zap"
)

// ErrCurrentPasswordIncorrect is returned by ChangePassword when the backend
// rejects the current password.
var ErrCurrentPasswordIncorrect = errors.New("current password incorrect")

// State is a snapshot of the session.
type State struct {
	User               *models.User
	MustChangePassword bool
	// Loading is true until the first Restore finishes.
	Loading bool
	// Authenticated means a user is known and an access token is held.
	Authenticated bool
}

// API is the subset of authapi.Client the manager uses.
type API interface {
	Login(ctx context.Context, identifier, password string) (*models.Grant, error)
	Register(ctx context.Context, in models.RegisterRequest) (*models.RegisterResult, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*models.User, error)
	ChangePassword(ctx context.Context, current, next string) error
}

// Coordinator is the subset of refresh.Coordinator the manager uses.
type Coordinator interface {
	Refresh(ctx context.Context) (*models.Grant, error)
	Suspend()
	Resume()
	Subscribe(l refresh.Listener) func()
}

// Manager owns the session of one client instance.
type Manager struct {
	api       API
	transport credtransport.CredentialTransport
	coord     Coordinator
	log       *zap.SugaredLogger
	detach    func()

	mu                 sync.Mutex
	user               *models.User
	mustChangePassword bool
	loading            bool

	subMu  sync.Mutex
	subs   map[int]func(State)
	nextID int
}

// NewManager wires the manager as a listener of coord. Close detaches it.
func NewManager(api API, t credtransport.CredentialTransport, coord Coordinator, log *zap.SugaredLogger) *Manager {
	if log == nil {
		log = logger.L("session")
	}
	m := &Manager{api: api, transport: t, coord: coord, log: log, loading: true, subs: map[int]func(State){}}
	m.detach = coord.Subscribe(m)
	return m
}

func (m *Manager) Close() { m.detach() }

// State returns the current snapshot.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Manager) stateLocked() State {
	var u *models.User
	if m.user != nil {
		cp := *m.user
		u = &cp
	}
	return State{
		User:               u,
		MustChangePassword: m.mustChangePassword,
		Loading:            m.loading,
		Authenticated:      m.user != nil && m.transport.Store().AccessToken(context.Background()) != "",
	}
}

// Subscribe calls fn with every new state until the returned function is called.
func (m *Manager) Subscribe(fn func(State)) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	return func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}
}

func (m *Manager) notify() {
	st := m.State()
	m.subMu.Lock()
	fns := make([]func(State), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}

// Login stores the grant and the user together; subscribers only ever see both or neither.
// Backend errors are returned as is.
func (m *Manager) Login(ctx context.Context, identifier, password string) (*models.User, error) {
	g, err := m.api.Login(ctx, identifier, password)
	if err != nil {
		return nil, err
	}
	if g.User == nil {
		return nil, errors.New("login response carried no user")
	}

	m.mu.Lock()
	if err := m.transport.Accept(ctx, g); err != nil {
		// the in-memory pair is set; only persistence failed
		m.log.Warnw("persisting credentials failed", "error", err)
	}
	m.user = g.User
	m.mustChangePassword = g.MustChangePassword || g.User.MustChangePassword
	m.loading = false
	u := *m.user
	m.mu.Unlock()

	m.coord.Resume()
	m.log.Infow("logged in", "user_id", u.ID, "variant", m.transport.Variant())
	m.notify()
	return &u, nil
}

func (m *Manager) Register(ctx context.Context, in models.RegisterRequest) (*models.RegisterResult, error) {
	return m.api.Register(ctx, in)
}

// Logout revokes the session on the backend when it can and always clears it locally.
// Calling it while logged out does nothing.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	active := m.user != nil || m.transport.HasCredentials(ctx)
	m.mu.Unlock()
	if !active {
		return nil
	}

	m.coord.Suspend()
	if err := m.api.Logout(ctx); err != nil {
		m.log.Warnw("server logout failed; clearing local session anyway", "error", err)
	}

	m.mu.Lock()
	if err := m.transport.Reset(ctx); err != nil {
		m.log.Warnw("clearing credentials failed", "error", err)
	}
	m.user = nil
	m.mustChangePassword = false
	m.loading = false
	m.mu.Unlock()

	m.log.Info("logged out")
	m.notify()
	return nil
}

// RefreshUser re-reads the profile without touching tokens.
func (m *Manager) RefreshUser(ctx context.Context) (*models.User, error) {
	u, err := m.api.Me(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.user = u
	m.mustChangePassword = u.MustChangePassword
	cp := *u
	m.mu.Unlock()
	m.notify()
	return &cp, nil
}

// ChangePassword returns ErrCurrentPasswordIncorrect (wrapping the backend error)
// on a 400 and leaves the must-change flag as it was.
func (m *Manager) ChangePassword(ctx context.Context, current, next string) error {
	err := m.api.ChangePassword(ctx, current, next)
	if apierr.StatusOf(err) == http.StatusBadRequest {
		return fmt.Errorf("%w: %w", ErrCurrentPasswordIncorrect, err)
	}
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.mustChangePassword = false
	if m.user != nil {
		m.user.MustChangePassword = false
	}
	m.mu.Unlock()
	m.notify()
	return nil
}

// Restore rebuilds the session at startup. Mobile reads the persisted pair and
// probes /me; web has only the cookie, so it refreshes first. A session the
// backend no longer accepts ends logged out, not in error. Other failures are
// returned; a failed refresh has already cleared the token store, but the web
// refresh cookie stays in the jar.
func (m *Manager) Restore(ctx context.Context) error {
	var (
		u   *models.User
		err error
	)
	if m.transport.Variant() == config.VariantWeb {
		u, err = m.restoreWeb(ctx)
	} else {
		u, err = m.restoreMobile(ctx)
	}

	expired := apierr.IsUnauthorized(err) || errors.Is(err, refresh.ErrSessionExpired)
	if expired {
		m.log.Infow("stored session is no longer valid", "error", err)
		if cerr := m.transport.Reset(ctx); cerr != nil {
			m.log.Warnw("clearing credentials failed", "error", cerr)
		}
	}

	m.mu.Lock()
	if err == nil {
		m.user = u
		m.mustChangePassword = u != nil && u.MustChangePassword
	} else {
		m.user = nil
	}
	m.loading = false
	m.mu.Unlock()

	if err == nil && u != nil {
		m.coord.Resume()
	}
	m.notify()
	if expired {
		return nil
	}
	return err
}

func (m *Manager) restoreMobile(ctx context.Context) (*models.User, error) {
	p := m.transport.Store().InitializeFromStorage(ctx)
	if !p.HasAccessToken && !p.HasRefreshToken {
		return nil, nil
	}
	if !p.HasAccessToken {
		if _, err := m.coord.Refresh(ctx); err != nil {
			return nil, err
		}
	}
	m.coord.Resume()
	return m.api.Me(ctx)
}

func (m *Manager) restoreWeb(ctx context.Context) (*models.User, error) {
	g, err := m.coord.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	if g.User != nil {
		return g.User, nil
	}
	return m.api.Me(ctx)
}

// Refreshed implements refresh.Listener.
func (m *Manager) Refreshed(g *models.Grant) {
	if g.User == nil {
		return
	}
	m.mu.Lock()
	if m.user == nil {
		// restore owns the first user assignment
		m.mu.Unlock()
		return
	}
	m.user = g.User
	m.mu.Unlock()
	m.notify()
}

// Expired implements refresh.Listener: the coordinator already cleared the tokens.
func (m *Manager) Expired(err error) {
	m.mu.Lock()
	wasIn := m.user != nil
	m.user = nil
	m.mustChangePassword = false
	m.mu.Unlock()
	if wasIn {
		metrics.ForcedLogouts.Inc()
		m.log.Warnw("session expired; logged out", "error", err)
	}
	m.notify()
}
