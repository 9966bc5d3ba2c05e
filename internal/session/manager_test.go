package session

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"

	"github.com/fedtaxi/hojaruta/internal/apierr"
	"github.com/fedtaxi/hojaruta/internal/credtransport"
	"github.com/fedtaxi/hojaruta/internal/models"
	"github.com/fedtaxi/hojaruta/internal/refresh"
	"github.com/fedtaxi/hojaruta/internal/tokenstore"
	"github.com/fedtaxi/hojaruta/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu          sync.Mutex
	grant       *models.Grant
	loginErr    error
	me          *models.User
	meErr       error
	logoutErr   error
	logoutCalls int
	changeErr   error
}

func (f *fakeAPI) Login(ctx context.Context, identifier, password string) (*models.Grant, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	g := *f.grant
	return &g, nil
}

func (f *fakeAPI) Register(ctx context.Context, in models.RegisterRequest) (*models.RegisterResult, error) {
	return &models.RegisterResult{Status: "pending"}, nil
}

func (f *fakeAPI) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
	return f.logoutErr
}

func (f *fakeAPI) Me(ctx context.Context) (*models.User, error) {
	if f.meErr != nil {
		return nil, f.meErr
	}
	u := *f.me
	return &u, nil
}

func (f *fakeAPI) ChangePassword(ctx context.Context, current, next string) error {
	return f.changeErr
}

type refresherFunc func(context.Context) (*models.Grant, error)

func (r refresherFunc) Refresh(ctx context.Context) (*models.Grant, error) { return r(ctx) }

var unauthorized = &apierr.Error{Kind: apierr.KindUnauthorized, Status: http.StatusUnauthorized, Message: "invalid credentials"}

func driver() *models.User {
	return &models.User{ID: "usr_0001", Identifier: "ana@fed.mx", Name: "Ana", Role: models.RoleDriver, Approved: true}
}

func newMobile(t *testing.T, api *fakeAPI, r refresh.Refresher) (*Manager, *credtransport.Body, *refresh.Coordinator) {
	t.Helper()
	tr := credtransport.NewBody(tokenstore.NewPersistent(tokenstore.NewMemoryBackend(), nil))
	if r == nil {
		r = refresherFunc(func(context.Context) (*models.Grant, error) { return nil, unauthorized })
	}
	coord := refresh.New(r, tr.Store(), refresh.Options{})
	m := NewManager(api, tr, coord, nil)
	t.Cleanup(m.Close)
	return m, tr, coord
}

func TestInitialStateIsLoading(t *testing.T) {
	m, _, _ := newMobile(t, &fakeAPI{}, nil)
	st := m.State()
	assert.True(t, st.Loading)
	assert.False(t, st.Authenticated)
	assert.Nil(t, st.User)
}

func TestLoginSetsUserAndTokenTogether(t *testing.T) {
	api := &fakeAPI{grant: &models.Grant{AccessToken: "A1", RefreshToken: "R1", MustChangePassword: true, User: driver()}}
	m, tr, _ := newMobile(t, api, nil)

	var seen []State
	unsubscribe := m.Subscribe(func(st State) { seen = append(seen, st) })
	defer unsubscribe()

	stop := make(chan struct{})
	var torn bool
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			st := m.State()
			if st.User != nil && !st.Authenticated {
				torn = true
			}
		}
	}()

	u, err := m.Login(context.Background(), "ana@fed.mx", "secret")
	close(stop)
	wg.Wait()
	require.NoError(t, err)
	assert.Equal(t, "usr_0001", u.ID)
	assert.False(t, torn)

	require.Len(t, seen, 1)
	assert.True(t, seen[0].Authenticated)
	assert.True(t, seen[0].MustChangePassword)
	assert.False(t, seen[0].Loading)
	assert.Equal(t, "R1", tr.Store().RefreshToken(context.Background()))
}

func TestLoginErrorIsReturnedVerbatim(t *testing.T) {
	api := &fakeAPI{loginErr: unauthorized}
	m, tr, _ := newMobile(t, api, nil)
	_, err := m.Login(context.Background(), "ana@fed.mx", "wrong")
	assert.Same(t, unauthorized, err)
	assert.False(t, m.State().Authenticated)
	assert.Empty(t, tr.Store().AccessToken(context.Background()))
}

func TestLoginResumesSuspendedCoordinator(t *testing.T) {
	api := &fakeAPI{grant: &models.Grant{AccessToken: "A1", User: driver()}}
	m, _, coord := newMobile(t, api, nil)
	coord.Suspend()
	_, err := m.Login(context.Background(), "ana@fed.mx", "secret")
	require.NoError(t, err)
	assert.False(t, coord.Suspended())
}

func TestLogoutIsIdempotent(t *testing.T) {
	api := &fakeAPI{grant: &models.Grant{AccessToken: "A1", RefreshToken: "R1", User: driver()}}
	m, tr, coord := newMobile(t, api, nil)
	ctx := context.Background()

	require.NoError(t, m.Logout(ctx))
	assert.Zero(t, api.logoutCalls)

	_, err := m.Login(ctx, "ana@fed.mx", "secret")
	require.NoError(t, err)
	require.NoError(t, m.Logout(ctx))
	assert.Equal(t, 1, api.logoutCalls)
	assert.False(t, m.State().Authenticated)
	assert.Empty(t, tr.Store().RefreshToken(ctx))
	assert.True(t, coord.Suspended())

	require.NoError(t, m.Logout(ctx))
	assert.Equal(t, 1, api.logoutCalls)
}

func TestLogoutSwallowsServerFailure(t *testing.T) {
	api := &fakeAPI{grant: &models.Grant{AccessToken: "A1", RefreshToken: "R1", User: driver()}, logoutErr: errors.New("connection reset")}
	m, tr, _ := newMobile(t, api, nil)
	ctx := context.Background()
	_, err := m.Login(ctx, "ana@fed.mx", "secret")
	require.NoError(t, err)

	require.NoError(t, m.Logout(ctx))
	assert.Nil(t, m.State().User)
	assert.Empty(t, tr.Store().AccessToken(ctx))
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	backendErr := &apierr.Error{Kind: apierr.KindOther, Status: http.StatusBadRequest, Code: "current_password_incorrect"}
	api := &fakeAPI{grant: &models.Grant{AccessToken: "A1", MustChangePassword: true, User: driver()}, changeErr: backendErr}
	m, _, _ := newMobile(t, api, nil)
	ctx := context.Background()
	_, err := m.Login(ctx, "ana@fed.mx", "secret")
	require.NoError(t, err)

	err = m.ChangePassword(ctx, "wrong", "new-password-1")
	assert.ErrorIs(t, err, ErrCurrentPasswordIncorrect)
	assert.Equal(t, http.StatusBadRequest, apierr.StatusOf(err))
	assert.True(t, m.State().MustChangePassword)

	api.changeErr = nil
	require.NoError(t, m.ChangePassword(ctx, "secret", "new-password-1"))
	assert.False(t, m.State().MustChangePassword)
}

func TestChangePasswordOtherErrorsAreNotWrongPassword(t *testing.T) {
	api := &fakeAPI{changeErr: &apierr.Error{Kind: apierr.KindOther, Status: http.StatusUnprocessableEntity}}
	m, _, _ := newMobile(t, api, nil)
	err := m.ChangePassword(context.Background(), "a", "b")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCurrentPasswordIncorrect)
}

func TestExpiredRefreshForcesLogout(t *testing.T) {
	api := &fakeAPI{grant: &models.Grant{AccessToken: "A1", RefreshToken: "R1", User: driver()}}
	m, tr, coord := newMobile(t, api, nil)
	ctx := context.Background()
	_, err := m.Login(ctx, "ana@fed.mx", "secret")
	require.NoError(t, err)
	before := testutil.ToFloat64(metrics.ForcedLogouts)

	_, err = coord.Refresh(ctx)
	assert.ErrorIs(t, err, refresh.ErrRefreshFailed)

	st := m.State()
	assert.Nil(t, st.User)
	assert.False(t, st.Authenticated)
	assert.Empty(t, tr.Store().AccessToken(ctx))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ForcedLogouts))
}

func TestRefreshedUpdatesUser(t *testing.T) {
	renamed := driver()
	renamed.Name = "Ana María"
	api := &fakeAPI{grant: &models.Grant{AccessToken: "A1", RefreshToken: "R1", User: driver()}}
	var tr *credtransport.Body
	m, tr, coord := newMobile(t, api, refresherFunc(func(ctx context.Context) (*models.Grant, error) {
		g := &models.Grant{AccessToken: "A2", User: renamed}
		return g, tr.Accept(ctx, g)
	}))
	ctx := context.Background()
	_, err := m.Login(ctx, "ana@fed.mx", "secret")
	require.NoError(t, err)

	_, err = coord.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ana María", m.State().User.Name)
	assert.Equal(t, "A2", tr.Store().AccessToken(ctx))
}

func TestRestoreMobileWithStoredPair(t *testing.T) {
	api := &fakeAPI{me: driver()}
	backend := tokenstore.NewMemoryBackend()
	ctx := context.Background()
	require.NoError(t, backend.Set(ctx, tokenstore.AccessTokenKey, "A1"))
	require.NoError(t, backend.Set(ctx, tokenstore.RefreshTokenKey, "R1"))
	tr := credtransport.NewBody(tokenstore.NewPersistent(backend, nil))
	coord := refresh.New(refresherFunc(func(context.Context) (*models.Grant, error) { return nil, unauthorized }), tr.Store(), refresh.Options{})
	m := NewManager(api, tr, coord, nil)
	defer m.Close()

	require.NoError(t, m.Restore(ctx))
	st := m.State()
	assert.False(t, st.Loading)
	assert.True(t, st.Authenticated)
	assert.Equal(t, "usr_0001", st.User.ID)
}

func TestRestoreMobileRejectedSessionEndsLoggedOut(t *testing.T) {
	api := &fakeAPI{meErr: unauthorized}
	backend := tokenstore.NewMemoryBackend()
	ctx := context.Background()
	require.NoError(t, backend.Set(ctx, tokenstore.AccessTokenKey, "A1"))
	require.NoError(t, backend.Set(ctx, tokenstore.RefreshTokenKey, "R1"))
	tr := credtransport.NewBody(tokenstore.NewPersistent(backend, nil))
	coord := refresh.New(refresherFunc(func(context.Context) (*models.Grant, error) { return nil, unauthorized }), tr.Store(), refresh.Options{})
	m := NewManager(api, tr, coord, nil)
	defer m.Close()

	require.NoError(t, m.Restore(ctx))
	st := m.State()
	assert.False(t, st.Loading)
	assert.False(t, st.Authenticated)
	v, _ := backend.Get(ctx, tokenstore.RefreshTokenKey)
	assert.Empty(t, v)
}

func TestRestoreMobileOfflineRefreshClearsStoreAndReportsError(t *testing.T) {
	api := &fakeAPI{meErr: errors.New("must not be called")}
	backend := tokenstore.NewMemoryBackend()
	ctx := context.Background()
	require.NoError(t, backend.Set(ctx, tokenstore.RefreshTokenKey, "R1"))
	tr := credtransport.NewBody(tokenstore.NewPersistent(backend, nil))
	offline := apierr.FromTransport(errors.New("connection refused"))
	coord := refresh.New(refresherFunc(func(context.Context) (*models.Grant, error) { return nil, offline }), tr.Store(), refresh.Options{})
	m := NewManager(api, tr, coord, nil)
	defer m.Close()

	err := m.Restore(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, refresh.ErrRefreshFailed)
	assert.NotErrorIs(t, err, refresh.ErrSessionExpired)
	assert.False(t, m.State().Loading)
	assert.False(t, m.State().Authenticated)
	v, _ := backend.Get(ctx, tokenstore.RefreshTokenKey)
	assert.Empty(t, v)
}

func TestRestoreMobileEmptyStorage(t *testing.T) {
	api := &fakeAPI{meErr: errors.New("must not be called")}
	m, _, _ := newMobile(t, api, nil)
	require.NoError(t, m.Restore(context.Background()))
	assert.False(t, m.State().Loading)
	assert.Nil(t, m.State().User)
}

func TestRestoreWebUsesRefresh(t *testing.T) {
	tr, err := credtransport.NewCookie(nil)
	require.NoError(t, err)
	coord := refresh.New(refresherFunc(func(ctx context.Context) (*models.Grant, error) {
		g := &models.Grant{AccessToken: "A9", User: driver()}
		return g, tr.Accept(ctx, g)
	}), tr.Store(), refresh.Options{})
	m := NewManager(&fakeAPI{meErr: errors.New("not needed")}, tr, coord, nil)
	defer m.Close()

	require.NoError(t, m.Restore(context.Background()))
	st := m.State()
	assert.True(t, st.Authenticated)
	assert.Equal(t, "usr_0001", st.User.ID)
}

func TestRestoreWebWithoutCookieEndsLoggedOut(t *testing.T) {
	tr, err := credtransport.NewCookie(nil)
	require.NoError(t, err)
	coord := refresh.New(refresherFunc(func(context.Context) (*models.Grant, error) { return nil, unauthorized }), tr.Store(), refresh.Options{})
	m := NewManager(&fakeAPI{}, tr, coord, nil)
	defer m.Close()

	require.NoError(t, m.Restore(context.Background()))
	st := m.State()
	assert.False(t, st.Loading)
	assert.False(t, st.Authenticated)
}

func TestRestoreOfflineKeepsCookieAndReportsError(t *testing.T) {
	tr, err := credtransport.NewCookie(nil)
	require.NoError(t, err)
	u, _ := url.Parse("http://api.local/auth/refresh")
	tr.Jar().SetCookies(u, []*http.Cookie{{Name: "refresh_token", Value: "R1", Path: "/auth"}})
	down := apierr.FromTransport(errors.New("connection refused"))
	coord := refresh.New(refresherFunc(func(context.Context) (*models.Grant, error) { return nil, down }), tr.Store(), refresh.Options{})
	m := NewManager(&fakeAPI{}, tr, coord, nil)
	defer m.Close()

	err = m.Restore(context.Background())
	require.Error(t, err)
	assert.True(t, apierr.IsTransport(err))
	assert.False(t, m.State().Loading)
	assert.Len(t, tr.Jar().Cookies(u), 1)
}
