package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginBody = `{"identifier":"ana@fed.es","password":"secret-pw"}`

func TestLogin_MobileReturnsRefreshInBody(t *testing.T) {
	e := newTestEnv(t)
	id := e.approvedDriver(t, "ana@fed.es", "secret-pw")

	w := e.do(call{method: http.MethodPost, path: "/auth/login", body: loginBody})
	require.Equal(t, http.StatusOK, w.Code)
	g := decodeGrant(t, w)
	assert.NotEmpty(t, g.AccessToken)
	assert.NotEmpty(t, g.RefreshToken)
	require.NotNil(t, g.User)
	assert.Equal(t, id, g.User.ID)
	assert.Nil(t, refreshCookie(w))
	assert.NotContains(t, w.Body.String(), "passwordHash")
}

func TestLogin_WebSetsHttpOnlyCookie(t *testing.T) {
	e := newTestEnv(t)
	e.approvedDriver(t, "ana@fed.es", "secret-pw")

	w := e.do(call{method: http.MethodPost, path: "/auth/login", body: loginBody, web: true})
	require.Equal(t, http.StatusOK, w.Code)
	g := decodeGrant(t, w)
	assert.NotEmpty(t, g.AccessToken)
	assert.Empty(t, g.RefreshToken)

	ck := refreshCookie(w)
	require.NotNil(t, ck)
	assert.True(t, ck.HttpOnly)
	assert.Equal(t, "/auth", ck.Path)
	assert.Equal(t, http.SameSiteStrictMode, ck.SameSite)
	assert.NotEmpty(t, ck.Value)
}

func TestLogin_Failures(t *testing.T) {
	e := newTestEnv(t)
	e.approvedDriver(t, "ana@fed.es", "secret-pw")

	w := e.do(call{method: http.MethodPost, path: "/auth/login", body: `{"identifier":"ana@fed.es","password":"nope-nope"}`})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_credentials")

	w = e.do(call{method: http.MethodPost, path: "/auth/register", body: `{"identifier":"luis@fed.es","name":"Luis","password":"secret-pw"}`})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"pending"`)

	w = e.do(call{method: http.MethodPost, path: "/auth/login", body: `{"identifier":"luis@fed.es","password":"secret-pw"}`})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "pending_approval")

	w = e.do(call{method: http.MethodPost, path: "/auth/register", body: `{"identifier":"luis@fed.es","name":"Luis","password":"secret-pw"}`})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestMobileRefresh_RotatesAndRejectsReuse(t *testing.T) {
	e := newTestEnv(t)
	e.approvedDriver(t, "ana@fed.es", "secret-pw")
	first := decodeGrant(t, e.do(call{method: http.MethodPost, path: "/auth/login", body: loginBody}))

	w := e.do(call{method: http.MethodPost, path: "/auth/mobile/refresh", body: `{"refresh_token":"` + first.RefreshToken + `"}`})
	require.Equal(t, http.StatusOK, w.Code)
	second := decodeGrant(t, w)
	assert.NotEmpty(t, second.AccessToken)
	assert.NotEmpty(t, second.RefreshToken)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	require.NotNil(t, second.User)

	w = e.do(call{method: http.MethodPost, path: "/auth/mobile/refresh", body: `{"refresh_token":"` + first.RefreshToken + `"}`})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(call{method: http.MethodPost, path: "/auth/mobile/refresh", body: `{}`})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCookieRefresh(t *testing.T) {
	e := newTestEnv(t)
	e.approvedDriver(t, "ana@fed.es", "secret-pw")
	lw := e.do(call{method: http.MethodPost, path: "/auth/login", body: loginBody, web: true})
	ck := refreshCookie(lw)
	require.NotNil(t, ck)

	w := e.do(call{method: http.MethodPost, path: "/auth/refresh", web: true, cookies: []*http.Cookie{ck}})
	require.Equal(t, http.StatusOK, w.Code)
	g := decodeGrant(t, w)
	assert.NotEmpty(t, g.AccessToken)
	assert.Empty(t, g.RefreshToken)
	next := refreshCookie(w)
	require.NotNil(t, next)
	assert.NotEqual(t, ck.Value, next.Value)

	w = e.do(call{method: http.MethodPost, path: "/auth/refresh", web: true})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogout_RevokesAccessAndRefresh(t *testing.T) {
	e := newTestEnv(t)
	e.approvedDriver(t, "ana@fed.es", "secret-pw")
	g := decodeGrant(t, e.do(call{method: http.MethodPost, path: "/auth/login", body: loginBody}))

	w := e.do(call{method: http.MethodGet, path: "/me", bearer: g.AccessToken})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(call{method: http.MethodPost, path: "/auth/logout", bearer: g.AccessToken, body: `{"refresh_token":"` + g.RefreshToken + `"}`})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(call{method: http.MethodGet, path: "/me", bearer: g.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(call{method: http.MethodPost, path: "/auth/mobile/refresh", body: `{"refresh_token":"` + g.RefreshToken + `"}`})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// logging out twice, or with nothing, still succeeds
	w = e.do(call{method: http.MethodPost, path: "/auth/logout"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestForgotPasswordAlwaysAccepted(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(call{method: http.MethodPost, path: "/auth/forgot-password", body: `{"identifier":"ghost@fed.es"}`})
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestLogin_CORSHeaders(t *testing.T) {
	e := newTestEnv(t)
	req := call{method: http.MethodOptions, path: "/auth/login"}
	w := e.do(req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), ClientTypeHeader)
}
