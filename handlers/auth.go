package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fedtaxi/hojaruta/internal/config"
	"github.com/fedtaxi/hojaruta/internal/models"
	"github.com/fedtaxi/hojaruta/internal/sessions"
	"github.com/fedtaxi/hojaruta/internal/tokens"
	"github.com/fedtaxi/hojaruta/internal/users"
	"github.com/fedtaxi/hojaruta/pkg/logger"
	"github.com/fedtaxi/hojaruta/pkg/middleware"
	"github.com/gin-gonic/gin"
)

// ClientTypeHeader lets browsers announce themselves; web clients get the refresh
// token only as an httpOnly cookie.
const ClientTypeHeader = "X-Client-Type"

// AuthHandler holds dependencies
type AuthHandler struct {
	cfg         *config.Config
	usersSvc    *users.Service
	sessionsSvc *sessions.Service
	issuer      *tokens.Issuer
	blacklist   *sessions.Blacklist
}

func NewAuthHandler(cfg *config.Config, u *users.Service, s *sessions.Service, issuer *tokens.Issuer, bl *sessions.Blacklist) *AuthHandler {
	return &AuthHandler{cfg: cfg, usersSvc: u, sessionsSvc: s, issuer: issuer, blacklist: bl}
}

// Register routes under /auth
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	a := rg.Group("/auth")
	a.POST("/login", h.Login)
	a.POST("/register", h.Signup)
	a.POST("/refresh", h.Refresh)
	a.POST("/mobile/refresh", h.MobileRefresh)
	a.POST("/logout", h.Logout)
	a.POST("/forgot-password", h.ForgotPassword)
}

func isWeb(c *gin.Context) bool {
	return strings.EqualFold(c.GetHeader(ClientTypeHeader), config.VariantWeb)
}

func clientType(c *gin.Context) string {
	if isWeb(c) {
		return config.VariantWeb
	}
	return config.VariantMobile
}

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, models.ErrorBody{Error: msg, Code: code})
}

// grant mints an access token for u and packages it with refresh.
func (h *AuthHandler) grant(c *gin.Context, u *models.User, refresh string, web bool) (*models.Grant, bool) {
	access, err := h.issuer.GenerateAccessToken(u)
	if err != nil {
		logger.Errorf("failed to create access token: %v", err)
		abort(c, http.StatusInternalServerError, "", "failed to create access token")
		return nil, false
	}
	g := &models.Grant{
		AccessToken:        access,
		MustChangePassword: u.MustChangePassword,
		ExpiresIn:          int(h.issuer.TTL().Seconds()),
		User:               u,
	}
	if web {
		h.setRefreshCookie(c, refresh)
	} else {
		g.RefreshToken = refresh
	}
	return g, true
}

func (h *AuthHandler) cookie(value string, maxAge int) *http.Cookie {
	ck := &http.Cookie{
		Name:     h.cfg.Cookie.Name,
		Value:    value,
		Path:     h.cfg.Cookie.Path,
		Domain:   h.cfg.Cookie.Domain,
		MaxAge:   maxAge,
		Secure:   h.cfg.Cookie.Secure,
		HttpOnly: true,
	}
	switch strings.ToLower(h.cfg.Cookie.SameSite) {
	case "lax":
		ck.SameSite = http.SameSiteLaxMode
	case "none":
		ck.SameSite = http.SameSiteNoneMode
	default:
		ck.SameSite = http.SameSiteStrictMode
	}
	return ck
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, refresh string) {
	http.SetCookie(c.Writer, h.cookie(refresh, int(h.sessionsSvc.TTL().Seconds())))
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	http.SetCookie(c.Writer, h.cookie("", -1))
}

// Login verifies identifier/password and opens a refresh session.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorBody{Error: "invalid request", Details: err.Error()})
		return
	}
	u, err := h.usersSvc.Authenticate(c.Request.Context(), req.Identifier, req.Password)
	switch {
	case errors.Is(err, users.ErrInvalidCredentials):
		abort(c, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	case errors.Is(err, users.ErrPendingApproval):
		abort(c, http.StatusForbidden, "pending_approval", "account pending approval")
		return
	case err != nil:
		logger.Errorf("authenticate: %v", err)
		abort(c, http.StatusInternalServerError, "", "login failed")
		return
	}

	rft, err := h.sessionsSvc.CreateSession(c.Request.Context(), u.ID, clientType(c))
	if err != nil {
		logger.Errorf("failed to create session: %v", err)
		abort(c, http.StatusInternalServerError, "", "failed to create session")
		return
	}
	g, ok := h.grant(c, u, rft, isWeb(c))
	if !ok {
		return
	}
	logger.Infof("login user=%s client=%s", u.ID, clientType(c))
	c.JSON(http.StatusOK, g)
}

// Signup creates a pending account; an admin must approve it before login.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorBody{Error: "invalid request", Details: err.Error()})
		return
	}
	u, err := h.usersSvc.Register(c.Request.Context(), req)
	switch {
	case errors.Is(err, users.ErrDuplicate):
		abort(c, http.StatusConflict, "identifier_taken", "identifier already registered")
		return
	case errors.Is(err, users.ErrWeakPassword):
		abort(c, http.StatusUnprocessableEntity, "weak_password", err.Error())
		return
	case err != nil:
		logger.Errorf("register: %v", err)
		abort(c, http.StatusInternalServerError, "", "registration failed")
		return
	}
	c.JSON(http.StatusCreated, models.RegisterResult{
		Status:  "pending",
		Message: "registration received; an administrator must approve the account",
		UserID:  u.ID,
	})
}

// rotate consumes refresh and answers with a fresh grant, or 401 when refresh is unusable.
func (h *AuthHandler) rotate(c *gin.Context, refresh string, web bool) {
	sess, next, err := h.sessionsSvc.Rotate(c.Request.Context(), refresh)
	if err != nil {
		logger.Errorf("rotate refresh: %v", err)
		abort(c, http.StatusInternalServerError, "", "refresh failed")
		return
	}
	if sess == nil {
		if web {
			h.clearRefreshCookie(c)
		}
		abort(c, http.StatusUnauthorized, "invalid_refresh", "invalid refresh token")
		return
	}
	u, err := h.usersSvc.GetByID(c.Request.Context(), sess.UserID)
	if err != nil || u == nil {
		logger.Warnf("refresh for missing user %s: %v", sess.UserID, err)
		_ = h.sessionsSvc.DeleteRefresh(c.Request.Context(), next)
		abort(c, http.StatusUnauthorized, "invalid_refresh", "invalid refresh token")
		return
	}
	g, ok := h.grant(c, u, next, web)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, g)
}

// Refresh reads the refresh token from the httpOnly cookie (web clients).
func (h *AuthHandler) Refresh(c *gin.Context) {
	refresh, err := c.Cookie(h.cfg.Cookie.Name)
	if err != nil || refresh == "" {
		abort(c, http.StatusUnauthorized, "invalid_refresh", "missing refresh cookie")
		return
	}
	h.rotate(c, refresh, true)
}

// MobileRefresh reads the refresh token from the JSON body.
func (h *AuthHandler) MobileRefresh(c *gin.Context) {
	var req models.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		abort(c, http.StatusUnauthorized, "invalid_refresh", "missing refresh token")
		return
	}
	h.rotate(c, req.RefreshToken, false)
}

// Logout invalidates the refresh session and blacklists the presented access token.
// It always answers 200 so clients can tear down unconditionally.
func (h *AuthHandler) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	if at, ok := middleware.BearerToken(c); ok {
		if _, err := h.issuer.Verify(at); err == nil {
			if exp, err := tokens.ExpiresAt(at); err == nil {
				if err := h.blacklist.Add(ctx, at, time.Until(exp)); err != nil {
					logger.Errorf("failed to blacklist access token: %v", err)
				}
			}
		}
	}

	var refresh string
	if ck, err := c.Cookie(h.cfg.Cookie.Name); err == nil {
		refresh = ck
	}
	var req models.RefreshRequest
	if c.Request.ContentLength != 0 && c.ShouldBindJSON(&req) == nil && req.RefreshToken != "" {
		refresh = req.RefreshToken
	}
	if refresh != "" {
		if err := h.sessionsSvc.DeleteRefresh(ctx, refresh); err != nil {
			logger.Errorf("failed to remove session: %v", err)
		}
	}
	h.clearRefreshCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// ForgotPassword always answers 202 so account existence is not disclosed.
// Password resets are handled by an administrator out of band.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Identifier string `json:"identifier"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.Identifier != "" {
		logger.Infof("password reset requested (identifier length=%d)", len(req.Identifier))
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "if the account exists an administrator will contact you"})
}
