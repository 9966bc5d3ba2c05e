package handlers

import (
	"errors"
	"net/http"

	"github.com/fedtaxi/hojaruta/internal/models"
	"github.com/fedtaxi/hojaruta/internal/users"
	"github.com/fedtaxi/hojaruta/pkg/logger"
	"github.com/gin-gonic/gin"
)

// MeHandler serves the authenticated user's own profile.
type MeHandler struct {
	usersSvc *users.Service
}

func NewMeHandler(u *users.Service) *MeHandler {
	return &MeHandler{usersSvc: u}
}

// Register mounts /me on a group already guarded by AuthMiddleware.
func (h *MeHandler) Register(rg gin.IRoutes) {
	rg.GET("/me", h.Me)
	rg.POST("/me/change-password", h.ChangePassword)
}

func (h *MeHandler) Me(c *gin.Context) {
	u, err := h.usersSvc.GetByID(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		logger.Errorf("me: %v", err)
		abort(c, http.StatusInternalServerError, "", "user lookup failed")
		return
	}
	if u == nil {
		// token outlived its account
		abort(c, http.StatusUnauthorized, "unknown_user", "user no longer exists")
		return
	}
	c.JSON(http.StatusOK, u)
}

// ChangePassword answers 400 only when the current password does not match.
func (h *MeHandler) ChangePassword(c *gin.Context) {
	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusUnprocessableEntity, "invalid_request", err.Error())
		return
	}
	err := h.usersSvc.ChangePassword(c.Request.Context(), c.GetString("user_id"), req.CurrentPassword, req.NewPassword)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "password changed"})
	case errors.Is(err, users.ErrWrongPassword):
		abort(c, http.StatusBadRequest, "current_password_incorrect", "current password incorrect")
	case errors.Is(err, users.ErrWeakPassword):
		abort(c, http.StatusUnprocessableEntity, "weak_password", err.Error())
	case errors.Is(err, users.ErrNotFound):
		abort(c, http.StatusUnauthorized, "unknown_user", "user no longer exists")
	default:
		logger.Errorf("change password: %v", err)
		abort(c, http.StatusInternalServerError, "", "password change failed")
	}
}
