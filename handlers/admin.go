package handlers

import (
	"errors"
	"net/http"

	"github.com/fedtaxi/hojaruta/internal/users"
	"github.com/fedtaxi/hojaruta/pkg/logger"
	"github.com/gin-gonic/gin"
)

// AdminHandler approves pending registrations.
type AdminHandler struct {
	usersSvc *users.Service
}

func NewAdminHandler(u *users.Service) *AdminHandler {
	return &AdminHandler{usersSvc: u}
}

// Register mounts /admin routes; rg must already require the admin role.
func (h *AdminHandler) Register(rg gin.IRoutes) {
	rg.POST("/admin/users/:id/approve", h.Approve)
}

func (h *AdminHandler) Approve(c *gin.Context) {
	u, err := h.usersSvc.Approve(c.Request.Context(), c.Param("id"))
	if errors.Is(err, users.ErrNotFound) {
		abort(c, http.StatusNotFound, "not_found", "user not found")
		return
	}
	if err != nil {
		logger.Errorf("approve %s: %v", c.Param("id"), err)
		abort(c, http.StatusInternalServerError, "", "approval failed")
		return
	}
	logger.Infof("user %s approved by %s", u.ID, c.GetString("user_id"))
	c.JSON(http.StatusOK, u)
}
