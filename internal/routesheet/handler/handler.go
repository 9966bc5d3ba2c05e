package handler

import (
	"errors"
	"net/http"

	"github.com/fedtaxi/hojaruta/internal/models"
	"github.com/fedtaxi/hojaruta/internal/routesheet/service"
	"github.com/fedtaxi/hojaruta/pkg/logger"
	"github.com/gin-gonic/gin"
)

// RegisterRouteSheetRoutes mounts the route-sheet endpoints on an authenticated group.
// The group's middleware must set "user_id".
func RegisterRouteSheetRoutes(r gin.IRoutes, svc service.Service) {
	r.GET("/route-sheets", func(c *gin.Context) {
		list, err := svc.List(c.Request.Context(), c.GetString("user_id"))
		if err != nil {
			logger.Errorf("list route sheets: %v", err)
			c.JSON(http.StatusInternalServerError, models.ErrorBody{Error: "internal error"})
			return
		}
		c.JSON(http.StatusOK, list)
	})

	r.POST("/route-sheets", func(c *gin.Context) {
		var req models.CreateRouteSheetRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorBody{Error: "invalid request", Details: err.Error()})
			return
		}
		rs, err := svc.Create(c.Request.Context(), c.GetString("user_id"), req)
		if err != nil {
			logger.Errorf("create route sheet: %v", err)
			c.JSON(http.StatusInternalServerError, models.ErrorBody{Error: "internal error"})
			return
		}
		c.JSON(http.StatusCreated, rs)
	})

	r.GET("/route-sheets/:id", func(c *gin.Context) {
		rs, err := svc.Get(c.Request.Context(), c.GetString("user_id"), c.Param("id"))
		if err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusOK, rs)
	})

	r.GET("/route-sheets/:id/pdf", func(c *gin.Context) {
		b, err := svc.PDF(c.Request.Context(), c.GetString("user_id"), c.Param("id"))
		if err != nil {
			writeErr(c, err)
			return
		}
		c.Data(http.StatusOK, "application/pdf", b)
	})
}

func writeErr(c *gin.Context, err error) {
	if errors.Is(err, service.ErrNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorBody{Error: "not found", Code: "not_found"})
		return
	}
	logger.Errorf("route sheet: %v", err)
	c.JSON(http.StatusInternalServerError, models.ErrorBody{Error: "internal error"})
}
