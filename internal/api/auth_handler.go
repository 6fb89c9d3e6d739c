package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/massage-booking-backend/internal/admin"
	"github.com/nekogravitycat/massage-booking-backend/internal/pkg/response"
)

type AuthHandler struct {
	adminService admin.Service
}

func NewAuthHandler(adminService admin.Service) *AuthHandler {
	return &AuthHandler{adminService: adminService}
}

//
// POST /api/admin/login
//

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	token, err := h.adminService.Login(c.Request.Context(), req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken: token.AccessToken,
		ExpiresAt:   token.ExpiresAt,
	})
}
