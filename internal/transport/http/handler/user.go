package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nurdaulet-ab/account-service/internal/domain"
)

type userReader interface {
	GetByID(ctx context.Context, id string) (domain.UserCache, error)
	SetRole(ctx context.Context, id string, role domain.Role) error
	ListPurchases(ctx context.Context, userID string, limit int) ([]*domain.Purchase, error)
}

type UserHandler struct {
	users  userReader
	logger *slog.Logger
}

func NewUserHandler(users userReader, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		logger: logger.With("component", "user_handler"),
	}
}

// GET /me
func (h *UserHandler) Me(c *gin.Context) {
	userID := c.GetString("userID")

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": errUserNotFound})
			return
		}
		h.logger.Error("get user", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.JSON(http.StatusOK, user)
}

// GET /me/purchases?limit=20
func (h *UserHandler) Purchases(c *gin.Context) {
	userID := c.GetString("userID")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	purchases, err := h.users.ListPurchases(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger.Error("list purchases", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	out := make([]gin.H, 0, len(purchases))
	for _, p := range purchases {
		out = append(out, gin.H{
			"id":           p.ID,
			"product_id":   p.ProductID,
			"amount_cents": p.AmountCents,
			"currency":     p.Currency,
			"created_at":   p.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"purchases": out})
}

type setRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=user admin"`
}

// PUT /users/:id/role (admin only)
func (h *UserHandler) SetRole(c *gin.Context) {
	var req setRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	if err := h.users.SetRole(c.Request.Context(), id, domain.Role(req.Role)); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": errUserNotFound})
			return
		}
		h.logger.Error("set role", "user_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.Status(http.StatusNoContent)
}
