package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/nurdaulet-ab/account-service/internal/domain"
)

const jwtTTL = 24 * time.Hour

// The handler depends on narrow interfaces defined at point of use so
// tests can inject fakes.
type userRegistrar interface {
	Register(ctx context.Context, email, name string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.UserCache, error)
}

type codeLifecycle interface {
	Generate(ctx context.Context, userID string) (string, error)
	Validate(ctx context.Context, userID, input string) error
}

type AuthHandler struct {
	users  userRegistrar
	codes  codeLifecycle
	jwtKey []byte
	logger *slog.Logger
}

func NewAuthHandler(users userRegistrar, codes codeLifecycle, jwtKey []byte, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		users:  users,
		codes:  codes,
		jwtKey: jwtKey,
		logger: logger.With("component", "auth_handler"),
	}
}

type registerRequest struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name" binding:"required"`
}

// POST /auth/register
// Creates the account and sends the first verification code.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Email, req.Name)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			c.JSON(http.StatusConflict, gin.H{"error": errDuplicateEmail})
			return
		}
		h.logger.Error("register user", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	if _, err := h.codes.Generate(c.Request.Context(), user.ID); err != nil {
		h.logger.Error("generate code after register", "user_id", user.ID, "error", err)
	}

	c.JSON(http.StatusCreated, gin.H{"id": user.ID, "email": user.Email})
}

type codeRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// POST /auth/code
// Sends a fresh code. Always returns 200 to avoid revealing whether the
// email exists.
func (h *AuthHandler) RequestCode(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), req.Email)
	if err == nil {
		if _, err := h.codes.Generate(c.Request.Context(), user.ID); err != nil {
			h.logger.Error("generate code", "user_id", user.ID, "error", err)
		}
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		h.logger.Error("lookup user for code", "error", err)
	}

	c.Status(http.StatusOK)
}

type verifyRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required,len=4"`
}

// POST /auth/verify
// Validates the code and returns {"token": "<jwt>"} on success.
func (h *AuthHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": errCodeInvalid})
			return
		}
		h.logger.Error("lookup user for verify", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	if err := h.codes.Validate(c.Request.Context(), user.ID, req.Code); err != nil {
		switch {
		case errors.Is(err, domain.ErrCodeExpired):
			c.JSON(http.StatusUnauthorized, gin.H{"error": errCodeExpired})
		case errors.Is(err, domain.ErrCodeInvalid), errors.Is(err, domain.ErrCodeNotFound):
			c.JSON(http.StatusUnauthorized, gin.H{"error": errCodeInvalid})
		default:
			h.logger.Error("validate code", "user_id", user.ID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	signed, err := h.signToken(user)
	if err != nil {
		h.logger.Error("sign jwt", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": signed})
}

func (h *AuthHandler) signToken(user domain.UserCache) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"role":  string(user.Role),
		"iat":   now.Unix(),
		"exp":   now.Add(jwtTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.jwtKey)
}
