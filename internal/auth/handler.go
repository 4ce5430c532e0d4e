package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/space-queue-system/pkg/jwt"
	"github.com/space-queue-system/pkg/models"
	"github.com/space-queue-system/pkg/redis"
)

const sessionTTL = 24 * time.Hour

// UserStore is the slice of the database the auth handlers touch. Absent
// users are reported with gorm.ErrRecordNotFound.
type UserStore interface {
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	CreateUser(user *models.User) error
}

type Handler struct {
	db       UserStore
	sessions *redis.SessionStore
}

func NewHandler(db UserStore, sessions *redis.SessionStore) *Handler {
	return &Handler{
		db:       db,
		sessions: sessions,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		// Public routes
		auth.POST("/session", h.createSession)

		// Protected routes (require authentication)
		protected := auth.Group("", AuthMiddleware(h.sessions))
		protected.GET("/me", h.me)
		protected.POST("/logout", h.logout)
	}
}

type CreateSessionRequest struct {
	Email       string `json:"email" binding:"required,email"`
	DisplayName string `json:"display_name" binding:"required"`
}

// createSession issues an identity for a participant. Session issuance
// proper is an external concern; this endpoint is the thin stand-in that
// mints the JWT the rest of the API trusts.
func (h *Handler) createSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.db.GetUserByEmail(req.Email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		// Transient lookup failures must not fall through to CreateUser.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up user"})
		return
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = &models.User{
			ID:          uuid.New(),
			DisplayName: req.DisplayName,
			Email:       req.Email,
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		}
		if err := h.db.CreateUser(user); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
			return
		}
	}

	session := &redis.SessionInfo{
		UserID:      user.ID.String(),
		DisplayName: user.DisplayName,
		ExpiresAt:   time.Now().Add(sessionTTL).UTC(),
	}
	if err := h.sessions.StoreSession(c.Request.Context(), user.ID.String(), session); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store session"})
		return
	}

	token, err := jwt.GenerateToken(user.ID.String())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})

	c.JSON(http.StatusCreated, gin.H{
		"token": token,
		"user":  user,
	})
}

func (h *Handler) me(c *gin.Context) {
	userID := c.GetString("user_id")
	user, err := h.db.GetUserByID(userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *Handler) logout(c *gin.Context) {
	userID := c.GetString("user_id")
	if err := h.sessions.DeleteSession(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete session"})
		return
	}
	c.Status(http.StatusNoContent)
}
