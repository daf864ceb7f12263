package apikeys

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mangable/mangable/pkg/mangable/auth"
	"github.com/mangable/mangable/pkg/mangable/models"
	"gorm.io/gorm"
)

// Handler handles API key requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new API keys handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// APIKeyResponse represents an API key in listings. It never carries
// secret material; the full key has no field here at all.
type APIKeyResponse struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	KeyPrefix  string     `json:"key_prefix"`
	IsActive   bool       `json:"is_active"`
	RevokedAt  *time.Time `json:"revoked_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at"`
}

// CreateAPIKeyRequest represents a request to create an API key
type CreateAPIKeyRequest struct {
	Name      string     `json:"name" binding:"required,max=100"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// CreateAPIKeyResponse includes the full key (only shown once)
type CreateAPIKeyResponse struct {
	APIKeyResponse
	FullKey string `json:"full_key"`
}

func keyToResponse(key models.APIKey) APIKeyResponse {
	return APIKeyResponse{
		ID:         key.ID,
		Name:       key.Name,
		KeyPrefix:  key.KeyPrefix,
		IsActive:   key.Active(),
		RevokedAt:  key.RevokedAt,
		LastUsedAt: key.LastUsedAt,
		CreatedAt:  key.CreatedAt,
		ExpiresAt:  key.ExpiresAt,
	}
}

// Create creates a new API key for the authenticated user
// @Summary Create an API key
// @Description Create a new API key. The full key is returned exactly once.
// @Tags api-keys
// @Accept json
// @Produce json
// @Param request body CreateAPIKeyRequest true "Key details"
// @Success 201 {object} CreateAPIKeyResponse
// @Failure 400 {object} map[string]string "Validation error or quota exceeded"
// @Security BearerAuth
// @Router /api-keys [post]
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fullKey, err := generateKey()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate API key"})
		return
	}

	apiKey := models.APIKey{
		UserID:    userID,
		Name:      req.Name,
		KeyHash:   hashKey(fullKey),
		KeyPrefix: fullKey[:KeyPrefixLength],
		ExpiresAt: req.ExpiresAt,
	}

	// The quota check and the insert run in one transaction so two
	// concurrent creations can't both slip under the limit
	err = h.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.APIKey{}).
			Where("user_id = ? AND revoked_at IS NULL AND (expires_at IS NULL OR expires_at > ?)", userID, time.Now()).
			Count(&count).Error; err != nil {
			return err
		}
		if count >= MaxActiveKeys {
			return ErrQuotaExceeded
		}
		return tx.Create(&apiKey).Error
	})
	if errors.Is(err, ErrQuotaExceeded) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Maximum 10 active API keys per user"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create API key"})
		return
	}

	// Return the full key - this is the only time it's visible
	c.JSON(http.StatusCreated, CreateAPIKeyResponse{
		APIKeyResponse: keyToResponse(apiKey),
		FullKey:        fullKey,
	})
}

// List returns all API keys for the authenticated user
// @Summary List API keys
// @Description List the caller's API keys, newest first, including revoked and expired ones
// @Tags api-keys
// @Produce json
// @Success 200 {array} APIKeyResponse
// @Security BearerAuth
// @Router /api-keys [get]
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var apiKeys []models.APIKey
	if err := h.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&apiKeys).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch API keys"})
		return
	}

	responses := make([]APIKeyResponse, len(apiKeys))
	for i, key := range apiKeys {
		responses[i] = keyToResponse(key)
	}

	c.JSON(http.StatusOK, responses)
}

// Revoke marks an API key as revoked. Keys are never deleted.
// @Summary Revoke an API key
// @Description Revoke one of the caller's API keys
// @Tags api-keys
// @Produce json
// @Param id path string true "API key ID"
// @Success 200 {object} map[string]string "API key revoked"
// @Failure 404 {object} map[string]string "API key not found"
// @Security BearerAuth
// @Router /api-keys/{id} [delete]
func (h *Handler) Revoke(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	keyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid API key ID"})
		return
	}

	// A key owned by another user answers the same 404 as a missing key
	var apiKey models.APIKey
	if err := h.db.Where("id = ? AND user_id = ?", keyID, userID).First(&apiKey).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "API key not found"})
		return
	}

	if apiKey.RevokedAt == nil {
		now := time.Now()
		if err := h.db.Model(&apiKey).Update("revoked_at", now).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revoke API key"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "API key revoked"})
}

// RegisterRoutes registers API key routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/api-keys", h.Create)
	rg.GET("/api-keys", h.List)
	rg.DELETE("/api-keys/:id", h.Revoke)
}
