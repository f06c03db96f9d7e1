package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/orionai/orion/internal/auth"
	"github.com/orionai/orion/internal/common"
	"github.com/orionai/orion/internal/httpapi/middleware"
	"github.com/orionai/orion/internal/models"
)

const tokenTTL = 24 * time.Hour

type credentialsReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// normalizeUsername applies the same canon as the login form: trimmed
// and lowercased.
func normalizeUsername(u string) string {
	return strings.ToLower(strings.TrimSpace(u))
}

func usernameFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(middleware.UsernameKey)
	if !ok {
		return "", false
	}
	name, ok := v.(string)
	return name, ok
}

// Register creates an account and logs it in immediately.
func (h *Handler) Register(c *gin.Context) {
	var req credentialsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, common.CodeInvalidJSON, "invalid json")
		return
	}

	username := normalizeUsername(req.Username)
	password := strings.TrimSpace(req.Password)
	if username == "" || password == "" {
		common.Fail(c, http.StatusBadRequest, common.CodeMissingField, "username and password cannot be empty")
		return
	}

	var existing models.User
	err := h.DB.Where("username = ?", username).First(&existing).Error
	if err == nil {
		common.Fail(c, http.StatusConflict, common.CodeUsernameTaken, "username already exists")
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		common.Fail(c, http.StatusInternalServerError, common.CodeStorageUnavailable, "storage unavailable")
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, common.CodeStorageUnavailable, "failed to hash password")
		return
	}

	user := models.User{Username: username, PasswordHash: hash}
	if err := h.DB.Create(&user).Error; err != nil {
		// unique index race: two registrations for the same name
		common.Fail(c, http.StatusConflict, common.CodeUsernameTaken, "username already exists")
		return
	}

	token, err := auth.SignJWT(user.ID, user.Username, h.Cfg.JWTSecret, tokenTTL)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, common.CodeStorageUnavailable, "failed to sign token")
		return
	}

	common.OK(c, gin.H{
		"username": user.Username,
		"token":    token,
	})
}

func (h *Handler) Login(c *gin.Context) {
	var req credentialsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, common.CodeInvalidJSON, "invalid json")
		return
	}

	username := normalizeUsername(req.Username)
	password := strings.TrimSpace(req.Password)
	if username == "" || password == "" {
		common.Fail(c, http.StatusBadRequest, common.CodeMissingField, "username and password cannot be empty")
		return
	}

	var user models.User
	if err := h.DB.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusUnauthorized, common.CodeInvalidCredentials, "invalid username or password")
			return
		}
		common.Fail(c, http.StatusInternalServerError, common.CodeStorageUnavailable, "storage unavailable")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		common.Fail(c, http.StatusUnauthorized, common.CodeInvalidCredentials, "invalid username or password")
		return
	}

	token, err := auth.SignJWT(user.ID, user.Username, h.Cfg.JWTSecret, tokenTTL)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, common.CodeStorageUnavailable, "failed to sign token")
		return
	}

	common.OK(c, gin.H{
		"username": user.Username,
		"token":    token,
	})
}

// Logout revokes the presented token and clears the active-session
// marker.
func (h *Handler) Logout(c *gin.Context) {
	username, ok := usernameFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, common.CodeUnauthorized, "unauthorized")
		return
	}

	if v, exists := c.Get(middleware.TokenKey); exists {
		if token, ok := v.(string); ok {
			if claims, err := auth.ParseJWT(token, h.Cfg.JWTSecret); err == nil && claims.ExpiresAt != nil {
				_ = h.Redis.RevokeToken(c.Request.Context(), token, time.Until(claims.ExpiresAt.Time))
			}
		}
	}
	_ = h.Redis.ClearActiveSession(c.Request.Context(), username)

	common.OK(c, gin.H{"logged_out": true})
}

func (h *Handler) Me(c *gin.Context) {
	username, ok := usernameFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, common.CodeUnauthorized, "unauthorized")
		return
	}

	var user models.User
	if err := h.DB.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, common.CodeNotFound, "user not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, common.CodeStorageUnavailable, "storage unavailable")
		return
	}

	common.OK(c, gin.H{
		"username":   user.Username,
		"created_at": user.CreatedAt,
	})
}
