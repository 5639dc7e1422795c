package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"crypto-tracker/config"
)

// OwnerSubject is the token subject of the single dashboard owner.
const OwnerSubject = "owner"

type AuthInput struct {
	Password string `json:"password" binding:"required"`
}

type AuthHandler struct {
	Config config.AuthConfig
	Logger *zap.Logger
	Now    func() time.Time
}

func (h *AuthHandler) Register(r *gin.Engine) {
	r.POST("/login", h.login)
}

func (h *AuthHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *AuthHandler) login(c *gin.Context) {
	if h.Config.JWTSecret == "" || h.Config.PasswordHash == "" {
		abortWithError(c, http.StatusNotFound, "Login is not configured")
		return
	}

	var input AuthInput
	if err := c.ShouldBindJSON(&input); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(h.Config.PasswordHash), []byte(input.Password)); err != nil {
		h.Logger.Warn("login rejected", zap.String("client_ip", c.ClientIP()))
		abortWithError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	ttl := h.Config.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := h.now()
	expiresAt := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Subject:   OwnerSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.Config.JWTSecret))
	if err != nil {
		h.Logger.Error("sign token", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "Error generating token")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": accessToken,
		"token_type":   "Bearer",
		"expires_at":   expiresAt.UTC(),
	})
}
