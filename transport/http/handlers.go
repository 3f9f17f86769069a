package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/nftgate/core"
	"github.com/layer-3/nftgate/ports"
)

// DashboardSections lists the premium sections unlocked by a session
var DashboardSections = []string{"overview", "analytics", "settings"}

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	verifier ports.Verifier
	logger   *slog.Logger
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(verifier ports.Verifier, logger *slog.Logger) *AuthHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandlers{
		verifier: verifier,
		logger:   logger,
	}
}

// LoginRequest is the body of the login endpoint
type LoginRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
}

// DashboardResponse is the premium payload served to authenticated wallets
type DashboardResponse struct {
	core.SessionClaim
	Sections []string `json:"sections"`
}

// Login handles the login request
func (h *AuthHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result, err := h.verifier.Login(c.Request.Context(), core.SignedChallenge{
		Address:        req.Address,
		Signature:      req.Signature,
		IssuedAtMillis: req.Timestamp,
	})
	if err != nil {
		statusCode, errorMsg := loginError(err)
		if statusCode == http.StatusInternalServerError {
			h.logger.ErrorContext(c.Request.Context(), "login failed", slog.String("error", err.Error()))
		}
		c.JSON(statusCode, gin.H{"error": errorMsg})
		return
	}

	c.JSON(http.StatusOK, result)
}

// loginError maps verifier errors to a status code and a message that never
// carries internal details
func loginError(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrMissingCredentials):
		return http.StatusBadRequest, "Address and signature are required"
	case errors.Is(err, core.ErrMissingTimestamp):
		return http.StatusBadRequest, "Timestamp is required"
	case errors.Is(err, core.ErrBadRequest):
		return http.StatusBadRequest, "Malformed address or signature"
	case errors.Is(err, core.ErrInvalidSignature):
		return http.StatusUnauthorized, "Invalid signature"
	case errors.Is(err, core.ErrChallengeExpired):
		return http.StatusUnauthorized, "Challenge expired"
	default:
		return http.StatusInternalServerError, "Authentication failed"
	}
}

// Verify validates the bearer token and returns its claim
func (h *AuthHandlers) Verify(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No token provided"})
		return
	}

	claim, err := h.verifier.Verify(c.Request.Context(), token)
	if err != nil {
		h.logger.DebugContext(c.Request.Context(), "token rejected", slog.String("error", err.Error()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	c.JSON(http.StatusOK, claim)
}

// Dashboard returns the premium content for the authenticated wallet
func (h *AuthHandlers) Dashboard(c *gin.Context) {
	// Claim is set by the auth middleware
	claim, exists := claimFromContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User not found in context"})
		return
	}

	c.JSON(http.StatusOK, DashboardResponse{
		SessionClaim: claim,
		Sections:     DashboardSections,
	})
}

// Health reports liveness
func (h *AuthHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
