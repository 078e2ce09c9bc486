package server

import (
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/podium/backend/internal/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// authorizeRequest validates the session cookie, bearer token or access_token query
// parameter and stores the claims on the context.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if errors.Is(err, auth.ErrMissingSessionToken) {
		if token := c.Query("access_token"); token != "" {
			claims, err = h.sessions.ValidateToken(token)
		}
	}
	if err != nil {
		if errors.Is(err, auth.ErrExpiredSessionToken) || errors.Is(err, auth.ErrMissingSessionToken) {
			h.logger.Info("session validation failed", zap.Error(err))
		} else {
			h.logger.Warn("session validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(sessionClaimsContextKey, claims)
	c.Next()
}

func (h *httpHandler) requireOperator(c *gin.Context) {
	if !sessionClaims(c).HasRole(auth.RoleOperator) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.Next()
}

func (h *httpHandler) limitSync(c *gin.Context) {
	key := sessionClaims(c).Subject
	if !h.syncLimiter.Allow(key) {
		h.logger.Info("sync rate limited", zap.String("subject", key))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
		return
	}
	c.Next()
}

// authorizeSubject allows the user themselves or an operator.
func (h *httpHandler) authorizeSubject(c *gin.Context, userID string) bool {
	claims := sessionClaims(c)
	if claims.UserID == userID || claims.HasRole(auth.RoleOperator) {
		return true
	}
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	return false
}

func sessionClaims(c *gin.Context) auth.SessionClaims {
	value, ok := c.Get(sessionClaimsContextKey)
	if !ok {
		return auth.SessionClaims{}
	}
	claims, _ := value.(auth.SessionClaims)
	return claims
}
