package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const userIDKey = "userId"

const (
	errMissingAuth = "missing Authorization header"
	errBadAuth     = "invalid Authorization header format"
	errBadToken    = "invalid or expired token"
)

// bearerToken extracts the token of a "Bearer <token>" header. On failure
// it returns the message to show the client.
func bearerToken(header string) (string, string) {
	if header == "" {
		return "", errMissingAuth
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || scheme != "Bearer" || token == "" {
		return "", errBadAuth
	}
	return token, ""
}

// userIdMiddleware rejects requests without a valid operator token and
// stores the operator id for the handlers.
func (h *Handler) userIdMiddleware(c *gin.Context) {
	token, msg := bearerToken(c.GetHeader("Authorization"))
	if msg != "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
		return
	}

	userID, err := h.services.ParseToken(token)
	if err != nil {
		if h.log != nil {
			h.log.Debugw("auth_token_rejected", "path", c.FullPath(), "err", err)
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errBadToken})
		return
	}

	c.Set(userIDKey, userID)
	c.Next()
}

// userIDFrom returns the operator id set by userIdMiddleware.
func userIDFrom(c *gin.Context) (int, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int)
	return id, ok
}
