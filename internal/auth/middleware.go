package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ctxUserID = "auth.user_id"
	ctxRole   = "auth.role"

	// SessionCookie carries the session token for browser clients
	SessionCookie = "access_token"
)

type Verifier interface {
	Verify(token string) (uuid.UUID, error)
}

type Resolver interface {
	Role(ctx context.Context, userID uuid.UUID) (models.Role, error)
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if parts := strings.SplitN(h, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		return cookie
	}
	return ""
}

// Authenticate attaches the session user and role to the context when a
// valid token is presented. It never rejects; RequireSession and
// RequireRole decide what an anonymous request may do.
func Authenticate(v Verifier, r Resolver) gin.HandlerFunc {
	logger := util.GetLogger()
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Next()
			return
		}

		userID, err := v.Verify(token)
		if err != nil {
			logger.Debug("Rejected session token", zap.Error(err))
			c.Next()
			return
		}
		c.Set(ctxUserID, userID)

		role, err := r.Role(c.Request.Context(), userID)
		switch {
		case err == nil:
			c.Set(ctxRole, role)
		case errors.Is(err, ErrNoProfile):
		default:
			logger.Error("Failed to resolve role", zap.String("user_id", userID.String()), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Unable to resolve session"})
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user, if any
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// RoleOf returns the role of the authenticated user, empty when there is no profile
func RoleOf(c *gin.Context) models.Role {
	v, ok := c.Get(ctxRole)
	if !ok {
		return ""
	}
	role, _ := v.(models.Role)
	return role
}

// RequireSession rejects requests without a valid session token
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := UserID(c); !ok {
			deny(c, Decision{RedirectTo: LoginPath, Reason: ReasonNoSession})
			return
		}
		c.Next()
	}
}

// RequireRole enforces the access rules of an area
func RequireRole(area string) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, hasSession := UserID(c)
		d := Decide(area, hasSession, RoleOf(c))
		if !d.Allow {
			deny(c, d)
			return
		}
		c.Next()
	}
}

func wantsHTML(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "text/html")
}

func deny(c *gin.Context, d Decision) {
	if wantsHTML(c) {
		c.Redirect(http.StatusFound, d.RedirectTo)
		c.Abort()
		return
	}

	status := http.StatusForbidden
	msg := "Access denied"
	switch d.Reason {
	case ReasonNoSession:
		status = http.StatusUnauthorized
		msg = "Authentication required"
	case ReasonNoProfile:
		msg = "Profile not found"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "redirect_to": d.RedirectTo})
}
