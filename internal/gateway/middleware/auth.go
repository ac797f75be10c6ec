package middleware

import (
	"context"

	"judgegate/internal/gateway/service"
	"judgegate/pkg/utils/contextkey"

	"github.com/gin-gonic/gin"
)

const ginUserIDKey = contextkey.GinUserID

// OptionalAuthMiddleware attaches the caller's identity when a valid bearer token is present.
// Missing or invalid tokens leave the request anonymous.
func OptionalAuthMiddleware(resolver service.IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if resolver == nil {
			c.Next()
			return
		}
		identity, ok := resolver.Resolve(c.Request.Context(), c.GetHeader("Authorization"))
		if ok && !identity.IsAnonymous() {
			setIdentity(c, identity)
		}
		c.Next()
	}
}

func setIdentity(c *gin.Context, identity service.Identity) {
	c.Set(contextkey.GinUserID, identity.ID)
	c.Set(contextkey.GinIdentity, identity)
	if identity.Email != "" {
		c.Set(contextkey.GinUserEmail, identity.Email)
	}
	ctx := context.WithValue(c.Request.Context(), contextkey.UserID, identity.ID)
	if identity.Email != "" {
		ctx = context.WithValue(ctx, contextkey.UserEmail, identity.Email)
	}
	c.Request = c.Request.WithContext(ctx)
}

// UserID returns the authenticated user id, or "" for anonymous requests.
func UserID(c *gin.Context) string {
	return c.GetString(contextkey.GinUserID)
}

// peekUserID resolves the caller before OptionalAuthMiddleware has run.
func peekUserID(c *gin.Context, resolver service.IdentityResolver) string {
	if id := UserID(c); id != "" {
		return id
	}
	if resolver == nil {
		return ""
	}
	identity, ok := resolver.Resolve(c.Request.Context(), c.GetHeader("Authorization"))
	if !ok {
		return ""
	}
	return identity.ID
}
