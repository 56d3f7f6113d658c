// Package middleware – bearer-token authentication.
//
// AuthJWT validates the Authorization header, resolves the token subject to
// an active user, and installs the caller's access scope on the request
// context. Everything downstream (services, repositories) reads identity
// and roles from that scope alone; handlers never see raw tokens.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-gateway/internal/access"
	"github.com/tbourn/go-chat-gateway/internal/repo"
)

const (
	// subjectKey is the Gin context key holding the authenticated subject.
	subjectKey = "subject"
	// bearerPrefix is the expected Authorization scheme.
	bearerPrefix = "Bearer "
)

// UserResolver loads a user's access scope by token subject.
type UserResolver func(ctx context.Context, subject string) (access.Scope, error)

// DBUserResolver resolves subjects against the users table, rejecting
// unknown and deactivated accounts.
func DBUserResolver(db *gorm.DB) UserResolver {
	return func(ctx context.Context, subject string) (access.Scope, error) {
		u, err := repo.GetUserBySubject(ctx, db, subject)
		if err != nil {
			return access.Scope{}, err
		}
		if !u.IsActive {
			return access.Scope{}, repo.ErrNotFound
		}
		return access.ScopeFor(u), nil
	}
}

// AuthJWT authenticates requests with an HS256 bearer token.
//
// The token's sub claim identifies the user. On success the request context
// carries the caller's access scope and the subject is stored in the Gin
// context for logging. On failure the request is aborted with 401 before
// any handler runs.
func AuthJWT(secret []byte, resolve UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if !strings.HasPrefix(authz, bearerPrefix) {
			abortUnauthorized(c, "missing bearer token")
			return
		}
		raw := strings.TrimSpace(strings.TrimPrefix(authz, bearerPrefix))
		if raw == "" {
			abortUnauthorized(c, "missing bearer token")
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, okAlg := t.Method.(*jwt.SigningMethodHMAC); !okAlg {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			abortUnauthorized(c, "invalid or expired token")
			return
		}
		subject, err := claims.GetSubject()
		if err != nil || subject == "" {
			abortUnauthorized(c, "token has no subject")
			return
		}

		scope, err := resolve(c.Request.Context(), subject)
		if err != nil {
			abortUnauthorized(c, "unknown or inactive user")
			return
		}

		c.Set(subjectKey, subject)
		c.Request = c.Request.WithContext(access.WithScope(c.Request.Context(), scope))
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	rid := c.Writer.Header().Get(requestIDHeader)
	c.Header("WWW-Authenticate", `Bearer realm="api"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": rid,
		"code":       "unauthorized",
		"message":    msg,
	})
}
