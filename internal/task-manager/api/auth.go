package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/golang-jwt/jwt/v5"
)

const userIDKey = "user_id"

// AuthMiddleware accepts HS256 bearer tokens signed with secret and stores
// the subject claim as the caller's user id.
func AuthMiddleware(secret string) app.HandlerFunc {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(ctx context.Context, c *app.RequestContext) {
		if len(key) == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.H{"error": "authentication is not configured"})
			return
		}
		raw, ok := bearerToken(string(c.GetHeader("Authorization")))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.H{"error": "missing bearer token"})
			return
		}
		token, err := parser.Parse(raw, func(*jwt.Token) (interface{}, error) { return key, nil })
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.H{"error": "invalid token"})
			return
		}
		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.H{"error": "token has no subject"})
			return
		}
		c.Set(userIDKey, sub)
		c.Next(ctx)
	}
}

// UserID returns the authenticated caller.
func UserID(c *app.RequestContext) string {
	return c.GetString(userIDKey)
}

// NewToken signs an HS256 token for userID.
func NewToken(secret, userID string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is empty")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}
