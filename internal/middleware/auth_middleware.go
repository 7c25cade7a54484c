package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"teamline/internal/services"
	"teamline/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessClaims is the subset of the token payload this service cares about.
// Token issuance lives in the identity service; we only verify and extract.
type AccessClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// ParseAccessToken verifies the signature and returns the caller's user id.
// Shared by the HTTP auth middleware and the websocket handshake.
func ParseAccessToken(token, secret string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, fmt.Errorf("empty token")
	}

	claims := &AccessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	if !parsed.Valid {
		return uuid.Nil, fmt.Errorf("invalid token")
	}

	sub := claims.UserID
	if sub == "" {
		sub = claims.Subject
	}
	return uuid.Parse(sub)
}

func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := ParseAccessToken(extractBearer(c), secret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
			c.Abort()
			return
		}

		ctx := services.WithUserID(c.Request.Context(), userID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
