package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go-careerdesk/admins"
	"go-careerdesk/entitlement"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const actorKey = "actor"

var ErrTokenInvalid = errors.New("invalid token")

// Claims carries the user uuid in sub plus the email used for admin lookup.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func IssueToken(secret, userID, email string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is not configured")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString([]byte(secret))
}

func ParseToken(secret, tokenString string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.Subject == "" {
		return Claims{}, ErrTokenInvalid
	}
	return claims, nil
}

// bearer reads the Authorization header. Browsers cannot set headers on a
// websocket upgrade, so the token query parameter is accepted there too.
func bearer(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c.IsWebsocket() {
		return c.Query("token")
	}
	return ""
}

// authenticate parses the bearer token and stores the actor. It aborts and
// reports false when the token is missing or invalid; it never runs the rest
// of the chain.
func authenticate(c *gin.Context, secret string) bool {
	raw := bearer(c)
	if raw == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
		return false
	}
	claims, err := ParseToken(secret, raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return false
	}
	c.Set(actorKey, entitlement.Actor{UserID: claims.Subject, Email: claims.Email})
	return true
}

func RequireAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authenticate(c, secret) {
			return
		}
		c.Next()
	}
}

// AdminAuth is RequireAuth plus membership of the admin allowlist. The
// allowlist is checked before any downstream handler runs.
func AdminAuth(secret string, allow *admins.Allowlist) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authenticate(c, secret) {
			return
		}
		if !allow.Contains(ActorFrom(c).Email) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

func ActorFrom(c *gin.Context) entitlement.Actor {
	v, _ := c.Get(actorKey)
	a, _ := v.(entitlement.Actor)
	return a
}
