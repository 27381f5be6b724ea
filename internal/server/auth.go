package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/RaphaelThineyUE/radiology-insight/internal/common"
)

const ctxUserIDKey = "user_id"
const ctxUsernameKey = "username"

// Claims represents the JWT claims
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// UserIDFor derives the stable identity for a configured username. Users are
// declared in the environment, so the UUID is computed rather than stored.
func UserIDFor(username string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("radiology-insight:user:"+username))
}

// GenerateToken generates a new JWT token for a user
func GenerateToken(username string, cfg *common.AuthConfig) (string, time.Time, error) {
	expiresAt := time.Now().Add(cfg.TokenExpiry)

	claims := Claims{
		UserID:   UserIDFor(username).String(),
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

// CheckPassword compares a supplied password with the configured one in
// constant time.
func CheckPassword(supplied, configured string) bool {
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(configured)) == 1
}

// AuthMiddleware validates JWT token and extracts user info
func AuthMiddleware(cfg *common.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		tokenString := parts[1]

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(cfg.JWTSecret), nil
		})

		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(ctxUserIDKey, userID)
		c.Set(ctxUsernameKey, claims.Username)

		c.Next()
	}
}

// GetUserID gets the authenticated user id from context.
func GetUserID(c *gin.Context) uuid.UUID {
	if v, exists := c.Get(ctxUserIDKey); exists {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}

// GetUsername gets the username from context
func GetUsername(c *gin.Context) string {
	if v, exists := c.Get(ctxUsernameKey); exists {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
