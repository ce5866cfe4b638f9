package v1

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// Роли вызывающих
const (
	RoleVictim       = "victim"
	RoleVolunteer    = "volunteer"
	RoleProfessional = "professional"
	RoleAdmin        = "admin"
)

const (
	ctxUserIDKey = "user_id"
	ctxRoleKey   = "user_role"
)

// Claims - полезная нагрузка токена доступа
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// parseToken проверяет подпись HS256 и возвращает идентификатор и роль
func parseToken(secret []byte, raw string) (string, string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", "", err
	}
	if !token.Valid {
		return "", "", errors.New("token is invalid")
	}
	if claims.Subject == "" {
		return "", "", errors.New("token has no subject")
	}
	switch claims.Role {
	case RoleVictim, RoleVolunteer, RoleProfessional, RoleAdmin:
	default:
		return "", "", fmt.Errorf("unknown role %q", claims.Role)
	}
	return claims.Subject, claims.Role, nil
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// JWTAuthMiddleware - аутентификация по токену. allowQuery разрешает ?token=,
// браузерный websocket не умеет передавать заголовки.
func JWTAuthMiddleware(secret string, log *logrus.Logger, allowQuery bool) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" && allowQuery {
			raw = c.Query("token")
		}
		if raw == "" {
			log.Warn("Access token missing from request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "access token required"})
			return
		}

		userID, role, err := parseToken(key, raw)
		if err != nil {
			log.WithError(err).Warn("Invalid access token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid access token"})
			return
		}

		c.Set(ctxUserIDKey, userID)
		c.Set(ctxRoleKey, role)
		c.Next()
	}
}

// RequireRoles пропускает только перечисленные роли
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !slices.Contains(roles, c.GetString(ctxRoleKey)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// APIKeyAuthMiddleware - аутентификация интеграций (диспетчерские системы) по API-ключу
func APIKeyAuthMiddleware(apiKeys []string, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-API-Key")
		if apiKey == "" {
			log.Warn("API key missing from request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "API key required"})
			return
		}

		if !slices.Contains(apiKeys, apiKey) {
			log.Warn("Invalid API key provided")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			return
		}

		c.Next()
	}
}

func callerID(c *gin.Context) string {
	return c.GetString(ctxUserIDKey)
}
