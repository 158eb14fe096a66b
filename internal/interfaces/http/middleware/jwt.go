package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/schoolerp/backend/internal/infrastructure/auth"
	"github.com/schoolerp/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// JWT context keys
const (
	JWTClaimsKey   = "jwt_claims"
	JWTUserIDKey   = "jwt_user_id"
	JWTSchoolIDKey = "jwt_school_id"
	JWTUsernameKey = "jwt_username"
	JWTRoleKey     = "jwt_role"
	AuthHeaderKey  = "Authorization"
	BearerPrefix   = "Bearer "
)

// JWTMiddlewareConfig holds configuration for JWT middleware
type JWTMiddlewareConfig struct {
	// JWTService is required for token validation
	JWTService *auth.JWTService
	// SkipPaths are paths that don't require authentication
	SkipPaths []string
	// SkipPathPrefixes are path prefixes that don't require authentication
	SkipPathPrefixes []string
	// Logger for middleware logging
	Logger *zap.Logger
}

// DefaultJWTConfig returns default JWT middleware configuration.
// The gateway webhook is excluded because the gateway authenticates with
// its HMAC signature, not a bearer token.
func DefaultJWTConfig(jwtService *auth.JWTService) JWTMiddlewareConfig {
	return JWTMiddlewareConfig{
		JWTService: jwtService,
		SkipPaths: []string{
			"/health",
			"/healthz",
			"/api/v1/health",
			"/api/v1/payments/webhook",
		},
		Logger: nil,
	}
}

// JWTAuthMiddleware creates JWT authentication middleware
func JWTAuthMiddleware(jwtService *auth.JWTService) gin.HandlerFunc {
	return JWTAuthMiddlewareWithConfig(DefaultJWTConfig(jwtService))
}

// JWTAuthMiddlewareWithConfig creates JWT authentication middleware with custom config
func JWTAuthMiddlewareWithConfig(cfg JWTMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		for _, skipPath := range cfg.SkipPaths {
			if path == skipPath {
				c.Next()
				return
			}
		}
		for _, prefix := range cfg.SkipPathPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		authHeader := c.GetHeader(AuthHeaderKey)
		if authHeader == "" {
			handleAuthError(c, cfg, auth.ErrInvalidToken, "Missing authorization header")
			return
		}
		if !strings.HasPrefix(authHeader, BearerPrefix) {
			handleAuthError(c, cfg, auth.ErrInvalidToken, "Invalid authorization header format")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, BearerPrefix)
		if tokenString == "" {
			handleAuthError(c, cfg, auth.ErrInvalidToken, "Missing token")
			return
		}

		claims, err := cfg.JWTService.ValidateAccessToken(tokenString)
		if err != nil {
			handleAuthError(c, cfg, err, "Token validation failed")
			return
		}

		c.Set(JWTClaimsKey, claims)
		c.Set(JWTUserIDKey, claims.UserID)
		c.Set(JWTSchoolIDKey, claims.SchoolID)
		c.Set(JWTUsernameKey, claims.Username)
		c.Set(JWTRoleKey, claims.Role)

		// Propagate the school into the request context for the logger
		ctx := c.Request.Context()
		log := logger.FromContext(ctx)
		ctx, _ = logger.WithSchoolID(ctx, log, claims.SchoolID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// handleAuthError handles authentication errors
func handleAuthError(c *gin.Context, cfg JWTMiddlewareConfig, err error, message string) {
	if cfg.Logger != nil {
		cfg.Logger.Warn("JWT authentication failed",
			zap.Error(err),
			zap.String("message", message),
			zap.String("path", c.Request.URL.Path),
		)
	}

	errorCode := "UNAUTHORIZED"
	errorMessage := "Authentication required"

	switch err {
	case auth.ErrExpiredToken:
		errorCode = "TOKEN_EXPIRED"
		errorMessage = "Token has expired"
	case auth.ErrInvalidToken:
		errorCode = "INVALID_TOKEN"
		errorMessage = "Invalid token"
	case auth.ErrTokenNotYetValid:
		errorCode = "TOKEN_NOT_VALID"
		errorMessage = "Token is not yet valid"
	}

	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    errorCode,
			"message": errorMessage,
		},
	})
}

// GetJWTClaims retrieves JWT claims from gin.Context
func GetJWTClaims(c *gin.Context) *auth.Claims {
	if claims, exists := c.Get(JWTClaimsKey); exists {
		if jwtClaims, ok := claims.(*auth.Claims); ok {
			return jwtClaims
		}
	}
	return nil
}

// GetJWTUserID retrieves the user ID from JWT claims in context
func GetJWTUserID(c *gin.Context) string {
	if userID, exists := c.Get(JWTUserIDKey); exists {
		if id, ok := userID.(string); ok {
			return id
		}
	}
	return ""
}

// GetJWTSchoolID retrieves the school ID from JWT claims in context
func GetJWTSchoolID(c *gin.Context) string {
	if schoolID, exists := c.Get(JWTSchoolIDKey); exists {
		if id, ok := schoolID.(string); ok {
			return id
		}
	}
	return ""
}

// GetJWTRole retrieves the role from JWT claims in context
func GetJWTRole(c *gin.Context) string {
	if role, exists := c.Get(JWTRoleKey); exists {
		if r, ok := role.(string); ok {
			return r
		}
	}
	return ""
}
