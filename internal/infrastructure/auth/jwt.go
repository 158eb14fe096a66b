package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/infrastructure/config"
)

// Common errors
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrMissingSchoolID  = errors.New("missing school_id in claims")
	ErrMissingUserID    = errors.New("missing user_id in claims")
)

// Claims represents custom JWT claims. Tokens are issued by the platform's
// identity service; this service only validates them.
type Claims struct {
	jwt.RegisteredClaims
	SchoolID string `json:"school_id"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
}

// JWTService handles JWT token operations
type JWTService struct {
	secret     []byte
	expiration time.Duration
	issuer     string
}

// NewJWTService creates a new JWT service
func NewJWTService(cfg config.JWTConfig) *JWTService {
	return &JWTService{
		secret:     []byte(cfg.Secret),
		expiration: cfg.AccessTokenExpiration,
		issuer:     cfg.Issuer,
	}
}

// GenerateTokenInput contains input for token generation
type GenerateTokenInput struct {
	SchoolID uuid.UUID
	UserID   uuid.UUID
	Username string
	Role     string
}

// GenerateAccessToken generates a signed access token
func (s *JWTService) GenerateAccessToken(input GenerateTokenInput) (string, error) {
	now := time.Now()

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.issuer,
			Subject:   input.UserID.String(),
			Audience:  jwt.ClaimStrings{s.issuer},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiration)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		SchoolID: input.SchoolID.String(),
		UserID:   input.UserID.String(),
		Username: input.Username,
		Role:     input.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateAccessToken validates an access token and returns its claims
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}

	if claims.SchoolID == "" {
		return nil, ErrMissingSchoolID
	}
	if claims.UserID == "" {
		return nil, ErrMissingUserID
	}

	return claims, nil
}

// GetSchoolUUID extracts and parses the school ID from claims
func (c *Claims) GetSchoolUUID() (uuid.UUID, error) {
	return uuid.Parse(c.SchoolID)
}

// GetUserUUID extracts and parses the user ID from claims
func (c *Claims) GetUserUUID() (uuid.UUID, error) {
	return uuid.Parse(c.UserID)
}
