package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/resqnet/backend/internal/models"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	jwtSecret          = []byte("change-me-in-production")
	jwtExpirationHours = 24

	refreshSecret          = []byte("change-me-too")
	refreshExpirationHours = 24 * 7
)

type Claims struct {
	UserID    uuid.UUID       `json:"userID"`
	Email     string          `json:"email"`
	Role      models.UserRole `json:"role"`
	TokenType string          `json:"tokenType"`
	jwt.RegisteredClaims
}

func ConfigureJWT(secret string, expirationHours int) {
	if secret != "" {
		jwtSecret = []byte(secret)
	}
	if expirationHours > 0 {
		jwtExpirationHours = expirationHours
	}
}

func ConfigureRefreshJWT(secret string, expirationHours int) {
	if secret != "" {
		refreshSecret = []byte(secret)
	}
	if expirationHours > 0 {
		refreshExpirationHours = expirationHours
	}
}

// RefreshTTL is the lifetime of refresh tokens, used for the cookie max-age.
func RefreshTTL() time.Duration {
	return time.Duration(refreshExpirationHours) * time.Hour
}

func GenerateToken(user *models.User) (string, error) {
	return sign(user, TokenTypeAccess, jwtSecret, jwtExpirationHours)
}

func GenerateRefreshToken(user *models.User) (string, error) {
	return sign(user, TokenTypeRefresh, refreshSecret, refreshExpirationHours)
}

func sign(user *models.User, tokenType string, secret []byte, hours int) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(hours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   user.ID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func ValidateToken(tokenString string) (*Claims, error) {
	return parse(tokenString, TokenTypeAccess, jwtSecret)
}

func ValidateRefreshToken(tokenString string) (*Claims, error) {
	return parse(tokenString, TokenTypeRefresh, refreshSecret)
}

func parse(tokenString, tokenType string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.TokenType != tokenType {
		return nil, fmt.Errorf("expected %s token", tokenType)
	}

	return claims, nil
}
