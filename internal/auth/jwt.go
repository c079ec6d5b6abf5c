package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTManager handles JWT token operations
type JWTManager struct {
	secret              []byte
	accessTokenDuration time.Duration
}

// Claims represents the JWT claims
type Claims struct {
	UserClaims
	jwt.RegisteredClaims
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(secret string, accessDuration time.Duration) *JWTManager {
	return &JWTManager{
		secret:              []byte(secret),
		accessTokenDuration: accessDuration,
	}
}

// AccessTokenDuration returns the configured token lifetime.
func (m *JWTManager) AccessTokenDuration() time.Duration {
	return m.accessTokenDuration
}

// GenerateAccessToken generates a new access token
func (m *JWTManager) GenerateAccessToken(claims UserClaims) (string, error) {
	now := time.Now()
	expiresAt := now.Add(m.accessTokenDuration)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserClaims: claims,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "rental-ledger",
			Audience:  []string{"rental-ledger-api"},
		},
	})

	signedToken, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signedToken, nil
}

// ValidateAccessToken validates an access token and returns the claims
func (m *JWTManager) ValidateAccessToken(tokenString string) (*UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return &claims.UserClaims, nil
}
