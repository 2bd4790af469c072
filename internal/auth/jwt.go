package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// TokenTTL is the lifetime of an admin session token.
const TokenTTL = 8 * time.Hour

// ErrInvalidToken is returned for expired, malformed, or mis-signed tokens.
var ErrInvalidToken = errors.New("invalid token")

// GenerateAdminToken creates a signed session token for an admin subscriber.
func GenerateAdminToken(subscriberID string, secret []byte) (token string, expiresAt int64, err error) {
	expiresAt = time.Now().Add(TokenTTL).Unix()
	claims := jwt.MapClaims{
		"sub":  subscriberID,
		"role": "admin",
		"exp":  expiresAt,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateAdminToken verifies a session token and returns the subscriber id.
func ValidateAdminToken(tokenString string, secret []byte) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if sub == "" || role != "admin" {
		return "", ErrInvalidToken
	}
	return sub, nil
}
