package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/matchday/models"
	"github.com/golang-jwt/jwt/v4"
)

// Имена JWT claims
const (
	ClaimUserID = "user_id"
	ClaimRole   = "role"
)

var ErrInvalidToken = errors.New("invalid token")

// GenerateToken signs an HS256 token for actor that expires after ttl.
func GenerateToken(secret []byte, actor models.Actor, ttl time.Duration, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		ClaimUserID: actor.UserID,
		ClaimRole:   string(actor.Role),
		"iat":       now.Unix(),
		"exp":       now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies tokenString and extracts the actor it was issued for.
func ParseToken(secret []byte, tokenString string) (models.Actor, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return models.Actor{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return models.Actor{}, ErrInvalidToken
	}

	userID, err := userIDFromClaims(claims)
	if err != nil {
		return models.Actor{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	roleStr, ok := claims[ClaimRole].(string)
	if !ok {
		return models.Actor{}, fmt.Errorf("%w: missing '%s' claim", ErrInvalidToken, ClaimRole)
	}
	role := models.UserRole(roleStr)
	if !role.Valid() {
		return models.Actor{}, fmt.Errorf("%w: invalid role value in claim: %q", ErrInvalidToken, roleStr)
	}

	return models.Actor{UserID: userID, Role: role}, nil
}

func userIDFromClaims(claims jwt.MapClaims) (int, error) {
	raw, ok := claims[ClaimUserID]
	if !ok {
		return 0, fmt.Errorf("missing '%s' claim", ClaimUserID)
	}
	// JSON numbers decode as float64
	f, ok := raw.(float64)
	if !ok {
		return 0, fmt.Errorf("invalid type for '%s' claim: %T", ClaimUserID, raw)
	}
	if f != float64(int(f)) || f <= 0 {
		return 0, fmt.Errorf("invalid user ID value in '%s' claim: %v", ClaimUserID, f)
	}
	return int(f), nil
}
