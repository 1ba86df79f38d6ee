package jwt

import (
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const AccessTokenValidity = 24 * time.Hour

// GenerateToken mints an access token carrying the user id. Token
// issuance normally happens in the auth service; this exists for the
// Authorize middleware's tests and local tooling.
func GenerateToken(secret string, userID uuid.UUID) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID.String(),
		"exp":     time.Now().Add(AccessTokenValidity).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateToken verifies the signature and expiry and returns the
// authenticated user id.
func ValidateToken(tokenString, secret string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "invalid access token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return uuid.Nil, errors.New("invalid access token claims")
	}
	rawID, ok := claims["user_id"].(string)
	if !ok {
		return uuid.Nil, errors.New("token is missing user_id")
	}
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "malformed user_id claim")
	}
	return userID, nil
}
