package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// MintLocalToken signs an HS256 token accepted in local auth mode.
func MintLocalToken(secret []byte, userID, email string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("secret must be set")
	}
	if userID == "" {
		return "", errors.New("user id must be set")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if email != "" {
		claims[EmailClaim] = email
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
