// Package integration holds helpers for end-to-end scenarios run against a
// live deployment with LOCAL_AUTH_MODE=hs256.
package integration

import (
	"os"
	"time"

	"roadmap-planner/auth"
)

// TestToken returns a token accepted by services running in local auth mode.
func TestToken(userID, email string) (string, error) {
	secret := os.Getenv("LOCAL_AUTH_SHARED_SECRET")
	if secret == "" {
		secret = "testsecret"
	}
	return auth.MintLocalToken([]byte(secret), userID, email, time.Hour)
}
