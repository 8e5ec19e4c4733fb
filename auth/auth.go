// Package auth validates bearer tokens and resolves the caller identity.
package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"

	"roadmap-planner/domain"
)

const (
	defaultJWKSCacheTTL = 15 * time.Minute
	envLocalAuthMode    = "LOCAL_AUTH_MODE"
	envLocalAuthSecret  = "LOCAL_AUTH_SHARED_SECRET"
	envJWKSCacheTTL     = "JWKS_CACHE_TTL"

	// EmailClaim carries the caller email used to match invitations.
	EmailClaim = "email"
)

// Auth validates incoming JWT tokens.
type Auth struct {
	JWKS        *keyfunc.JWKS
	Audience    string
	Issuer      string
	LocalMode   bool
	LocalSecret []byte

	parser      *jwt.Parser
	keyCache    sync.Map
	keyCacheTTL time.Duration
}

type cachedKey struct {
	key       any
	expiresAt time.Time
}

// LocalModeEnabled reports whether tokens are verified with a shared secret
// instead of a JWKS endpoint.
func LocalModeEnabled() bool {
	return os.Getenv(envLocalAuthMode) != ""
}

// NewAuth creates an Auth. When LOCAL_AUTH_MODE=hs256 is set tokens are
// verified with LOCAL_AUTH_SHARED_SECRET and jwks may be nil.
func NewAuth(jwks *keyfunc.JWKS, audience, issuer string) (*Auth, error) {
	a := &Auth{JWKS: jwks, Audience: audience, Issuer: issuer}
	ttl, err := parseCacheTTL()
	if err != nil {
		return nil, err
	}
	a.keyCacheTTL = ttl

	if mode := strings.ToLower(os.Getenv(envLocalAuthMode)); mode != "" {
		if mode != "hs256" {
			return nil, fmt.Errorf("unsupported %s value %q", envLocalAuthMode, mode)
		}
		secret := os.Getenv(envLocalAuthSecret)
		if secret == "" {
			return nil, fmt.Errorf("%s must be set when %s=hs256", envLocalAuthSecret, envLocalAuthMode)
		}
		a.LocalMode = true
		a.LocalSecret = []byte(secret)
	}

	if a.LocalMode {
		a.parser = jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
	} else {
		a.parser = jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}))
	}
	return a, nil
}

// NewLocal creates an Auth verifying HS256 tokens signed with secret.
func NewLocal(secret []byte) *Auth {
	return &Auth{
		LocalMode:   true,
		LocalSecret: secret,
		parser:      jwt.NewParser(jwt.WithValidMethods([]string{"HS256"})),
	}
}

func parseCacheTTL() (time.Duration, error) {
	ttl := defaultJWKSCacheTTL
	if raw := os.Getenv(envJWKSCacheTTL); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			return 0, fmt.Errorf("invalid %s", envJWKSCacheTTL)
		}
		ttl = parsed
	}
	return ttl, nil
}

// IdentityFromAuthHeader resolves the caller from an Authorization header.
func (a *Auth) IdentityFromAuthHeader(h string) (domain.Identity, error) {
	if h == "" {
		return domain.Identity{}, ErrMissingAuthorization
	}
	token, err := bearerTokenFromString(h)
	if err != nil {
		return domain.Identity{}, err
	}
	return a.IdentityFromBearer(token)
}

// IdentityFromBearer resolves the caller from a raw bearer token.
func (a *Auth) IdentityFromBearer(token []byte) (domain.Identity, error) {
	if len(token) == 0 {
		return domain.Identity{}, ErrBadAuthorization
	}

	tokenStr := readOnlyString(token)
	var parsedToken *jwt.Token
	var err error
	if a.LocalMode {
		parsedToken, err = a.parser.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("invalid signing method")
			}
			return a.LocalSecret, nil
		})
	} else {
		parsedToken, err = a.parser.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			return a.keyForToken(t)
		})
	}
	if err != nil {
		return domain.Identity{}, err
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Identity{}, errors.New("invalid claims")
	}

	now := time.Now().Add(time.Minute).Unix()
	if !claims.VerifyExpiresAt(now, true) {
		return domain.Identity{}, errors.New("token expired")
	}
	if !claims.VerifyNotBefore(now, false) {
		return domain.Identity{}, errors.New("token not valid yet")
	}
	if !claims.VerifyIssuedAt(now, false) {
		return domain.Identity{}, errors.New("token used before issued")
	}
	if a.Audience != "" && !claims.VerifyAudience(a.Audience, false) {
		return domain.Identity{}, errors.New("invalid audience")
	}
	if a.Issuer != "" && !claims.VerifyIssuer(a.Issuer, false) {
		return domain.Identity{}, errors.New("invalid issuer")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return domain.Identity{}, errors.New("missing sub")
	}
	email, _ := claims[EmailClaim].(string)

	return domain.Identity{UserID: sub, Email: strings.ToLower(email)}, nil
}

func (a *Auth) keyForToken(token *jwt.Token) (any, error) {
	if a.JWKS == nil {
		return nil, errors.New("jwks not configured")
	}

	kid, _ := token.Header["kid"].(string)
	if kid != "" && a.keyCacheTTL > 0 {
		if cached, ok := a.keyCache.Load(kid); ok {
			entry := cached.(cachedKey)
			if time.Now().Before(entry.expiresAt) {
				return entry.key, nil
			}
			a.keyCache.Delete(kid)
		}
	}

	key, err := a.JWKS.Keyfunc(token)
	if err != nil {
		return nil, err
	}

	if kid != "" && a.keyCacheTTL > 0 {
		a.keyCache.Store(kid, cachedKey{key: key, expiresAt: time.Now().Add(a.keyCacheTTL)})
	}
	return key, nil
}
