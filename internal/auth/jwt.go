// Package auth - jwt.go issues and verifies the HS256 access tokens that carry a
// principal between requests.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "task-manager"

// DefaultTokenTTL is used when GenerateJWT is called with a zero expiry.
const DefaultTokenTTL = 24 * time.Hour

var (
	jwtSecret     string
	jwtSecretOnce sync.Once
	jwtSecretErr  error
)

// Claims is the token payload. The subject claim holds the user id.
type Claims struct {
	Email          string `json:"email"`
	OrganizationID string `json:"organizationId"`
	Role           string `json:"role"`
	jwt.RegisteredClaims
}

// Principal converts verified claims into a Principal, rejecting payloads that
// lack a subject, email or organization. An unrecognised role is kept as-is and
// ranks below viewer, so it holds no privileges.
func (c *Claims) Principal() (*Principal, error) {
	role, known := ParseRole(c.Role)
	p := &Principal{
		SubjectID:      c.Subject,
		Email:          c.Email,
		OrganizationID: c.OrganizationID,
		Role:           role,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if !known {
		slog.Warn("token carries unknown role", "sub", p.SubjectID, "role", c.Role)
	}
	return p, nil
}

func isDevMode() bool {
	devMode := os.Getenv("TM_DEV_MODE")
	return devMode == "true" || devMode == "1" || os.Getenv("GIN_MODE") == "debug"
}

func generateRandomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("dev-fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// ValidateJWTSecret loads TM_JWT_SECRET once. Outside dev mode a missing secret is
// fatal; in dev mode a random secret is generated and tokens do not survive restarts.
// Call it at startup.
func ValidateJWTSecret() error {
	jwtSecretOnce.Do(func() {
		secret := os.Getenv("TM_JWT_SECRET")
		if secret == "" {
			if isDevMode() {
				jwtSecret = generateRandomSecret()
				slog.Warn("TM_JWT_SECRET not set, using a generated secret for development")
				return
			}
			jwtSecretErr = errors.New("TM_JWT_SECRET environment variable is required; generate one with: openssl rand -hex 32")
			return
		}
		if len(secret) < 32 {
			slog.Warn("TM_JWT_SECRET is shorter than 32 characters")
		}
		jwtSecret = secret
	})
	return jwtSecretErr
}

// GetJWTSecret returns the validated secret. It panics when no secret can be loaded.
func GetJWTSecret() string {
	if jwtSecret == "" {
		if err := ValidateJWTSecret(); err != nil {
			panic(err)
		}
	}
	return jwtSecret
}

// GenerateJWT signs an access token for p.
func GenerateJWT(p *Principal, expiresIn time.Duration) (string, error) {
	if expiresIn == 0 {
		expiresIn = DefaultTokenTTL
	}

	now := time.Now()
	claims := &Claims{
		Email:          p.Email,
		OrganizationID: p.OrganizationID,
		Role:           string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.SubjectID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(GetJWTSecret()))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateJWT verifies the signature and expiry of tokenString and returns its claims.
func ValidateJWT(tokenString string) (*Claims, error) {
	secret := GetJWTSecret()

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}
	return claims, nil
}
