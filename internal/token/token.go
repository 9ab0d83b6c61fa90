// Package token mints and verifies the resume tokens handed out in
// session_ready frames.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ResumeClaims holds the JWT claims for a resume token. Subject is the
// session ID; DeviceID ties the token to the device that opened the session.
type ResumeClaims struct {
	DeviceID string `json:"did"`
	jwt.RegisteredClaims
}

// NewResumeToken creates a signed resume token for a session. The issuer is
// embedded in the token and must be verified during validation.
func NewResumeToken(sessionID, deviceID, secret, issuer string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("token secret must not be empty")
	}
	if issuer == "" {
		return "", fmt.Errorf("token issuer must not be empty")
	}

	now := time.Now()
	claims := ResumeClaims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign resume token: %w", err)
	}

	return signed, nil
}

// ValidateResumeToken parses and validates a resume token string, enforcing
// HMAC signing method and issuer claim. The gateway never reads tokens back;
// this is the verification contract holders check minted tokens against.
func ValidateResumeToken(tokenStr, secret, issuer string) (*ResumeClaims, error) {
	if issuer == "" {
		return nil, fmt.Errorf("token issuer must not be empty")
	}

	claims := &ResumeClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}

	return claims, nil
}
