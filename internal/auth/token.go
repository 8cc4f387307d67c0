// Package auth issues opaque credentials for signed-up wallets.
package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer issues HS256 tokens carrying the wallet address and slug
type TokenIssuer struct {
	secret []byte
}

// NewTokenIssuer creates a new token issuer
func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret)}
}

// IssueToken returns a signed token for the address/slug pair
func (t *TokenIssuer) IssueToken(address, slug string) (string, error) {
	claims := jwt.MapClaims{
		"payload": map[string]string{
			"slug":          slug,
			"publicAddress": address,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken parses a token and returns the wallet address it was issued
// for.
func (t *TokenIssuer) VerifyToken(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("unexpected claims format")
	}
	payload, ok := claims["payload"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("missing payload claim")
	}
	address, ok := payload["publicAddress"].(string)
	if !ok || address == "" {
		return "", fmt.Errorf("missing publicAddress claim")
	}
	return address, nil
}
