package token

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// DevelopmentIssuer is the iss claim of tokens minted by [MintDevelopment].
const DevelopmentIssuer = "goSession-development"

// DevelopmentClaims is the payload of the development token. It carries no
// time-based claims so the minted string is identical for identical input.
type DevelopmentClaims struct {
	Email string   `json:"email,omitempty"`
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// MintDevelopment signs claims with HS256 under key and checks the result
// with [Validate]. HS256 is deterministic, so the same key and claims always
// yield the same token string.
func MintDevelopment(key []byte, claims DevelopmentClaims) (Token, error) {
	if len(key) == 0 {
		return "", errors.New("development signing key required")
	}
	if claims.Issuer == "" {
		claims.Issuer = DevelopmentIssuer
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign development token: %w", err)
	}

	return Validate(signed)
}
