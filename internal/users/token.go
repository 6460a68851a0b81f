package users

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const tokenTTL = 24 * time.Hour

// Claims carried by an access token.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// issueToken signs an HS256 access token for the user.
func issueToken(secret []byte, user *User) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
		Role: user.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
