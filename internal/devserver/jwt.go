package devserver

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	accessTTL  = 15 * time.Minute
	refreshTTL = 7 * 24 * time.Hour
)

type tokenClaims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies the HS256 access/refresh pair the
// platform hands to clients.
type TokenIssuer struct {
	secret []byte
}

func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret)}
}

func (t *TokenIssuer) mint(accountID int, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(accountID),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Issue creates a fresh access/refresh pair for an account.
func (t *TokenIssuer) Issue(accountID int) (access, refresh string, err error) {
	if access, err = t.mint(accountID, tokenTypeAccess, accessTTL); err != nil {
		return "", "", err
	}
	if refresh, err = t.mint(accountID, tokenTypeRefresh, refreshTTL); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// Access mints only a new access token, used by the refresh endpoint.
func (t *TokenIssuer) Access(accountID int) (string, error) {
	return t.mint(accountID, tokenTypeAccess, accessTTL)
}

// Verify checks the signature, expiry and token type, returning the
// account id the token was issued for.
func (t *TokenIssuer) Verify(token, wantType string) (int, error) {
	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, err
	}
	if !parsed.Valid {
		return 0, errors.New("invalid token")
	}
	if claims.TokenType != wantType {
		return 0, fmt.Errorf("token is %s, want %s", claims.TokenType, wantType)
	}
	accountID, err := strconv.Atoi(claims.Subject)
	if err != nil {
		return 0, fmt.Errorf("token subject %q: %w", claims.Subject, err)
	}
	return accountID, nil
}
