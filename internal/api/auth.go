package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/roach88/tokenswap/internal/account"
)

const callerKey = "caller"

// Claims identify the caller. Subject is the caller's principal text.
type Claims struct {
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for p valid for ttl (0 means no expiry).
func IssueToken(secret []byte, p account.Principal, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:  p.String(),
		IssuedAt: jwt.NewNumericDate(now),
	}}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken verifies an HS256 token and returns its principal.
func ParseToken(secret []byte, token string) (account.Principal, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return account.Principal{}, err
	}
	if !parsed.Valid {
		return account.Principal{}, errors.New("token is not valid")
	}
	p, err := account.ParsePrincipal(claims.Subject)
	if err != nil {
		return account.Principal{}, fmt.Errorf("subject: %w", err)
	}
	return p, nil
}

// Identify resolves the caller from a bearer token. Requests without an
// Authorization header are the anonymous caller; a present but invalid
// token is rejected.
func Identify(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Set(callerKey, account.Anonymous)
			c.Next()
			return
		}

		token, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			abortWithMessage(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid authorization header format")
			return
		}

		p, err := ParseToken(secret, token)
		if err != nil {
			abortWithMessage(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
			return
		}

		c.Set(callerKey, p)
		c.Next()
	}
}

// CallerFrom returns the caller resolved by Identify.
func CallerFrom(c *gin.Context) account.Principal {
	if v, ok := c.Get(callerKey); ok {
		if p, ok := v.(account.Principal); ok {
			return p
		}
	}
	return account.Anonymous
}
