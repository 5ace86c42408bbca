// Package auth resolves bearer credentials to user ids and manages
// accounts: registration, login, and password hashing.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingCredential is returned when a request carries no bearer token.
	ErrMissingCredential = errors.New("missing credential")

	// ErrExpiredCredential is returned for a well-formed token past its expiry.
	ErrExpiredCredential = errors.New("credential expired")

	// ErrInvalidCredential covers malformed tokens and bad signatures.
	ErrInvalidCredential = errors.New("invalid credential")
)

// Verifier resolves a credential to the id of the user it was issued to.
type Verifier interface {
	Verify(credential string) (int64, error)
}

// JWT issues and verifies HS256 tokens whose subject is the user id.
type JWT struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

var _ Verifier = (*JWT)(nil)

// NewJWT creates a JWT issuer. Tokens expire ttl after issue.
func NewJWT(secret []byte, ttl time.Duration) *JWT {
	return &JWT{secret: secret, ttl: ttl, now: time.Now}
}

// Issue signs a token for userID and returns it with its expiry.
func (j *JWT) Issue(userID int64) (string, time.Time, error) {
	now := j.now()
	expires := now.Add(j.ttl)

	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expires, nil
}

// Verify checks the signature and expiry of credential and returns its
// subject as a user id.
func (j *JWT) Verify(credential string) (int64, error) {
	if credential == "" {
		return 0, ErrMissingCredential
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(credential, &claims, func(*jwt.Token) (any, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrExpiredCredential
		}
		return 0, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("%w: bad subject", ErrInvalidCredential)
	}
	return userID, nil
}
