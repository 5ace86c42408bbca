package auth

import (
	"errors"
	"testing"
	"time"
)

var testSecret = []byte("test-secret-key-for-jwt-signing-000")

func TestJWT_RoundTrip(t *testing.T) {
	j := NewJWT(testSecret, time.Hour)

	token, expires, err := j.Issue(42)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if time.Until(expires) <= 0 {
		t.Errorf("expires = %v, want in the future", expires)
	}

	got, err := j.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got != 42 {
		t.Errorf("Verify() = %d, want 42", got)
	}
}

func TestJWT_Expired(t *testing.T) {
	j := NewJWT(testSecret, time.Minute)
	j.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, _, err := j.Issue(7)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	j.now = time.Now
	if _, err := j.Verify(token); !errors.Is(err, ErrExpiredCredential) {
		t.Errorf("Verify() error = %v, want ErrExpiredCredential", err)
	}
}

func TestJWT_Rejects(t *testing.T) {
	j := NewJWT(testSecret, time.Hour)

	other, _, err := NewJWT([]byte("a-completely-different-secret-value"), time.Hour).Issue(1)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrMissingCredential},
		{"garbage", "not-a-jwt", ErrInvalidCredential},
		{"malformed", "header.payload.signature", ErrInvalidCredential},
		{"wrong secret", other, ErrInvalidCredential},
		// alg "none" with subject 1
		{"unsigned", "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0.eyJzdWIiOiIxIiwiZXhwIjo0MTAyNDQ0ODAwfQ.", ErrInvalidCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := j.Verify(tt.token); !errors.Is(err, tt.want) {
				t.Errorf("Verify() error = %v, want %v", err, tt.want)
			}
		})
	}
}
