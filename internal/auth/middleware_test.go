package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware(t *testing.T) {
	j := NewJWT(testSecret, time.Hour)
	valid, _, err := j.Issue(9)
	require.NoError(t, err)

	var seen int64
	h := Middleware(j)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   int64
	}{
		{"valid", "Bearer " + valid, http.StatusNoContent, 9},
		{"lowercase scheme", "bearer " + valid, http.StatusNoContent, 9},
		{"missing", "", http.StatusUnauthorized, 0},
		{"basic scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, 0},
		{"tampered", "Bearer " + valid + "x", http.StatusUnauthorized, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = 0
			req := httptest.NewRequest(http.MethodGet, "/records", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantUser, seen)

			if tt.wantStatus == http.StatusUnauthorized {
				var body struct {
					Error struct {
						Code string `json:"code"`
					} `json:"error"`
				}
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.Equal(t, "UNAUTHORIZED", body.Error.Code)
			}
		})
	}
}

func TestUserIDMissing(t *testing.T) {
	_, ok := UserID(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
}
