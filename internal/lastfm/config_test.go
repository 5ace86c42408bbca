package lastfm

import (
	"errors"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{
			name: "valid API key gets defaults",
			cfg:  Config{APIKey: "abc123def456abc123def456abc12345"},
		},
		{
			name:    "missing API key",
			cfg:     Config{},
			wantErr: ErrMissingAPIKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if tt.cfg.Timeout != DefaultTimeout {
				t.Errorf("Timeout = %v, want %v", tt.cfg.Timeout, DefaultTimeout)
			}
			if tt.cfg.MaxTags != 5 {
				t.Errorf("MaxTags = %d, want 5", tt.cfg.MaxTags)
			}
		})
	}
}
