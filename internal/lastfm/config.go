// Package lastfm searches Last.fm for albums and their top tags.
package lastfm

import (
	"errors"
	"time"
)

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = errors.New("missing Last.fm API key")

// DefaultTimeout bounds a single HTTP request.
const DefaultTimeout = 10 * time.Second

// Config holds Last.fm API configuration.
type Config struct {
	APIKey  string
	Timeout time.Duration

	// MaxTags caps the tags attached to each search result.
	MaxTags int
}

// Validate checks the configuration and fills in defaults.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxTags <= 0 {
		c.MaxTags = 5
	}
	return nil
}
