// Package models defines the record collection entities shared by the
// stores, services and HTTP layer.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Record is a music release in a user's collection.
type Record struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Artist      string  `json:"artist"`
	ReleaseDate Date    `json:"release_date"`
	CoverURL    string  `json:"cover_url"`
	DiscogsURL  *string `json:"discogs_url"` // nullable
	SpotifyURL  *string `json:"spotify_url"` // nullable
	Owned       bool    `json:"owned"`
	Wanted      bool    `json:"wanted"`
	UserID      int64   `json:"user_id"`
	Tags        []Tag   `json:"tags"` // populated by join, in link order
}

// Tag is a shared label. Slug is the uniqueness key; the ID stays internal.
type Tag struct {
	ID   int64  `json:"-"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// NewTag builds an unsaved tag for name.
func NewTag(name string) Tag {
	return Tag{Name: name, Slug: Slugify(name)}
}

// CollectionToken grants anonymous read access to one user's records.
type CollectionToken struct {
	ID        int64     `json:"-"`
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewCollectionToken generates a fresh random token for userID.
func NewCollectionToken(userID int64, now time.Time) CollectionToken {
	return CollectionToken{
		Token:     uuid.NewString(),
		UserID:    userID,
		CreatedAt: now.UTC(),
	}
}

// User is an account. Only the ID is used to scope collection data.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// RecordInput is the payload for creating a record.
type RecordInput struct {
	Title       string   `json:"title" validate:"required,max=255"`
	Artist      string   `json:"artist" validate:"required,max=255"`
	ReleaseDate string   `json:"release_date" validate:"required,datetime=2006-01-02"`
	CoverURL    string   `json:"cover_url" validate:"required,url,max=2048"`
	DiscogsURL  *string  `json:"discogs_url,omitempty" validate:"omitempty,url,max=2048"`
	SpotifyURL  *string  `json:"spotify_url,omitempty" validate:"omitempty,url,max=2048"`
	Owned       *bool    `json:"owned,omitempty"`
	Wanted      *bool    `json:"wanted,omitempty"`
	Tags        []string `json:"tags,omitempty" validate:"omitempty,max=32,dive,required,max=64"`
}

// IsOwned reports the owned flag, defaulting to false.
func (in RecordInput) IsOwned() bool {
	return in.Owned != nil && *in.Owned
}

// IsWanted reports the wanted flag, defaulting to false.
func (in RecordInput) IsWanted() bool {
	return in.Wanted != nil && *in.Wanted
}

// ToRecord builds the unsaved record described by in. Tags are left empty;
// they are resolved by the store.
func (in RecordInput) ToRecord(userID int64) (Record, error) {
	date, err := ParseDate(in.ReleaseDate)
	if err != nil {
		return Record{}, err
	}
	return Record{
		Title:       in.Title,
		Artist:      in.Artist,
		ReleaseDate: date,
		CoverURL:    in.CoverURL,
		DiscogsURL:  in.DiscogsURL,
		SpotifyURL:  in.SpotifyURL,
		Owned:       in.IsOwned(),
		Wanted:      in.IsWanted(),
		UserID:      userID,
		Tags:        []Tag{},
	}, nil
}

// RecordFilter narrows a user's records. Nil fields do not filter.
type RecordFilter struct {
	Owned  *bool
	Wanted *bool
}

// Bool returns a pointer to b, for building inputs and filters.
func Bool(b bool) *bool {
	return &b
}

// String returns a pointer to s.
func String(s string) *string {
	return &s
}
