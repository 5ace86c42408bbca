package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/justestif/go-record-collection/internal/errors"
	"github.com/justestif/go-record-collection/internal/models"
)

func validInput() models.RecordInput {
	return models.RecordInput{
		Title:       "Kind of Blue",
		Artist:      "Miles Davis",
		ReleaseDate: "1959-08-17",
		CoverURL:    "https://x/y.jpg",
		Tags:        []string{"Jazz"},
	}
}

func details(t *testing.T, err error) map[string]string {
	t.Helper()
	var de *domainerrors.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domainerrors.CodeValidation, de.Code)
	fields, ok := de.Details.(map[string]string)
	require.True(t, ok)
	return fields
}

func TestValidateRecordInput(t *testing.T) {
	v := New()
	require.NoError(t, v.Validate(validInput()))

	withLinks := validInput()
	withLinks.SpotifyURL = models.String("https://open.spotify.com/album/1weenld61qoidwYuZ1GESA")
	require.NoError(t, v.Validate(withLinks))
}

func TestValidateRecordInputFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *models.RecordInput)
		field  string
	}{
		{"missing title", func(in *models.RecordInput) { in.Title = "" }, "title"},
		{"long artist", func(in *models.RecordInput) { in.Artist = strings.Repeat("a", 256) }, "artist"},
		{"bad date", func(in *models.RecordInput) { in.ReleaseDate = "1959/08/17" }, "release_date"},
		{"bad cover", func(in *models.RecordInput) { in.CoverURL = "not a url" }, "cover_url"},
		{"bad discogs", func(in *models.RecordInput) { in.DiscogsURL = models.String("nope") }, "discogs_url"},
		{"empty tag", func(in *models.RecordInput) { in.Tags = []string{"Jazz", ""} }, "tags[1]"},
		{"too many tags", func(in *models.RecordInput) { in.Tags = make([]string, 33) }, "tags"},
	}

	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)

			err := v.Validate(in)
			require.Error(t, err)
			assert.Contains(t, details(t, err), tt.field)
		})
	}
}

func TestValidateMessages(t *testing.T) {
	in := validInput()
	in.Title = ""
	in.ReleaseDate = "tomorrow"

	fields := details(t, New().Validate(in))
	assert.Equal(t, "is required", fields["title"])
	assert.Equal(t, "must be a date formatted as 2006-01-02", fields["release_date"])
}
