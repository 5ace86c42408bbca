package importer

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/justestif/go-record-collection/internal/models"
)

const sampleCSV = `Title,Artist,Release Date,Cover URL,Discogs URL,Owned,Wanted,Tags
Kind of Blue,Miles Davis,1959-08-17,https://x/kob.jpg,https://www.discogs.com/release/1,yes,,Jazz; 70's Music
Blue Train,John Coltrane,1957,https://x/bt.jpg,,false,true,Jazz|Hard Bop
,,,,,,,
`

func TestParseCSV(t *testing.T) {
	inputs, err := ParseCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, inputs, 2)

	kob := inputs[0]
	assert.Equal(t, "Kind of Blue", kob.Title)
	assert.Equal(t, "Miles Davis", kob.Artist)
	assert.Equal(t, "1959-08-17", kob.ReleaseDate)
	assert.Equal(t, []string{"Jazz", "70's Music"}, kob.Tags)
	require.NotNil(t, kob.DiscogsURL)
	assert.Nil(t, kob.SpotifyURL)
	assert.True(t, kob.IsOwned())
	assert.Nil(t, kob.Wanted)

	bt := inputs[1]
	assert.Equal(t, "1957-01-01", bt.ReleaseDate)
	assert.Equal(t, []string{"Jazz", "Hard Bop"}, bt.Tags)
	assert.False(t, bt.IsOwned())
	assert.True(t, bt.IsWanted())
	assert.Nil(t, bt.DiscogsURL)
}

func TestParseCSVRowErrors(t *testing.T) {
	in := "title,artist,release_date,cover_url,owned\n" +
		"Good,Someone,2001-01-01,https://x/a.jpg,true\n" +
		",Nobody,2001-01-01,https://x/b.jpg,\n" +
		"Bad Flag,Someone,2001-01-01,https://x/c.jpg,maybe\n"

	_, err := ParseCSV(strings.NewReader(in))

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	require.Len(t, pe.Rows, 2)
	assert.Equal(t, 3, pe.Rows[0].Line)
	assert.Equal(t, 4, pe.Rows[1].Line)
	assert.Contains(t, pe.Details()["line 4"], "owned")
}

func TestParseCSVMissingColumns(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("title,artist\nA,B\n"))

	var re RowError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 1, re.Line)
	assert.ErrorContains(t, err, "release_date, cover_url")
}

func TestParseCSVEmpty(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestParseCSVHeaderOnly(t *testing.T) {
	inputs, err := ParseCSV(strings.NewReader("title,artist,release_date,cover_url\n"))
	require.NoError(t, err)
	assert.Empty(t, inputs)
}

func buildWorkbook(t *testing.T, rows ...[]any) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestParseXLSX(t *testing.T) {
	buf := buildWorkbook(t,
		[]any{"cover_url", "title", "artist", "release_date", "tags", "wanted"},
		[]any{"https://x/kob.jpg", "Kind of Blue", "Miles Davis", "1959-08-17", "Jazz;Modal", "1"},
		[]any{},
		[]any{"https://x/ss.jpg", "Somethin' Else", "Cannonball Adderley", "1958", "", ""},
	)

	inputs, err := ParseXLSX(buf)
	require.NoError(t, err)
	require.Len(t, inputs, 2)

	assert.Equal(t, "Kind of Blue", inputs[0].Title)
	assert.Equal(t, "https://x/kob.jpg", inputs[0].CoverURL)
	assert.Equal(t, []string{"Jazz", "Modal"}, inputs[0].Tags)
	assert.True(t, inputs[0].IsWanted())

	assert.Equal(t, "1958-01-01", inputs[1].ReleaseDate)
	assert.Empty(t, inputs[1].Tags)
}

func TestParseXLSXDateCells(t *testing.T) {
	buf := buildWorkbook(t,
		[]any{"title", "artist", "release_date", "cover_url"},
		[]any{"Kind of Blue", "Miles Davis", time.Date(1959, 8, 17, 0, 0, 0, 0, time.UTC), "https://x/kob.jpg"},
		[]any{"Blue Train", "John Coltrane", 1957, "https://x/bt.jpg"},
	)

	inputs, err := ParseXLSX(buf)
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Equal(t, "1959-08-17", inputs[0].ReleaseDate)
	assert.Equal(t, "1957-01-01", inputs[1].ReleaseDate)
}

func TestParseXLSXRowLines(t *testing.T) {
	buf := buildWorkbook(t,
		[]any{"title", "artist", "release_date", "cover_url"},
		[]any{"Fine", "Artist", "2000-01-01", "https://x/a.jpg"},
		[]any{"No Artist", "", "2000-01-01", "https://x/b.jpg"},
	)

	_, err := ParseXLSX(buf)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	require.Len(t, pe.Rows, 1)
	assert.Equal(t, 3, pe.Rows[0].Line)
}

func TestParseXLSXNotAWorkbook(t *testing.T) {
	_, err := ParseXLSX(strings.NewReader("title,artist\n"))
	assert.Error(t, err)
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		filename, contentType string
		want                  Format
		wantErr               bool
	}{
		{"records.csv", "", FormatCSV, false},
		{"Records.XLSX", "", FormatXLSX, false},
		{"upload", "text/csv; charset=utf-8", FormatCSV, false},
		{"upload", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", FormatXLSX, false},
		{"records.json", "application/json", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.filename+" "+tt.contentType, func(t *testing.T) {
			got, err := DetectFormat(tt.filename, tt.contentType)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := map[string]string{
		"1959-08-17":  "1959-08-17",
		"1959/08/17":  "1959-08-17",
		"8/17/1959":   "1959-08-17",
		"1959":        "1959-01-01",
		"August 1959": "August 1959",
		"":            "",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeDate(in), in)
	}
}

func TestParseFlag(t *testing.T) {
	for _, s := range []string{"true", "TRUE", "1", "yes", "Y", "x"} {
		b, err := parseFlag(s)
		require.NoError(t, err, s)
		assert.Equal(t, models.Bool(true), b, s)
	}
	b, err := parseFlag("")
	require.NoError(t, err)
	assert.Nil(t, b)
}
