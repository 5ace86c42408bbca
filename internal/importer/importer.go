// Package importer reads record inputs from CSV and XLSX files. Both formats
// use a header row naming the columns; column order is free.
package importer

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/justestif/go-record-collection/internal/models"
)

// Format is an import file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ErrUnknownFormat is returned when a file is neither CSV nor XLSX.
var ErrUnknownFormat = errors.New("unknown import format, expected csv or xlsx")

// Columns lists the recognized header names.
var Columns = []string{
	"title", "artist", "release_date", "cover_url",
	"discogs_url", "spotify_url", "owned", "wanted", "tags",
}

var requiredColumns = []string{"title", "artist", "release_date", "cover_url"}

// dateLayouts are accepted for release_date in addition to a bare year.
var dateLayouts = []string{
	models.DateLayout,
	"2006/01/02",
	"1/2/2006",
}

// RowError is a problem with one line of the input.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// ParseError collects every row error found in a file.
type ParseError struct {
	Rows []RowError
}

func (e *ParseError) Error() string {
	msgs := make([]string, len(e.Rows))
	for i, r := range e.Rows {
		msgs[i] = r.Error()
	}
	return "parsing import: " + strings.Join(msgs, "; ")
}

// Details returns the row errors keyed by "line N".
func (e *ParseError) Details() map[string]string {
	details := make(map[string]string, len(e.Rows))
	for _, r := range e.Rows {
		details[fmt.Sprintf("line %d", r.Line)] = r.Err.Error()
	}
	return details
}

// DetectFormat picks a format from a file name, falling back to the
// content type.
func DetectFormat(filename, contentType string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	}

	ct, _, _ := strings.Cut(contentType, ";")
	switch strings.TrimSpace(strings.ToLower(ct)) {
	case "text/csv", "application/csv":
		return FormatCSV, nil
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return FormatXLSX, nil
	}
	return "", ErrUnknownFormat
}

// Parse reads all record inputs from r.
func Parse(r io.Reader, format Format) ([]models.RecordInput, error) {
	switch format {
	case FormatCSV:
		return ParseCSV(r)
	case FormatXLSX:
		return ParseXLSX(r)
	default:
		return nil, ErrUnknownFormat
	}
}

// row is one data row with its 1-based line number in the source.
type row struct {
	line   int
	fields []string
}

// header maps column names to field positions.
type header map[string]int

func parseHeader(fields []string) (header, error) {
	h := make(header, len(fields))
	for i, f := range fields {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(f, "\ufeff")))
		name = strings.ReplaceAll(name, " ", "_")
		if name == "" {
			continue
		}
		if _, dup := h[name]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		h[name] = i
	}

	var missing []string
	for _, c := range requiredColumns {
		if _, ok := h[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}
	return h, nil
}

func (h header) get(fields []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}

// toInputs converts rows to inputs, collecting every row error. Blank rows
// are skipped.
func toInputs(h header, rows []row) ([]models.RecordInput, error) {
	inputs := make([]models.RecordInput, 0, len(rows))
	var rowErrs []RowError

	for _, r := range rows {
		if blank(r.fields) {
			continue
		}
		in, err := h.input(r.fields)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Line: r.line, Err: err})
			continue
		}
		inputs = append(inputs, in)
	}

	if len(rowErrs) > 0 {
		sort.Slice(rowErrs, func(i, j int) bool { return rowErrs[i].Line < rowErrs[j].Line })
		return nil, &ParseError{Rows: rowErrs}
	}
	return inputs, nil
}

func (h header) input(fields []string) (models.RecordInput, error) {
	in := models.RecordInput{
		Title:       h.get(fields, "title"),
		Artist:      h.get(fields, "artist"),
		ReleaseDate: normalizeDate(h.get(fields, "release_date")),
		CoverURL:    h.get(fields, "cover_url"),
		Tags:        splitTags(h.get(fields, "tags")),
	}

	if v := h.get(fields, "discogs_url"); v != "" {
		in.DiscogsURL = models.String(v)
	}
	if v := h.get(fields, "spotify_url"); v != "" {
		in.SpotifyURL = models.String(v)
	}

	var err error
	if in.Owned, err = parseFlag(h.get(fields, "owned")); err != nil {
		return in, fmt.Errorf("owned: %w", err)
	}
	if in.Wanted, err = parseFlag(h.get(fields, "wanted")); err != nil {
		return in, fmt.Errorf("wanted: %w", err)
	}

	if in.Title == "" {
		return in, errors.New("title is required")
	}
	if in.Artist == "" {
		return in, errors.New("artist is required")
	}
	return in, nil
}

// parseFlag accepts strconv.ParseBool values plus yes/no. Empty means unset.
func parseFlag(s string) (*bool, error) {
	switch strings.ToLower(s) {
	case "":
		return nil, nil
	case "yes", "y", "x":
		return models.Bool(true), nil
	case "no", "n":
		return models.Bool(false), nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, fmt.Errorf("invalid boolean %q", s)
	}
	return &b, nil
}

func splitTags(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == '|' })
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

// normalizeDate rewrites recognized layouts to YYYY-MM-DD. Anything else is
// returned unchanged for validation to reject.
func normalizeDate(s string) string {
	if len(s) == 4 {
		if _, err := strconv.Atoi(s); err == nil {
			return s + "-01-01"
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(models.DateLayout)
		}
	}
	return s
}

func blank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
