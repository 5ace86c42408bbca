package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/justestif/go-record-collection/internal/models"
)

// ParseCSV reads a comma separated file with a header row.
func ParseCSV(r io.Reader) ([]models.RecordInput, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	first, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty file")
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}
	h, err := parseHeader(first)
	if err != nil {
		return nil, RowError{Line: 1, Err: err}
	}

	var rows []row
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		rows = append(rows, row{line: line, fields: fields})
	}

	return toInputs(h, rows)
}
