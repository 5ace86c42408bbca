package importer

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/justestif/go-record-collection/internal/models"
)

// ParseXLSX reads the first sheet of a workbook. Row 1 is the header.
func ParseXLSX(r io.Reader) ([]models.RecordInput, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, errors.New("workbook has no sheets")
	}

	// Raw values keep date cells as serial numbers instead of whatever
	// display format the sheet uses.
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("empty sheet")
	}

	h, err := parseHeader(rows[0])
	if err != nil {
		return nil, RowError{Line: 1, Err: err}
	}

	dateCol := h["release_date"]
	data := make([]row, 0, len(rows)-1)
	for i, fields := range rows[1:] {
		if dateCol < len(fields) {
			fields[dateCol] = serialDate(fields[dateCol])
		}
		data = append(data, row{line: i + 2, fields: fields})
	}
	return toInputs(h, data)
}

// serialDate converts a spreadsheet date serial to YYYY-MM-DD. Four digit
// integers are years and strings are left alone.
func serialDate(v string) string {
	if len(v) == 4 {
		return v
	}
	serial, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return v
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return v
	}
	return t.Format(models.DateLayout)
}
