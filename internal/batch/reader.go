// Package batch reads phone lists from CSV or XLSX files, runs them through
// the validation pipeline, and writes a result CSV.
package batch

import (
	"encoding/csv"
	"io"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// Row is one input record.
type Row struct {
	PhoneNumber string
	CountryCode string
}

// phoneColumnHints are matched case-insensitively as substrings against the
// header row to locate the phone column.
var phoneColumnHints = []string{"phone", "mobile", "number"}

// ReadFile reads rows from path, dispatching on the file extension. charset
// applies to CSV input only; XLSX is always UTF-8 internally.
func ReadFile(path, charset string, r io.Reader) ([]Row, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, eris.Wrapf(err, "batch: read %s", path)
		}
		return ReadXLSX(data)
	}
	return ReadCSV(r, charset)
}

// ReadCSV reads input rows from CSV. An empty or "utf-8" charset reads the
// bytes as-is; any other name is resolved through the WHATWG encoding index.
func ReadCSV(r io.Reader, charset string) ([]Row, error) {
	decoded, err := decodeCharset(r, charset)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "batch: parse csv")
	}
	return rowsFromRecords(records), nil
}

// ReadXLSX reads input rows from the first sheet of an XLSX workbook.
func ReadXLSX(data []byte) ([]Row, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "batch: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("batch: workbook has no sheets")
	}

	var records [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for i, c := range row.Cells {
			cells[i] = c.String()
		}
		records = append(records, cells)
	}
	return rowsFromRecords(records), nil
}

func decodeCharset(r io.Reader, charset string) (io.Reader, error) {
	name := strings.ToLower(strings.TrimSpace(charset))
	if name == "" || name == "utf-8" || name == "utf8" {
		return r, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: unknown charset %s", charset)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

// rowsFromRecords locates the phone and country columns from the header row.
// Without a recognizable header the first column is taken as the phone number
// and every row is data.
func rowsFromRecords(records [][]string) []Row {
	if len(records) == 0 {
		return nil
	}

	phoneCol, countryCol := 0, -1
	hasHeader := false
	phoneFound := false
	for i, name := range records[0] {
		lower := strings.ToLower(strings.TrimSpace(name))
		// First matching header cell wins; later phone-ish columns like
		// alt_number must not displace it.
		if !phoneFound {
			for _, hint := range phoneColumnHints {
				if strings.Contains(lower, hint) {
					phoneCol = i
					phoneFound = true
					hasHeader = true
					break
				}
			}
		}
		if strings.Contains(lower, "country") {
			countryCol = i
			hasHeader = true
		}
	}

	data := records
	if hasHeader {
		data = records[1:]
	}

	rows := make([]Row, 0, len(data))
	for _, rec := range data {
		if phoneCol >= len(rec) {
			continue
		}
		phone := strings.TrimSpace(rec[phoneCol])
		if phone == "" {
			continue
		}
		row := Row{PhoneNumber: phone}
		if countryCol >= 0 && countryCol < len(rec) {
			row.CountryCode = strings.TrimSpace(rec[countryCol])
		}
		rows = append(rows, row)
	}
	return rows
}
