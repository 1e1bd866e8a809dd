package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Header is the column order of the CSV wire format.
var Header = []string{"Name", "Diameter", "Circumference"}

// ReadCSV reads raw rows from CSV. The header is required and matched
// case-insensitively; blank lines are ignored.
func ReadCSV(r io.Reader) ([]RawMeasurement, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)
	cr.TrimLeadingSpace = true

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty CSV: missing header %s", strings.Join(Header, ","))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	for i, want := range Header {
		if !strings.EqualFold(strings.TrimSpace(head[i]), want) {
			return nil, fmt.Errorf("unexpected CSV header %q, want %s", strings.Join(head, ","), strings.Join(Header, ","))
		}
	}

	rows := make([]RawMeasurement, 0)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		rows = append(rows, RawMeasurement{Name: rec[0], Diameter: rec[1], Circumference: rec[2]})
	}
	return rows, nil
}

// ReadDataset reads and coerces a CSV dataset in one step.
func ReadDataset(r io.Reader) (Dataset, error) {
	rows, err := ReadCSV(r)
	if err != nil {
		return nil, err
	}
	return Parse(rows)
}

// WriteCSV writes d in canonical form: every name quoted, numbers in
// shortest decimal notation.
func WriteCSV(w io.Writer, d Dataset) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(Header, ",") + "\n"); err != nil {
		return err
	}
	for _, m := range d {
		line := QuoteName(m.Name) + "," + formatNumber(m.Diameter) + "," + formatNumber(m.Circumference) + "\n"
		if _, err := bw.WriteString(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// QuoteName quotes a specimen name, doubling any embedded double quote.
func QuoteName(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
