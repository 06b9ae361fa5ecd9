package client

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/seaward/backoffice/internal/encoding"
)

const (
	colName         = "name"
	colEmail        = "email"
	colPhone        = "phone"
	colPolicyNumber = "policy number"
	colPolicyType   = "policy type"
	colPremium      = "premium"
	colPolicyStart  = "policy start"
	colPolicyEnd    = "policy end"
)

var dateLayouts = []string{time.DateOnly, "02-01-2006", "02/01/2006"}

// ParseCSV reads a client export. Leading preamble lines are ignored until a
// header row naming at least the name and policy number columns is found.
// Both ',' and ';' separated files are accepted. It returns the parsed rows and
// the number of data rows skipped because a field could not be parsed.
func ParseCSV(r io.Reader) ([]CreateParams, int, error) {
	src, err := encoding.NewUTF8Reader(r)
	if err != nil {
		return nil, 0, fmt.Errorf("detecting encoding: %w", err)
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, 0, fmt.Errorf("reading csv: %w", err)
	}

	for _, sep := range []rune{',', ';'} {
		rows, err := readRecords(data, sep)
		if err != nil {
			continue
		}

		if header, cols, ok := findHeader(rows); ok {
			params, skipped := parseRows(rows[header+1:], cols)
			return params, skipped, nil
		}
	}

	return nil, 0, fmt.Errorf("%w: no header row with name and policy number columns", ErrInvalidInput)
}

func readRecords(data []byte, sep rune) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sep
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	return reader.ReadAll()
}

// findHeader returns the index of the header row and the column positions.
func findHeader(rows [][]string) (int, map[string]int, bool) {
	for i, row := range rows {
		cols := make(map[string]int)

		for j, col := range row {
			key := strings.ToLower(strings.Join(strings.Fields(col), " "))
			switch key {
			case colName, colEmail, colPhone, colPolicyNumber, colPolicyType, colPremium, colPolicyStart, colPolicyEnd:
				cols[key] = j
			}
		}

		_, hasName := cols[colName]
		_, hasPolicy := cols[colPolicyNumber]

		if hasName && hasPolicy {
			return i, cols, true
		}
	}

	return 0, nil, false
}

func parseRows(rows [][]string, cols map[string]int) ([]CreateParams, int) {
	var (
		params  []CreateParams
		skipped int
	)

	for _, row := range rows {
		field := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(row) {
				return ""
			}

			return strings.TrimSpace(row[idx])
		}

		name, policy := field(colName), field(colPolicyNumber)
		if name == "" && policy == "" {
			continue
		}

		p := CreateParams{
			Name:         name,
			Email:        field(colEmail),
			Phone:        field(colPhone),
			PolicyNumber: policy,
			PolicyType:   field(colPolicyType),
			Premium:      decimal.Zero,
		}

		var err error

		if v := field(colPremium); v != "" {
			if p.Premium, err = parsePremium(v); err != nil {
				skipped++
				continue
			}
		}

		if p.PolicyStart, err = parseDate(field(colPolicyStart)); err != nil {
			skipped++
			continue
		}

		if p.PolicyEnd, err = parseDate(field(colPolicyEnd)); err != nil {
			skipped++
			continue
		}

		params = append(params, p)
	}

	return params, skipped
}

// parsePremium accepts plain decimals ("1234.56") and European formatting
// ("1.234,56").
func parsePremium(s string) (decimal.Decimal, error) {
	clean := s
	if strings.Contains(s, ",") {
		clean = strings.ReplaceAll(clean, ".", "")
		clean = strings.ReplaceAll(clean, ",", ".")
	}

	return decimal.NewFromString(clean)
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}

	return nil, fmt.Errorf("unrecognised date %q", s)
}
