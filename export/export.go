// Package export writes a ledger's notification history to audit files
// and parses them back. Supports JSONL (one record per line) and CSV with
// a fixed header. Round trips preserve record order and every field.
package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pflow-xyz/go-ledger/notify"
)

// csvHeader is the fixed column set for CSV exports.
var csvHeader = []string{
	"type", "from", "to", "owner", "spender", "account",
	"amount", "is_paused", "is_blacklisted",
}

// WriteJSONL writes records to w, one JSON object per line.
func WriteJSONL(w io.Writer, records []notify.Record) error {
	enc := json.NewEncoder(w)
	for i, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}

// WriteJSONLFile writes records to a JSONL file.
func WriteJSONLFile(filename string, records []notify.Record) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	return WriteJSONL(f, records)
}

// ParseJSONL parses records from a JSONL reader. Empty lines are skipped.
func ParseJSONL(r io.Reader) ([]notify.Record, error) {
	var records []notify.Record
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if line == "" {
			continue
		}

		var record notify.Record
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return nil, fmt.Errorf("line %d: invalid JSON: %w", lineNum, err)
		}
		if record.Type == "" {
			return nil, fmt.Errorf("line %d: missing record type", lineNum)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return records, nil
}

// ParseJSONLFile parses records from a JSONL file.
func ParseJSONLFile(filename string) ([]notify.Record, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	return ParseJSONL(f)
}

// WriteCSV writes records to w with the fixed header row.
func WriteCSV(w io.Writer, records []notify.Record) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, r := range records {
		row := []string{
			r.Type, r.From, r.To, r.Owner, r.Spender, r.Account,
			r.Amount, formatFlag(r.IsPaused), formatFlag(r.IsBlacklisted),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteCSVFile writes records to a CSV file.
func WriteCSVFile(filename string, records []notify.Record) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	return WriteCSV(f, records)
}

// ParseCSV parses records from a CSV reader. The first row must be the
// fixed header.
func ParseCSV(r io.Reader) ([]notify.Record, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty input")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if len(header) != len(csvHeader) {
		return nil, fmt.Errorf("expected %d columns, got %d", len(csvHeader), len(header))
	}
	for i, col := range csvHeader {
		if header[i] != col {
			return nil, fmt.Errorf("column %d: expected %q, got %q", i, col, header[i])
		}
	}

	var records []notify.Record
	rowNum := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNum, err)
		}

		paused, err := parseFlag(row[7])
		if err != nil {
			return nil, fmt.Errorf("row %d: is_paused: %w", rowNum, err)
		}
		blacklisted, err := parseFlag(row[8])
		if err != nil {
			return nil, fmt.Errorf("row %d: is_blacklisted: %w", rowNum, err)
		}

		records = append(records, notify.Record{
			Type:          row[0],
			From:          row[1],
			To:            row[2],
			Owner:         row[3],
			Spender:       row[4],
			Account:       row[5],
			Amount:        row[6],
			IsPaused:      paused,
			IsBlacklisted: blacklisted,
		})
	}
	return records, nil
}

// ParseCSVFile parses records from a CSV file.
func ParseCSVFile(filename string) ([]notify.Record, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	return ParseCSV(f)
}

func formatFlag(flag *bool) string {
	if flag == nil {
		return ""
	}
	return strconv.FormatBool(*flag)
}

func parseFlag(s string) (*bool, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
