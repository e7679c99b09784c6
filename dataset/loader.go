package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	apperrors "datachat/errors"
)

// LoadFile loads an uploaded file into a MemTable based on its extension.
// CSV and JSON are parsed locally; other upload formats (Excel, Parquet)
// are resolved through the SQL collaborator and are rejected here.
func LoadFile(path string) (*MemTable, error) {
	name := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".csv" && ext != ".json" {
		return nil, apperrors.WrapErrorf(apperrors.ErrInvalidInput, "unsupported local format %q", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch ext {
	case ".csv":
		return LoadCSV(name, f)
	case ".json":
		return LoadJSON(name, f)
	default:
		return nil, apperrors.WrapErrorf(apperrors.ErrInvalidInput, "no local loader for %q", name)
	}
}

// LoadCSV parses CSV with a header row into a MemTable. Short records pad
// with empty strings; long records are truncated to the header width.
func LoadCSV(name string, r io.Reader) (*MemTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, apperrors.WrapErrorf(apperrors.ErrInvalidInput, "reading csv header of %q: %v", name, err)
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}

	table := &MemTable{Name: name, Columns: columns}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.WrapErrorf(apperrors.ErrInvalidInput, "reading csv row of %q: %v", name, err)
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// LoadJSON parses a JSON array of flat objects into a MemTable. Values are
// string-coerced; numbers keep their literal form via json.Number.
func LoadJSON(name string, r io.Reader) (*MemTable, error) {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()

	var records []map[string]any
	if err := decoder.Decode(&records); err != nil {
		return nil, apperrors.WrapErrorf(apperrors.ErrInvalidInput, "decoding json of %q: %v", name, err)
	}

	table := &MemTable{Name: name}
	seen := make(map[string]bool)
	for _, record := range records {
		row := make(Row, len(record))
		for key, value := range record {
			if !seen[key] {
				seen[key] = true
				table.Columns = append(table.Columns, key)
			}
			row[key] = coerceString(value)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func coerceString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", t)
	}
}
