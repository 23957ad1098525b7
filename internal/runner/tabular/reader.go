// Package tabular reads delimited files into memory and infers a column
// type for each of their columns.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// Options control how a file is parsed
type Options struct {
	// Delimiter defaults to ','
	Delimiter rune
	// Encoding is a WHATWG label such as "windows-1250"; empty means UTF-8
	Encoding string
	// TrimSpace trims surrounding whitespace of every cell
	TrimSpace bool
}

// Dataset is a parsed file: header names and row values in file order.
// Empty cells are kept as "".
type Dataset struct {
	Headers []string
	Rows    [][]string
}

// Column returns the values of column i
func (d *Dataset) Column(i int) []string {
	out := make([]string, 0, len(d.Rows))
	for _, r := range d.Rows {
		if i < len(r) {
			out = append(out, r[i])
		} else {
			out = append(out, "")
		}
	}
	return out
}

// ReadFile parses the file at path
func ReadFile(path string, opt Options) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return Read(f, opt)
}

// Read parses a delimited stream whose first record is the header row.
// Short rows are padded with empty cells; a row longer than the header is
// an error.
func Read(r io.Reader, opt Options) (*Dataset, error) {
	if opt.Encoding != "" {
		enc, err := htmlindex.Get(opt.Encoding)
		if err != nil {
			return nil, fmt.Errorf("unknown encoding %q: %w", opt.Encoding, err)
		}
		r = transform.NewReader(r, enc.NewDecoder())
	}

	cr := csv.NewReader(r)
	if opt.Delimiter != 0 {
		cr.Comma = opt.Delimiter
	}
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read header: file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	ds := &Dataset{Headers: make([]string, len(header))}
	seen := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		h = strings.TrimSpace(h)
		if h == "" {
			return nil, fmt.Errorf("read header: column %d has no name", i+1)
		}
		// names must be unique ignoring case
		key := strings.ToUpper(h)
		if prev, dup := seen[key]; dup {
			return nil, fmt.Errorf("read header: column %d %q duplicates column %d", i+1, h, prev)
		}
		seen[key] = i + 1
		ds.Headers[i] = h
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if len(rec) > len(ds.Headers) {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("read row %d: expected at most %d fields, got %d", line, len(ds.Headers), len(rec))
		}

		row := make([]string, len(ds.Headers))
		for i := range row {
			if i >= len(rec) {
				continue
			}
			v := rec[i]
			if opt.TrimSpace {
				v = strings.TrimSpace(v)
			}
			row[i] = v
		}
		ds.Rows = append(ds.Rows, row)
	}

	return ds, nil
}
