package usecase

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/shandysiswandi/csvpass/internal/pipeline/entity"
)

// ErrEmptyTable is returned when the input has no header row.
var ErrEmptyTable = errors.New("no columns to parse from file")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// LoadTable reads a CSV document into memory. Records shorter than the header
// are padded with empty fields; longer ones are an error. Blank lines are
// skipped, a leading UTF-8 BOM is dropped and a stray quote inside an unquoted
// field is kept as a literal character. Fields are kept as text: no type
// inference or numeric normalization.
func LoadTable(r io.Reader) (entity.Table, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return entity.Table{}, ErrEmptyTable
	}
	if err != nil {
		return entity.Table{}, fmt.Errorf("read csv header: %w", err)
	}

	table := entity.Table{Header: header}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return entity.Table{}, fmt.Errorf("read csv: %w", err)
		}

		switch width := len(header); {
		case len(record) > width:
			line, _ := reader.FieldPos(0)
			return entity.Table{}, fmt.Errorf("read csv: expected %d fields in line %d, saw %d: %w", width, line, len(record), csv.ErrFieldCount)
		case len(record) < width:
			record = append(record, make([]string, width-len(record))...)
		}

		table.Rows = append(table.Rows, record)
	}

	return table, nil
}

// WriteTable writes the header and rows as CSV with "\n" line endings.
func WriteTable(w io.Writer, table entity.Table) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(table.Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := writer.WriteAll(table.Rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}

	return nil
}
