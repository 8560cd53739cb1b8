package tabstego

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
)

// headerTable is implemented by tables that carry column names.
type headerTable interface {
	Header() []string
}

// ReadCSV parses a CSV document. With hasHeader the first record becomes
// the header.
func ReadCSV(r io.Reader, hasHeader bool) (*MemTable, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	var header []string
	if hasHeader && len(records) > 0 {
		header, records = records[0], records[1:]
	}
	return NewMemTable(header, records)
}

// OpenCSV reads a CSV file by memory-mapping it. The mapping is released
// before OpenCSV returns; the table owns copies of every cell.
func OpenCSV(path string, hasHeader bool) (*MemTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv file: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat csv file: %w", err)
	}
	if stat.Size() == 0 {
		// mmap of an empty file fails on most platforms.
		return NewMemTable(nil, nil)
	}

	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap csv file: %w", err)
	}
	adviseSequential(mm)
	t, err := ReadCSV(bytes.NewReader(mm), hasHeader)
	if uerr := mm.Unmap(); uerr != nil {
		return nil, errors.Join(err, uerr)
	}
	return t, err
}

// WriteCSV writes t, preceded by its header when it has one.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if ht, ok := t.(headerTable); ok && ht.Header() != nil {
		if err := cw.Write(ht.Header()); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}
	for i := range t.RowCount() {
		if err := cw.Write(t.RowFields(i)); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
