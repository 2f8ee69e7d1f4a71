// Package workbook fetches and decodes the issuer's spreadsheet.
//
// A Source fetches the remote workbook once per process: concurrent callers
// share the same request, a successful result is kept, and a failure leaves
// nothing behind so that the next call starts again from scratch.
package workbook

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"
)

// Workbook is a decoded spreadsheet: raw cell values per sheet.
//
// Cells hold unformatted values: dates are usually Excel serial numbers,
// percentages are fractions.
type Workbook struct {
	names  []string
	sheets map[string][][]string
}

// New returns an in-memory workbook with sheets in the given order.
func New(names []string, sheets map[string][][]string) *Workbook {
	return &Workbook{names: names, sheets: sheets}
}

// SheetNames returns the sheet names in workbook order.
func (w *Workbook) SheetNames() []string { return w.names }

// Rows returns the rows of a sheet, and false if there is no such sheet.
func (w *Workbook) Rows(sheet string) ([][]string, bool) {
	rows, ok := w.sheets[sheet]
	return rows, ok
}

// Decode reads an xlsx document.
func Decode(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("cannot open workbook: %w", err)
	}
	defer f.Close()

	w := &Workbook{sheets: make(map[string][][]string)}
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("cannot read sheet %q: %w", name, err)
		}
		w.names = append(w.names, name)
		w.sheets[name] = rows
	}
	return w, nil
}

// Open reads an xlsx file from disk.
func Open(path string) (*Workbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(bytes.NewReader(data))
}
