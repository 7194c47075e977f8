// Package report writes the final state of every account
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/Aidin1998/txreplay/internal/ledger"
)

// Format selects the output encoding
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Monetary fields are rounded to this many decimal places
const precision = 4

const csvHeader = "client, available, held, total, locked"

// Row is one reported account
type Row struct {
	Client    ledger.ClientID `json:"client"`
	Available string          `json:"available"`
	Held      string          `json:"held"`
	Total     string          `json:"total"`
	Locked    bool            `json:"locked"`
}

// Writer emits account reports
type Writer struct {
	w      io.Writer
	format Format
}

// NewWriter returns a writer for the given format
func NewWriter(w io.Writer, format Format) (*Writer, error) {
	switch format {
	case FormatCSV, FormatJSON:
	case "":
		format = FormatCSV
	default:
		return nil, fmt.Errorf("unsupported report format %q", format)
	}
	return &Writer{w: w, format: format}, nil
}

// Rows converts accounts into report rows ordered by client
func Rows(accounts map[ledger.ClientID]*ledger.Account) []Row {
	rows := make([]Row, 0, len(accounts))
	for _, acc := range accounts {
		b := acc.Snapshot()
		rows = append(rows, Row{
			Client:    b.Client,
			Available: b.Available.StringFixed(precision),
			Held:      b.Held.StringFixed(precision),
			Total:     b.Total.StringFixed(precision),
			Locked:    b.Locked,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Client < rows[j].Client })
	return rows
}

// Write reports every account, one per line for CSV
func (rw *Writer) Write(accounts map[ledger.ClientID]*ledger.Account) error {
	rows := Rows(accounts)

	if rw.format == FormatJSON {
		enc := json.NewEncoder(rw.w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rows); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		return nil
	}

	bw := bufio.NewWriter(rw.w)
	fmt.Fprintln(bw, csvHeader)
	for _, r := range rows {
		fmt.Fprintf(bw, "%d, %s, %s, %s, %t\n", r.Client, r.Available, r.Held, r.Total, r.Locked)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
