// Package ingest decodes ledger events from delimited text.
//
// The expected layout is a header row followed by one event per row:
//
//	type, client, tx, amount
//	deposit, 1, 1, 1.0
//	dispute, 1, 1,
//
// Columns are located by header name, surrounding whitespace is ignored and
// rows may carry fewer fields than the header (the amount of a dispute,
// resolve or chargeback is usually left out).
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Aidin1998/txreplay/internal/ledger"
	"github.com/Aidin1998/txreplay/pkg/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	colType   = "type"
	colClient = "client"
	colTx     = "tx"
	colAmount = "amount"
)

// Amounts must fit decimal(36,18): at most 18 fractional and 18 integer
// digits, whatever the notation.
const (
	maxScale         = 18
	maxIntegerDigits = 18
)

// ErrMissingColumn is returned when the header lacks a required column
var ErrMissingColumn = errors.New("missing column")

// RowError describes an input row that could not be decoded
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Option configures a Reader
type Option func(*Reader)

// WithSkipMalformed makes the reader log and skip undecodable rows instead
// of returning a RowError
func WithSkipMalformed(logger *zap.Logger, m *metrics.Replay) Option {
	return func(r *Reader) {
		r.skipMalformed = true
		r.logger = logger
		r.metrics = m
	}
}

// Reader is a ledger.Source over CSV input
type Reader struct {
	csv           *csv.Reader
	columns       map[string]int
	skipMalformed bool
	logger        *zap.Logger
	metrics       *metrics.Replay
}

var _ ledger.Source = (*Reader)(nil)

// NewReader reads the header row of r and returns a reader positioned on
// the first event
func NewReader(r io.Reader, opts ...Option) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	reader := &Reader{
		csv:    cr,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(reader)
	}
	if reader.logger == nil {
		reader.logger = zap.NewNop()
	}

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to read header: empty input")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	reader.columns = make(map[string]int, len(header))
	for i, name := range header {
		reader.columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{colType, colClient, colTx} {
		if _, ok := reader.columns[required]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, required)
		}
	}
	return reader, nil
}

// Next returns the next event, io.EOF at the end of input, or a *RowError
func (r *Reader) Next() (ledger.Event, error) {
	for {
		record, err := r.csv.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ledger.Event{}, io.EOF
			}
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return ledger.Event{}, fmt.Errorf("failed to read input: %w", err)
			}
			if rerr := r.reject(parseErr.Line, parseErr.Err); rerr != nil {
				return ledger.Event{}, rerr
			}
			continue
		}

		ev, err := r.decode(record)
		if err != nil {
			line, _ := r.csv.FieldPos(0)
			if rerr := r.reject(line, err); rerr != nil {
				return ledger.Event{}, rerr
			}
			continue
		}
		return ev, nil
	}
}

func (r *Reader) reject(line int, err error) error {
	rowErr := &RowError{Line: line, Err: err}
	if !r.skipMalformed {
		return rowErr
	}
	r.logger.Warn("Skipping malformed row", zap.Int("line", line), zap.Error(err))
	r.metrics.ObserveMalformedRow()
	return nil
}

func (r *Reader) decode(record []string) (ledger.Event, error) {
	var ev ledger.Event

	kind, err := ledger.ParseKind(r.field(record, colType))
	if err != nil {
		return ev, err
	}
	client, err := strconv.ParseUint(r.field(record, colClient), 10, 16)
	if err != nil {
		return ev, fmt.Errorf("invalid client: %w", err)
	}
	tx, err := strconv.ParseUint(r.field(record, colTx), 10, 32)
	if err != nil {
		return ev, fmt.Errorf("invalid tx: %w", err)
	}

	ev.Kind = kind
	ev.Client = ledger.ClientID(client)
	ev.Tx = ledger.TxID(tx)

	if raw := r.field(record, colAmount); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return ev, fmt.Errorf("invalid amount %q: %w", raw, err)
		}
		if amount.Exponent() < -maxScale || amount.NumDigits()+int(amount.Exponent()) > maxIntegerDigits {
			return ev, fmt.Errorf("invalid amount %q: out of range", raw)
		}
		ev.Amount = decimal.NewNullDecimal(amount)
	}
	return ev, nil
}

// field returns the trimmed value of a column, or "" when the row is too short
func (r *Reader) field(record []string, column string) string {
	i, ok := r.columns[column]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
