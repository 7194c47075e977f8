package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/Aidin1998/txreplay/internal/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAccounts(t *testing.T) map[ledger.ClientID]*ledger.Account {
	t.Helper()
	e := ledger.NewEngine(nil)
	for _, ev := range []ledger.Event{
		ledger.NewDeposit(2, 1, decimal.RequireFromString("2.0")),
		ledger.NewDeposit(1, 2, decimal.RequireFromString("1.23456")),
		ledger.NewDeposit(1, 3, decimal.RequireFromString("0.5")),
		ledger.NewReference(ledger.Dispute, 1, 3),
		ledger.NewReference(ledger.Dispute, 2, 1),
		ledger.NewReference(ledger.Chargeback, 2, 1),
	} {
		require.NoError(t, e.Execute(ev))
	}
	return e.Accounts()
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, FormatCSV)
	require.NoError(t, err)

	require.NoError(t, w.Write(sampleAccounts(t)))

	want := "client, available, held, total, locked\n" +
		"1, 1.2346, 0.5000, 1.7346, false\n" +
		"2, 0.0000, 0.0000, 0.0000, true\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, FormatJSON)
	require.NoError(t, err)

	require.NoError(t, w.Write(sampleAccounts(t)))

	var rows []Row
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, Row{Client: 1, Available: "1.2346", Held: "0.5000", Total: "1.7346"}, rows[0])
	assert.Equal(t, Row{Client: 2, Available: "0.0000", Held: "0.0000", Total: "0.0000", Locked: true}, rows[1])
}

func TestWriteEmpty(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, "")
	require.NoError(t, err)

	require.NoError(t, w.Write(nil))
	assert.Equal(t, "client, available, held, total, locked\n", buf.String())
}

func TestRowsNegativeHeld(t *testing.T) {
	acc := ledger.NewAccount(3, ledger.PolicyPermissive)
	require.NoError(t, acc.Deposit(0, decimal.RequireFromString("5")))
	require.NoError(t, acc.Withdraw(1, decimal.RequireFromString("3")))
	require.NoError(t, acc.Dispute(1))

	rows := Rows(map[ledger.ClientID]*ledger.Account{3: acc})
	require.Len(t, rows, 1)
	assert.Equal(t, "5.0000", rows[0].Available)
	assert.Equal(t, "-3.0000", rows[0].Held)
	assert.Equal(t, "2.0000", rows[0].Total)
}

func TestNewWriterRejectsUnknownFormat(t *testing.T) {
	_, err := NewWriter(&bytes.Buffer{}, "xml")
	assert.Error(t, err)
}
