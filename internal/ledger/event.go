package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ClientID identifies the owner of an account
type ClientID uint16

// TxID identifies a deposit or withdrawal; disputes, resolves and chargebacks refer to it
type TxID uint32

// Kind is the type of a ledger event
type Kind uint8

const (
	// Deposit credits available funds
	Deposit Kind = iota
	// Withdrawal debits available funds if they cover the amount
	Withdrawal
	// Dispute moves a recorded transaction's amount from available to held
	Dispute
	// Resolve releases a disputed amount back to available
	Resolve
	// Chargeback removes a disputed amount from held and locks the account
	Chargeback
)

var kindNames = [...]string{
	Deposit:    "deposit",
	Withdrawal: "withdrawal",
	Dispute:    "dispute",
	Resolve:    "resolve",
	Chargeback: "chargeback",
}

// String returns the lowercase name used in input files
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind maps an input name such as "deposit" to its Kind
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for k, n := range kindNames {
		if n == name {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Event is one ledger instruction. Amount is only valid for deposits and withdrawals.
type Event struct {
	Kind   Kind
	Client ClientID
	Tx     TxID
	Amount decimal.NullDecimal
}

// Source yields events in input order and returns io.EOF once exhausted
type Source interface {
	Next() (Event, error)
}

// NewDeposit builds a deposit event
func NewDeposit(client ClientID, tx TxID, amount decimal.Decimal) Event {
	return Event{Kind: Deposit, Client: client, Tx: tx, Amount: decimal.NewNullDecimal(amount)}
}

// NewWithdrawal builds a withdrawal event
func NewWithdrawal(client ClientID, tx TxID, amount decimal.Decimal) Event {
	return Event{Kind: Withdrawal, Client: client, Tx: tx, Amount: decimal.NewNullDecimal(amount)}
}

// NewReference builds a dispute, resolve or chargeback event
func NewReference(kind Kind, client ClientID, tx TxID) Event {
	return Event{Kind: kind, Client: client, Tx: tx}
}
