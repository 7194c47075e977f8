package ledger

import (
	"github.com/shopspring/decimal"
)

// Policy decides how an account behaves once a chargeback has locked it
type Policy uint8

const (
	// PolicyPermissive keeps applying events to locked accounts
	PolicyPermissive Policy = iota
	// PolicyFreeze rejects every event for a locked account with ErrAccountLocked
	PolicyFreeze
)

// Account holds one client's balances and the memory of the deposits and
// withdrawals it may still have to dispute.
//
// open and disputed store the signed change each transaction made to the
// available funds: +amount for deposits, -amount for withdrawals. A
// transaction id is in at most one of the two maps. Entries leave the
// memory for good once resolved or charged back.
type Account struct {
	client    ClientID
	available decimal.Decimal
	held      decimal.Decimal
	locked    bool
	policy    Policy

	open     map[TxID]decimal.Decimal
	disputed map[TxID]decimal.Decimal
}

// Balance is a point-in-time copy of an account's reportable state
type Balance struct {
	Client    ClientID
	Available decimal.Decimal
	Held      decimal.Decimal
	Total     decimal.Decimal
	Locked    bool
}

// NewAccount creates an empty, unlocked account
func NewAccount(client ClientID, policy Policy) *Account {
	return &Account{
		client:    client,
		available: decimal.Zero,
		held:      decimal.Zero,
		policy:    policy,
		open:      make(map[TxID]decimal.Decimal),
		disputed:  make(map[TxID]decimal.Decimal),
	}
}

// Deposit credits amount and remembers it under tx.
// A reused tx id still credits the funds; ErrDuplicateTransaction is returned
// afterwards so callers can report it.
func (a *Account) Deposit(tx TxID, amount decimal.Decimal) error {
	if err := a.checkFrozen(); err != nil {
		return err
	}
	a.available = a.available.Add(amount)
	return a.remember(tx, amount)
}

// Withdraw debits amount if enough funds are available, otherwise it leaves
// the account untouched and returns ErrInsufficientFunds.
func (a *Account) Withdraw(tx TxID, amount decimal.Decimal) error {
	if err := a.checkFrozen(); err != nil {
		return err
	}
	if a.available.LessThan(amount) {
		return ErrInsufficientFunds
	}
	a.available = a.available.Sub(amount)
	return a.remember(tx, amount.Neg())
}

// Dispute moves an open transaction's amount from available to held.
// Disputing a withdrawal raises available and may push held below zero.
func (a *Account) Dispute(tx TxID) error {
	if err := a.checkFrozen(); err != nil {
		return err
	}
	amount, ok := a.open[tx]
	if !ok {
		return ErrUnknownTransaction
	}
	delete(a.open, tx)
	a.disputed[tx] = amount
	a.available = a.available.Sub(amount)
	a.held = a.held.Add(amount)
	return nil
}

// Resolve releases a disputed amount back to available. The transaction
// cannot be disputed again.
func (a *Account) Resolve(tx TxID) error {
	if err := a.checkFrozen(); err != nil {
		return err
	}
	amount, ok := a.disputed[tx]
	if !ok {
		return ErrNotDisputed
	}
	delete(a.disputed, tx)
	a.held = a.held.Sub(amount)
	a.available = a.available.Add(amount)
	return nil
}

// Chargeback drops the disputed amount from held and locks the account.
// Available is not touched: the dispute already removed the funds from it.
func (a *Account) Chargeback(tx TxID) error {
	if err := a.checkFrozen(); err != nil {
		return err
	}
	amount, ok := a.disputed[tx]
	if !ok {
		return ErrNotDisputed
	}
	delete(a.disputed, tx)
	a.held = a.held.Sub(amount)
	a.locked = true
	return nil
}

// Client returns the owner of the account
func (a *Account) Client() ClientID { return a.client }

// Available returns the funds free for withdrawal
func (a *Account) Available() decimal.Decimal { return a.available }

// Held returns the funds frozen by open disputes
func (a *Account) Held() decimal.Decimal { return a.held }

// Locked reports whether a chargeback has frozen the account
func (a *Account) Locked() bool { return a.locked }

// Total is available plus held funds
func (a *Account) Total() decimal.Decimal {
	return a.available.Add(a.held)
}

// Snapshot copies the reportable state
func (a *Account) Snapshot() Balance {
	return Balance{
		Client:    a.client,
		Available: a.available,
		Held:      a.held,
		Total:     a.Total(),
		Locked:    a.locked,
	}
}

// remember records the signed amount of a successful deposit or withdrawal.
// The balance change has already been applied.
func (a *Account) remember(tx TxID, signed decimal.Decimal) error {
	if _, ok := a.disputed[tx]; ok {
		return ErrDuplicateTransaction
	}
	_, dup := a.open[tx]
	a.open[tx] = signed
	if dup {
		return ErrDuplicateTransaction
	}
	return nil
}

func (a *Account) checkFrozen() error {
	if a.locked && a.policy == PolicyFreeze {
		return ErrAccountLocked
	}
	return nil
}
