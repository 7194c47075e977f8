package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Aidin1998/txreplay/pkg/metrics"
	"go.uber.org/zap"
)

// Processor replays a source of events into a set of accounts
type Processor interface {
	Run(ctx context.Context, src Source) error
	Accounts() map[ClientID]*Account
}

// Option configures an Engine
type Option func(*Engine)

// WithMetrics records event outcomes on m
func WithMetrics(m *metrics.Replay) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithPolicy sets the policy of every account the engine creates
func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// Engine owns the accounts and routes each event to the account of its client.
// It is not safe for concurrent use; see ShardedEngine for parallel replay.
type Engine struct {
	logger   *zap.Logger
	metrics  *metrics.Replay
	policy   Policy
	accounts map[ClientID]*Account
}

// NewEngine creates an engine with no accounts
func NewEngine(logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		logger:   logger,
		policy:   PolicyPermissive,
		accounts: make(map[ClientID]*Account),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute applies one event, creating the client's account on first reference.
// The returned error explains why an event was not (fully) applied; it is
// never fatal and may be ignored.
func (e *Engine) Execute(ev Event) error {
	acc := e.account(ev.Client)
	wasLocked := acc.Locked()

	var err error
	switch ev.Kind {
	case Deposit:
		if !ev.Amount.Valid {
			err = ErrMissingAmount
			break
		}
		err = acc.Deposit(ev.Tx, ev.Amount.Decimal)
	case Withdrawal:
		if !ev.Amount.Valid {
			err = ErrMissingAmount
			break
		}
		err = acc.Withdraw(ev.Tx, ev.Amount.Decimal)
	case Dispute:
		err = acc.Dispute(ev.Tx)
	case Resolve:
		err = acc.Resolve(ev.Tx)
	case Chargeback:
		err = acc.Chargeback(ev.Tx)
	default:
		err = ErrUnknownKind
	}

	if !wasLocked && acc.Locked() {
		e.metrics.AccountLocked()
	}
	e.metrics.ObserveEvent(ev.Kind.String(), outcome(err))

	if err != nil {
		e.logger.Debug("Event not applied",
			zap.String("kind", ev.Kind.String()),
			zap.Uint16("client", uint16(ev.Client)),
			zap.Uint32("tx", uint32(ev.Tx)),
			zap.Error(err))
		return fmt.Errorf("%s tx %d for client %d: %w", ev.Kind, ev.Tx, ev.Client, err)
	}
	return nil
}

// Run executes events from src until it is exhausted. Rejected events do
// not stop the run; source errors and context cancellation do.
func (e *Engine) Run(ctx context.Context, src Source) error {
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.ReplayDuration.Observe(time.Since(start).Seconds())
		}
	}()

	var n int
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ev, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		_ = e.Execute(ev)
		n++
	}

	e.logger.Info("Replay finished",
		zap.Int("events", n),
		zap.Int("accounts", len(e.accounts)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// Accounts returns the accounts keyed by client. Iteration order carries no meaning.
func (e *Engine) Accounts() map[ClientID]*Account {
	return e.accounts
}

// Account returns the account of client if it has been referenced
func (e *Engine) Account(client ClientID) (*Account, bool) {
	acc, ok := e.accounts[client]
	return acc, ok
}

// Len is the number of accounts
func (e *Engine) Len() int {
	return len(e.accounts)
}

func (e *Engine) account(client ClientID) *Account {
	acc, ok := e.accounts[client]
	if !ok {
		acc = NewAccount(client, e.policy)
		e.accounts[client] = acc
		e.metrics.AccountOpened()
	}
	return acc
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeApplied
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrUnknownTransaction):
		return "unknown_transaction"
	case errors.Is(err, ErrNotDisputed):
		return "not_disputed"
	case errors.Is(err, ErrDuplicateTransaction):
		return "duplicate"
	case errors.Is(err, ErrMissingAmount):
		return "missing_amount"
	case errors.Is(err, ErrAccountLocked):
		return "account_locked"
	default:
		return "unknown_kind"
	}
}
