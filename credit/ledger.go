// Package credit keeps the generation credit balance as an append-only
// ledger of deltas.
package credit

import (
	"database/sql"
	"sync"

	"github.com/dreamtide/veod/errors"
	"github.com/dreamtide/veod/logger"
)

// Ledger tracks credits in SQLite. The balance is the sum of all ledger
// deltas; seeding happens on first open.
type Ledger struct {
	mu sync.Mutex
	db *sql.DB
}

// NewLedger opens the ledger, seeding the initial balance if the ledger
// has never been written.
func NewLedger(db *sql.DB, initialBalance int) (*Ledger, error) {
	l := &Ledger{db: db}

	var entries int
	if err := db.QueryRow(`SELECT COUNT(*) FROM credit_ledger`).Scan(&entries); err != nil {
		return nil, errors.Wrap(err, "failed to read credit ledger")
	}

	if entries == 0 && initialBalance > 0 {
		if err := l.append(initialBalance, "initial grant"); err != nil {
			return nil, err
		}
		logger.Infow("Credit ledger seeded", "balance", initialBalance)
	}

	return l, nil
}

// Balance returns the current credit total.
func (l *Ledger) Balance() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance()
}

// Has reports whether the balance covers n credits.
func (l *Ledger) Has(n int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	balance, err := l.balance()
	if err != nil {
		return false, err
	}
	return balance >= n, nil
}

// Use deducts n credits. Fails with ErrInsufficientCredits when the
// balance cannot cover the charge.
func (l *Ledger) Use(n int, reason string) error {
	if n <= 0 {
		return errors.Wrap(errors.ErrInvalidRequest, "credit charge must be positive")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance, err := l.balance()
	if err != nil {
		return err
	}
	if balance < n {
		return errors.Wrapf(errors.ErrInsufficientCredits, "balance %d, need %d", balance, n)
	}

	return l.append(-n, reason)
}

// Add grants n credits.
func (l *Ledger) Add(n int, reason string) error {
	if n <= 0 {
		return errors.Wrap(errors.ErrInvalidRequest, "credit grant must be positive")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.append(n, reason)
}

func (l *Ledger) balance() (int, error) {
	var balance int
	err := l.db.QueryRow(`SELECT COALESCE(SUM(delta), 0) FROM credit_ledger`).Scan(&balance)
	if err != nil {
		return 0, errors.Wrap(err, "failed to sum credit ledger")
	}
	return balance, nil
}

func (l *Ledger) append(delta int, reason string) error {
	_, err := l.db.Exec(`INSERT INTO credit_ledger (delta, reason) VALUES (?, ?)`, delta, reason)
	if err != nil {
		return errors.Wrap(err, "failed to append to credit ledger")
	}
	return nil
}
