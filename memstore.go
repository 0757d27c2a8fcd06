package ledgerx

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// acctEntry is the unit of concurrency control: every balance read or
// mutation of one account happens under its own mutex. Operations on one
// account are linearizable but not served in strict arrival order.
type acctEntry struct {
	mu   sync.Mutex
	acct Account
}

// MemStore keeps accounts in process memory. The index is a sync.Map so
// lookups never contend with each other or with account creation.
type MemStore struct {
	accts sync.Map
	ids   IDGenerator
	log   *zerolog.Logger
}

var (
	_ Repository = (*MemStore)(nil)
)

func NewMemStore(ids IDGenerator, log *zerolog.Logger) *MemStore {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &MemStore{
		ids: ids,
		log: log,
	}
}

func (ms *MemStore) CreateAccount(req NewAccount) (*Account, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, badRequest(ErrInvalidName, "name", "must not be empty")
	}
	if req.Initial < 0 {
		return nil, badRequest(ErrInvalidAmount, "value", "must not be negative")
	}

	entry := &acctEntry{
		acct: Account{
			ID:       ms.ids.NewID(),
			Name:     req.Name,
			Currency: req.Currency,
			Digits:   req.Digits,
			Balance:  req.Initial,
		},
	}
	if _, loaded := ms.accts.LoadOrStore(entry.acct.ID, entry); loaded {
		ms.log.Error().Str("acctID", entry.acct.ID).Msg("generated account ID collided")
		return nil, fmt.Errorf("%w: duplicate account ID %s", ErrInternalServer, entry.acct.ID)
	}

	acct := entry.acct
	return &acct, nil
}

func (ms *MemStore) Exists(id string) bool {
	_, ok := ms.accts.Load(id)
	return ok
}

func (ms *MemStore) GetAccount(id string) (*Account, error) {
	entry, err := ms.entry(id)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	acct := entry.acct
	entry.mu.Unlock()
	return &acct, nil
}

func (ms *MemStore) Deposit(id string, amount Amount) (Amount, error) {
	if amount < 0 {
		return 0, badRequest(ErrInvalidAmount, "amount", "must not be negative")
	}
	entry, err := ms.entry(id)
	if err != nil {
		return 0, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.acct.Balance > math.MaxInt64-amount {
		return entry.acct.Balance, badRequest(ErrInvalidAmount, "amount", "balance would overflow")
	}
	entry.acct.Balance += amount
	return entry.acct.Balance, nil
}

// Withdraw checks and subtracts in one critical section, so concurrent
// withdrawals can never take an account below zero.
func (ms *MemStore) Withdraw(id string, amount Amount) (Amount, error) {
	if amount < 0 {
		return 0, badRequest(ErrInvalidAmount, "amount", "must not be negative")
	}
	entry, err := ms.entry(id)
	if err != nil {
		return 0, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.acct.Balance < amount {
		return entry.acct.Balance, badRequest(ErrInsufficientFunds, "amount", "insufficient balance")
	}
	entry.acct.Balance -= amount
	return entry.acct.Balance, nil
}

func (ms *MemStore) entry(id string) (*acctEntry, error) {
	v, ok := ms.accts.Load(id)
	if !ok {
		return nil, ErrNotFound{ID: id}
	}
	return v.(*acctEntry), nil
}
