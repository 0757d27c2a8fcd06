package ledgerx

import (
	"encoding/json"
	"fmt"
)

type Repository interface {
	CreateAccount(req NewAccount) (*Account, error)
	Exists(id string) bool
	GetAccount(id string) (*Account, error)
	Deposit(id string, amount Amount) (Amount, error)
	Withdraw(id string, amount Amount) (Amount, error)
}

type NewAccount struct {
	Name     string
	Currency string
	Digits   int32
	Initial  Amount
}

// Account is a point-in-time snapshot. Mutating it has no effect on the
// stored account.
type Account struct {
	ID       string
	Name     string
	Currency string
	Digits   int32
	Balance  Amount
}

func (a Account) Money() Money {
	return Money{Units: a.Balance, Currency: a.Currency, Digits: a.Digits}
}

func (a Account) String() string {
	return fmt.Sprintf("%s (%s): %s", a.Name, a.ID, a.Money())
}

type accountJSON struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
	Balance  string `json:"balance"`
}

func (a Account) MarshalJSON() ([]byte, error) {
	return json.Marshal(accountJSON{
		ID:       a.ID,
		Name:     a.Name,
		Currency: a.Currency,
		Balance:  DisplayAmount(a.Balance, a.Digits),
	})
}
