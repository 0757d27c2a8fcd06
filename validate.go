package ledgerx

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// SplitInstruction sends Percent of a split to AcctID.
type SplitInstruction struct {
	AcctID  string          `json:"account_id"`
	Percent decimal.Decimal `json:"percent"`
}

// CheckFunds is an advisory pre-flight check. Repository.Withdraw is what
// actually guards against overdraft.
func CheckFunds(repo Repository, id string, amount Amount) error {
	acct, err := repo.GetAccount(id)
	if err != nil {
		return err
	}
	if acct.Balance < amount {
		return badRequest(ErrInsufficientFunds, "amount", "insufficient balance")
	}
	return nil
}

// CheckPercentSum requires every percent to be in (0, 100] and the total to
// be exactly 100.
func CheckPercentSum(list []SplitInstruction) error {
	if len(list) == 0 {
		return badRequest(ErrInvalidPercent, "recipients", "must not be empty")
	}
	sum := decimal.Zero
	for i, si := range list {
		if !si.Percent.IsPositive() || si.Percent.GreaterThan(hundred) {
			return badRequest(ErrInvalidPercent, fmt.Sprintf("recipients[%d].percent", i), "must be in (0, 100]")
		}
		sum = sum.Add(si.Percent)
	}
	if !sum.Equal(hundred) {
		return badRequest(ErrInvalidPercent, "recipients", fmt.Sprintf("percentages sum to %s, not 100", sum))
	}
	return nil
}

// MergeDuplicateRecipients folds entries for the same account into one,
// keeping the order in which each account first appears.
func MergeDuplicateRecipients(list []SplitInstruction) []SplitInstruction {
	merged := make([]SplitInstruction, 0, len(list))
	pos := make(map[string]int, len(list))
	for _, si := range list {
		if i, ok := pos[si.AcctID]; ok {
			merged[i].Percent = merged[i].Percent.Add(si.Percent)
			continue
		}
		pos[si.AcctID] = len(merged)
		merged = append(merged, si)
	}
	return merged
}

func CheckAccountsExist(repo Repository, ids ...string) error {
	for _, id := range ids {
		if !repo.Exists(id) {
			return ErrNotFound{ID: id}
		}
	}
	return nil
}
