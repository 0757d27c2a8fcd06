package ledgerx

import (
	"fmt"
	"io"
	"text/template"
)

// SeedAccounts creates the accounts listed in a config's seed section, in
// order, and stops at the first failure.
func SeedAccounts(svc Service, reqs []CreateAccountReq) ([]*Account, error) {
	accts := make([]*Account, 0, len(reqs))
	for i, req := range reqs {
		acct, err := svc.CreateAccount(req)
		if err != nil {
			return accts, fmt.Errorf("seed[%d] %q: %w", i, req.Name, err)
		}
		accts = append(accts, acct)
	}
	return accts, nil
}

const seedSummaryTmpl = `{{range $i, $a := .}}{{add $i 1}}. {{$a.Name}} ({{$a.ID}}): {{balance $a}} {{$a.Currency}}
{{else}}no seed accounts
{{end}}`

var seedSummary = template.Must(template.New("seed_summary").Funcs(template.FuncMap{
	"add":     func(a, b int) int { return a + b },
	"balance": func(a *Account) string { return DisplayAmount(a.Balance, a.Digits) },
}).Parse(seedSummaryTmpl))

// WriteSeedSummary lists seeded accounts one per line.
func WriteSeedSummary(w io.Writer, accts []*Account) error {
	return seedSummary.Execute(w, accts)
}
