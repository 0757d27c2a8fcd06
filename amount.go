package ledgerx

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is an exact count of a currency's smallest unit, e.g. cents.
type Amount int64

var (
	amountPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
	maxUnits      = decimal.NewFromInt(math.MaxInt64)
)

// StoreAmount parses a non-negative decimal string and scales it to a
// currency with the given number of fractional digits. Extra digits are
// rounded to the nearest unit, ties away from zero.
func StoreAmount(value string, digits int32) (Amount, error) {
	v := strings.TrimSpace(value)
	if !amountPattern.MatchString(v) {
		return 0, badRequest(ErrInvalidAmount, "value", "must be a non-negative decimal")
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return 0, badRequest(ErrInvalidAmount, "value", err.Error())
	}
	return amountFromDecimal(d, digits)
}

// DisplayAmount renders an Amount with exactly digits fractional digits.
func DisplayAmount(a Amount, digits int32) string {
	return a.Decimal(digits).StringFixed(digits)
}

// Decimal returns a as a decimal in a currency with the given digits.
func (a Amount) Decimal(digits int32) decimal.Decimal {
	return decimal.New(int64(a), -digits)
}

func amountFromDecimal(d decimal.Decimal, digits int32) (Amount, error) {
	units := d.Shift(digits).Round(0)
	if units.IsNegative() {
		return 0, badRequest(ErrInvalidAmount, "value", "must not be negative")
	}
	if units.GreaterThan(maxUnits) {
		return 0, badRequest(ErrInvalidAmount, "value", "out of range")
	}
	return Amount(units.IntPart()), nil
}

// Money pairs an Amount with the currency it is denominated in.
type Money struct {
	Units    Amount
	Currency string
	Digits   int32
}

// Decimal returns m in whole currency units.
func (m Money) Decimal() decimal.Decimal {
	return m.Units.Decimal(m.Digits)
}

func (m Money) String() string {
	return DisplayAmount(m.Units, m.Digits) + " " + m.Currency
}

type moneyJSON struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{
		Amount:   DisplayAmount(m.Units, m.Digits),
		Currency: m.Currency,
	})
}
