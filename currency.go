package ledgerx

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencyService validates currency codes and supplies exchange rates.
// Rate returns how many units of `to` one unit of `from` buys.
type CurrencyService interface {
	ValidateCode(code string) (string, error)
	Digits(code string) (int32, error)
	Rate(from, to string) (decimal.Decimal, error)
}

// DefaultCurrencyDigits lists the fractional digits of the currencies known
// out of the box.
var DefaultCurrencyDigits = map[string]int32{
	"AUD": 2,
	"BRL": 2,
	"CAD": 2,
	"CHF": 2,
	"CNY": 2,
	"EUR": 2,
	"GBP": 2,
	"INR": 2,
	"JPY": 0,
	"KWD": 3,
	"USD": 2,
}

var (
	_ CurrencyService = (*StaticCurrencies)(nil)
)

// StaticCurrencies serves codes, digits and rates from fixed tables. Rates are
// expressed as units of a currency per one unit of the base currency.
type StaticCurrencies struct {
	digits  map[string]int32
	base    string
	perBase map[string]decimal.Decimal
}

func NewStaticCurrencies(digits map[string]int32, base string, perBase map[string]decimal.Decimal) (*StaticCurrencies, error) {
	if len(digits) == 0 {
		digits = DefaultCurrencyDigits
	}
	sc := &StaticCurrencies{
		digits:  make(map[string]int32, len(digits)),
		perBase: make(map[string]decimal.Decimal, len(perBase)+1),
	}
	for code, d := range digits {
		if d < 0 || d > 8 {
			return nil, fmt.Errorf("currency %s: digits %d out of range", code, d)
		}
		sc.digits[canonical(code)] = d
	}

	if base == "" {
		return sc, nil
	}
	b, err := sc.ValidateCode(base)
	if err != nil {
		return nil, fmt.Errorf("base currency: %w", err)
	}
	sc.base = b
	sc.perBase[b] = decimal.NewFromInt(1)
	for code, r := range perBase {
		c, err := sc.ValidateCode(code)
		if err != nil {
			return nil, fmt.Errorf("rate table: %w", err)
		}
		if !r.IsPositive() {
			return nil, fmt.Errorf("rate table: rate for %s must be positive", c)
		}
		if c == b && !r.Equal(decimal.NewFromInt(1)) {
			return nil, fmt.Errorf("rate table: base currency %s must have rate 1", c)
		}
		sc.perBase[c] = r
	}
	return sc, nil
}

func canonical(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (sc *StaticCurrencies) ValidateCode(code string) (string, error) {
	c := canonical(code)
	if _, ok := sc.digits[c]; !ok {
		return "", badRequest(ErrUnknownCurrency, "currency", fmt.Sprintf("%q is not supported", code))
	}
	return c, nil
}

func (sc *StaticCurrencies) Digits(code string) (int32, error) {
	c, err := sc.ValidateCode(code)
	if err != nil {
		return 0, err
	}
	return sc.digits[c], nil
}

func (sc *StaticCurrencies) Rate(from, to string) (decimal.Decimal, error) {
	f, err := sc.ValidateCode(from)
	if err != nil {
		return decimal.Zero, err
	}
	t, err := sc.ValidateCode(to)
	if err != nil {
		return decimal.Zero, err
	}
	if f == t {
		return decimal.NewFromInt(1), nil
	}
	rf, okf := sc.perBase[f]
	rt, okt := sc.perBase[t]
	if !okf || !okt {
		return decimal.Zero, badRequest(ErrUnknownCurrency, "currency", fmt.Sprintf("no rate for %s to %s", f, t))
	}
	return rt.Div(rf), nil
}

// Converter turns decimal strings into Money and moves Money across
// currencies. It holds no state besides the currency service.
type Converter struct {
	currencies CurrencyService
}

func NewConverter(cs CurrencyService) *Converter {
	return &Converter{currencies: cs}
}

func (c *Converter) Validate(code string) (string, error) {
	return c.currencies.ValidateCode(code)
}

// Store parses value in the precision of currency.
func (c *Converter) Store(value, currency string) (Money, error) {
	code, err := c.currencies.ValidateCode(currency)
	if err != nil {
		return Money{}, err
	}
	digits, err := c.currencies.Digits(code)
	if err != nil {
		return Money{}, err
	}
	units, err := StoreAmount(value, digits)
	if err != nil {
		return Money{}, err
	}
	return Money{Units: units, Currency: code, Digits: digits}, nil
}

// Convert stores value in from's precision, then converts it into to.
func (c *Converter) Convert(from, to, value string) (Money, error) {
	src, err := c.Store(value, from)
	if err != nil {
		return Money{}, err
	}
	return c.ConvertMoney(src, to)
}

// ConvertMoney applies the current rate and rounds to the nearest unit of
// the target currency, ties away from zero. Same-currency conversion is the
// identity.
func (c *Converter) ConvertMoney(m Money, to string) (Money, error) {
	code, err := c.currencies.ValidateCode(to)
	if err != nil {
		return Money{}, err
	}
	if code == m.Currency {
		return m, nil
	}
	digits, err := c.currencies.Digits(code)
	if err != nil {
		return Money{}, err
	}
	rate, err := c.currencies.Rate(m.Currency, code)
	if err != nil {
		return Money{}, err
	}
	if !rate.IsPositive() {
		return Money{}, fmt.Errorf("%w: non-positive rate %s for %s to %s", ErrConversionUnavailable, rate, m.Currency, code)
	}
	units, err := amountFromDecimal(m.Decimal().Mul(rate), digits)
	if err != nil {
		return Money{}, err
	}
	return Money{Units: units, Currency: code, Digits: digits}, nil
}
