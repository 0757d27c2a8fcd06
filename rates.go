package ledgerx

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

var (
	_ CurrencyService = (*RemoteRates)(nil)
)

// RemoteRates fetches rates from an exchangerate-api style endpoint,
// `GET {url}/latest/{from}`. Codes and digits still come from the static
// tables. The rate table of each source currency is kept for the cache TTL,
// and concurrent lookups of the same source share one request.
type RemoteRates struct {
	*StaticCurrencies
	url    string
	client *http.Client
	log    *zerolog.Logger

	ttl   time.Duration
	group singleflight.Group
	mu    sync.Mutex
	cache map[string]cachedRates
}

type cachedRates struct {
	rates   map[string]decimal.Decimal
	fetched time.Time
}

type latestRatesResp struct {
	Result          string                     `json:"result"`
	BaseCode        string                     `json:"base_code"`
	ConversionRates map[string]decimal.Decimal `json:"conversion_rates"`
	ErrorType       string                     `json:"error-type,omitempty"`
}

func NewRemoteRates(codes *StaticCurrencies, url string, client *http.Client, log *zerolog.Logger) *RemoteRates {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &RemoteRates{
		StaticCurrencies: codes,
		url:              strings.TrimRight(url, "/"),
		client:           client,
		log:              log,
		cache:            make(map[string]cachedRates),
	}
}

// WithCacheTTL keeps fetched rate tables for ttl. Zero disables caching.
func (rr *RemoteRates) WithCacheTTL(ttl time.Duration) *RemoteRates {
	rr.ttl = ttl
	return rr
}

func (rr *RemoteRates) Rate(from, to string) (decimal.Decimal, error) {
	f, err := rr.ValidateCode(from)
	if err != nil {
		return decimal.Zero, err
	}
	t, err := rr.ValidateCode(to)
	if err != nil {
		return decimal.Zero, err
	}
	if f == t {
		return decimal.NewFromInt(1), nil
	}

	rates, err := rr.latest(f)
	if err != nil {
		return decimal.Zero, err
	}
	rate, ok := rates[t]
	if !ok {
		return decimal.Zero, badRequest(ErrUnknownCurrency, "currency", fmt.Sprintf("no rate for %s to %s", f, t))
	}
	return rate, nil
}

// latest returns the rate table of from, cached or freshly fetched.
func (rr *RemoteRates) latest(from string) (map[string]decimal.Decimal, error) {
	if rr.ttl > 0 {
		rr.mu.Lock()
		c, ok := rr.cache[from]
		rr.mu.Unlock()
		if ok && time.Since(c.fetched) < rr.ttl {
			return c.rates, nil
		}
	}

	v, err, _ := rr.group.Do(from, func() (any, error) {
		rates, err := rr.fetch(from)
		if err != nil {
			return nil, err
		}
		if rr.ttl > 0 {
			rr.mu.Lock()
			rr.cache[from] = cachedRates{rates: rates, fetched: time.Now()}
			rr.mu.Unlock()
		}
		return rates, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]decimal.Decimal), nil
}

func (rr *RemoteRates) fetch(from string) (map[string]decimal.Decimal, error) {
	resp, err := rr.client.Get(fmt.Sprintf("%s/latest/%s", rr.url, from))
	if err != nil {
		rr.log.Err(err).Str("from", from).Msg("error fetching rates")
		return nil, fmt.Errorf("%w: %s", ErrConversionUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		rr.log.Error().
			Int("status", resp.StatusCode).
			Str("from", from).
			Msg("rate source returned non-OK status")
		return nil, fmt.Errorf("%w: status %d: %s", ErrConversionUnavailable, resp.StatusCode, body)
	}

	var latest latestRatesResp
	if err = json.NewDecoder(resp.Body).Decode(&latest); err != nil {
		rr.log.Err(err).Str("from", from).Msg("error decoding rates")
		return nil, fmt.Errorf("%w: %s", ErrConversionUnavailable, err)
	}
	if latest.Result != "success" {
		return nil, fmt.Errorf("%w: result %q %s", ErrConversionUnavailable, latest.Result, latest.ErrorType)
	}

	return latest.ConversionRates, nil
}
