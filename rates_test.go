package ledgerx_test

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/arhyth/ledgerx"
)

func TestRemoteRates(t *testing.T) {
	nooplog := zerolog.Nop()

	t.Run("reads the target rate from the latest rates of the source", func(tt *testing.T) {
		as := assert.New(tt)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			as.Equal("/v6/latest/USD", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"result":"success","base_code":"USD","conversion_rates":{"USD":1,"BRL":5.1234}}`))
		}))
		tt.Cleanup(srv.Close)

		rr := ledgerx.NewRemoteRates(newTestCurrencies(tt), srv.URL+"/v6/", srv.Client(), &nooplog)
		rate, err := rr.Rate("usd", "brl")
		as.NoError(err)
		as.True(rate.Equal(decimal.RequireFromString("5.1234")), rate.String())
	})

	t.Run("does not call out for same-currency rates", func(tt *testing.T) {
		as := assert.New(tt)
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
		}))
		tt.Cleanup(srv.Close)

		rr := ledgerx.NewRemoteRates(newTestCurrencies(tt), srv.URL, srv.Client(), &nooplog)
		rate, err := rr.Rate("EUR", "EUR")
		as.NoError(err)
		as.True(rate.Equal(decimal.NewFromInt(1)))
		as.Zero(hits.Load())
	})

	t.Run("reports an unavailable source", func(tt *testing.T) {
		as := assert.New(tt)
		handlers := []http.HandlerFunc{
			func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"result":"error","error-type":"quota-reached"}`))
			},
			func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"result":`))
			},
		}
		for _, h := range handlers {
			srv := httptest.NewServer(h)
			rr := ledgerx.NewRemoteRates(newTestCurrencies(tt), srv.URL, srv.Client(), &nooplog)
			_, err := rr.Rate("USD", "BRL")
			as.ErrorIs(err, ledgerx.ErrConversionUnavailable)
			srv.Close()
		}

		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		rr := ledgerx.NewRemoteRates(newTestCurrencies(tt), url, nil, nil)
		_, err := rr.Rate("USD", "BRL")
		as.ErrorIs(err, ledgerx.ErrConversionUnavailable)
	})

	t.Run("reuses the rate table of a source within the cache TTL", func(tt *testing.T) {
		as := assert.New(tt)
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.Write([]byte(`{"result":"success","base_code":"USD","conversion_rates":{"USD":1,"BRL":5,"JPY":150}}`))
		}))
		tt.Cleanup(srv.Close)

		rr := ledgerx.NewRemoteRates(newTestCurrencies(tt), srv.URL, srv.Client(), &nooplog).
			WithCacheTTL(time.Hour)
		for i := 0; i < 3; i++ {
			rate, err := rr.Rate("USD", "BRL")
			as.NoError(err)
			as.True(rate.Equal(decimal.NewFromInt(5)))
		}
		rate, err := rr.Rate("USD", "JPY")
		as.NoError(err)
		as.True(rate.Equal(decimal.NewFromInt(150)))
		as.EqualValues(1, hits.Load())
	})

	t.Run("fetches every time without a cache TTL", func(tt *testing.T) {
		as := assert.New(tt)
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.Write([]byte(`{"result":"success","base_code":"USD","conversion_rates":{"USD":1,"BRL":5}}`))
		}))
		tt.Cleanup(srv.Close)

		rr := ledgerx.NewRemoteRates(newTestCurrencies(tt), srv.URL, srv.Client(), &nooplog)
		for i := 0; i < 2; i++ {
			_, err := rr.Rate("USD", "BRL")
			as.NoError(err)
		}
		as.EqualValues(2, hits.Load())
	})

	t.Run("does not cache failures", func(tt *testing.T) {
		as := assert.New(tt)
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Write([]byte(`{"result":"success","base_code":"USD","conversion_rates":{"USD":1,"BRL":5}}`))
		}))
		tt.Cleanup(srv.Close)

		rr := ledgerx.NewRemoteRates(newTestCurrencies(tt), srv.URL, srv.Client(), &nooplog).
			WithCacheTTL(time.Hour)
		_, err := rr.Rate("USD", "BRL")
		as.ErrorIs(err, ledgerx.ErrConversionUnavailable)
		rate, err := rr.Rate("USD", "BRL")
		as.NoError(err)
		as.True(rate.Equal(decimal.NewFromInt(5)))
	})

	t.Run("reports a missing target as unknown", func(tt *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"result":"success","base_code":"USD","conversion_rates":{"USD":1}}`))
		}))
		tt.Cleanup(srv.Close)

		rr := ledgerx.NewRemoteRates(newTestCurrencies(tt), srv.URL, srv.Client(), &nooplog)
		_, err := rr.Rate("USD", "BRL")
		assert.ErrorIs(tt, err, ledgerx.ErrUnknownCurrency)
	})

	t.Run("validates codes locally", func(tt *testing.T) {
		rr := ledgerx.NewRemoteRates(newTestCurrencies(tt), "http://127.0.0.1:0", nil, &nooplog)
		_, err := rr.Rate("USD", "QQQ")
		assert.ErrorIs(tt, err, ledgerx.ErrUnknownCurrency)
	})
}
