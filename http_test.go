package ledgerx_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/arhyth/ledgerx"
	"github.com/arhyth/ledgerx/mocks"
)

func serve(hndlr http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	hndlr.ServeHTTP(w, req)
	return w
}

func TestHTTPCreateAccount(t *testing.T) {
	nooplog := zerolog.Nop()

	t.Run("returns Created with the new account", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().
			CreateAccount(ledgerx.CreateAccountReq{Name: "Ana", Currency: "EUR", Value: "220"}).
			Return(&ledgerx.Account{ID: "42", Name: "Ana", Currency: "EUR", Digits: 2, Balance: 22000}, nil)

		hndlr := ledgerx.NewHTTPHandler(svc, &nooplog)
		w := serve(hndlr, http.MethodPost, "/accounts/", `{"name":"Ana","currency":"EUR","value":"220"}`)

		as.Equal(http.StatusCreated, w.Code)
		resp := map[string]string{}
		reqrd.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		as.Equal("42", resp["id"])
		as.Equal("220.00", resp["balance"])
		as.Equal("EUR", resp["currency"])
	})

	t.Run("returns BadRequest on unknown currency", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().
			CreateAccount(gomock.Any()).
			Return(nil, ledgerx.ErrBadRequest{Kind: ledgerx.ErrUnknownCurrency, Fields: map[string]string{"currency": "not supported"}})

		hndlr := ledgerx.NewHTTPHandler(svc, &nooplog)
		w := serve(hndlr, http.MethodPost, "/accounts/", `{"name":"Ana","currency":"XXX","value":"1"}`)

		as.Equal(http.StatusBadRequest, w.Code)
		resp := map[string]any{}
		reqrd.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		as.Equal(ledgerx.ErrUnknownCurrency.Error(), resp["error"])
		as.Contains(resp["fields"], "currency")
	})
}

func TestHTTPDeposit(t *testing.T) {
	nooplog := zerolog.Nop()

	t.Run("Deposit returns OK on success", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().
			Deposit(gomock.AssignableToTypeOf(ledgerx.ChargeReq{})).
			DoAndReturn(func(r ledgerx.ChargeReq) (*ledgerx.Money, error) {
				as.Equal("1834563581361305763", r.AcctID)
				as.Equal("BRL", r.Currency)
				as.Equal("1234", r.Value)
				return &ledgerx.Money{Units: 123400, Currency: "BRL", Digits: 2}, nil
			}).
			Times(1)

		hndlr := ledgerx.NewHTTPHandler(svc, &nooplog)
		w := serve(hndlr, http.MethodPost, "/accounts/1834563581361305763/deposit", `{"currency":"BRL","value":"1234"}`)

		as.Equal(http.StatusOK, w.Code)
		resp := map[string]string{}
		err := json.Unmarshal(w.Body.Bytes(), &resp)
		as.Nil(err)
		as.Equal("1234.00", resp["balance"])
		as.Equal("BRL", resp["currency"])
	})

	t.Run("returns BadRequest on malformed body", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)

		hndlr := ledgerx.NewHTTPHandler(svc, &nooplog)
		w := serve(hndlr, http.MethodPost, "/accounts/1/deposit", `{"currency":`)

		as.Equal(http.StatusBadRequest, w.Code)
		resp := map[string]any{}
		as.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		as.Contains(resp["fields"], "request body")
	})

	t.Run("returns BadRequest on a numeric value", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)

		hndlr := ledgerx.NewHTTPHandler(svc, &nooplog)
		w := serve(hndlr, http.MethodPost, "/accounts/1/deposit", `{"currency":"BRL","value":1234.00}`)

		as.Equal(http.StatusBadRequest, w.Code)
		resp := map[string]any{}
		as.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		as.Contains(resp["fields"], "value")
	})

	t.Run("returns ServiceUnavailable when rates cannot be fetched", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().Deposit(gomock.Any()).Return(nil, ledgerx.ErrConversionUnavailable)

		hndlr := ledgerx.NewHTTPHandler(svc, &nooplog)
		w := serve(hndlr, http.MethodPost, "/accounts/1/deposit", `{"currency":"USD","value":"1"}`)

		as.Equal(http.StatusServiceUnavailable, w.Code)
	})
}

func TestHTTPShow(t *testing.T) {
	nooplog := zerolog.Nop()

	t.Run("returns the account display", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().Show(ledgerx.ShowReq{AcctID: "7"}).Return("Ana (7): 170.00 EUR", nil)

		hndlr := ledgerx.NewHTTPHandler(svc, &nooplog)
		w := serve(hndlr, http.MethodGet, "/accounts/7", "")

		as.Equal(http.StatusOK, w.Code)
		resp := map[string]string{}
		as.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		as.Equal("Ana (7): 170.00 EUR", resp["account"])
	})

	t.Run("returns NotFound with the account ID", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().Show(gomock.Any()).Return("", ledgerx.ErrNotFound{ID: "404"})

		hndlr := ledgerx.NewHTTPHandler(svc, &nooplog)
		w := serve(hndlr, http.MethodGet, "/accounts/404", "")

		as.Equal(http.StatusNotFound, w.Code)
		resp := map[string]string{}
		as.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		as.Equal("404", resp["id"])
	})

	t.Run("returns NotFound with the path on unknown routes", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)

		hndlr := ledgerx.NewHTTPHandler(svc, &nooplog)
		w := serve(hndlr, http.MethodGet, "/ledgers/1", "")

		as.Equal(http.StatusNotFound, w.Code)
		resp := map[string]string{}
		as.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		as.Equal("/ledgers/1", resp["path"])
	})
}

func TestHTTPTransfer(t *testing.T) {
	nooplog := zerolog.Nop()

	t.Run("takes the source from the path", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().
			Transfer(ledgerx.TransferReq{From: "1", To: "2", Value: "30"}).
			Return(&ledgerx.Money{Units: 7000, Currency: "BRL", Digits: 2}, nil)

		hndlr := ledgerx.NewHTTPHandler(svc, &nooplog)
		w := serve(hndlr, http.MethodPost, "/accounts/1/transfer", `{"to":"2","value":"30"}`)

		as.Equal(http.StatusOK, w.Code)
		resp := map[string]string{}
		as.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		as.Equal("70.00", resp["balance"])
	})

	t.Run("returns ServiceUnavailable when overloaded", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().Transfer(gomock.Any()).Return(nil, ledgerx.ErrOverloaded)

		hndlr := ledgerx.NewHTTPHandler(svc, &nooplog)
		w := serve(hndlr, http.MethodPost, "/accounts/1/transfer", `{"to":"2","value":"30"}`)

		as.Equal(http.StatusServiceUnavailable, w.Code)
	})

	t.Run("hides internal errors", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().Transfer(gomock.Any()).Return(nil, ledgerx.ErrInternalServer)

		hndlr := ledgerx.NewHTTPHandler(svc, &nooplog)
		w := serve(hndlr, http.MethodPost, "/accounts/1/transfer", `{"to":"2","value":"30"}`)

		as.Equal(http.StatusInternalServerError, w.Code)
		resp := map[string]string{}
		as.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		as.Equal("server error", resp["message"])
	})
}

func TestHTTPSplit(t *testing.T) {
	nooplog := zerolog.Nop()

	t.Run("decodes recipients", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().
			Split(gomock.AssignableToTypeOf(ledgerx.SplitReq{})).
			DoAndReturn(func(r ledgerx.SplitReq) (*ledgerx.Account, error) {
				as.Equal("1", r.From)
				as.Len(r.Recipients, 2)
				as.Equal("2", r.Recipients[0].AcctID)
				as.Equal("80", r.Recipients[0].Percent.String())
				return &ledgerx.Account{ID: "1", Name: "X", Currency: "BRL", Digits: 2}, nil
			})

		hndlr := ledgerx.NewHTTPHandler(svc, &nooplog)
		body := `{"value":"100","recipients":[{"account_id":"2","percent":"80"},{"account_id":"3","percent":20}]}`
		w := serve(hndlr, http.MethodPost, "/accounts/1/split", body)

		as.Equal(http.StatusOK, w.Code)
		resp := map[string]string{}
		as.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		as.Equal("0.00", resp["balance"])
	})

	t.Run("reports completed legs on partial failure", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().Split(gomock.Any()).Return(nil, ledgerx.ErrSplitPartial{
			Completed: 1,
			Err:       ledgerx.ErrBadRequest{Kind: ledgerx.ErrUnknownCurrency},
		})

		hndlr := ledgerx.NewHTTPHandler(svc, &nooplog)
		w := serve(hndlr, http.MethodPost, "/accounts/1/split", `{"value":"1","recipients":[]}`)

		as.Equal(http.StatusBadRequest, w.Code)
		resp := map[string]any{}
		as.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		as.EqualValues(1, resp["completed"])
	})
}

func TestHTTPStatement(t *testing.T) {
	nooplog := zerolog.Nop()

	t.Run("serves the PDF", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().
			Statement(gomock.Any(), ledgerx.StatementReq{AcctID: "1"}).
			DoAndReturn(func(w io.Writer, _ ledgerx.StatementReq) error {
				_, err := io.WriteString(w, "%PDF-1.3")
				return err
			})

		hndlr := ledgerx.NewHTTPHandler(svc, &nooplog)
		w := serve(hndlr, http.MethodGet, "/accounts/1/statement", "")

		as.Equal(http.StatusOK, w.Code)
		as.Equal("application/pdf", w.Header().Get("Content-Type"))
		as.Equal("%PDF-1.3", w.Body.String())
	})

	t.Run("writes nothing but the error on failure", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().
			Statement(gomock.Any(), gomock.Any()).
			DoAndReturn(func(w io.Writer, _ ledgerx.StatementReq) error {
				io.WriteString(w, "%PDF-")
				return ledgerx.ErrInternalServer
			})

		hndlr := ledgerx.NewHTTPHandler(svc, &nooplog)
		w := serve(hndlr, http.MethodGet, "/accounts/1/statement", "")

		as.Equal(http.StatusInternalServerError, w.Code)
		as.Equal("application/json", w.Header().Get("Content-Type"))
		as.NotContains(w.Body.String(), "%PDF")
	})
}
