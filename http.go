package ledgerx

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type balanceJSONResp struct {
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
}

type showJSONResp struct {
	Account string `json:"account"`
}

func NewHTTPHandler(svc Service, log *zerolog.Logger) http.Handler {
	hndlr := &httpHandler{
		Svc: svc,
		Log: log,
	}
	mux := chi.NewMux()
	mux.NotFound(HTTPNotFound)
	mux.Route("/accounts", func(r chi.Router) {
		r.Post("/", hndlr.CreateAccount)
		r.Route("/{acctID}", func(rr chi.Router) {
			rr.Get("/", hndlr.Show)
			rr.Post("/deposit", hndlr.Deposit)
			rr.Post("/withdraw", hndlr.Withdraw)
			rr.Post("/transfer", hndlr.Transfer)
			rr.Post("/split", hndlr.Split)
			rr.Get("/statement", hndlr.Statement)
		})
	})

	return mux
}

type httpHandler struct {
	Svc Service
	Log *zerolog.Logger
}

// readJSON decodes the request body into v. Type mismatches, such as a
// number where a decimal string is expected, are reported per field.
func (h *httpHandler) readJSON(r *http.Request, method string, v any) error {
	buf, err := io.ReadAll(r.Body)
	defer r.Body.Close()
	if err != nil {
		h.Log.Err(err).Str("method", method).Msg("error reading HTTP request")
		return ErrInternalServer
	}
	if err = json.Unmarshal(buf, v); err != nil {
		h.Log.Err(err).Str("method", method).Msg("error unmarshalling JSON")
		var ute *json.UnmarshalTypeError
		if errors.As(err, &ute) && ute.Field != "" {
			return badRequest(ErrInvalidArgument, ute.Field, "expected "+ute.Type.String())
		}
		return badRequest(ErrInvalidArgument, "request body", "malformed JSON")
	}
	return nil
}

func (h *httpHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountReq
	if err := h.readJSON(r, "create", &req); err != nil {
		WriteHTTPError(w, err)
		return
	}
	acct, err := h.Svc.CreateAccount(req)
	if err != nil {
		WriteHTTPError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err = json.NewEncoder(w).Encode(acct); err != nil {
		h.Log.Err(err).Str("method", "create").Msg("error encoding response")
	}
}

func (h *httpHandler) Show(w http.ResponseWriter, r *http.Request) {
	display, err := h.Svc.Show(ShowReq{AcctID: chi.URLParam(r, "acctID")})
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	writeJSON(w, showJSONResp{Account: display})
}

func (h *httpHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req ChargeReq
	if err := h.readJSON(r, "deposit", &req); err != nil {
		WriteHTTPError(w, err)
		return
	}
	req.AcctID = chi.URLParam(r, "acctID")
	bal, err := h.Svc.Deposit(req)
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	writeJSON(w, toBalanceResp(bal))
}

func (h *httpHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req ChargeReq
	if err := h.readJSON(r, "withdraw", &req); err != nil {
		WriteHTTPError(w, err)
		return
	}
	req.AcctID = chi.URLParam(r, "acctID")
	bal, err := h.Svc.Withdraw(req)
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	writeJSON(w, toBalanceResp(bal))
}

func (h *httpHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferReq
	if err := h.readJSON(r, "transfer", &req); err != nil {
		WriteHTTPError(w, err)
		return
	}
	req.From = chi.URLParam(r, "acctID")
	bal, err := h.Svc.Transfer(req)
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	writeJSON(w, toBalanceResp(bal))
}

func (h *httpHandler) Split(w http.ResponseWriter, r *http.Request) {
	var req SplitReq
	if err := h.readJSON(r, "split", &req); err != nil {
		WriteHTTPError(w, err)
		return
	}
	req.From = chi.URLParam(r, "acctID")
	acct, err := h.Svc.Split(req)
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	writeJSON(w, acct)
}

func (h *httpHandler) Statement(w http.ResponseWriter, r *http.Request) {
	buf := new(bytes.Buffer)
	if err := h.Svc.Statement(buf, StatementReq{AcctID: chi.URLParam(r, "acctID")}); err != nil {
		WriteHTTPError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	if _, err := buf.WriteTo(w); err != nil {
		h.Log.Err(err).Str("method", "statement").Msg("error writing statement")
	}
}

func toBalanceResp(m *Money) balanceJSONResp {
	return balanceJSONResp{
		Balance:  DisplayAmount(m.Units, m.Digits),
		Currency: m.Currency,
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		WriteHTTPError(w, err)
	}
}

func WriteHTTPError(w http.ResponseWriter, err error) {
	var ne error
	defer func() {
		if ne != nil {
			log.Error().
				Err(ne).
				Msg("error response encoding failed")
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]any{
		"message": err.Error(),
	}
	var (
		errnf ErrNotFound
		errbr ErrBadRequest
		errsp ErrSplitPartial
	)
	if errors.As(err, &errsp) {
		resp["completed"] = errsp.Completed
	}
	switch {
	case errors.As(err, &errnf):
		w.WriteHeader(http.StatusNotFound)
		resp["id"] = errnf.ID
	case errors.As(err, &errbr):
		w.WriteHeader(http.StatusBadRequest)
		resp["error"] = errbr.Unwrap().Error()
		resp["fields"] = errbr.Fields
	case errors.Is(err, ErrConversionUnavailable), errors.Is(err, ErrOverloaded):
		w.WriteHeader(http.StatusServiceUnavailable)
	default:
		w.WriteHeader(http.StatusInternalServerError)
		resp["message"] = "server error"
	}
	ne = json.NewEncoder(w).Encode(resp)
}

func HTTPNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	resp := map[string]string{
		"path": r.URL.Path,
	}
	json.NewEncoder(w).Encode(resp)
}
