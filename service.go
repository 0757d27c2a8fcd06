package ledgerx

import (
	"errors"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

type CreateAccountReq struct {
	Name     string `json:"name" yaml:"name"`
	Currency string `json:"currency" yaml:"currency"`
	Value    string `json:"value" yaml:"value"`
}

type ShowReq struct {
	AcctID string
}

// ChargeReq is used for deposits and withdrawals. Currency is only read by
// Deposit; withdrawals are always in the account's own currency.
type ChargeReq struct {
	AcctID   string `json:"-"`
	Currency string `json:"currency"`
	Value    string `json:"value"`
}

type TransferReq struct {
	From  string `json:"-"`
	To    string `json:"to"`
	Value string `json:"value"`
}

type SplitReq struct {
	From       string             `json:"-"`
	Recipients []SplitInstruction `json:"recipients"`
	Value      string             `json:"value"`
}

type StatementReq struct {
	AcctID string
}

type Service interface {
	CreateAccount(CreateAccountReq) (*Account, error)
	Show(ShowReq) (string, error)
	Deposit(ChargeReq) (*Money, error)
	Withdraw(ChargeReq) (*Money, error)
	Transfer(TransferReq) (*Money, error)
	Split(SplitReq) (*Account, error)
	Statement(io.Writer, StatementReq) error
}

func NewService(repo Repository, currencies CurrencyService, log *zerolog.Logger) *serviceImpl {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &serviceImpl{
		repo: repo,
		conv: NewConverter(currencies),
		log:  log,
	}
}

var (
	_ Service = (*serviceImpl)(nil)
)

type serviceImpl struct {
	repo Repository
	conv *Converter
	log  *zerolog.Logger
}

func (s *serviceImpl) CreateAccount(req CreateAccountReq) (*Account, error) {
	code, err := s.conv.Validate(req.Currency)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, badRequest(ErrInvalidName, "name", "must not be empty")
	}
	initial, err := s.conv.Store(req.Value, code)
	if err != nil {
		return nil, err
	}

	acct, err := s.repo.CreateAccount(NewAccount{
		Name:     req.Name,
		Currency: initial.Currency,
		Digits:   initial.Digits,
		Initial:  initial.Units,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("acctID", acct.ID).
		Str("currency", acct.Currency).
		Msg("account created")
	return acct, nil
}

func (s *serviceImpl) Show(req ShowReq) (string, error) {
	acct, err := s.repo.GetAccount(req.AcctID)
	if err != nil {
		return "", err
	}
	return acct.String(), nil
}

func (s *serviceImpl) Deposit(req ChargeReq) (*Money, error) {
	acct, err := s.repo.GetAccount(req.AcctID)
	if err != nil {
		return nil, err
	}
	credit, err := s.conv.Convert(req.Currency, acct.Currency, req.Value)
	if err != nil {
		return nil, err
	}
	bal, err := s.repo.Deposit(acct.ID, credit.Units)
	if err != nil {
		return nil, err
	}
	return &Money{Units: bal, Currency: acct.Currency, Digits: acct.Digits}, nil
}

func (s *serviceImpl) Withdraw(req ChargeReq) (*Money, error) {
	acct, err := s.repo.GetAccount(req.AcctID)
	if err != nil {
		return nil, err
	}
	debit, err := s.conv.Store(req.Value, acct.Currency)
	if err != nil {
		return nil, err
	}
	if err = CheckFunds(s.repo, acct.ID, debit.Units); err != nil {
		return nil, err
	}
	bal, err := s.repo.Withdraw(acct.ID, debit.Units)
	if err != nil {
		return nil, err
	}
	return &Money{Units: bal, Currency: acct.Currency, Digits: acct.Digits}, nil
}

// Transfer returns the source balance right after the withdrawal. Sending to
// the source account itself is allowed.
func (s *serviceImpl) Transfer(req TransferReq) (*Money, error) {
	if err := CheckAccountsExist(s.repo, req.From, req.To); err != nil {
		return nil, err
	}
	src, err := s.repo.GetAccount(req.From)
	if err != nil {
		return nil, err
	}
	debit, err := s.conv.Store(req.Value, src.Currency)
	if err != nil {
		return nil, err
	}
	return s.transfer(src, req.To, debit)
}

// transfer withdraws debit from src and deposits its converted value into
// the destination. The conversion happens before any balance moves. If the
// deposit still fails, the withdrawal is put back on src.
func (s *serviceImpl) transfer(src *Account, to string, debit Money) (*Money, error) {
	dst, err := s.repo.GetAccount(to)
	if err != nil {
		return nil, err
	}
	credit, err := s.conv.ConvertMoney(debit, dst.Currency)
	if err != nil {
		return nil, err
	}
	if err = CheckFunds(s.repo, src.ID, debit.Units); err != nil {
		return nil, err
	}
	bal, err := s.repo.Withdraw(src.ID, debit.Units)
	if err != nil {
		return nil, err
	}

	if _, err = s.repo.Deposit(dst.ID, credit.Units); err != nil {
		s.log.Warn().
			Err(err).
			Str("from", src.ID).
			Str("to", dst.ID).
			Msg("deposit leg failed, returning withdrawal to source")
		if _, rerr := s.repo.Deposit(src.ID, debit.Units); rerr != nil {
			s.log.Err(rerr).
				Str("acctID", src.ID).
				Str("amount", debit.String()).
				Msg("failed to return withdrawal to source")
			return nil, errors.Join(err, rerr)
		}
		return nil, err
	}
	return &Money{Units: bal, Currency: src.Currency, Digits: src.Digits}, nil
}

// Split runs one transfer per merged recipient, in order. Each share is
// rounded on its own, capped so the legs never debit more than the requested
// value. Legs that already ran are not undone when a later leg fails.
func (s *serviceImpl) Split(req SplitReq) (*Account, error) {
	if err := CheckPercentSum(req.Recipients); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(req.Recipients)+1)
	ids = append(ids, req.From)
	for _, si := range req.Recipients {
		ids = append(ids, si.AcctID)
	}
	if err := CheckAccountsExist(s.repo, ids...); err != nil {
		return nil, err
	}

	src, err := s.repo.GetAccount(req.From)
	if err != nil {
		return nil, err
	}
	total, err := s.conv.Store(req.Value, src.Currency)
	if err != nil {
		return nil, err
	}
	if err = CheckFunds(s.repo, src.ID, total.Units); err != nil {
		return nil, err
	}

	var allocated Amount
	for i, si := range MergeDuplicateRecipients(req.Recipients) {
		share, err := amountFromDecimal(total.Decimal().Mul(si.Percent).Shift(-2), src.Digits)
		if err != nil {
			return nil, err
		}
		// shares rounded up never take more than total in sum
		share = min(share, total.Units-allocated)
		allocated += share
		leg := Money{Units: share, Currency: src.Currency, Digits: src.Digits}
		if _, err = s.transfer(src, si.AcctID, leg); err != nil {
			if i == 0 {
				return nil, err
			}
			s.log.Err(err).
				Str("from", src.ID).
				Int("completed", i).
				Msg("split stopped partway")
			return nil, ErrSplitPartial{Completed: i, Err: err}
		}
	}

	return s.repo.GetAccount(src.ID)
}
