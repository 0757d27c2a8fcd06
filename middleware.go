package ledgerx

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/semaphore"
)

type Middleware func(Service) Service

// Chain wraps svc so that mws[0] is the outermost layer.
func Chain(svc Service, mws ...Middleware) Service {
	for i := len(mws) - 1; i >= 0; i-- {
		svc = mws[i](svc)
	}
	return svc
}

var (
	_ Service = (*validationMiddleware)(nil)
)

// validationMiddleware rejects malformed requests and unknown accounts
// before they reach the service.
type validationMiddleware struct {
	next Service
	repo Repository
}

func NewValidationMiddleware(repo Repository) Middleware {
	return func(svc Service) Service {
		return &validationMiddleware{
			next: svc,
			repo: repo,
		}
	}
}

func (v *validationMiddleware) CreateAccount(req CreateAccountReq) (*Account, error) {
	fields := map[string]string{}
	if strings.TrimSpace(req.Currency) == "" {
		fields["currency"] = "missing"
	}
	if strings.TrimSpace(req.Value) == "" {
		fields["value"] = "missing"
	}
	if len(fields) > 0 {
		return nil, ErrBadRequest{Kind: ErrInvalidArgument, Fields: fields}
	}
	return v.next.CreateAccount(req)
}

func (v *validationMiddleware) Show(req ShowReq) (string, error) {
	if err := v.checkAcct("acctID", req.AcctID); err != nil {
		return "", err
	}
	return v.next.Show(req)
}

func (v *validationMiddleware) Deposit(req ChargeReq) (*Money, error) {
	if err := v.checkAcct("acctID", req.AcctID); err != nil {
		return nil, err
	}
	fields := map[string]string{}
	if strings.TrimSpace(req.Currency) == "" {
		fields["currency"] = "missing"
	}
	if strings.TrimSpace(req.Value) == "" {
		fields["value"] = "missing"
	}
	if len(fields) > 0 {
		return nil, ErrBadRequest{Kind: ErrInvalidArgument, Fields: fields}
	}
	return v.next.Deposit(req)
}

func (v *validationMiddleware) Withdraw(req ChargeReq) (*Money, error) {
	if err := v.checkAcct("acctID", req.AcctID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Value) == "" {
		return nil, badRequest(ErrInvalidArgument, "value", "missing")
	}
	return v.next.Withdraw(req)
}

func (v *validationMiddleware) Transfer(req TransferReq) (*Money, error) {
	if err := v.checkAcct("from", req.From); err != nil {
		return nil, err
	}
	if err := v.checkAcct("to", req.To); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Value) == "" {
		return nil, badRequest(ErrInvalidArgument, "value", "missing")
	}
	return v.next.Transfer(req)
}

func (v *validationMiddleware) Split(req SplitReq) (*Account, error) {
	if err := v.checkAcct("from", req.From); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Value) == "" {
		return nil, badRequest(ErrInvalidArgument, "value", "missing")
	}
	if len(req.Recipients) == 0 {
		return nil, badRequest(ErrInvalidArgument, "recipients", "missing")
	}
	for i, si := range req.Recipients {
		if strings.TrimSpace(si.AcctID) == "" {
			return nil, badRequest(ErrInvalidArgument, fmt.Sprintf("recipients[%d].account_id", i), "missing")
		}
	}
	return v.next.Split(req)
}

func (v *validationMiddleware) Statement(w io.Writer, req StatementReq) error {
	if err := v.checkAcct("acctID", req.AcctID); err != nil {
		return err
	}
	return v.next.Statement(w, req)
}

func (v *validationMiddleware) checkAcct(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return badRequest(ErrInvalidArgument, field, "missing")
	}
	return CheckAccountsExist(v.repo, id)
}

//
// Load shedding
//

// limitMiddleware caps in-flight requests per operation with weighted
// semaphores. It never waits: a request that finds its semaphore full fails
// right away with ErrOverloaded. A nil semaphore means no limit.
type limitMiddleware struct {
	next   Service
	limits *ServiceLimits
}

var (
	_ Service = (*limitMiddleware)(nil)
)

type ServiceLimits struct {
	CreateAccount *semaphore.Weighted
	Show          *semaphore.Weighted
	Deposit       *semaphore.Weighted
	Withdraw      *semaphore.Weighted
	Transfer      *semaphore.Weighted
	Split         *semaphore.Weighted
	Statement     *semaphore.Weighted
}

func NewLimitMiddleware(limits *ServiceLimits) Middleware {
	if limits == nil {
		limits = &ServiceLimits{}
	}
	return func(next Service) Service {
		return &limitMiddleware{
			next:   next,
			limits: limits,
		}
	}
}

func acquire(sem *semaphore.Weighted) (func(), error) {
	if sem == nil {
		return func() {}, nil
	}
	if !sem.TryAcquire(1) {
		return nil, ErrOverloaded
	}
	return func() { sem.Release(1) }, nil
}

func (l *limitMiddleware) CreateAccount(req CreateAccountReq) (*Account, error) {
	release, err := acquire(l.limits.CreateAccount)
	if err != nil {
		return nil, err
	}
	defer release()
	return l.next.CreateAccount(req)
}

func (l *limitMiddleware) Show(req ShowReq) (string, error) {
	release, err := acquire(l.limits.Show)
	if err != nil {
		return "", err
	}
	defer release()
	return l.next.Show(req)
}

func (l *limitMiddleware) Deposit(req ChargeReq) (*Money, error) {
	release, err := acquire(l.limits.Deposit)
	if err != nil {
		return nil, err
	}
	defer release()
	return l.next.Deposit(req)
}

func (l *limitMiddleware) Withdraw(req ChargeReq) (*Money, error) {
	release, err := acquire(l.limits.Withdraw)
	if err != nil {
		return nil, err
	}
	defer release()
	return l.next.Withdraw(req)
}

func (l *limitMiddleware) Transfer(req TransferReq) (*Money, error) {
	release, err := acquire(l.limits.Transfer)
	if err != nil {
		return nil, err
	}
	defer release()
	return l.next.Transfer(req)
}

func (l *limitMiddleware) Split(req SplitReq) (*Account, error) {
	release, err := acquire(l.limits.Split)
	if err != nil {
		return nil, err
	}
	defer release()
	return l.next.Split(req)
}

func (l *limitMiddleware) Statement(w io.Writer, req StatementReq) error {
	release, err := acquire(l.limits.Statement)
	if err != nil {
		return err
	}
	defer release()
	return l.next.Statement(w, req)
}

//
// Rate source circuit breaker
//

// breakerCurrencies trips when the wrapped rate source keeps failing with
// ErrConversionUnavailable and rejects rate lookups until the breaker
// half-opens again. Unknown currencies do not count as failures.
type breakerCurrencies struct {
	CurrencyService
	brkr *gobreaker.CircuitBreaker[decimal.Decimal]
}

var (
	_ CurrencyService = (*breakerCurrencies)(nil)
)

func NewCurrencyBreaker(next CurrencyService, st gobreaker.Settings) CurrencyService {
	if st.IsSuccessful == nil {
		st.IsSuccessful = func(err error) bool {
			return !errors.Is(err, ErrConversionUnavailable)
		}
	}
	return &breakerCurrencies{
		CurrencyService: next,
		brkr:            gobreaker.NewCircuitBreaker[decimal.Decimal](st),
	}
}

func (b *breakerCurrencies) Rate(from, to string) (decimal.Decimal, error) {
	rate, err := b.brkr.Execute(func() (decimal.Decimal, error) {
		return b.CurrencyService.Rate(from, to)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrConversionUnavailable, err)
	}
	return rate, err
}
