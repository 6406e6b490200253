package service_test

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/juniorcfabio/ViralizaAi-sub005/internal/domain"
	"github.com/juniorcfabio/ViralizaAi-sub005/internal/infra/cache"
	"github.com/juniorcfabio/ViralizaAi-sub005/internal/infra/keymutex"
	"github.com/juniorcfabio/ViralizaAi-sub005/internal/infra/observability"
	"github.com/juniorcfabio/ViralizaAi-sub005/internal/port"
	"github.com/juniorcfabio/ViralizaAi-sub005/internal/service"
)

// memStore is an in-memory port.Store used by the service tests. Error
// fields inject faults for the failure-path tests.
type memStore struct {
	mu          sync.Mutex
	accounts    map[string]*domain.Account
	referrals   map[string]*domain.Referral // keyed by referred user id
	clicks      []domain.ClickEvent
	commissions map[string]*domain.Commission
	withdrawals map[string]*domain.Withdrawal
	entries     []domain.LedgerEntry
	settings    *domain.Settings

	balanceErr    error
	insertComErr  error
	transitionErr error
	insertWdErr   error
	entryErr      error
}

func newMemStore() *memStore {
	return &memStore{
		accounts:    make(map[string]*domain.Account),
		referrals:   make(map[string]*domain.Referral),
		commissions: make(map[string]*domain.Commission),
		withdrawals: make(map[string]*domain.Withdrawal),
	}
}

// --- AccountStore ---

func (m *memStore) CreateAccount(_ context.Context, acct *domain.Account) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.UserID == acct.UserID {
			return nil, &domain.ErrDuplicate{Key: "user_id"}
		}
	}
	cp := *acct
	m.accounts[acct.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memStore) GetAccount(_ context.Context, accountID string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) GetAccountByUserID(_ context.Context, userID string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.UserID == userID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "account", ID: userID}
}

func (m *memStore) GetAccountByCode(_ context.Context, code string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.ReferralCode == code {
			cp := *a
			return &cp, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "account", ID: code}
}

func (m *memStore) ListAccounts(_ context.Context, filter domain.AccountFilter) ([]domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Account
	for _, a := range m.accounts {
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (m *memStore) UpdateAccountStatus(_ context.Context, accountID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	a.Status = status
	return nil
}

func (m *memStore) UpdatePaymentMethod(_ context.Context, accountID string, pm domain.PaymentMethod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	a.Payment = pm
	return nil
}

func (m *memStore) ApplyBalanceDelta(_ context.Context, accountID string, earnings, pending, available float64) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balanceErr != nil {
		return nil, m.balanceErr
	}
	a, ok := m.accounts[accountID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	a.TotalEarnings += earnings
	a.PendingBalance += pending
	a.AvailableBalance += available
	cp := *a
	return &cp, nil
}

func (m *memStore) IncrementClicks(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[accountID]; ok {
		a.TotalClicks++
	}
	return nil
}

func (m *memStore) IncrementReferrals(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[accountID]; ok {
		a.TotalReferrals++
	}
	return nil
}

// --- ReferralStore ---

func (m *memStore) InsertClick(_ context.Context, click *domain.ClickEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clicks = append(m.clicks, *click)
	return nil
}

func (m *memStore) InsertReferral(_ context.Context, ref *domain.Referral) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.referrals[ref.ReferredUserID]; exists {
		return &domain.ErrDuplicate{Key: "referred_user_id"}
	}
	cp := *ref
	m.referrals[ref.ReferredUserID] = &cp
	return nil
}

func (m *memStore) GetReferralByUser(_ context.Context, referredUserID string) (*domain.Referral, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.referrals[referredUserID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "referral", ID: referredUserID}
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) ListReferrals(_ context.Context, accountID string) ([]domain.Referral, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Referral
	for _, r := range m.referrals {
		if r.AccountID == accountID {
			out = append(out, *r)
		}
	}
	return out, nil
}

// --- CommissionStore ---

func (m *memStore) InsertCommission(_ context.Context, c *domain.Commission) (*domain.Commission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertComErr != nil {
		return nil, m.insertComErr
	}
	for _, existing := range m.commissions {
		if existing.SaleID == c.SaleID {
			return nil, &domain.ErrDuplicate{Key: "sale_id"}
		}
	}
	cp := *c
	m.commissions[c.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memStore) DeleteCommission(_ context.Context, commissionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.commissions, commissionID)
	return nil
}

func (m *memStore) GetCommission(_ context.Context, commissionID string) (*domain.Commission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.commissions[commissionID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "commission", ID: commissionID}
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) GetCommissionBySale(_ context.Context, saleID string) (*domain.Commission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.commissions {
		if c.SaleID == saleID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "commission", ID: saleID}
}

func (m *memStore) ListCommissions(_ context.Context, filter domain.CommissionFilter) ([]domain.Commission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Commission
	for _, c := range m.commissions {
		if filter.AccountID != "" && c.AccountID != filter.AccountID {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (m *memStore) ListEligiblePending(_ context.Context, now time.Time) ([]domain.Commission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Commission
	for _, c := range m.commissions {
		if c.Status == domain.CommissionPending && !c.PaymentEligibleAt.After(now) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memStore) TransitionCommission(_ context.Context, commissionID, fromStatus, toStatus, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transitionErr != nil {
		return false, m.transitionErr
	}
	c, ok := m.commissions[commissionID]
	if !ok || c.Status != fromStatus {
		return false, nil
	}
	c.Status = toStatus
	if reason != "" {
		c.CancellationReason = reason
	}
	return true, nil
}

// --- WithdrawalStore ---

func (m *memStore) InsertWithdrawal(_ context.Context, w *domain.Withdrawal) (*domain.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertWdErr != nil {
		return nil, m.insertWdErr
	}
	cp := *w
	m.withdrawals[w.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memStore) GetWithdrawal(_ context.Context, withdrawalID string) (*domain.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.withdrawals[withdrawalID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "withdrawal", ID: withdrawalID}
	}
	cp := *w
	return &cp, nil
}

func (m *memStore) GetOutstandingWithdrawal(_ context.Context, accountID string) (*domain.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.withdrawals {
		if w.AccountID == accountID && !w.Terminal() {
			cp := *w
			return &cp, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "withdrawal", ID: accountID}
}

func (m *memStore) ListWithdrawals(_ context.Context, filter domain.WithdrawalFilter) ([]domain.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Withdrawal
	for _, w := range m.withdrawals {
		if filter.AccountID != "" && w.AccountID != filter.AccountID {
			continue
		}
		if filter.Status != "" && w.Status != filter.Status {
			continue
		}
		out = append(out, *w)
	}
	return out, nil
}

func (m *memStore) TransitionWithdrawal(_ context.Context, withdrawalID, fromStatus, toStatus string, patch map[string]any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transitionErr != nil {
		return false, m.transitionErr
	}
	w, ok := m.withdrawals[withdrawalID]
	if !ok || w.Status != fromStatus {
		return false, nil
	}
	w.Status = toStatus
	for key, raw := range patch {
		val, _ := raw.(string)
		switch key {
		case "approved_by":
			w.ApprovedBy = val
		case "rejected_by":
			w.RejectedBy = val
		case "rejection_reason":
			w.RejectionReason = val
		case "failure_reason":
			w.FailureReason = val
		case "transaction_id":
			w.TransactionID = val
		case "approved_at":
			w.ApprovedAt = parseTestTime(val)
		case "processed_at":
			w.ProcessedAt = parseTestTime(val)
		case "paid_at":
			w.PaidAt = parseTestTime(val)
		case "rejected_at":
			w.RejectedAt = parseTestTime(val)
		}
	}
	return true, nil
}

func parseTestTime(v string) *time.Time {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil
	}
	return &t
}

// --- SettingsStore ---

func (m *memStore) GetSettings(_ context.Context) (*domain.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		s := domain.DefaultSettings()
		return &s, nil
	}
	cp := *m.settings
	return &cp, nil
}

func (m *memStore) UpsertSettings(_ context.Context, s *domain.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.settings = &cp
	return nil
}

// --- LedgerStore ---

func (m *memStore) InsertLedgerEntry(_ context.Context, e *domain.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entryErr != nil {
		return m.entryErr
	}
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memStore) ListLedgerEntries(_ context.Context, accountID string) ([]domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.LedgerEntry
	for _, e := range m.entries {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- Processor ---

// fakeProcessor scripts payout outcomes per idempotency key, falling back
// to the default result.
type fakeProcessor struct {
	mu      sync.Mutex
	result  *domain.PayoutResult
	err     error
	byKey   map[string]*domain.PayoutResult
	calls   int
	lastReq *domain.PayoutRequest
}

func (p *fakeProcessor) Disburse(_ context.Context, req *domain.PayoutRequest) (*domain.PayoutResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.lastReq = req
	if p.err != nil {
		return nil, p.err
	}
	if r, ok := p.byKey[req.IdempotencyKey]; ok {
		return r, nil
	}
	if p.result != nil {
		return p.result, nil
	}
	return &domain.PayoutResult{Success: true, TransactionID: "tx-" + req.WithdrawalID}, nil
}

// --- Fixture ---

type fixture struct {
	store       *memStore
	processor   *fakeProcessor
	settings    *service.SettingsService
	registry    *service.RegistryService
	tracker     *service.TrackerService
	ledger      *service.LedgerService
	withdrawals *service.WithdrawalService
	settlement  *service.SettlementService
}

func newFixture() *fixture {
	processor := &fakeProcessor{byKey: make(map[string]*domain.PayoutResult)}
	f := newFixtureWithProcessor(processor)
	f.processor = processor
	return f
}

func newFixtureWithProcessor(processor port.PayoutProcessor) *fixture {
	store := newMemStore()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	locker := keymutex.New()

	settings := service.NewSettingsService(store, cache.New[domain.Settings](time.Minute), metrics, logger)
	ledger := service.NewLedgerService(store, store, store, settings, locker, metrics, logger)
	withdrawals := service.NewWithdrawalService(store, store, store, processor, settings, locker, metrics, logger)

	return &fixture{
		store:       store,
		settings:    settings,
		registry:    service.NewRegistryService(store, store, settings, logger),
		tracker:     service.NewTrackerService(store, store, logger),
		ledger:      ledger,
		withdrawals: withdrawals,
		settlement:  service.NewSettlementService(ledger, withdrawals, store, 4, metrics, logger),
	}
}

// seedAccount installs an active affiliate with a configured pix key.
func (f *fixture) seedAccount(id, userID, code string, available, pending float64) *domain.Account {
	acct := &domain.Account{
		ID:               id,
		UserID:           userID,
		Name:             "Affiliate " + id,
		Email:            userID + "@example.com",
		ReferralCode:     code,
		Status:           domain.AccountActive,
		CommissionRate:   10,
		TotalEarnings:    available + pending,
		PendingBalance:   pending,
		AvailableBalance: available,
		Payment:          domain.PaymentMethod{Method: domain.MethodPix, PixKey: userID + "@pix"},
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}
	f.store.accounts[id] = acct
	return acct
}

// assertConservation checks that an account's lifetime earnings are fully
// accounted for: pending plus available plus the funds held by non-rejected
// withdrawals must always equal total earnings. Rejected withdrawals have
// already refunded their amount to the available balance.
func (f *fixture) assertConservation(t *testing.T, accountID string) {
	t.Helper()
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	acct, ok := f.store.accounts[accountID]
	if !ok {
		t.Fatalf("account %s not seeded", accountID)
	}
	var held float64
	for _, w := range f.store.withdrawals {
		if w.AccountID == accountID && w.Status != domain.WithdrawalRejected {
			held += w.Amount
		}
	}
	total := acct.PendingBalance + acct.AvailableBalance + held
	if math.Abs(acct.TotalEarnings-total) > 1e-9 {
		t.Errorf("balance drift for %s: earnings=%.2f but pending=%.2f available=%.2f held=%.2f",
			accountID, acct.TotalEarnings, acct.PendingBalance, acct.AvailableBalance, held)
	}
}

func (f *fixture) seedReferral(accountID, code, referredUserID string) {
	f.store.referrals[referredUserID] = &domain.Referral{
		ID:             "ref-" + referredUserID,
		AccountID:      accountID,
		ReferralCode:   code,
		ReferredUserID: referredUserID,
		CreatedAt:      time.Now().UTC(),
	}
}
