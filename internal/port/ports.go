// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/juniorcfabio/ViralizaAi-sub005/internal/domain"
)

// AccountStore handles affiliate account persistence.
type AccountStore interface {
	CreateAccount(ctx context.Context, acct *domain.Account) (*domain.Account, error)
	GetAccount(ctx context.Context, accountID string) (*domain.Account, error)
	GetAccountByUserID(ctx context.Context, userID string) (*domain.Account, error)
	GetAccountByCode(ctx context.Context, referralCode string) (*domain.Account, error)
	ListAccounts(ctx context.Context, filter domain.AccountFilter) ([]domain.Account, error)
	UpdateAccountStatus(ctx context.Context, accountID, status string) error
	UpdatePaymentMethod(ctx context.Context, accountID string, pm domain.PaymentMethod) error
	// ApplyBalanceDelta adjusts the three balance columns atomically on the
	// gateway side and returns the updated row. Deltas may be negative.
	ApplyBalanceDelta(ctx context.Context, accountID string, earnings, pending, available float64) (*domain.Account, error)
	IncrementClicks(ctx context.Context, accountID string) error
	IncrementReferrals(ctx context.Context, accountID string) error
}

// ReferralStore handles click and signup attribution rows.
type ReferralStore interface {
	InsertClick(ctx context.Context, click *domain.ClickEvent) error
	InsertReferral(ctx context.Context, ref *domain.Referral) error
	GetReferralByUser(ctx context.Context, referredUserID string) (*domain.Referral, error)
	ListReferrals(ctx context.Context, accountID string) ([]domain.Referral, error)
}

// CommissionStore handles commission rows and their status machine.
type CommissionStore interface {
	InsertCommission(ctx context.Context, c *domain.Commission) (*domain.Commission, error)
	DeleteCommission(ctx context.Context, commissionID string) error
	GetCommission(ctx context.Context, commissionID string) (*domain.Commission, error)
	GetCommissionBySale(ctx context.Context, saleID string) (*domain.Commission, error)
	ListCommissions(ctx context.Context, filter domain.CommissionFilter) ([]domain.Commission, error)
	ListEligiblePending(ctx context.Context, now time.Time) ([]domain.Commission, error)
	// TransitionCommission flips status only when the row is still in
	// fromStatus; it reports false when the precondition did not hold.
	TransitionCommission(ctx context.Context, commissionID, fromStatus, toStatus, reason string) (bool, error)
}

// WithdrawalStore handles withdrawal rows and their status machine.
type WithdrawalStore interface {
	InsertWithdrawal(ctx context.Context, w *domain.Withdrawal) (*domain.Withdrawal, error)
	GetWithdrawal(ctx context.Context, withdrawalID string) (*domain.Withdrawal, error)
	GetOutstandingWithdrawal(ctx context.Context, accountID string) (*domain.Withdrawal, error)
	ListWithdrawals(ctx context.Context, filter domain.WithdrawalFilter) ([]domain.Withdrawal, error)
	// TransitionWithdrawal flips status only when the row is still in
	// fromStatus, applying the extra column patch alongside; it reports
	// false when the precondition did not hold.
	TransitionWithdrawal(ctx context.Context, withdrawalID, fromStatus, toStatus string, patch map[string]any) (bool, error)
}

// SettingsStore persists the commission-program configuration.
type SettingsStore interface {
	GetSettings(ctx context.Context) (*domain.Settings, error)
	UpsertSettings(ctx context.Context, s *domain.Settings) error
}

// LedgerStore records append-only payout audit entries.
type LedgerStore interface {
	InsertLedgerEntry(ctx context.Context, e *domain.LedgerEntry) error
	ListLedgerEntries(ctx context.Context, accountID string) ([]domain.LedgerEntry, error)
}

// Store aggregates every persistence concern of the engine. Implemented by
// the Supabase adapter (or any other persistence gateway).
type Store interface {
	AccountStore
	ReferralStore
	CommissionStore
	WithdrawalStore
	SettingsStore
	LedgerStore
}

// PayoutProcessor is the narrow contract with the external payment
// processor. The workflow only ever sees this interface.
type PayoutProcessor interface {
	Disburse(ctx context.Context, req *domain.PayoutRequest) (*domain.PayoutResult, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// AccountLocker serializes balance mutations per account id. Cross-account
// operations run fully in parallel.
type AccountLocker interface {
	Lock(accountID string)
	Unlock(accountID string)
}
