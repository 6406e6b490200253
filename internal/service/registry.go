package service

import (
	"context"
	"crypto/rand"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/juniorcfabio/ViralizaAi-sub005/internal/domain"
	"github.com/juniorcfabio/ViralizaAi-sub005/internal/port"
)

// Charset excludes 0/O/1/I/L to keep codes readable when shared by voice.
const codeCharset = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const (
	codeLength       = 8
	codeMaxAttempts  = 5
	dashboardRecents = 10
)

// RegistryService owns the affiliate account lifecycle: activation,
// suspension, payment method configuration and the dashboard read model.
type RegistryService struct {
	store    port.AccountStore
	ledger   port.CommissionStore
	settings *SettingsService
	logger   *zap.Logger
}

// NewRegistryService creates the registry service.
func NewRegistryService(store port.AccountStore, ledger port.CommissionStore, settings *SettingsService, logger *zap.Logger) *RegistryService {
	return &RegistryService{store: store, ledger: ledger, settings: settings, logger: logger}
}

// Activate enrolls a platform user as an affiliate. Repeated calls for the
// same user return the existing account unchanged, whatever its status.
func (s *RegistryService) Activate(ctx context.Context, userID, name, email string) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "RegistryService.Activate")
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return nil, &domain.ErrValidation{Field: "user_id", Message: "is required"}
	}
	if strings.TrimSpace(name) == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "is required"}
	}
	if !strings.Contains(email, "@") {
		return nil, &domain.ErrValidation{Field: "email", Message: "must be a valid email address"}
	}

	existing, err := s.store.GetAccountByUserID(ctx, userID)
	if err == nil {
		return existing, nil
	}
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		return nil, err
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	code, err := s.uniqueReferralCode(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	account := &domain.Account{
		ID:             uuid.New().String(),
		UserID:         userID,
		Name:           strings.TrimSpace(name),
		Email:          strings.ToLower(strings.TrimSpace(email)),
		ReferralCode:   code,
		Status:         domain.AccountActive,
		CommissionRate: settings.CommissionRate,
		Payment:        domain.PaymentMethod{Method: domain.MethodNone},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	created, err := s.store.CreateAccount(ctx, account)
	if err != nil {
		// Two concurrent activations can both miss the lookup; the unique
		// index on user_id lets exactly one insert win.
		var dup *domain.ErrDuplicate
		if errors.As(err, &dup) {
			return s.store.GetAccountByUserID(ctx, userID)
		}
		return nil, err
	}

	s.logger.Info("affiliate activated",
		zap.String("account_id", created.ID),
		zap.String("user_id", userID),
		zap.String("referral_code", created.ReferralCode),
	)
	return created, nil
}

func (s *RegistryService) uniqueReferralCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < codeMaxAttempts; attempt++ {
		code, err := randomCode(codeLength)
		if err != nil {
			return "", err
		}
		_, err = s.store.GetAccountByCode(ctx, code)
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", &domain.ErrExternalService{Service: "registry", Err: errors.New("referral code space exhausted after retries")}
}

func randomCode(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = codeCharset[int(b)%len(codeCharset)]
	}
	return string(out), nil
}

// Suspend blocks an affiliate from earning new commissions and from
// requesting withdrawals. Accrued balances are preserved.
func (s *RegistryService) Suspend(ctx context.Context, accountID string) (*domain.Account, error) {
	return s.transitionStatus(ctx, accountID, domain.AccountActive, domain.AccountSuspended)
}

// Reactivate lifts a suspension.
func (s *RegistryService) Reactivate(ctx context.Context, accountID string) (*domain.Account, error) {
	return s.transitionStatus(ctx, accountID, domain.AccountSuspended, domain.AccountActive)
}

func (s *RegistryService) transitionStatus(ctx context.Context, accountID, from, to string) (*domain.Account, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.Status != from {
		return nil, &domain.ErrInvalidTransition{
			Entity:    "account",
			ID:        accountID,
			Current:   account.Status,
			Requested: to,
		}
	}
	if err := s.store.UpdateAccountStatus(ctx, accountID, to); err != nil {
		return nil, err
	}
	s.logger.Info("affiliate status changed",
		zap.String("account_id", accountID),
		zap.String("from", from),
		zap.String("to", to),
	)
	return s.store.GetAccount(ctx, accountID)
}

// UpdatePaymentMethod validates and stores the payout destination.
func (s *RegistryService) UpdatePaymentMethod(ctx context.Context, accountID string, pm domain.PaymentMethod) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "RegistryService.UpdatePaymentMethod")
	defer span.End()

	switch pm.Method {
	case domain.MethodPix:
		if strings.TrimSpace(pm.PixKey) == "" {
			return nil, &domain.ErrValidation{Field: "pix_key", Message: "is required for pix payouts"}
		}
	case domain.MethodBankDeposit:
		if strings.TrimSpace(pm.BankName) == "" || strings.TrimSpace(pm.BankAgency) == "" || strings.TrimSpace(pm.BankAccount) == "" {
			return nil, &domain.ErrValidation{Field: "bank_details", Message: "bank name, agency and account are required"}
		}
		if strings.TrimSpace(pm.HolderName) == "" || strings.TrimSpace(pm.HolderDocument) == "" {
			return nil, &domain.ErrValidation{Field: "holder", Message: "holder name and document are required"}
		}
	default:
		return nil, &domain.ErrValidation{Field: "method", Message: "must be pix or bank_deposit"}
	}

	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	if err := s.store.UpdatePaymentMethod(ctx, accountID, pm); err != nil {
		return nil, err
	}
	return s.store.GetAccount(ctx, accountID)
}

// Get returns an account by its registry identifier.
func (s *RegistryService) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	return s.store.GetAccount(ctx, accountID)
}

// GetByUser returns the account enrolled for a platform user.
func (s *RegistryService) GetByUser(ctx context.Context, userID string) (*domain.Account, error) {
	return s.store.GetAccountByUserID(ctx, userID)
}

// List returns accounts matching the filter, paginated.
func (s *RegistryService) List(ctx context.Context, filter domain.AccountFilter) ([]domain.Account, error) {
	return s.store.ListAccounts(ctx, filter)
}

// Dashboard assembles the affiliate-facing summary: the account with its
// balances and counters, the derived conversion rate and recent commissions.
func (s *RegistryService) Dashboard(ctx context.Context, accountID string) (*domain.Dashboard, error) {
	ctx, span := tracer.Start(ctx, "RegistryService.Dashboard")
	defer span.End()

	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	recents, err := s.ledger.ListCommissions(ctx, domain.CommissionFilter{
		AccountID: accountID,
		Page:      1,
		PageSize:  dashboardRecents,
	})
	if err != nil {
		return nil, err
	}

	return &domain.Dashboard{
		Account:           account,
		ConversionRate:    account.ConversionRate(),
		RecentCommissions: recents,
	}, nil
}
