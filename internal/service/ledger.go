package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/juniorcfabio/ViralizaAi-sub005/internal/domain"
	"github.com/juniorcfabio/ViralizaAi-sub005/internal/infra/observability"
	"github.com/juniorcfabio/ViralizaAi-sub005/internal/port"
)

// LedgerService owns the commission lifecycle. Every mutation that touches
// an account's balances runs under that account's lock so the conservation
// of pending and available funds holds without gateway transactions.
type LedgerService struct {
	accounts    port.AccountStore
	referrals   port.ReferralStore
	commissions port.CommissionStore
	settings    *SettingsService
	locker      port.AccountLocker
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewLedgerService creates the ledger service.
func NewLedgerService(
	accounts port.AccountStore,
	referrals port.ReferralStore,
	commissions port.CommissionStore,
	settings *SettingsService,
	locker port.AccountLocker,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *LedgerService {
	return &LedgerService{
		accounts:    accounts,
		referrals:   referrals,
		commissions: commissions,
		settings:    settings,
		locker:      locker,
		metrics:     metrics,
		logger:      logger,
	}
}

// RegisterCommission turns a confirmed sale into a pending commission for
// the affiliate who referred the buyer. Sales from unattributed buyers and
// sales referred by suspended affiliates produce no commission and no
// error. The sale identifier is the idempotency key: replays return the
// original commission.
func (s *LedgerService) RegisterCommission(ctx context.Context, ev domain.SaleEvent) (*domain.Commission, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.RegisterCommission")
	defer span.End()

	if ev.SaleID == "" {
		return nil, &domain.ErrValidation{Field: "sale_id", Message: "is required"}
	}
	if ev.BuyerUserID == "" {
		return nil, &domain.ErrValidation{Field: "buyer_user_id", Message: "is required"}
	}
	if ev.Amount <= 0 {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}

	existing, err := s.commissions.GetCommissionBySale(ctx, ev.SaleID)
	if err == nil {
		return existing, nil
	}
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		return nil, err
	}

	referral, err := s.referrals.GetReferralByUser(ctx, ev.BuyerUserID)
	if err != nil {
		if errors.As(err, &notFound) {
			// Unattributed sale: no referral on record for the buyer.
			return nil, nil
		}
		return nil, err
	}

	account, err := s.accounts.GetAccount(ctx, referral.AccountID)
	if err != nil {
		return nil, err
	}
	if account.Status != domain.AccountActive {
		s.logger.Debug("sale referred by inactive affiliate, skipping",
			zap.String("account_id", account.ID),
			zap.String("sale_id", ev.SaleID),
		)
		return nil, nil
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	rate := account.CommissionRate
	if rate <= 0 {
		rate = settings.CommissionRate
	}
	value := roundCents(ev.Amount * rate / 100)
	if settings.MaxCommissionPerSale > 0 && value > settings.MaxCommissionPerSale {
		value = settings.MaxCommissionPerSale
	}

	saleDate := ev.SaleDate
	if saleDate.IsZero() {
		saleDate = time.Now().UTC()
	}
	year, week := saleDate.ISOWeek()
	eligibleAt := domain.SettlementWeekEnd(saleDate).AddDate(0, 0, settings.PaymentDelayDays)

	commission := &domain.Commission{
		ID:                uuid.New().String(),
		AccountID:         account.ID,
		SaleID:            ev.SaleID,
		BuyerUserID:       ev.BuyerUserID,
		ProductLabel:      ev.ProductLabel,
		SaleAmount:        ev.Amount,
		Rate:              rate,
		Value:             value,
		Status:            domain.CommissionPending,
		SaleDate:          saleDate,
		PaymentEligibleAt: eligibleAt,
		WeekNumber:        week,
		Year:              year,
		CreatedAt:         time.Now().UTC(),
	}

	s.locker.Lock(account.ID)
	defer s.locker.Unlock(account.ID)

	created, err := s.commissions.InsertCommission(ctx, commission)
	if err != nil {
		var dup *domain.ErrDuplicate
		if errors.As(err, &dup) {
			return s.commissions.GetCommissionBySale(ctx, ev.SaleID)
		}
		return nil, err
	}

	if _, err := s.accounts.ApplyBalanceDelta(ctx, account.ID, value, value, 0); err != nil {
		// Roll the insert back so the ledger never shows a commission the
		// balances do not reflect.
		if delErr := s.commissions.DeleteCommission(ctx, created.ID); delErr != nil {
			s.logger.Error("commission rollback failed, row is orphaned",
				zap.String("commission_id", created.ID),
				zap.Error(delErr),
			)
		}
		return nil, err
	}

	s.metrics.RecordCommission(value)
	s.logger.Info("commission registered",
		zap.String("commission_id", created.ID),
		zap.String("account_id", account.ID),
		zap.String("sale_id", ev.SaleID),
		zap.Float64("value", value),
	)
	return created, nil
}

// ConfirmEligible promotes every pending commission whose eligibility date
// has passed, moving its value from the pending balance to the available
// balance. Work is grouped per affiliate; each commission transitions
// through a status-guarded update, so reruns and concurrent cycles never
// double-count. Returns the number of commissions confirmed.
func (s *LedgerService) ConfirmEligible(ctx context.Context, now time.Time) (int, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.ConfirmEligible")
	defer span.End()

	eligible, err := s.commissions.ListEligiblePending(ctx, now)
	if err != nil {
		return 0, err
	}
	if len(eligible) == 0 {
		return 0, nil
	}

	byAccount := make(map[string][]domain.Commission)
	for _, c := range eligible {
		byAccount[c.AccountID] = append(byAccount[c.AccountID], c)
	}

	confirmed := 0
	for accountID, batch := range byAccount {
		n, err := s.confirmForAccount(ctx, accountID, batch)
		confirmed += n
		if err != nil {
			s.metrics.RecordConfirmed(confirmed)
			return confirmed, err
		}
	}

	s.metrics.RecordConfirmed(confirmed)
	return confirmed, nil
}

func (s *LedgerService) confirmForAccount(ctx context.Context, accountID string, batch []domain.Commission) (int, error) {
	s.locker.Lock(accountID)
	defer s.locker.Unlock(accountID)

	var moved float64
	count := 0
	for _, c := range batch {
		ok, err := s.commissions.TransitionCommission(ctx, c.ID, domain.CommissionPending, domain.CommissionConfirmed, "")
		if err != nil {
			if moved > 0 {
				if _, balErr := s.accounts.ApplyBalanceDelta(ctx, accountID, 0, -moved, moved); balErr != nil {
					s.logger.Error("balance move failed after partial confirmation",
						zap.String("account_id", accountID),
						zap.Float64("amount", moved),
						zap.Error(balErr),
					)
				}
			}
			return count, err
		}
		if !ok {
			// Another run already claimed this row.
			continue
		}
		moved += c.Value
		count++
	}

	if moved > 0 {
		if _, err := s.accounts.ApplyBalanceDelta(ctx, accountID, 0, -moved, moved); err != nil {
			s.logger.Error("balance move failed after confirmation",
				zap.String("account_id", accountID),
				zap.Float64("amount", moved),
				zap.Error(err),
			)
			return count, err
		}
	}
	return count, nil
}

// CancelCommission reverses a commission after a refund or chargeback.
// Pending commissions give back pending funds; confirmed commissions give
// back available funds and require the balance to still cover the value.
// Paid commissions cannot be cancelled.
func (s *LedgerService) CancelCommission(ctx context.Context, commissionID, reason string) (*domain.Commission, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.CancelCommission")
	defer span.End()

	commission, err := s.commissions.GetCommission(ctx, commissionID)
	if err != nil {
		return nil, err
	}

	s.locker.Lock(commission.AccountID)
	defer s.locker.Unlock(commission.AccountID)

	switch commission.Status {
	case domain.CommissionPending:
		ok, err := s.commissions.TransitionCommission(ctx, commissionID, domain.CommissionPending, domain.CommissionCancelled, reason)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, s.staleTransition(ctx, commissionID)
		}
		if _, err := s.accounts.ApplyBalanceDelta(ctx, commission.AccountID, -commission.Value, -commission.Value, 0); err != nil {
			return nil, err
		}

	case domain.CommissionConfirmed:
		account, err := s.accounts.GetAccount(ctx, commission.AccountID)
		if err != nil {
			return nil, err
		}
		if account.AvailableBalance < commission.Value {
			return nil, &domain.ErrInsufficientBalance{
				Available: account.AvailableBalance,
				Minimum:   commission.Value,
			}
		}
		ok, err := s.commissions.TransitionCommission(ctx, commissionID, domain.CommissionConfirmed, domain.CommissionCancelled, reason)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, s.staleTransition(ctx, commissionID)
		}
		if _, err := s.accounts.ApplyBalanceDelta(ctx, commission.AccountID, -commission.Value, 0, -commission.Value); err != nil {
			return nil, err
		}

	default:
		return nil, &domain.ErrInvalidTransition{
			Entity:    "commission",
			ID:        commissionID,
			Current:   commission.Status,
			Requested: domain.CommissionCancelled,
		}
	}

	s.logger.Info("commission cancelled",
		zap.String("commission_id", commissionID),
		zap.String("account_id", commission.AccountID),
		zap.String("reason", reason),
	)
	return s.commissions.GetCommission(ctx, commissionID)
}

func (s *LedgerService) staleTransition(ctx context.Context, commissionID string) error {
	current, err := s.commissions.GetCommission(ctx, commissionID)
	if err != nil {
		return err
	}
	return &domain.ErrInvalidTransition{
		Entity:    "commission",
		ID:        commissionID,
		Current:   current.Status,
		Requested: domain.CommissionCancelled,
	}
}

// ListCommissions returns commissions matching the filter, paginated.
func (s *LedgerService) ListCommissions(ctx context.Context, filter domain.CommissionFilter) ([]domain.Commission, error) {
	return s.commissions.ListCommissions(ctx, filter)
}

// Get returns a single commission.
func (s *LedgerService) Get(ctx context.Context, commissionID string) (*domain.Commission, error) {
	return s.commissions.GetCommission(ctx, commissionID)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
