package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/juniorcfabio/ViralizaAi-sub005/internal/domain"
	"github.com/juniorcfabio/ViralizaAi-sub005/internal/infra/observability"
	"github.com/juniorcfabio/ViralizaAi-sub005/internal/port"
)

const systemActor = "system"

// WithdrawalService runs the payout workflow: request, approval or
// rejection, and disbursement through the external payment processor.
// Requested funds leave the available balance immediately; only a
// rejection puts them back.
type WithdrawalService struct {
	accounts    port.AccountStore
	withdrawals port.WithdrawalStore
	entries     port.LedgerStore
	processor   port.PayoutProcessor
	settings    *SettingsService
	locker      port.AccountLocker
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewWithdrawalService creates the withdrawal service.
func NewWithdrawalService(
	accounts port.AccountStore,
	withdrawals port.WithdrawalStore,
	entries port.LedgerStore,
	processor port.PayoutProcessor,
	settings *SettingsService,
	locker port.AccountLocker,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *WithdrawalService {
	return &WithdrawalService{
		accounts:    accounts,
		withdrawals: withdrawals,
		entries:     entries,
		processor:   processor,
		settings:    settings,
		locker:      locker,
		metrics:     metrics,
		logger:      logger,
	}
}

// Request opens a withdrawal for the affiliate's entire available balance.
// The amount and the payout destination are snapshotted on the request, so
// later commission confirmations or payment method changes do not alter an
// in-flight withdrawal. At most one non-terminal withdrawal may exist per
// account.
func (s *WithdrawalService) Request(ctx context.Context, accountID string) (*domain.Withdrawal, error) {
	ctx, span := tracer.Start(ctx, "WithdrawalService.Request")
	defer span.End()

	s.locker.Lock(accountID)
	defer s.locker.Unlock(accountID)

	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.Status == domain.AccountSuspended {
		return nil, &domain.ErrAccountSuspended{AccountID: accountID}
	}
	if !account.Payment.Configured() {
		return nil, &domain.ErrPaymentMethodMissing{AccountID: accountID}
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if account.AvailableBalance < settings.MinWithdrawalAmount {
		return nil, &domain.ErrInsufficientBalance{
			Available: account.AvailableBalance,
			Minimum:   settings.MinWithdrawalAmount,
		}
	}

	outstanding, err := s.withdrawals.GetOutstandingWithdrawal(ctx, accountID)
	if err == nil {
		return nil, &domain.ErrWithdrawalOutstanding{
			AccountID:    accountID,
			WithdrawalID: outstanding.ID,
			Status:       outstanding.Status,
		}
	}
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		return nil, err
	}

	amount := account.AvailableBalance
	withdrawal := &domain.Withdrawal{
		ID:          uuid.New().String(),
		AccountID:   accountID,
		Amount:      amount,
		Destination: account.Payment,
		Status:      domain.WithdrawalPending,
		RequestedAt: time.Now().UTC(),
	}

	created, err := s.withdrawals.InsertWithdrawal(ctx, withdrawal)
	if err != nil {
		return nil, err
	}

	if _, err := s.accounts.ApplyBalanceDelta(ctx, accountID, 0, 0, -amount); err != nil {
		// Void the request so the untouched balance stays consistent with
		// the withdrawal history.
		if _, rejErr := s.withdrawals.TransitionWithdrawal(ctx, created.ID, domain.WithdrawalPending, domain.WithdrawalRejected, map[string]any{
			"rejected_by":      systemActor,
			"rejection_reason": "balance reservation failed",
			"rejected_at":      time.Now().UTC().Format(time.RFC3339),
		}); rejErr != nil {
			s.logger.Error("withdrawal void failed after balance error",
				zap.String("withdrawal_id", created.ID),
				zap.Error(rejErr),
			)
		}
		return nil, err
	}

	s.metrics.IncrWithdrawal(domain.WithdrawalPending)
	s.logger.Info("withdrawal requested",
		zap.String("withdrawal_id", created.ID),
		zap.String("account_id", accountID),
		zap.Float64("amount", amount),
	)

	if settings.AutoApproveWithdrawals {
		approved, err := s.approve(ctx, created.ID, systemActor)
		if err != nil {
			// The request stands; an operator can approve it by hand.
			s.logger.Warn("auto-approval failed",
				zap.String("withdrawal_id", created.ID),
				zap.Error(err),
			)
			return created, nil
		}
		return approved, nil
	}
	return created, nil
}

// Approve moves a pending withdrawal to the approved queue.
func (s *WithdrawalService) Approve(ctx context.Context, withdrawalID, approver string) (*domain.Withdrawal, error) {
	ctx, span := tracer.Start(ctx, "WithdrawalService.Approve")
	defer span.End()
	return s.approve(ctx, withdrawalID, approver)
}

func (s *WithdrawalService) approve(ctx context.Context, withdrawalID, approver string) (*domain.Withdrawal, error) {
	ok, err := s.withdrawals.TransitionWithdrawal(ctx, withdrawalID, domain.WithdrawalPending, domain.WithdrawalApproved, map[string]any{
		"approved_by": approver,
		"approved_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.staleTransition(ctx, withdrawalID, domain.WithdrawalApproved)
	}
	s.metrics.IncrWithdrawal(domain.WithdrawalApproved)
	return s.withdrawals.GetWithdrawal(ctx, withdrawalID)
}

// Reject declines a withdrawal and refunds the reserved amount to the
// affiliate's available balance. Pending withdrawals may always be
// rejected; processing ones only through this explicit escalation path,
// after an operator has confirmed with the processor that no money moved.
func (s *WithdrawalService) Reject(ctx context.Context, withdrawalID, rejecter, reason string) (*domain.Withdrawal, error) {
	ctx, span := tracer.Start(ctx, "WithdrawalService.Reject")
	defer span.End()

	withdrawal, err := s.withdrawals.GetWithdrawal(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}
	if withdrawal.Status != domain.WithdrawalPending && withdrawal.Status != domain.WithdrawalProcessing {
		return nil, &domain.ErrInvalidTransition{
			Entity:    "withdrawal",
			ID:        withdrawalID,
			Current:   withdrawal.Status,
			Requested: domain.WithdrawalRejected,
		}
	}

	s.locker.Lock(withdrawal.AccountID)
	defer s.locker.Unlock(withdrawal.AccountID)

	ok, err := s.withdrawals.TransitionWithdrawal(ctx, withdrawalID, withdrawal.Status, domain.WithdrawalRejected, map[string]any{
		"rejected_by":      rejecter,
		"rejection_reason": reason,
		"rejected_at":      time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.staleTransition(ctx, withdrawalID, domain.WithdrawalRejected)
	}

	if _, err := s.accounts.ApplyBalanceDelta(ctx, withdrawal.AccountID, 0, 0, withdrawal.Amount); err != nil {
		// The rejection is durable but the refund is not. Surface loudly:
		// the rejection metadata is the reconciliation trail.
		s.logger.Error("refund failed after rejection",
			zap.String("withdrawal_id", withdrawalID),
			zap.String("account_id", withdrawal.AccountID),
			zap.Float64("amount", withdrawal.Amount),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.IncrWithdrawal(domain.WithdrawalRejected)
	s.logger.Info("withdrawal rejected",
		zap.String("withdrawal_id", withdrawalID),
		zap.String("account_id", withdrawal.AccountID),
		zap.String("reason", reason),
	)
	return s.withdrawals.GetWithdrawal(ctx, withdrawalID)
}

// Disburse sends an approved withdrawal to the payment processor. The
// withdrawal is marked processing before the call; a declined or unknown
// outcome leaves it there with the failure recorded, never silently
// dropped. The withdrawal identifier doubles as the idempotency key, so
// retries of an ambiguous call cannot pay twice.
func (s *WithdrawalService) Disburse(ctx context.Context, withdrawalID string) (*domain.Withdrawal, error) {
	ctx, span := tracer.Start(ctx, "WithdrawalService.Disburse")
	defer span.End()

	ok, err := s.withdrawals.TransitionWithdrawal(ctx, withdrawalID, domain.WithdrawalApproved, domain.WithdrawalProcessing, map[string]any{
		"processed_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.staleTransition(ctx, withdrawalID, domain.WithdrawalProcessing)
	}

	withdrawal, err := s.withdrawals.GetWithdrawal(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}
	return s.executePayout(ctx, withdrawal)
}

// RetryDisbursement re-invokes the processor for a withdrawal stuck in
// processing, reusing the original idempotency key.
func (s *WithdrawalService) RetryDisbursement(ctx context.Context, withdrawalID string) (*domain.Withdrawal, error) {
	ctx, span := tracer.Start(ctx, "WithdrawalService.RetryDisbursement")
	defer span.End()

	withdrawal, err := s.withdrawals.GetWithdrawal(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}
	if withdrawal.Status != domain.WithdrawalProcessing {
		return nil, &domain.ErrInvalidTransition{
			Entity:    "withdrawal",
			ID:        withdrawalID,
			Current:   withdrawal.Status,
			Requested: domain.WithdrawalProcessing,
		}
	}
	return s.executePayout(ctx, withdrawal)
}

func (s *WithdrawalService) executePayout(ctx context.Context, w *domain.Withdrawal) (*domain.Withdrawal, error) {
	result, err := s.processor.Disburse(ctx, &domain.PayoutRequest{
		WithdrawalID:   w.ID,
		IdempotencyKey: w.ID,
		Amount:         w.Amount,
		Destination:    w.Destination,
	})
	if err != nil {
		s.metrics.IncrExternalError("processor")
		s.recordFailure(ctx, w.ID, err.Error())
		return nil, err
	}

	if !result.Success {
		s.recordFailure(ctx, w.ID, result.FailureReason)
		s.logger.Warn("payout declined",
			zap.String("withdrawal_id", w.ID),
			zap.String("reason", result.FailureReason),
		)
		return s.withdrawals.GetWithdrawal(ctx, w.ID)
	}

	ok, err := s.withdrawals.TransitionWithdrawal(ctx, w.ID, domain.WithdrawalProcessing, domain.WithdrawalPaid, map[string]any{
		"transaction_id": result.TransactionID,
		"failure_reason": "",
		"paid_at":        time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.staleTransition(ctx, w.ID, domain.WithdrawalPaid)
	}

	entry := &domain.LedgerEntry{
		ID:            uuid.New().String(),
		AccountID:     w.AccountID,
		WithdrawalID:  w.ID,
		Amount:        w.Amount,
		TransactionID: result.TransactionID,
		Method:        w.Destination.Method,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.entries.InsertLedgerEntry(ctx, entry); err != nil {
		// The payout itself is settled; the audit row can be backfilled
		// from the processor's transaction id.
		s.logger.Error("payout ledger write failed",
			zap.String("withdrawal_id", w.ID),
			zap.String("transaction_id", result.TransactionID),
			zap.Error(err),
		)
	}

	s.metrics.IncrWithdrawal(domain.WithdrawalPaid)
	s.logger.Info("withdrawal paid",
		zap.String("withdrawal_id", w.ID),
		zap.String("account_id", w.AccountID),
		zap.Float64("amount", w.Amount),
		zap.String("transaction_id", result.TransactionID),
	)
	return s.withdrawals.GetWithdrawal(ctx, w.ID)
}

func (s *WithdrawalService) recordFailure(ctx context.Context, withdrawalID, reason string) {
	if _, err := s.withdrawals.TransitionWithdrawal(ctx, withdrawalID, domain.WithdrawalProcessing, domain.WithdrawalProcessing, map[string]any{
		"failure_reason": reason,
	}); err != nil {
		s.logger.Error("failure annotation write failed",
			zap.String("withdrawal_id", withdrawalID),
			zap.Error(err),
		)
	}
}

func (s *WithdrawalService) staleTransition(ctx context.Context, withdrawalID, requested string) error {
	current, err := s.withdrawals.GetWithdrawal(ctx, withdrawalID)
	if err != nil {
		return err
	}
	return &domain.ErrInvalidTransition{
		Entity:    "withdrawal",
		ID:        withdrawalID,
		Current:   current.Status,
		Requested: requested,
	}
}

// Get returns a single withdrawal.
func (s *WithdrawalService) Get(ctx context.Context, withdrawalID string) (*domain.Withdrawal, error) {
	return s.withdrawals.GetWithdrawal(ctx, withdrawalID)
}

// List returns withdrawals matching the filter, paginated.
func (s *WithdrawalService) List(ctx context.Context, filter domain.WithdrawalFilter) ([]domain.Withdrawal, error) {
	return s.withdrawals.ListWithdrawals(ctx, filter)
}

// ListLedger returns settled payout entries for an account.
func (s *WithdrawalService) ListLedger(ctx context.Context, accountID string) ([]domain.LedgerEntry, error) {
	return s.entries.ListLedgerEntries(ctx, accountID)
}
