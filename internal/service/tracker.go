package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/juniorcfabio/ViralizaAi-sub005/internal/domain"
	"github.com/juniorcfabio/ViralizaAi-sub005/internal/port"
)

// TrackerService records referral traffic: link clicks and attributed
// signups. Both endpoints sit on public ingress paths, so unknown or
// inactive codes are swallowed rather than reported to the caller.
type TrackerService struct {
	accounts  port.AccountStore
	referrals port.ReferralStore
	logger    *zap.Logger
}

// NewTrackerService creates the tracker service.
func NewTrackerService(accounts port.AccountStore, referrals port.ReferralStore, logger *zap.Logger) *TrackerService {
	return &TrackerService{accounts: accounts, referrals: referrals, logger: logger}
}

// RecordClick attributes a landing-page hit to the owner of the referral
// code. Unknown codes are a no-op so the endpoint leaks no information
// about which codes exist.
func (s *TrackerService) RecordClick(ctx context.Context, code, source, landingPage string) error {
	ctx, span := tracer.Start(ctx, "TrackerService.RecordClick")
	defer span.End()

	account, err := s.accounts.GetAccountByCode(ctx, code)
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}

	click := &domain.ClickEvent{
		ID:           uuid.New().String(),
		AccountID:    account.ID,
		ReferralCode: account.ReferralCode,
		Source:       source,
		LandingPage:  landingPage,
		RecordedAt:   time.Now().UTC(),
	}
	if err := s.referrals.InsertClick(ctx, click); err != nil {
		return err
	}
	if err := s.accounts.IncrementClicks(ctx, account.ID); err != nil {
		// The click row is already durable; the counter is a denormalized
		// convenience and may lag.
		s.logger.Warn("click counter update failed",
			zap.String("account_id", account.ID),
			zap.Error(err),
		)
	}
	return nil
}

// RecordSignup binds a newly registered user to the affiliate owning the
// code. A user is attributed at most once; replays return the original
// referral. Self-referral is rejected.
func (s *TrackerService) RecordSignup(ctx context.Context, code, referredUserID string) (*domain.Referral, error) {
	ctx, span := tracer.Start(ctx, "TrackerService.RecordSignup")
	defer span.End()

	if referredUserID == "" {
		return nil, &domain.ErrValidation{Field: "referred_user_id", Message: "is required"}
	}

	account, err := s.accounts.GetAccountByCode(ctx, code)
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, err
	}
	if account.UserID == referredUserID {
		return nil, &domain.ErrValidation{Field: "referred_user_id", Message: "self-referral is not allowed"}
	}

	existing, err := s.referrals.GetReferralByUser(ctx, referredUserID)
	if err == nil {
		// First attribution wins, later signups with other codes are ignored.
		return existing, nil
	}
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		return nil, err
	}

	referral := &domain.Referral{
		ID:             uuid.New().String(),
		AccountID:      account.ID,
		ReferralCode:   account.ReferralCode,
		ReferredUserID: referredUserID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.referrals.InsertReferral(ctx, referral); err != nil {
		// Lost the race against a concurrent signup for the same user; the
		// unique index decided the winner.
		var dup *domain.ErrDuplicate
		if errors.As(err, &dup) {
			return s.referrals.GetReferralByUser(ctx, referredUserID)
		}
		return nil, err
	}
	if err := s.accounts.IncrementReferrals(ctx, account.ID); err != nil {
		s.logger.Warn("referral counter update failed",
			zap.String("account_id", account.ID),
			zap.Error(err),
		)
	}

	s.logger.Info("signup attributed",
		zap.String("account_id", account.ID),
		zap.String("referral_code", account.ReferralCode),
	)
	return referral, nil
}

// ListReferrals returns the users attributed to an affiliate.
func (s *TrackerService) ListReferrals(ctx context.Context, accountID string) ([]domain.Referral, error) {
	return s.referrals.ListReferrals(ctx, accountID)
}
