// Package service provides the business logic layer (use cases) of the
// affiliate engine: account registry, referral tracking, the commission
// ledger, the withdrawal workflow and the settlement scheduler.
package service

import (
	"context"

	"github.com/juniorcfabio/ViralizaAi-sub005/internal/domain"
	"github.com/juniorcfabio/ViralizaAi-sub005/internal/infra/observability"
	"github.com/juniorcfabio/ViralizaAi-sub005/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("service/affiliate")

const settingsCacheKey = "settings"

// SettingsService serves the commission-program configuration through a
// short-TTL cache with explicit invalidation on write. Commissions keep the
// rate in effect at sale time; rate changes are not retroactive.
type SettingsService struct {
	store   port.SettingsStore
	cache   port.Cache[domain.Settings]
	sf      singleflight.Group
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewSettingsService creates the settings service.
func NewSettingsService(store port.SettingsStore, cache port.Cache[domain.Settings], metrics *observability.Metrics, logger *zap.Logger) *SettingsService {
	return &SettingsService{store: store, cache: cache, metrics: metrics, logger: logger}
}

// Get returns the current program settings. Concurrent cache misses
// collapse into a single gateway read.
func (s *SettingsService) Get(ctx context.Context) (domain.Settings, error) {
	if cached, ok := s.cache.Get(settingsCacheKey); ok {
		s.metrics.IncrCacheHit(settingsCacheKey)
		return cached, nil
	}
	s.metrics.IncrCacheMiss(settingsCacheKey)

	v, err, _ := s.sf.Do(settingsCacheKey, func() (any, error) {
		loaded, err := s.store.GetSettings(ctx)
		if err != nil {
			return nil, err
		}
		s.cache.Set(settingsCacheKey, *loaded)
		return *loaded, nil
	})
	if err != nil {
		return domain.Settings{}, err
	}
	return v.(domain.Settings), nil
}

// Update applies an administrative patch and invalidates the cache before
// returning, so no commission computed after the write sees the old rate.
func (s *SettingsService) Update(ctx context.Context, patch *domain.SettingsPatch) (*domain.Settings, error) {
	ctx, span := tracer.Start(ctx, "SettingsService.Update")
	defer span.End()

	current, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	if patch.CommissionRate != nil {
		if *patch.CommissionRate < 0 || *patch.CommissionRate > 100 {
			return nil, &domain.ErrValidation{Field: "commission_rate", Message: "must be between 0 and 100"}
		}
		current.CommissionRate = *patch.CommissionRate
	}
	if patch.MinWithdrawalAmount != nil {
		if *patch.MinWithdrawalAmount < 0 {
			return nil, &domain.ErrValidation{Field: "min_withdrawal_amount", Message: "must not be negative"}
		}
		current.MinWithdrawalAmount = *patch.MinWithdrawalAmount
	}
	if patch.PaymentCycleDays != nil {
		if *patch.PaymentCycleDays <= 0 {
			return nil, &domain.ErrValidation{Field: "payment_cycle_days", Message: "must be positive"}
		}
		current.PaymentCycleDays = *patch.PaymentCycleDays
	}
	if patch.PaymentDelayDays != nil {
		if *patch.PaymentDelayDays < 0 {
			return nil, &domain.ErrValidation{Field: "payment_delay_days", Message: "must not be negative"}
		}
		current.PaymentDelayDays = *patch.PaymentDelayDays
	}
	if patch.AutoApproveWithdrawals != nil {
		current.AutoApproveWithdrawals = *patch.AutoApproveWithdrawals
	}
	if patch.MaxCommissionPerSale != nil {
		if *patch.MaxCommissionPerSale < 0 {
			return nil, &domain.ErrValidation{Field: "max_commission_per_sale", Message: "must not be negative (0 = uncapped)"}
		}
		current.MaxCommissionPerSale = *patch.MaxCommissionPerSale
	}

	if err := s.store.UpsertSettings(ctx, current); err != nil {
		return nil, err
	}
	s.cache.Delete(settingsCacheKey)

	s.logger.Info("program settings updated",
		zap.Float64("commission_rate", current.CommissionRate),
		zap.Float64("min_withdrawal_amount", current.MinWithdrawalAmount),
		zap.Bool("auto_approve_withdrawals", current.AutoApproveWithdrawals),
		zap.Float64("max_commission_per_sale", current.MaxCommissionPerSale),
	)
	return current, nil
}
