package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/juniorcfabio/ViralizaAi-sub005/internal/domain"
	"github.com/juniorcfabio/ViralizaAi-sub005/internal/infra/observability"
	"github.com/juniorcfabio/ViralizaAi-sub005/internal/port"
)

const settlementPageSize = 100

// SettlementService drives the periodic payout cycle: confirm every
// commission past its eligibility date, then disburse the approved
// withdrawal queue. A single cycle runs at a time; overlapping triggers
// are refused rather than queued.
type SettlementService struct {
	ledger      *LedgerService
	withdrawals *WithdrawalService
	queue       port.WithdrawalStore
	metrics     *observability.Metrics
	logger      *zap.Logger
	concurrency int

	running atomic.Bool

	mu   sync.Mutex
	last *domain.CycleResult
}

// NewSettlementService creates the settlement service. concurrency bounds
// the parallel processor calls within one cycle.
func NewSettlementService(
	ledger *LedgerService,
	withdrawals *WithdrawalService,
	queue port.WithdrawalStore,
	concurrency int,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *SettlementService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &SettlementService{
		ledger:      ledger,
		withdrawals: withdrawals,
		queue:       queue,
		metrics:     metrics,
		logger:      logger,
		concurrency: concurrency,
	}
}

// RunCycle executes one settlement cycle against the given clock reading.
// Per-withdrawal failures are recorded and counted, never fatal to the
// cycle; a second trigger while a cycle is in flight returns
// ErrCycleRunning.
func (s *SettlementService) RunCycle(ctx context.Context, now time.Time) (*domain.CycleResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, &domain.ErrCycleRunning{}
	}
	defer s.running.Store(false)

	ctx, span := tracer.Start(ctx, "SettlementService.RunCycle")
	defer span.End()

	result := &domain.CycleResult{StartedAt: time.Now().UTC()}
	outcome := "ok"

	confirmed, err := s.ledger.ConfirmEligible(ctx, now)
	result.ConfirmedCount = confirmed
	if err != nil {
		// Confirmation is rerunnable; press on so approved payouts are not
		// held hostage by one bad account batch.
		outcome = "partial"
		s.logger.Error("eligibility confirmation incomplete",
			zap.Int("confirmed", confirmed),
			zap.Error(err),
		)
	}

	processed, failed := s.disburseApproved(ctx)
	result.ProcessedCount = processed
	result.FailedCount = failed
	if failed > 0 {
		outcome = "partial"
	}
	result.FinishedAt = time.Now().UTC()

	s.mu.Lock()
	s.last = result
	s.mu.Unlock()

	s.metrics.IncrSettlementCycle(outcome)
	s.logger.Info("settlement cycle finished",
		zap.Int("confirmed", result.ConfirmedCount),
		zap.Int("processed", result.ProcessedCount),
		zap.Int("failed", result.FailedCount),
		zap.Duration("elapsed", result.FinishedAt.Sub(result.StartedAt)),
	)
	return result, nil
}

func (s *SettlementService) disburseApproved(ctx context.Context) (processed, failed int) {
	var paidCount, failedCount atomic.Int64
	attempted := make(map[string]bool)

	// Disbursed rows leave the approved set, so the first page is re-read
	// until it yields nothing new. The attempted set keeps rows stuck in
	// approved after a gateway error from looping forever.
	for {
		batch, err := s.queue.ListWithdrawals(ctx, domain.WithdrawalFilter{
			Status:   domain.WithdrawalApproved,
			Page:     1,
			PageSize: settlementPageSize,
		})
		if err != nil {
			s.logger.Error("approved queue listing failed", zap.Error(err))
			break
		}

		fresh := batch[:0:0]
		for _, w := range batch {
			if !attempted[w.ID] {
				attempted[w.ID] = true
				fresh = append(fresh, w)
			}
		}
		if len(fresh) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.concurrency)
		for _, w := range fresh {
			id := w.ID
			g.Go(func() error {
				updated, err := s.withdrawals.Disburse(gctx, id)
				if err != nil || updated.Status != domain.WithdrawalPaid {
					failedCount.Add(1)
					if err != nil {
						s.logger.Warn("disbursement failed",
							zap.String("withdrawal_id", id),
							zap.Error(err),
						)
					}
					return nil
				}
				paidCount.Add(1)
				return nil
			})
		}
		_ = g.Wait()
	}
	return int(paidCount.Load()), int(failedCount.Load())
}

// LastResult returns the outcome of the most recent cycle, or nil before
// the first run.
func (s *SettlementService) LastResult() *domain.CycleResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Start launches the background scheduler and blocks until ctx is done.
func (s *SettlementService) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("settlement scheduler started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("settlement scheduler stopped")
			return
		case tick := <-ticker.C:
			if _, err := s.RunCycle(ctx, tick.UTC()); err != nil {
				s.logger.Warn("scheduled cycle skipped", zap.Error(err))
			}
		}
	}
}
