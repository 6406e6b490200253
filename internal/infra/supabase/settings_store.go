package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/juniorcfabio/ViralizaAi-sub005/internal/domain"
)

// ============================================================
// Program settings: table affiliate_settings (single row, id=1)
// ============================================================

const settingsRowID = 1

type settingsRow struct {
	ID                     int     `json:"id"`
	CommissionRate         float64 `json:"commission_rate"`
	MinWithdrawalAmount    float64 `json:"min_withdrawal_amount"`
	PaymentCycleDays       int     `json:"payment_cycle_days"`
	PaymentDelayDays       int     `json:"payment_delay_days"`
	AutoApproveWithdrawals bool    `json:"auto_approve_withdrawals"`
	MaxCommissionPerSale   float64 `json:"max_commission_per_sale"`
	UpdatedAt              string  `json:"updated_at"`
}

// GetSettings returns the program settings, falling back to defaults when
// no administrator has written a row yet.
func (c *Client) GetSettings(ctx context.Context) (*domain.Settings, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetSettings")
	defer span.End()

	path := fmt.Sprintf("affiliate_settings?id=eq.%d&limit=1", settingsRowID)
	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/settings", Err: err}
	}

	var rows []settingsRow
	if body != nil {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode settings: %w", err)
		}
	}
	if len(rows) == 0 {
		defaults := domain.DefaultSettings()
		return &defaults, nil
	}

	r := rows[0]
	return &domain.Settings{
		CommissionRate:         r.CommissionRate,
		MinWithdrawalAmount:    r.MinWithdrawalAmount,
		PaymentCycleDays:       r.PaymentCycleDays,
		PaymentDelayDays:       r.PaymentDelayDays,
		AutoApproveWithdrawals: r.AutoApproveWithdrawals,
		MaxCommissionPerSale:   r.MaxCommissionPerSale,
		UpdatedAt:              parseTime(r.UpdatedAt),
	}, nil
}

// UpsertSettings writes the full settings record, creating the singleton
// row on first administrative save.
func (c *Client) UpsertSettings(ctx context.Context, s *domain.Settings) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpsertSettings")
	defer span.End()

	_, err := c.doUpsert(ctx, "affiliate_settings", "id", map[string]any{
		"id":                       settingsRowID,
		"commission_rate":          s.CommissionRate,
		"min_withdrawal_amount":    s.MinWithdrawalAmount,
		"payment_cycle_days":       s.PaymentCycleDays,
		"payment_delay_days":       s.PaymentDelayDays,
		"auto_approve_withdrawals": s.AutoApproveWithdrawals,
		"max_commission_per_sale":  s.MaxCommissionPerSale,
		"updated_at":               time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/settings", Err: err}
	}
	return nil
}
