package domain

import "time"

// Settings is the commission-program configuration. Read-mostly; written
// only by an administrative actor. Rate changes are not retroactive:
// commissions keep the rate in effect at sale time.
type Settings struct {
	CommissionRate         float64   `json:"commission_rate"`
	MinWithdrawalAmount    float64   `json:"min_withdrawal_amount"`
	PaymentCycleDays       int       `json:"payment_cycle_days"`
	PaymentDelayDays       int       `json:"payment_delay_days"`
	AutoApproveWithdrawals bool      `json:"auto_approve_withdrawals"`
	MaxCommissionPerSale   float64   `json:"max_commission_per_sale"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// DefaultSettings is used until an administrator writes a settings row.
func DefaultSettings() Settings {
	return Settings{
		CommissionRate:      10,
		MinWithdrawalAmount: 50,
		PaymentCycleDays:    7,
		PaymentDelayDays:    7,
	}
}

// SettingsPatch carries a partial administrative settings update. Nil
// fields are left untouched.
type SettingsPatch struct {
	CommissionRate         *float64 `json:"commission_rate,omitempty"`
	MinWithdrawalAmount    *float64 `json:"min_withdrawal_amount,omitempty"`
	PaymentCycleDays       *int     `json:"payment_cycle_days,omitempty"`
	PaymentDelayDays       *int     `json:"payment_delay_days,omitempty"`
	AutoApproveWithdrawals *bool    `json:"auto_approve_withdrawals,omitempty"`
	MaxCommissionPerSale   *float64 `json:"max_commission_per_sale,omitempty"`
}

// CycleResult summarizes one settlement run for observability.
type CycleResult struct {
	ConfirmedCount int       `json:"confirmed_count"`
	ProcessedCount int       `json:"processed_count"`
	FailedCount    int       `json:"failed_count"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}
