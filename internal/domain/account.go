// Package domain holds the core models of the affiliate commission engine:
// accounts, referrals, commissions, withdrawals and program settings.
package domain

import "time"

// Account statuses.
const (
	AccountActive    = "active"
	AccountSuspended = "suspended"
)

// Payment methods.
const (
	MethodPix         = "pix"
	MethodBankDeposit = "bank_deposit"
	MethodNone        = "none"
)

// PaymentMethod holds the payout destination for an affiliate.
// For pix only PixKey is required; for bank_deposit the bank fields are.
type PaymentMethod struct {
	Method         string `json:"method"`
	PixKey         string `json:"pix_key,omitempty"`
	BankName       string `json:"bank_name,omitempty"`
	BankAgency     string `json:"bank_agency,omitempty"`
	BankAccount    string `json:"bank_account,omitempty"`
	HolderName     string `json:"holder_name,omitempty"`
	HolderDocument string `json:"holder_document,omitempty"`
}

// Configured reports whether a payout destination is usable.
func (p PaymentMethod) Configured() bool {
	switch p.Method {
	case MethodPix:
		return p.PixKey != ""
	case MethodBankDeposit:
		return p.BankName != "" && p.BankAgency != "" && p.BankAccount != ""
	default:
		return false
	}
}

// Account is an affiliate account. The three balances are mutually
// exclusive by construction: TotalEarnings equals PendingBalance plus
// AvailableBalance plus the amounts locked in non-rejected withdrawals.
type Account struct {
	ID               string        `json:"id"`
	UserID           string        `json:"user_id"`
	Name             string        `json:"name"`
	Email            string        `json:"email"`
	ReferralCode     string        `json:"referral_code"`
	Status           string        `json:"status"`
	CommissionRate   float64       `json:"commission_rate"`
	TotalEarnings    float64       `json:"total_earnings"`
	PendingBalance   float64       `json:"pending_balance"`
	AvailableBalance float64       `json:"available_balance"`
	TotalReferrals   int           `json:"total_referrals"`
	TotalClicks      int           `json:"total_clicks"`
	Payment          PaymentMethod `json:"payment"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// ConversionRate returns signups per click as a percentage, for
// reporting. Not load-bearing for money.
func (a *Account) ConversionRate() float64 {
	if a.TotalClicks == 0 {
		return 0
	}
	return float64(a.TotalReferrals) / float64(a.TotalClicks) * 100
}

// AccountFilter narrows admin account listings.
type AccountFilter struct {
	Status   string
	Page     int
	PageSize int
}

// Dashboard is the aggregate view served to the affiliate UI.
type Dashboard struct {
	Account           *Account     `json:"account"`
	ConversionRate    float64      `json:"conversion_rate"`
	RecentCommissions []Commission `json:"recent_commissions"`
}
