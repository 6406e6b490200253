package domain

import "time"

// Referral is the signup-attribution edge between an affiliate account and
// a referred user. At most one edge exists per referred user.
type Referral struct {
	ID             string    `json:"id"`
	AccountID      string    `json:"account_id"`
	ReferralCode   string    `json:"referral_code"`
	ReferredUserID string    `json:"referred_user_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// ClickEvent is an append-only click attribution record driven by external
// traffic. Best-effort telemetry only.
type ClickEvent struct {
	ID           string    `json:"id"`
	AccountID    string    `json:"account_id"`
	ReferralCode string    `json:"referral_code"`
	Source       string    `json:"source,omitempty"`
	LandingPage  string    `json:"landing_page,omitempty"`
	RecordedAt   time.Time `json:"recorded_at"`
}
