package domain

import "time"

// Commission statuses. "paid" means settled into the affiliate's available
// balance, which is distinct from a withdrawal being paid out.
const (
	CommissionPending   = "pending"
	CommissionConfirmed = "confirmed"
	CommissionPaid      = "paid"
	CommissionCancelled = "cancelled"
)

// Commission is one monetary credit owed to an affiliate for an attributed
// sale. Created exactly once per sale; confirmed only by the settlement
// cycle once the eligibility date passes.
type Commission struct {
	ID                 string    `json:"id"`
	AccountID          string    `json:"account_id"`
	SaleID             string    `json:"sale_id"`
	BuyerUserID        string    `json:"buyer_user_id"`
	ProductLabel       string    `json:"product_label"`
	SaleAmount         float64   `json:"sale_amount"`
	Rate               float64   `json:"rate"`
	Value              float64   `json:"value"`
	Status             string    `json:"status"`
	SaleDate           time.Time `json:"sale_date"`
	PaymentEligibleAt  time.Time `json:"payment_eligible_at"`
	WeekNumber         int       `json:"week_number"`
	Year               int       `json:"year"`
	CancellationReason string    `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// SaleEvent is the ingress payload emitted by the checkout subsystem when a
// sale completes.
type SaleEvent struct {
	BuyerUserID  string    `json:"buyer_user_id"`
	SaleID       string    `json:"sale_id"`
	Amount       float64   `json:"amount"`
	ProductLabel string    `json:"product_label"`
	SaleDate     time.Time `json:"sale_date"`
}

// CommissionFilter narrows commission listings.
type CommissionFilter struct {
	AccountID  string
	Status     string
	WeekNumber int
	Year       int
	Page       int
	PageSize   int
}

// SettlementWeekEnd returns the end of the settlement week containing t:
// the following Sunday at 23:59:59 UTC. A sale on Sunday belongs to the
// week ending that same day.
func SettlementWeekEnd(t time.Time) time.Time {
	t = t.UTC()
	daysUntilSunday := (7 - int(t.Weekday())) % 7
	end := t.AddDate(0, 0, daysUntilSunday)
	return time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, time.UTC)
}
