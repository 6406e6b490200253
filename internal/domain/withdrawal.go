package domain

import "time"

// Withdrawal statuses. Legal transitions:
// pending -> approved -> processing -> paid, or pending -> rejected.
// A processing withdrawal whose disbursement failed may also be rejected
// (escalation path); it never silently reverts to approved.
const (
	WithdrawalPending    = "pending"
	WithdrawalApproved   = "approved"
	WithdrawalProcessing = "processing"
	WithdrawalPaid       = "paid"
	WithdrawalRejected   = "rejected"
)

// Withdrawal is a payout request for the full available balance at request
// time. The payment destination is snapshotted so later profile edits don't
// retroactively change a pending payout.
type Withdrawal struct {
	ID              string        `json:"id"`
	AccountID       string        `json:"account_id"`
	Amount          float64       `json:"amount"`
	Destination     PaymentMethod `json:"destination"`
	Status          string        `json:"status"`
	ApprovedBy      string        `json:"approved_by,omitempty"`
	RejectedBy      string        `json:"rejected_by,omitempty"`
	RejectionReason string        `json:"rejection_reason,omitempty"`
	FailureReason   string        `json:"failure_reason,omitempty"`
	TransactionID   string        `json:"transaction_id,omitempty"`
	RequestedAt     time.Time     `json:"requested_at"`
	ApprovedAt      *time.Time    `json:"approved_at,omitempty"`
	ProcessedAt     *time.Time    `json:"processed_at,omitempty"`
	PaidAt          *time.Time    `json:"paid_at,omitempty"`
	RejectedAt      *time.Time    `json:"rejected_at,omitempty"`
}

// Terminal reports whether the withdrawal reached a final state.
func (w *Withdrawal) Terminal() bool {
	return w.Status == WithdrawalPaid || w.Status == WithdrawalRejected
}

// WithdrawalFilter narrows withdrawal listings.
type WithdrawalFilter struct {
	AccountID string
	Status    string
	Page      int
	PageSize  int
}

// PayoutRequest is the narrow contract handed to the external payment
// processor. The workflow never builds processor-specific request bodies.
type PayoutRequest struct {
	WithdrawalID   string
	IdempotencyKey string
	Amount         float64
	Destination    PaymentMethod
}

// PayoutResult is the processor's answer to a disbursement attempt.
type PayoutResult struct {
	Success       bool
	TransactionID string
	FailureReason string
}

// LedgerEntry is an append-only audit record of a completed payout.
type LedgerEntry struct {
	ID            string    `json:"id"`
	AccountID     string    `json:"account_id"`
	WithdrawalID  string    `json:"withdrawal_id"`
	Amount        float64   `json:"amount"`
	TransactionID string    `json:"transaction_id"`
	Method        string    `json:"method"`
	CreatedAt     time.Time `json:"created_at"`
}
