package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/juniorcfabio/ViralizaAi-sub005/internal/domain"
)

// ============================================================
// Withdrawals: table withdrawal_requests
// ============================================================

type withdrawalRow struct {
	ID              string  `json:"id"`
	AccountID       string  `json:"account_id"`
	Amount          float64 `json:"amount"`
	Method          string  `json:"method"`
	PixKey          string  `json:"pix_key"`
	BankName        string  `json:"bank_name"`
	BankAgency      string  `json:"bank_agency"`
	BankAccount     string  `json:"bank_account"`
	HolderName      string  `json:"holder_name"`
	HolderDocument  string  `json:"holder_document"`
	Status          string  `json:"status"`
	ApprovedBy      string  `json:"approved_by"`
	RejectedBy      string  `json:"rejected_by"`
	RejectionReason string  `json:"rejection_reason"`
	FailureReason   string  `json:"failure_reason"`
	TransactionID   string  `json:"transaction_id"`
	RequestedAt     string  `json:"requested_at"`
	ApprovedAt      string  `json:"approved_at"`
	ProcessedAt     string  `json:"processed_at"`
	PaidAt          string  `json:"paid_at"`
	RejectedAt      string  `json:"rejected_at"`
}

func (r *withdrawalRow) toDomain() *domain.Withdrawal {
	return &domain.Withdrawal{
		ID:        r.ID,
		AccountID: r.AccountID,
		Amount:    r.Amount,
		Destination: domain.PaymentMethod{
			Method:         r.Method,
			PixKey:         r.PixKey,
			BankName:       r.BankName,
			BankAgency:     r.BankAgency,
			BankAccount:    r.BankAccount,
			HolderName:     r.HolderName,
			HolderDocument: r.HolderDocument,
		},
		Status:          r.Status,
		ApprovedBy:      r.ApprovedBy,
		RejectedBy:      r.RejectedBy,
		RejectionReason: r.RejectionReason,
		FailureReason:   r.FailureReason,
		TransactionID:   r.TransactionID,
		RequestedAt:     parseTime(r.RequestedAt),
		ApprovedAt:      parseTimePtr(r.ApprovedAt),
		ProcessedAt:     parseTimePtr(r.ProcessedAt),
		PaidAt:          parseTimePtr(r.PaidAt),
		RejectedAt:      parseTimePtr(r.RejectedAt),
	}
}

func parseTimePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t := parseTime(s)
	if t.IsZero() {
		return nil
	}
	return &t
}

func (c *Client) InsertWithdrawal(ctx context.Context, w *domain.Withdrawal) (*domain.Withdrawal, error) {
	ctx, span := tracer.Start(ctx, "Supabase.InsertWithdrawal")
	defer span.End()

	body, err := c.doPost(ctx, "withdrawal_requests", map[string]any{
		"id":              w.ID,
		"account_id":      w.AccountID,
		"amount":          w.Amount,
		"method":          w.Destination.Method,
		"pix_key":         w.Destination.PixKey,
		"bank_name":       w.Destination.BankName,
		"bank_agency":     w.Destination.BankAgency,
		"bank_account":    w.Destination.BankAccount,
		"holder_name":     w.Destination.HolderName,
		"holder_document": w.Destination.HolderDocument,
		"status":          w.Status,
		"requested_at":    w.RequestedAt.Format(time.RFC3339),
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/withdrawals", Err: err}
	}

	var rows []withdrawalRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode created withdrawal: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("supabase returned no row for created withdrawal %s", w.ID)
	}
	return rows[0].toDomain(), nil
}

func (c *Client) GetWithdrawal(ctx context.Context, withdrawalID string) (*domain.Withdrawal, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetWithdrawal")
	defer span.End()

	path := fmt.Sprintf("withdrawal_requests?id=eq.%s&limit=1", url.QueryEscape(withdrawalID))
	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/withdrawals", Err: err}
	}

	var rows []withdrawalRow
	if body != nil {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode withdrawal: %w", err)
		}
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "withdrawal", ID: withdrawalID}
	}
	return rows[0].toDomain(), nil
}

// GetOutstandingWithdrawal returns the account's non-terminal request, or
// ErrNotFound when every request is paid or rejected.
func (c *Client) GetOutstandingWithdrawal(ctx context.Context, accountID string) (*domain.Withdrawal, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetOutstandingWithdrawal")
	defer span.End()

	path := fmt.Sprintf("withdrawal_requests?account_id=eq.%s&status=in.(pending,approved,processing)&limit=1",
		url.QueryEscape(accountID))
	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/withdrawals", Err: err}
	}

	var rows []withdrawalRow
	if body != nil {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode withdrawal: %w", err)
		}
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "withdrawal", ID: accountID}
	}
	return rows[0].toDomain(), nil
}

func (c *Client) ListWithdrawals(ctx context.Context, filter domain.WithdrawalFilter) ([]domain.Withdrawal, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListWithdrawals")
	defer span.End()

	path := "withdrawal_requests?order=requested_at.desc" + pagination(filter.Page, filter.PageSize)
	if filter.AccountID != "" {
		path += "&account_id=eq." + url.QueryEscape(filter.AccountID)
	}
	if filter.Status != "" {
		path += "&status=eq." + url.QueryEscape(filter.Status)
	}

	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/withdrawals", Err: err}
	}

	var rows []withdrawalRow
	if body != nil {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode withdrawals: %w", err)
		}
	}
	withdrawals := make([]domain.Withdrawal, 0, len(rows))
	for i := range rows {
		withdrawals = append(withdrawals, *rows[i].toDomain())
	}
	return withdrawals, nil
}

// TransitionWithdrawal flips the status only when the row still holds
// fromStatus, applying the extra patch columns alongside. An empty
// representation back means the precondition failed.
func (c *Client) TransitionWithdrawal(ctx context.Context, withdrawalID, fromStatus, toStatus string, patch map[string]any) (bool, error) {
	ctx, span := tracer.Start(ctx, "Supabase.TransitionWithdrawal")
	defer span.End()

	full := map[string]any{"status": toStatus}
	for k, v := range patch {
		full[k] = v
	}

	path := fmt.Sprintf("withdrawal_requests?id=eq.%s&status=eq.%s",
		url.QueryEscape(withdrawalID), url.QueryEscape(fromStatus))
	body, err := c.doPatch(ctx, path, full)
	if err != nil {
		return false, &domain.ErrExternalService{Service: "supabase/withdrawals", Err: err}
	}
	return body != nil && string(body) != "[]", nil
}
