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
// Payout audit ledger: table payout_ledger (append-only)
// ============================================================

type ledgerRow struct {
	ID            string  `json:"id"`
	AccountID     string  `json:"account_id"`
	WithdrawalID  string  `json:"withdrawal_id"`
	Amount        float64 `json:"amount"`
	TransactionID string  `json:"transaction_id"`
	Method        string  `json:"method"`
	CreatedAt     string  `json:"created_at"`
}

func (c *Client) InsertLedgerEntry(ctx context.Context, e *domain.LedgerEntry) error {
	ctx, span := tracer.Start(ctx, "Supabase.InsertLedgerEntry")
	defer span.End()

	_, err := c.doPost(ctx, "payout_ledger", map[string]any{
		"id":             e.ID,
		"account_id":     e.AccountID,
		"withdrawal_id":  e.WithdrawalID,
		"amount":         e.Amount,
		"transaction_id": e.TransactionID,
		"method":         e.Method,
		"created_at":     e.CreatedAt.Format(time.RFC3339),
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/ledger", Err: err}
	}
	return nil
}

func (c *Client) ListLedgerEntries(ctx context.Context, accountID string) ([]domain.LedgerEntry, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListLedgerEntries")
	defer span.End()

	path := fmt.Sprintf("payout_ledger?account_id=eq.%s&order=created_at.desc", url.QueryEscape(accountID))
	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/ledger", Err: err}
	}

	var rows []ledgerRow
	if body != nil {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode ledger entries: %w", err)
		}
	}
	entries := make([]domain.LedgerEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, domain.LedgerEntry{
			ID:            r.ID,
			AccountID:     r.AccountID,
			WithdrawalID:  r.WithdrawalID,
			Amount:        r.Amount,
			TransactionID: r.TransactionID,
			Method:        r.Method,
			CreatedAt:     parseTime(r.CreatedAt),
		})
	}
	return entries, nil
}
