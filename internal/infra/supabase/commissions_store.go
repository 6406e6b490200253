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
// Commissions: table affiliate_commissions
// ============================================================

type commissionRow struct {
	ID                 string  `json:"id"`
	AccountID          string  `json:"account_id"`
	SaleID             string  `json:"sale_id"`
	BuyerUserID        string  `json:"buyer_user_id"`
	ProductLabel       string  `json:"product_label"`
	SaleAmount         float64 `json:"sale_amount"`
	Rate               float64 `json:"rate"`
	Value              float64 `json:"value"`
	Status             string  `json:"status"`
	SaleDate           string  `json:"sale_date"`
	PaymentEligibleAt  string  `json:"payment_eligible_at"`
	WeekNumber         int     `json:"week_number"`
	Year               int     `json:"year"`
	CancellationReason string  `json:"cancellation_reason"`
	CreatedAt          string  `json:"created_at"`
}

func (r *commissionRow) toDomain() *domain.Commission {
	return &domain.Commission{
		ID:                 r.ID,
		AccountID:          r.AccountID,
		SaleID:             r.SaleID,
		BuyerUserID:        r.BuyerUserID,
		ProductLabel:       r.ProductLabel,
		SaleAmount:         r.SaleAmount,
		Rate:               r.Rate,
		Value:              r.Value,
		Status:             r.Status,
		SaleDate:           parseTime(r.SaleDate),
		PaymentEligibleAt:  parseTime(r.PaymentEligibleAt),
		WeekNumber:         r.WeekNumber,
		Year:               r.Year,
		CancellationReason: r.CancellationReason,
		CreatedAt:          parseTime(r.CreatedAt),
	}
}

func (c *Client) InsertCommission(ctx context.Context, cm *domain.Commission) (*domain.Commission, error) {
	ctx, span := tracer.Start(ctx, "Supabase.InsertCommission")
	defer span.End()

	body, err := c.doPost(ctx, "affiliate_commissions", map[string]any{
		"id":                  cm.ID,
		"account_id":          cm.AccountID,
		"sale_id":             cm.SaleID,
		"buyer_user_id":       cm.BuyerUserID,
		"product_label":       cm.ProductLabel,
		"sale_amount":         cm.SaleAmount,
		"rate":                cm.Rate,
		"value":               cm.Value,
		"status":              cm.Status,
		"sale_date":           cm.SaleDate.Format(time.RFC3339),
		"payment_eligible_at": cm.PaymentEligibleAt.Format(time.RFC3339),
		"week_number":         cm.WeekNumber,
		"year":                cm.Year,
		"created_at":          cm.CreatedAt.Format(time.RFC3339),
	})
	if err != nil {
		// sale_id carries a unique index; a replayed sale event loses here
		// and the ledger returns the original commission instead.
		if isUniqueViolation(err) {
			return nil, &domain.ErrDuplicate{Key: cm.SaleID}
		}
		return nil, &domain.ErrExternalService{Service: "supabase/commissions", Err: err}
	}

	var rows []commissionRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode created commission: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("supabase returned no row for created commission %s", cm.ID)
	}
	return rows[0].toDomain(), nil
}

// DeleteCommission removes a commission row. Used only as the compensating
// action when the balance update after an insert fails.
func (c *Client) DeleteCommission(ctx context.Context, commissionID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteCommission")
	defer span.End()

	if err := c.doDelete(ctx, "affiliate_commissions?id=eq."+url.QueryEscape(commissionID)); err != nil {
		return &domain.ErrExternalService{Service: "supabase/commissions", Err: err}
	}
	return nil
}

func (c *Client) GetCommission(ctx context.Context, commissionID string) (*domain.Commission, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetCommission")
	defer span.End()

	return c.getOneCommission(ctx, "id=eq."+url.QueryEscape(commissionID), commissionID)
}

func (c *Client) GetCommissionBySale(ctx context.Context, saleID string) (*domain.Commission, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetCommissionBySale")
	defer span.End()

	return c.getOneCommission(ctx, "sale_id=eq."+url.QueryEscape(saleID), saleID)
}

func (c *Client) getOneCommission(ctx context.Context, filter, id string) (*domain.Commission, error) {
	body, err := c.doGet(ctx, fmt.Sprintf("affiliate_commissions?%s&limit=1", filter))
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/commissions", Err: err}
	}

	var rows []commissionRow
	if body != nil {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode commission: %w", err)
		}
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "commission", ID: id}
	}
	return rows[0].toDomain(), nil
}

func (c *Client) ListCommissions(ctx context.Context, filter domain.CommissionFilter) ([]domain.Commission, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListCommissions")
	defer span.End()

	path := "affiliate_commissions?order=created_at.desc" + pagination(filter.Page, filter.PageSize)
	if filter.AccountID != "" {
		path += "&account_id=eq." + url.QueryEscape(filter.AccountID)
	}
	if filter.Status != "" {
		path += "&status=eq." + url.QueryEscape(filter.Status)
	}
	if filter.WeekNumber > 0 {
		path += fmt.Sprintf("&week_number=eq.%d", filter.WeekNumber)
	}
	if filter.Year > 0 {
		path += fmt.Sprintf("&year=eq.%d", filter.Year)
	}

	return c.listCommissions(ctx, path)
}

func (c *Client) ListEligiblePending(ctx context.Context, now time.Time) ([]domain.Commission, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListEligiblePending")
	defer span.End()

	path := fmt.Sprintf("affiliate_commissions?status=eq.pending&payment_eligible_at=lte.%s&order=payment_eligible_at.asc",
		url.QueryEscape(now.UTC().Format(time.RFC3339)))
	return c.listCommissions(ctx, path)
}

func (c *Client) listCommissions(ctx context.Context, path string) ([]domain.Commission, error) {
	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/commissions", Err: err}
	}

	var rows []commissionRow
	if body != nil {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode commissions: %w", err)
		}
	}
	commissions := make([]domain.Commission, 0, len(rows))
	for i := range rows {
		commissions = append(commissions, *rows[i].toDomain())
	}
	return commissions, nil
}

// TransitionCommission flips the status only when the row still holds
// fromStatus. PostgREST applies the patch to rows matching both filters and
// returns the updated representations; an empty array means the row moved
// on already and the precondition failed.
func (c *Client) TransitionCommission(ctx context.Context, commissionID, fromStatus, toStatus, reason string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Supabase.TransitionCommission")
	defer span.End()

	patch := map[string]any{"status": toStatus}
	if reason != "" {
		patch["cancellation_reason"] = reason
	}

	path := fmt.Sprintf("affiliate_commissions?id=eq.%s&status=eq.%s",
		url.QueryEscape(commissionID), url.QueryEscape(fromStatus))
	body, err := c.doPatch(ctx, path, patch)
	if err != nil {
		return false, &domain.ErrExternalService{Service: "supabase/commissions", Err: err}
	}
	return body != nil && string(body) != "[]", nil
}
