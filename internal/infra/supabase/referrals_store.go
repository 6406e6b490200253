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
// Attribution: tables affiliate_clicks and affiliate_referrals
// ============================================================

type referralRow struct {
	ID             string `json:"id"`
	AccountID      string `json:"account_id"`
	ReferralCode   string `json:"referral_code"`
	ReferredUserID string `json:"referred_user_id"`
	CreatedAt      string `json:"created_at"`
}

func (r *referralRow) toDomain() *domain.Referral {
	return &domain.Referral{
		ID:             r.ID,
		AccountID:      r.AccountID,
		ReferralCode:   r.ReferralCode,
		ReferredUserID: r.ReferredUserID,
		CreatedAt:      parseTime(r.CreatedAt),
	}
}

func (c *Client) InsertClick(ctx context.Context, click *domain.ClickEvent) error {
	ctx, span := tracer.Start(ctx, "Supabase.InsertClick")
	defer span.End()

	_, err := c.doPost(ctx, "affiliate_clicks", map[string]any{
		"id":            click.ID,
		"account_id":    click.AccountID,
		"referral_code": click.ReferralCode,
		"source":        click.Source,
		"landing_page":  click.LandingPage,
		"recorded_at":   click.RecordedAt.Format(time.RFC3339),
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/clicks", Err: err}
	}
	return nil
}

// InsertReferral inserts the attribution edge. The table carries a unique
// index on referred_user_id; a conflict surfaces as ErrDuplicate so retried
// signup events collapse to one row.
func (c *Client) InsertReferral(ctx context.Context, ref *domain.Referral) error {
	ctx, span := tracer.Start(ctx, "Supabase.InsertReferral")
	defer span.End()

	_, err := c.doPost(ctx, "affiliate_referrals", map[string]any{
		"id":               ref.ID,
		"account_id":       ref.AccountID,
		"referral_code":    ref.ReferralCode,
		"referred_user_id": ref.ReferredUserID,
		"created_at":       ref.CreatedAt.Format(time.RFC3339),
	})
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ErrDuplicate{Key: ref.ReferredUserID}
		}
		return &domain.ErrExternalService{Service: "supabase/referrals", Err: err}
	}
	return nil
}

func (c *Client) GetReferralByUser(ctx context.Context, referredUserID string) (*domain.Referral, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetReferralByUser")
	defer span.End()

	path := fmt.Sprintf("affiliate_referrals?referred_user_id=eq.%s&order=created_at.desc&limit=1", url.QueryEscape(referredUserID))
	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/referrals", Err: err}
	}

	var rows []referralRow
	if body != nil {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode referral: %w", err)
		}
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "referral", ID: referredUserID}
	}
	return rows[0].toDomain(), nil
}

func (c *Client) ListReferrals(ctx context.Context, accountID string) ([]domain.Referral, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListReferrals")
	defer span.End()

	path := fmt.Sprintf("affiliate_referrals?account_id=eq.%s&order=created_at.desc", url.QueryEscape(accountID))
	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/referrals", Err: err}
	}

	var rows []referralRow
	if body != nil {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode referrals: %w", err)
		}
	}
	refs := make([]domain.Referral, 0, len(rows))
	for i := range rows {
		refs = append(refs, *rows[i].toDomain())
	}
	return refs, nil
}
