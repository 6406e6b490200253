package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/juniorcfabio/ViralizaAi-sub005/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Affiliate accounts: table affiliate_accounts
// ============================================================

// accountRow maps affiliate_accounts columns to the domain model. Payment
// method fields are flat columns on the table.
type accountRow struct {
	ID               string  `json:"id"`
	UserID           string  `json:"user_id"`
	Name             string  `json:"name"`
	Email            string  `json:"email"`
	ReferralCode     string  `json:"referral_code"`
	Status           string  `json:"status"`
	CommissionRate   float64 `json:"commission_rate"`
	TotalEarnings    float64 `json:"total_earnings"`
	PendingBalance   float64 `json:"pending_balance"`
	AvailableBalance float64 `json:"available_balance"`
	TotalReferrals   int     `json:"total_referrals"`
	TotalClicks      int     `json:"total_clicks"`
	PaymentMethod    string  `json:"payment_method"`
	PixKey           string  `json:"pix_key"`
	BankName         string  `json:"bank_name"`
	BankAgency       string  `json:"bank_agency"`
	BankAccount      string  `json:"bank_account"`
	HolderName       string  `json:"holder_name"`
	HolderDocument   string  `json:"holder_document"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

func (r *accountRow) toDomain() *domain.Account {
	return &domain.Account{
		ID:               r.ID,
		UserID:           r.UserID,
		Name:             r.Name,
		Email:            r.Email,
		ReferralCode:     r.ReferralCode,
		Status:           r.Status,
		CommissionRate:   r.CommissionRate,
		TotalEarnings:    r.TotalEarnings,
		PendingBalance:   r.PendingBalance,
		AvailableBalance: r.AvailableBalance,
		TotalReferrals:   r.TotalReferrals,
		TotalClicks:      r.TotalClicks,
		Payment: domain.PaymentMethod{
			Method:         r.PaymentMethod,
			PixKey:         r.PixKey,
			BankName:       r.BankName,
			BankAgency:     r.BankAgency,
			BankAccount:    r.BankAccount,
			HolderName:     r.HolderName,
			HolderDocument: r.HolderDocument,
		},
		CreatedAt: parseTime(r.CreatedAt),
		UpdatedAt: parseTime(r.UpdatedAt),
	}
}

func accountToRow(a *domain.Account) map[string]any {
	return map[string]any{
		"id":                a.ID,
		"user_id":           a.UserID,
		"name":              a.Name,
		"email":             a.Email,
		"referral_code":     a.ReferralCode,
		"status":            a.Status,
		"commission_rate":   a.CommissionRate,
		"total_earnings":    a.TotalEarnings,
		"pending_balance":   a.PendingBalance,
		"available_balance": a.AvailableBalance,
		"total_referrals":   a.TotalReferrals,
		"total_clicks":      a.TotalClicks,
		"payment_method":    a.Payment.Method,
		"pix_key":           a.Payment.PixKey,
		"bank_name":         a.Payment.BankName,
		"bank_agency":       a.Payment.BankAgency,
		"bank_account":      a.Payment.BankAccount,
		"holder_name":       a.Payment.HolderName,
		"holder_document":   a.Payment.HolderDocument,
		"created_at":        a.CreatedAt.Format(time.RFC3339),
		"updated_at":        a.UpdatedAt.Format(time.RFC3339),
	}
}

// parseTime decodes PostgREST timestamps, tolerating date-only columns.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, _ = time.Parse("2006-01-02", s)
	}
	return t
}

func (c *Client) CreateAccount(ctx context.Context, acct *domain.Account) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateAccount")
	defer span.End()

	body, err := c.doPost(ctx, "affiliate_accounts", accountToRow(acct))
	if err != nil {
		// The unique index on user_id decides concurrent activations; the
		// loser re-reads the winning row.
		if isUniqueViolation(err) {
			return nil, &domain.ErrDuplicate{Key: acct.UserID}
		}
		return nil, &domain.ErrExternalService{Service: "supabase/accounts", Err: err}
	}

	var rows []accountRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode created account: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("supabase returned no row for created account %s", acct.ID)
	}
	return rows[0].toDomain(), nil
}

func (c *Client) getOneAccount(ctx context.Context, filter, id string) (*domain.Account, error) {
	body, err := c.doGet(ctx, fmt.Sprintf("affiliate_accounts?%s&limit=1", filter))
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/accounts", Err: err}
	}

	var rows []accountRow
	if body != nil {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode account: %w", err)
		}
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "account", ID: id}
	}
	return rows[0].toDomain(), nil
}

func (c *Client) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetAccount")
	defer span.End()

	return c.getOneAccount(ctx, "id=eq."+url.QueryEscape(accountID), accountID)
}

func (c *Client) GetAccountByUserID(ctx context.Context, userID string) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetAccountByUserID")
	defer span.End()

	return c.getOneAccount(ctx, "user_id=eq."+url.QueryEscape(userID), userID)
}

func (c *Client) GetAccountByCode(ctx context.Context, referralCode string) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetAccountByCode")
	defer span.End()

	return c.getOneAccount(ctx, "referral_code=eq."+url.QueryEscape(referralCode), referralCode)
}

func (c *Client) ListAccounts(ctx context.Context, filter domain.AccountFilter) ([]domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListAccounts")
	defer span.End()

	path := "affiliate_accounts?order=created_at.desc" + pagination(filter.Page, filter.PageSize)
	if filter.Status != "" {
		path += "&status=eq." + url.QueryEscape(filter.Status)
	}

	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/accounts", Err: err}
	}

	var rows []accountRow
	if body != nil {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode accounts: %w", err)
		}
	}
	accounts := make([]domain.Account, 0, len(rows))
	for i := range rows {
		accounts = append(accounts, *rows[i].toDomain())
	}
	return accounts, nil
}

func (c *Client) UpdateAccountStatus(ctx context.Context, accountID, status string) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateAccountStatus")
	defer span.End()

	return c.patchAccount(ctx, accountID, map[string]any{"status": status})
}

func (c *Client) UpdatePaymentMethod(ctx context.Context, accountID string, pm domain.PaymentMethod) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdatePaymentMethod")
	defer span.End()

	return c.patchAccount(ctx, accountID, map[string]any{
		"payment_method":  pm.Method,
		"pix_key":         pm.PixKey,
		"bank_name":       pm.BankName,
		"bank_agency":     pm.BankAgency,
		"bank_account":    pm.BankAccount,
		"holder_name":     pm.HolderName,
		"holder_document": pm.HolderDocument,
	})
}

// ApplyBalanceDelta adjusts the balance columns by the given deltas and
// returns the updated row. Callers serialize per-account via the locker, so
// the read-modify-write here does not race with itself.
func (c *Client) ApplyBalanceDelta(ctx context.Context, accountID string, earnings, pending, available float64) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ApplyBalanceDelta")
	defer span.End()

	acct, err := c.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	patch := map[string]any{
		"total_earnings":    acct.TotalEarnings + earnings,
		"pending_balance":   acct.PendingBalance + pending,
		"available_balance": acct.AvailableBalance + available,
		"updated_at":        time.Now().UTC().Format(time.RFC3339),
	}

	body, err := c.doPatch(ctx, "affiliate_accounts?id=eq."+url.QueryEscape(accountID), patch)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/accounts", Err: err}
	}

	var rows []accountRow
	if body != nil {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode account after balance update: %w", err)
		}
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "account", ID: accountID}
	}

	updated := rows[0].toDomain()
	c.logger.Info("supabase: balances updated",
		zap.String("account_id", accountID),
		zap.Float64("total_earnings", updated.TotalEarnings),
		zap.Float64("pending_balance", updated.PendingBalance),
		zap.Float64("available_balance", updated.AvailableBalance),
	)
	return updated, nil
}

func (c *Client) IncrementClicks(ctx context.Context, accountID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.IncrementClicks")
	defer span.End()

	acct, err := c.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	return c.patchAccount(ctx, accountID, map[string]any{"total_clicks": acct.TotalClicks + 1})
}

func (c *Client) IncrementReferrals(ctx context.Context, accountID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.IncrementReferrals")
	defer span.End()

	acct, err := c.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	return c.patchAccount(ctx, accountID, map[string]any{"total_referrals": acct.TotalReferrals + 1})
}

func (c *Client) patchAccount(ctx context.Context, accountID string, patch map[string]any) error {
	patch["updated_at"] = time.Now().UTC().Format(time.RFC3339)

	body, err := c.doPatch(ctx, "affiliate_accounts?id=eq."+url.QueryEscape(accountID), patch)
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/accounts", Err: err}
	}
	if body == nil || string(body) == "[]" {
		return &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	return nil
}

func pagination(page, pageSize int) string {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return fmt.Sprintf("&limit=%d&offset=%d", pageSize, (page-1)*pageSize)
}
