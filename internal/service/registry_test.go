package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/juniorcfabio/ViralizaAi-sub005/internal/domain"
)

func TestActivate_CreatesAccount(t *testing.T) {
	f := newFixture()

	acct, err := f.registry.Activate(context.Background(), "user-1", "Maria Silva", "Maria@Example.com")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if acct.Status != domain.AccountActive {
		t.Errorf("expected active, got %s", acct.Status)
	}
	if len(acct.ReferralCode) != 8 {
		t.Errorf("expected 8-char referral code, got %q", acct.ReferralCode)
	}
	if acct.Email != "maria@example.com" {
		t.Errorf("expected normalized email, got %q", acct.Email)
	}
	if acct.CommissionRate != 10 {
		t.Errorf("expected the program default rate, got %f", acct.CommissionRate)
	}
	if acct.TotalEarnings != 0 || acct.PendingBalance != 0 || acct.AvailableBalance != 0 {
		t.Error("expected zeroed balances on activation")
	}
}

func TestActivate_Idempotent(t *testing.T) {
	f := newFixture()

	first, err := f.registry.Activate(context.Background(), "user-1", "Maria", "maria@example.com")
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.registry.Activate(context.Background(), "user-1", "Other Name", "other@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID {
		t.Errorf("expected the existing account back, got %s and %s", first.ID, second.ID)
	}
	if second.ReferralCode != first.ReferralCode {
		t.Error("expected the referral code to be stable across activations")
	}
}

func TestActivate_IdempotentWhileSuspended(t *testing.T) {
	f := newFixture()

	acct, err := f.registry.Activate(context.Background(), "user-1", "Maria", "maria@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.registry.Suspend(context.Background(), acct.ID); err != nil {
		t.Fatal(err)
	}

	again, err := f.registry.Activate(context.Background(), "user-1", "Maria", "maria@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if again.Status != domain.AccountSuspended {
		t.Errorf("expected re-activation call to leave the suspension alone, got %s", again.Status)
	}
}

func TestActivate_Validation(t *testing.T) {
	f := newFixture()
	cases := []struct{ userID, name, email string }{
		{"", "Maria", "maria@example.com"},
		{"user-1", "", "maria@example.com"},
		{"user-1", "Maria", "not-an-email"},
	}
	for i, c := range cases {
		_, err := f.registry.Activate(context.Background(), c.userID, c.name, c.email)
		var verr *domain.ErrValidation
		if !errors.As(err, &verr) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestSuspendAndReactivate(t *testing.T) {
	f := newFixture()
	acct := f.seedAccount("acc-1", "user-1", "CODE1234", 75, 25)

	suspended, err := f.registry.Suspend(context.Background(), acct.ID)
	if err != nil {
		t.Fatal(err)
	}
	if suspended.Status != domain.AccountSuspended {
		t.Errorf("expected suspended, got %s", suspended.Status)
	}
	if suspended.AvailableBalance != 75 || suspended.PendingBalance != 25 {
		t.Error("expected balances preserved through suspension")
	}

	// Suspending twice is a state conflict.
	_, err = f.registry.Suspend(context.Background(), acct.ID)
	var invalid *domain.ErrInvalidTransition
	if !errors.As(err, &invalid) {
		t.Fatalf("expected invalid transition error, got %v", err)
	}

	restored, err := f.registry.Reactivate(context.Background(), acct.ID)
	if err != nil {
		t.Fatal(err)
	}
	if restored.Status != domain.AccountActive {
		t.Errorf("expected active, got %s", restored.Status)
	}
}

func TestUpdatePaymentMethod_Pix(t *testing.T) {
	f := newFixture()
	f.seedAccount("acc-1", "user-1", "CODE1234", 0, 0)

	acct, err := f.registry.UpdatePaymentMethod(context.Background(), "acc-1", domain.PaymentMethod{
		Method: domain.MethodPix,
		PixKey: "maria@bank.com",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if acct.Payment.PixKey != "maria@bank.com" {
		t.Errorf("expected pix key stored, got %q", acct.Payment.PixKey)
	}
}

func TestUpdatePaymentMethod_Validation(t *testing.T) {
	f := newFixture()
	f.seedAccount("acc-1", "user-1", "CODE1234", 0, 0)

	cases := []domain.PaymentMethod{
		{Method: domain.MethodPix},
		{Method: domain.MethodBankDeposit, BankName: "Banco X"},
		{Method: domain.MethodBankDeposit, BankName: "Banco X", BankAgency: "0001", BankAccount: "12345-6"},
		{Method: "paypal"},
	}
	for i, pm := range cases {
		_, err := f.registry.UpdatePaymentMethod(context.Background(), "acc-1", pm)
		var verr *domain.ErrValidation
		if !errors.As(err, &verr) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestDashboard(t *testing.T) {
	f := newFixture()
	acct := f.seedAccount("acc-1", "user-1", "CODE1234", 30, 10)
	acct.TotalClicks = 200
	acct.TotalReferrals = 5
	f.seedReferral("acc-1", "CODE1234", "buyer-1")

	if _, err := f.ledger.RegisterCommission(context.Background(), domain.SaleEvent{
		SaleID: "sale-1", BuyerUserID: "buyer-1", Amount: 100,
	}); err != nil {
		t.Fatal(err)
	}

	dash, err := f.registry.Dashboard(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if dash.ConversionRate != 2.5 {
		t.Errorf("expected conversion rate 2.5, got %f", dash.ConversionRate)
	}
	if len(dash.RecentCommissions) != 1 {
		t.Errorf("expected 1 recent commission, got %d", len(dash.RecentCommissions))
	}
}

func TestGetByUser_NotFound(t *testing.T) {
	f := newFixture()
	_, err := f.registry.GetByUser(context.Background(), "ghost")
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}
