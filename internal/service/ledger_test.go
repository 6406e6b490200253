package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/juniorcfabio/ViralizaAi-sub005/internal/domain"
)

func TestRegisterCommission_Success(t *testing.T) {
	f := newFixture()
	acct := f.seedAccount("acc-1", "user-1", "CODE1234", 0, 0)
	acct.CommissionRate = 20
	f.seedReferral("acc-1", "CODE1234", "buyer-1")

	c, err := f.ledger.RegisterCommission(context.Background(), domain.SaleEvent{
		SaleID:      "sale-1",
		BuyerUserID: "buyer-1",
		Amount:      200,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c == nil {
		t.Fatal("expected a commission, got nil")
	}
	if c.Value != 40 {
		t.Errorf("expected value 40, got %f", c.Value)
	}
	if c.Status != domain.CommissionPending {
		t.Errorf("expected status pending, got %s", c.Status)
	}

	updated, _ := f.store.GetAccount(context.Background(), "acc-1")
	if updated.PendingBalance != 40 {
		t.Errorf("expected pending balance 40, got %f", updated.PendingBalance)
	}
	if updated.TotalEarnings != 40 {
		t.Errorf("expected total earnings 40, got %f", updated.TotalEarnings)
	}
	if updated.AvailableBalance != 0 {
		t.Errorf("expected available balance 0, got %f", updated.AvailableBalance)
	}
}

func TestRegisterCommission_IdempotentPerSale(t *testing.T) {
	f := newFixture()
	f.seedAccount("acc-1", "user-1", "CODE1234", 0, 0)
	f.seedReferral("acc-1", "CODE1234", "buyer-1")

	ev := domain.SaleEvent{SaleID: "sale-1", BuyerUserID: "buyer-1", Amount: 100}
	first, err := f.ledger.RegisterCommission(context.Background(), ev)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := f.ledger.RegisterCommission(context.Background(), ev)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected replay to return the original commission, got %s and %s", first.ID, second.ID)
	}

	acct, _ := f.store.GetAccount(context.Background(), "acc-1")
	if acct.PendingBalance != 10 {
		t.Errorf("expected a single credit of 10, got pending %f", acct.PendingBalance)
	}
}

func TestRegisterCommission_UnattributedBuyer(t *testing.T) {
	f := newFixture()
	f.seedAccount("acc-1", "user-1", "CODE1234", 0, 0)

	c, err := f.ledger.RegisterCommission(context.Background(), domain.SaleEvent{
		SaleID:      "sale-1",
		BuyerUserID: "stranger",
		Amount:      100,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c != nil {
		t.Errorf("expected no commission for unattributed buyer, got %+v", c)
	}
}

func TestRegisterCommission_SuspendedAffiliate(t *testing.T) {
	f := newFixture()
	acct := f.seedAccount("acc-1", "user-1", "CODE1234", 0, 0)
	acct.Status = domain.AccountSuspended
	f.seedReferral("acc-1", "CODE1234", "buyer-1")

	c, err := f.ledger.RegisterCommission(context.Background(), domain.SaleEvent{
		SaleID:      "sale-1",
		BuyerUserID: "buyer-1",
		Amount:      100,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c != nil {
		t.Error("expected no commission while suspended")
	}
}

func TestRegisterCommission_CapClampsValue(t *testing.T) {
	f := newFixture()
	acct := f.seedAccount("acc-1", "user-1", "CODE1234", 0, 0)
	acct.CommissionRate = 30
	f.seedReferral("acc-1", "CODE1234", "buyer-1")

	s := domain.DefaultSettings()
	s.MaxCommissionPerSale = 10
	if err := f.store.UpsertSettings(context.Background(), &s); err != nil {
		t.Fatal(err)
	}

	c, err := f.ledger.RegisterCommission(context.Background(), domain.SaleEvent{
		SaleID:      "sale-1",
		BuyerUserID: "buyer-1",
		Amount:      1000,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Value != 10 {
		t.Errorf("expected capped value 10, got %f", c.Value)
	}
	if c.Rate != 30 {
		t.Errorf("expected stored rate 30, got %f", c.Rate)
	}
}

func TestRegisterCommission_EligibilityDate(t *testing.T) {
	f := newFixture()
	f.seedAccount("acc-1", "user-1", "CODE1234", 0, 0)
	f.seedReferral("acc-1", "CODE1234", "buyer-1")

	// Wednesday 2026-01-07; week ends Sunday 2026-01-11, plus 7 delay days.
	saleDate := time.Date(2026, 1, 7, 15, 0, 0, 0, time.UTC)
	c, err := f.ledger.RegisterCommission(context.Background(), domain.SaleEvent{
		SaleID:      "sale-1",
		BuyerUserID: "buyer-1",
		Amount:      100,
		SaleDate:    saleDate,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	want := time.Date(2026, 1, 18, 23, 59, 59, 0, time.UTC)
	if !c.PaymentEligibleAt.Equal(want) {
		t.Errorf("expected eligible at %s, got %s", want, c.PaymentEligibleAt)
	}
	if c.WeekNumber == 0 || c.Year != 2026 {
		t.Errorf("expected iso week fields, got week %d year %d", c.WeekNumber, c.Year)
	}
}

func TestRegisterCommission_RollbackOnBalanceFailure(t *testing.T) {
	f := newFixture()
	f.seedAccount("acc-1", "user-1", "CODE1234", 0, 0)
	f.seedReferral("acc-1", "CODE1234", "buyer-1")
	f.store.balanceErr = errors.New("gateway down")

	_, err := f.ledger.RegisterCommission(context.Background(), domain.SaleEvent{
		SaleID:      "sale-1",
		BuyerUserID: "buyer-1",
		Amount:      100,
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	if _, err := f.store.GetCommissionBySale(context.Background(), "sale-1"); err == nil {
		t.Error("expected commission row to be rolled back")
	}
}

func TestRegisterCommission_Validation(t *testing.T) {
	f := newFixture()
	cases := []domain.SaleEvent{
		{BuyerUserID: "b", Amount: 10},
		{SaleID: "s", Amount: 10},
		{SaleID: "s", BuyerUserID: "b", Amount: 0},
		{SaleID: "s", BuyerUserID: "b", Amount: -5},
	}
	for i, ev := range cases {
		_, err := f.ledger.RegisterCommission(context.Background(), ev)
		var verr *domain.ErrValidation
		if !errors.As(err, &verr) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestConfirmEligible_MovesPendingToAvailable(t *testing.T) {
	f := newFixture()
	f.seedAccount("acc-1", "user-1", "CODE1234", 0, 0)
	f.seedReferral("acc-1", "CODE1234", "buyer-1")
	f.seedReferral("acc-1", "CODE1234", "buyer-2")

	past := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	for i, buyer := range []string{"buyer-1", "buyer-2"} {
		_, err := f.ledger.RegisterCommission(context.Background(), domain.SaleEvent{
			SaleID:      "sale-" + buyer,
			BuyerUserID: buyer,
			Amount:      float64(100 * (i + 1)),
			SaleDate:    past,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	confirmed, err := f.ledger.ConfirmEligible(context.Background(), now)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if confirmed != 2 {
		t.Errorf("expected 2 confirmations, got %d", confirmed)
	}

	acct, _ := f.store.GetAccount(context.Background(), "acc-1")
	if acct.PendingBalance != 0 {
		t.Errorf("expected pending 0, got %f", acct.PendingBalance)
	}
	if acct.AvailableBalance != 30 {
		t.Errorf("expected available 30, got %f", acct.AvailableBalance)
	}
	if acct.TotalEarnings != 30 {
		t.Errorf("expected earnings unchanged at 30, got %f", acct.TotalEarnings)
	}
}

func TestConfirmEligible_Rerunnable(t *testing.T) {
	f := newFixture()
	f.seedAccount("acc-1", "user-1", "CODE1234", 0, 0)
	f.seedReferral("acc-1", "CODE1234", "buyer-1")

	past := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	if _, err := f.ledger.RegisterCommission(context.Background(), domain.SaleEvent{
		SaleID: "sale-1", BuyerUserID: "buyer-1", Amount: 100, SaleDate: past,
	}); err != nil {
		t.Fatal(err)
	}

	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	if _, err := f.ledger.ConfirmEligible(context.Background(), now); err != nil {
		t.Fatal(err)
	}
	again, err := f.ledger.ConfirmEligible(context.Background(), now)
	if err != nil {
		t.Fatal(err)
	}
	if again != 0 {
		t.Errorf("expected rerun to confirm nothing, got %d", again)
	}

	acct, _ := f.store.GetAccount(context.Background(), "acc-1")
	if acct.AvailableBalance != 10 {
		t.Errorf("expected available 10 after rerun, got %f", acct.AvailableBalance)
	}
}

func TestConfirmEligible_FutureCommissionUntouched(t *testing.T) {
	f := newFixture()
	f.seedAccount("acc-1", "user-1", "CODE1234", 0, 0)
	f.seedReferral("acc-1", "CODE1234", "buyer-1")

	if _, err := f.ledger.RegisterCommission(context.Background(), domain.SaleEvent{
		SaleID: "sale-1", BuyerUserID: "buyer-1", Amount: 100,
		SaleDate: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatal(err)
	}

	confirmed, err := f.ledger.ConfirmEligible(context.Background(), time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if confirmed != 0 {
		t.Errorf("expected no early confirmation, got %d", confirmed)
	}
}

func TestCancelCommission_Pending(t *testing.T) {
	f := newFixture()
	f.seedAccount("acc-1", "user-1", "CODE1234", 0, 0)
	f.seedReferral("acc-1", "CODE1234", "buyer-1")

	c, err := f.ledger.RegisterCommission(context.Background(), domain.SaleEvent{
		SaleID: "sale-1", BuyerUserID: "buyer-1", Amount: 100,
	})
	if err != nil {
		t.Fatal(err)
	}

	cancelled, err := f.ledger.CancelCommission(context.Background(), c.ID, "refund")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cancelled.Status != domain.CommissionCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}
	if cancelled.CancellationReason != "refund" {
		t.Errorf("expected reason recorded, got %q", cancelled.CancellationReason)
	}

	acct, _ := f.store.GetAccount(context.Background(), "acc-1")
	if acct.PendingBalance != 0 || acct.TotalEarnings != 0 {
		t.Errorf("expected full reversal, got pending %f earnings %f", acct.PendingBalance, acct.TotalEarnings)
	}
	f.assertConservation(t, "acc-1")
}

func TestCancelCommission_Confirmed(t *testing.T) {
	f := newFixture()
	f.seedAccount("acc-1", "user-1", "CODE1234", 0, 0)
	f.seedReferral("acc-1", "CODE1234", "buyer-1")

	c, err := f.ledger.RegisterCommission(context.Background(), domain.SaleEvent{
		SaleID: "sale-1", BuyerUserID: "buyer-1", Amount: 100,
		SaleDate: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.ledger.ConfirmEligible(context.Background(), time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatal(err)
	}

	if _, err := f.ledger.CancelCommission(context.Background(), c.ID, "chargeback"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	acct, _ := f.store.GetAccount(context.Background(), "acc-1")
	if acct.AvailableBalance != 0 || acct.TotalEarnings != 0 {
		t.Errorf("expected available reversal, got available %f earnings %f", acct.AvailableBalance, acct.TotalEarnings)
	}
	f.assertConservation(t, "acc-1")
}

func TestCancelCommission_ConfirmedInsufficientAvailable(t *testing.T) {
	f := newFixture()
	f.seedAccount("acc-1", "user-1", "CODE1234", 0, 0)
	f.seedReferral("acc-1", "CODE1234", "buyer-1")

	c, err := f.ledger.RegisterCommission(context.Background(), domain.SaleEvent{
		SaleID: "sale-1", BuyerUserID: "buyer-1", Amount: 100,
		SaleDate: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.ledger.ConfirmEligible(context.Background(), time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatal(err)
	}

	// Drain the available balance as a withdrawal would.
	if _, err := f.store.ApplyBalanceDelta(context.Background(), "acc-1", 0, 0, -10); err != nil {
		t.Fatal(err)
	}

	_, err = f.ledger.CancelCommission(context.Background(), c.ID, "chargeback")
	var insufficient *domain.ErrInsufficientBalance
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected insufficient balance error, got %v", err)
	}
}

func TestCancelCommission_PaidRefused(t *testing.T) {
	f := newFixture()
	f.seedAccount("acc-1", "user-1", "CODE1234", 0, 0)
	f.store.commissions["com-1"] = &domain.Commission{
		ID:        "com-1",
		AccountID: "acc-1",
		SaleID:    "sale-1",
		Status:    domain.CommissionPaid,
		Value:     10,
	}

	_, err := f.ledger.CancelCommission(context.Background(), "com-1", "refund")
	var invalid *domain.ErrInvalidTransition
	if !errors.As(err, &invalid) {
		t.Fatalf("expected invalid transition error, got %v", err)
	}
	if invalid.Current != domain.CommissionPaid {
		t.Errorf("expected current status paid, got %s", invalid.Current)
	}
}
