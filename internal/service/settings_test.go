package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/juniorcfabio/ViralizaAi-sub005/internal/domain"
)

func TestSettingsGet_Defaults(t *testing.T) {
	f := newFixture()

	s, err := f.settings.Get(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if s.CommissionRate != 10 {
		t.Errorf("expected default rate 10, got %f", s.CommissionRate)
	}
	if s.MinWithdrawalAmount != 50 {
		t.Errorf("expected default minimum 50, got %f", s.MinWithdrawalAmount)
	}
	if s.PaymentCycleDays != 7 || s.PaymentDelayDays != 7 {
		t.Errorf("expected weekly cycle defaults, got %d/%d", s.PaymentCycleDays, s.PaymentDelayDays)
	}
}

func TestSettingsUpdate_InvalidatesCache(t *testing.T) {
	f := newFixture()

	// Prime the cache.
	if _, err := f.settings.Get(context.Background()); err != nil {
		t.Fatal(err)
	}

	rate := 15.0
	if _, err := f.settings.Update(context.Background(), &domain.SettingsPatch{CommissionRate: &rate}); err != nil {
		t.Fatal(err)
	}

	s, err := f.settings.Get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if s.CommissionRate != 15 {
		t.Errorf("expected fresh rate 15 after update, got %f", s.CommissionRate)
	}
}

func TestSettingsUpdate_PartialPatch(t *testing.T) {
	f := newFixture()

	min := 75.0
	updated, err := f.settings.Update(context.Background(), &domain.SettingsPatch{MinWithdrawalAmount: &min})
	if err != nil {
		t.Fatal(err)
	}
	if updated.MinWithdrawalAmount != 75 {
		t.Errorf("expected minimum 75, got %f", updated.MinWithdrawalAmount)
	}
	if updated.CommissionRate != 10 {
		t.Errorf("expected untouched rate 10, got %f", updated.CommissionRate)
	}
}

func TestSettingsUpdate_Validation(t *testing.T) {
	f := newFixture()

	bad := []*domain.SettingsPatch{
		{CommissionRate: ptr(-1.0)},
		{CommissionRate: ptr(101.0)},
		{MinWithdrawalAmount: ptr(-10.0)},
		{PaymentCycleDays: ptrInt(0)},
		{PaymentDelayDays: ptrInt(-1)},
		{MaxCommissionPerSale: ptr(-5.0)},
	}
	for i, patch := range bad {
		_, err := f.settings.Update(context.Background(), patch)
		var verr *domain.ErrValidation
		if !errors.As(err, &verr) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestSettingsUpdate_NotRetroactive(t *testing.T) {
	f := newFixture()
	f.seedAccount("acc-1", "user-1", "CODE1234", 0, 0)
	f.seedReferral("acc-1", "CODE1234", "buyer-1")

	c, err := f.ledger.RegisterCommission(context.Background(), domain.SaleEvent{
		SaleID: "sale-1", BuyerUserID: "buyer-1", Amount: 100,
	})
	if err != nil {
		t.Fatal(err)
	}

	rate := 50.0
	if _, err := f.settings.Update(context.Background(), &domain.SettingsPatch{CommissionRate: &rate}); err != nil {
		t.Fatal(err)
	}

	same, _ := f.ledger.Get(context.Background(), c.ID)
	if same.Rate != 10 || same.Value != 10 {
		t.Errorf("expected the sale-time rate kept, got rate %f value %f", same.Rate, same.Value)
	}
}

func ptr(v float64) *float64 { return &v }
func ptrInt(v int) *int      { return &v }
