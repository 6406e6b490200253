package domain_test

import (
	"testing"
	"time"

	"github.com/juniorcfabio/ViralizaAi-sub005/internal/domain"
)

func TestSettlementWeekEnd(t *testing.T) {
	tests := []struct {
		name string
		sale time.Time
		want time.Time
	}{
		{
			name: "wednesday rolls to the following sunday",
			sale: time.Date(2026, 1, 7, 14, 30, 0, 0, time.UTC),
			want: time.Date(2026, 1, 11, 23, 59, 59, 0, time.UTC),
		},
		{
			name: "monday rolls to the following sunday",
			sale: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
			want: time.Date(2026, 1, 11, 23, 59, 59, 0, time.UTC),
		},
		{
			name: "sunday sale belongs to the week ending that day",
			sale: time.Date(2026, 1, 11, 8, 0, 0, 0, time.UTC),
			want: time.Date(2026, 1, 11, 23, 59, 59, 0, time.UTC),
		},
		{
			name: "non-utc input is normalized",
			sale: time.Date(2026, 1, 10, 23, 0, 0, 0, time.FixedZone("BRT", -3*3600)),
			want: time.Date(2026, 1, 11, 23, 59, 59, 0, time.UTC),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := domain.SettlementWeekEnd(tc.sale)
			if !got.Equal(tc.want) {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestPaymentMethod_Configured(t *testing.T) {
	tests := []struct {
		name   string
		method domain.PaymentMethod
		want   bool
	}{
		{"pix with key", domain.PaymentMethod{Method: domain.MethodPix, PixKey: "k@pix"}, true},
		{"pix without key", domain.PaymentMethod{Method: domain.MethodPix}, false},
		{"bank deposit complete", domain.PaymentMethod{
			Method: domain.MethodBankDeposit, BankName: "b", BankAgency: "1", BankAccount: "2",
		}, true},
		{"bank deposit missing account", domain.PaymentMethod{
			Method: domain.MethodBankDeposit, BankName: "b", BankAgency: "1",
		}, false},
		{"none", domain.PaymentMethod{Method: domain.MethodNone}, false},
		{"empty", domain.PaymentMethod{}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.method.Configured(); got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestAccount_ConversionRate(t *testing.T) {
	a := &domain.Account{TotalClicks: 200, TotalReferrals: 5}
	if got := a.ConversionRate(); got != 2.5 {
		t.Errorf("expected 2.5, got %v", got)
	}

	zero := &domain.Account{}
	if got := zero.ConversionRate(); got != 0 {
		t.Errorf("expected 0 for an account with no clicks, got %v", got)
	}
}

func TestWithdrawal_Terminal(t *testing.T) {
	for status, want := range map[string]bool{
		domain.WithdrawalPending:    false,
		domain.WithdrawalApproved:   false,
		domain.WithdrawalProcessing: false,
		domain.WithdrawalPaid:       true,
		domain.WithdrawalRejected:   true,
	} {
		w := &domain.Withdrawal{Status: status}
		if got := w.Terminal(); got != want {
			t.Errorf("Terminal() for %q: expected %v, got %v", status, want, got)
		}
	}
}

func TestDefaultSettings(t *testing.T) {
	s := domain.DefaultSettings()
	if s.CommissionRate != 10 || s.MinWithdrawalAmount != 50 ||
		s.PaymentCycleDays != 7 || s.PaymentDelayDays != 7 {
		t.Errorf("unexpected defaults: %+v", s)
	}
	if s.AutoApproveWithdrawals {
		t.Error("withdrawals must default to manual approval")
	}
	if s.MaxCommissionPerSale != 0 {
		t.Errorf("expected uncapped commissions by default, got %v", s.MaxCommissionPerSale)
	}
}
