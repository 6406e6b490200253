package handler

import (
	"encoding/json"
	"net/http"

	"github.com/juniorcfabio/ViralizaAi-sub005/internal/domain"
	"github.com/juniorcfabio/ViralizaAi-sub005/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Affiliate panel, keyed by the platform user id
// ============================================================

func activateHandler(svc *service.RegistryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/affiliates/activate")
		defer span.End()

		var req struct {
			UserID string `json:"user_id"`
			Name   string `json:"name"`
			Email  string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		span.SetAttributes(attribute.String("user.id", req.UserID))

		account, err := svc.Activate(ctx, req.UserID, req.Name, req.Email)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, account)
	}
}

// resolveAccount maps the {userId} path segment to the affiliate account.
func resolveAccount(svc *service.RegistryService, w http.ResponseWriter, r *http.Request, logger *zap.Logger) (*domain.Account, bool) {
	userID := chi.URLParam(r, "userId")
	account, err := svc.GetByUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err, logger)
		return nil, false
	}
	return account, true
}

func getAffiliateHandler(svc *service.RegistryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/affiliates/{userId}")
		defer span.End()

		account, ok := resolveAccount(svc, w, r, logger)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, account)
	}
}

func dashboardHandler(svc *service.RegistryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/affiliates/{userId}/dashboard")
		defer span.End()

		account, ok := resolveAccount(svc, w, r, logger)
		if !ok {
			return
		}
		dash, err := svc.Dashboard(ctx, account.ID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, dash)
	}
}

func listAffiliateCommissionsHandler(registry *service.RegistryService, ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/affiliates/{userId}/commissions")
		defer span.End()

		account, ok := resolveAccount(registry, w, r, logger)
		if !ok {
			return
		}
		page, pageSize := parsePagination(r)
		commissions, err := ledger.ListCommissions(ctx, domain.CommissionFilter{
			AccountID: account.ID,
			Status:    r.URL.Query().Get("status"),
			Page:      page,
			PageSize:  pageSize,
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if commissions == nil {
			commissions = []domain.Commission{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"commissions": commissions})
	}
}

func listAffiliateReferralsHandler(registry *service.RegistryService, tracker *service.TrackerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/affiliates/{userId}/referrals")
		defer span.End()

		account, ok := resolveAccount(registry, w, r, logger)
		if !ok {
			return
		}
		referrals, err := tracker.ListReferrals(ctx, account.ID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if referrals == nil {
			referrals = []domain.Referral{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"referrals": referrals})
	}
}

func updatePaymentMethodHandler(svc *service.RegistryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/affiliates/{userId}/payment-method")
		defer span.End()

		account, ok := resolveAccount(svc, w, r, logger)
		if !ok {
			return
		}

		var pm domain.PaymentMethod
		if err := json.NewDecoder(r.Body).Decode(&pm); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		updated, err := svc.UpdatePaymentMethod(ctx, account.ID, pm)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func requestWithdrawalHandler(registry *service.RegistryService, withdrawals *service.WithdrawalService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/affiliates/{userId}/withdrawals")
		defer span.End()

		account, ok := resolveAccount(registry, w, r, logger)
		if !ok {
			return
		}
		span.SetAttributes(attribute.String("account.id", account.ID))

		withdrawal, err := withdrawals.Request(ctx, account.ID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, withdrawal)
	}
}

func listAffiliateWithdrawalsHandler(registry *service.RegistryService, withdrawals *service.WithdrawalService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/affiliates/{userId}/withdrawals")
		defer span.End()

		account, ok := resolveAccount(registry, w, r, logger)
		if !ok {
			return
		}
		page, pageSize := parsePagination(r)
		list, err := withdrawals.List(ctx, domain.WithdrawalFilter{
			AccountID: account.ID,
			Status:    r.URL.Query().Get("status"),
			Page:      page,
			PageSize:  pageSize,
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if list == nil {
			list = []domain.Withdrawal{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"withdrawals": list})
	}
}
