package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/juniorcfabio/ViralizaAi-sub005/internal/domain"
	"github.com/juniorcfabio/ViralizaAi-sub005/internal/infra/observability"
	"github.com/juniorcfabio/ViralizaAi-sub005/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Back-office admin API
// ============================================================

func adminListAccountsHandler(svc *service.RegistryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/accounts")
		defer span.End()

		page, pageSize := parsePagination(r)
		accounts, err := svc.List(ctx, domain.AccountFilter{
			Status:   r.URL.Query().Get("status"),
			Page:     page,
			PageSize: pageSize,
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if accounts == nil {
			accounts = []domain.Account{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
	}
}

func adminSuspendHandler(svc *service.RegistryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/accounts/{accountId}/suspend")
		defer span.End()

		account, err := svc.Suspend(ctx, chi.URLParam(r, "accountId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, account)
	}
}

func adminReactivateHandler(svc *service.RegistryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/accounts/{accountId}/reactivate")
		defer span.End()

		account, err := svc.Reactivate(ctx, chi.URLParam(r, "accountId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, account)
	}
}

func adminListCommissionsHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/commissions")
		defer span.End()

		page, pageSize := parsePagination(r)
		commissions, err := svc.ListCommissions(ctx, domain.CommissionFilter{
			AccountID: r.URL.Query().Get("account_id"),
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

func adminCancelCommissionHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/commissions/{commissionId}/cancel")
		defer span.End()

		var req struct {
			Reason string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Reason == "" {
			writeError(w, http.StatusBadRequest, "reason is required")
			return
		}

		commission, err := svc.CancelCommission(ctx, chi.URLParam(r, "commissionId"), req.Reason)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, commission)
	}
}

func adminListWithdrawalsHandler(svc *service.WithdrawalService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/withdrawals")
		defer span.End()

		page, pageSize := parsePagination(r)
		list, err := svc.List(ctx, domain.WithdrawalFilter{
			AccountID: r.URL.Query().Get("account_id"),
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

func adminListLedgerHandler(svc *service.WithdrawalService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/ledger")
		defer span.End()

		accountID := r.URL.Query().Get("account_id")
		if accountID == "" {
			writeError(w, http.StatusBadRequest, "account_id query parameter is required")
			return
		}
		entries, err := svc.ListLedger(ctx, accountID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if entries == nil {
			entries = []domain.LedgerEntry{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
	}
}

// adminActor pulls the operator identity from the X-Admin-User header.
// Authentication itself lives at the API gateway in front of this service.
func adminActor(r *http.Request) string {
	if actor := r.Header.Get("X-Admin-User"); actor != "" {
		return actor
	}
	return "admin"
}

func adminApproveHandler(svc *service.WithdrawalService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/withdrawals/{withdrawalId}/approve")
		defer span.End()

		withdrawal, err := svc.Approve(ctx, chi.URLParam(r, "withdrawalId"), adminActor(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, withdrawal)
	}
}

func adminRejectHandler(svc *service.WithdrawalService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/withdrawals/{withdrawalId}/reject")
		defer span.End()

		var req struct {
			Reason string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Reason == "" {
			writeError(w, http.StatusBadRequest, "reason is required")
			return
		}

		withdrawal, err := svc.Reject(ctx, chi.URLParam(r, "withdrawalId"), adminActor(r), req.Reason)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, withdrawal)
	}
}

func adminDisburseHandler(svc *service.WithdrawalService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/withdrawals/{withdrawalId}/disburse")
		defer span.End()

		withdrawal, err := svc.Disburse(ctx, chi.URLParam(r, "withdrawalId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, withdrawal)
	}
}

func adminRetryHandler(svc *service.WithdrawalService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/withdrawals/{withdrawalId}/retry")
		defer span.End()

		withdrawal, err := svc.RetryDisbursement(ctx, chi.URLParam(r, "withdrawalId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, withdrawal)
	}
}

func adminGetSettingsHandler(svc *service.SettingsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/settings")
		defer span.End()

		settings, err := svc.Get(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, settings)
	}
}

func adminUpdateSettingsHandler(svc *service.SettingsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/admin/settings")
		defer span.End()

		var patch domain.SettingsPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		settings, err := svc.Update(ctx, &patch)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, settings)
	}
}

func adminRunSettlementHandler(svc *service.SettlementService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/settlement/run")
		defer span.End()

		result, err := svc.RunCycle(ctx, time.Now().UTC())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func adminSettlementStatusHandler(svc *service.SettlementService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		last := svc.LastResult()
		if last == nil {
			writeJSON(w, http.StatusOK, map[string]any{"last_cycle": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"last_cycle": last})
	}
}

func adminStatsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetProgramStats())
	}
}
