package handler

import (
	"encoding/json"
	"net/http"

	"github.com/juniorcfabio/ViralizaAi-sub005/internal/domain"
	"github.com/juniorcfabio/ViralizaAi-sub005/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Platform ingress: tracking pixels and sale webhooks
// ============================================================

func trackClickHandler(svc *service.TrackerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/track/click")
		defer span.End()

		var req struct {
			Code        string `json:"code"`
			Source      string `json:"source,omitempty"`
			LandingPage string `json:"landing_page,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Code == "" {
			writeError(w, http.StatusBadRequest, "code is required")
			return
		}
		span.SetAttributes(attribute.String("referral.code", req.Code))

		if err := svc.RecordClick(ctx, req.Code, req.Source, req.LandingPage); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		// Always 202: the endpoint never reveals whether a code exists.
		w.WriteHeader(http.StatusAccepted)
	}
}

func trackSignupHandler(svc *service.TrackerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/track/signup")
		defer span.End()

		var req struct {
			Code           string `json:"code"`
			ReferredUserID string `json:"referred_user_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Code == "" {
			writeError(w, http.StatusBadRequest, "code is required")
			return
		}

		referral, err := svc.RecordSignup(ctx, req.Code, req.ReferredUserID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if referral == nil {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		writeJSON(w, http.StatusCreated, referral)
	}
}

func registerCommissionHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/commissions")
		defer span.End()

		var ev domain.SaleEvent
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		span.SetAttributes(attribute.String("sale.id", ev.SaleID))

		commission, err := svc.RegisterCommission(ctx, ev)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if commission == nil {
			// Unattributed sale: acknowledged, nothing booked.
			w.WriteHeader(http.StatusAccepted)
			return
		}
		writeJSON(w, http.StatusCreated, commission)
	}
}
