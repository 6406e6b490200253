package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/juniorcfabio/ViralizaAi-sub005/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func parsePagination(r *http.Request) (page, pageSize int) {
	page = 1
	pageSize = 20
	if v := r.URL.Query().Get("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			page = p
		}
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		if ps, err := strconv.Atoi(v); err == nil && ps > 0 && ps <= 100 {
			pageSize = ps
		}
	}
	return
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var circuitOpen *domain.ErrCircuitOpen
	var external *domain.ErrExternalService
	var validation *domain.ErrValidation
	var insufficient *domain.ErrInsufficientBalance
	var methodMissing *domain.ErrPaymentMethodMissing
	var invalidTransition *domain.ErrInvalidTransition
	var suspended *domain.ErrAccountSuspended
	var outstanding *domain.ErrWithdrawalOutstanding
	var duplicate *domain.ErrDuplicate
	var cycleRunning *domain.ErrCycleRunning

	switch {
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &insufficient):
		logger.Debug("insufficient balance",
			zap.Float64("available", insufficient.Available),
			zap.Float64("minimum", insufficient.Minimum),
		)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &methodMissing):
		logger.Debug("payment method missing", zap.String("account_id", methodMissing.AccountID))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &invalidTransition):
		logger.Debug("state conflict", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &suspended):
		logger.Warn("suspended account refused", zap.String("account_id", suspended.AccountID))
		writeError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &outstanding):
		logger.Debug("outstanding withdrawal", zap.String("withdrawal_id", outstanding.WithdrawalID))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &duplicate):
		logger.Debug("duplicate resource", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &cycleRunning):
		logger.Debug("settlement cycle already running")
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &external):
		logger.Error("upstream failure", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
