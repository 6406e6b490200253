// Package processor implements the client for the platform's external
// payout gateway. The engine only knows the narrow disburse contract; all
// gateway-specific request formatting lives on the other side of this API.
package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/juniorcfabio/ViralizaAi-sub005/internal/domain"
	"github.com/juniorcfabio/ViralizaAi-sub005/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("processor")

// Client calls the payout processor over HTTP. Concurrent disburse calls
// are bounded by a bulkhead so a settlement burst cannot exhaust the
// processor's rate limit.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	cb         *gobreaker.CircuitBreaker
	bulkhead   *resilience.Bulkhead
	cfg        resilience.Config
}

// NewClient creates a payout processor client.
func NewClient(httpClient *http.Client, baseURL, apiKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		cb:         cb,
		bulkhead:   resilience.NewBulkhead(cfg.MaxConcurrency),
		cfg:        cfg,
	}
}

type disburseRequest struct {
	IdempotencyKey string  `json:"idempotency_key"`
	ReferenceID    string  `json:"reference_id"`
	Amount         float64 `json:"amount"`
	Method         string  `json:"method"`
	PixKey         string  `json:"pix_key,omitempty"`
	BankName       string  `json:"bank_name,omitempty"`
	BankAgency     string  `json:"bank_agency,omitempty"`
	BankAccount    string  `json:"bank_account,omitempty"`
	HolderName     string  `json:"holder_name,omitempty"`
	HolderDocument string  `json:"holder_document,omitempty"`
}

type disburseResponse struct {
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	FailureReason string `json:"failure_reason"`
}

// Disburse asks the processor to pay out a withdrawal. A declined payout is
// not an error: the result carries the failure reason. Errors mean the
// outcome is unknown (network, 5xx) and the caller must not assume either
// way. The idempotency key makes retries safe on the processor side.
func (c *Client) Disburse(ctx context.Context, req *domain.PayoutRequest) (*domain.PayoutResult, error) {
	ctx, span := tracer.Start(ctx, "Processor.Disburse")
	defer span.End()
	span.SetAttributes(
		attribute.String("withdrawal.id", req.WithdrawalID),
		attribute.Float64("amount", req.Amount),
	)

	payload, err := json.Marshal(disburseRequest{
		IdempotencyKey: req.IdempotencyKey,
		ReferenceID:    req.WithdrawalID,
		Amount:         req.Amount,
		Method:         req.Destination.Method,
		PixKey:         req.Destination.PixKey,
		BankName:       req.Destination.BankName,
		BankAgency:     req.Destination.BankAgency,
		BankAccount:    req.Destination.BankAccount,
		HolderName:     req.Destination.HolderName,
		HolderDocument: req.Destination.HolderDocument,
	})
	if err != nil {
		return nil, err
	}

	if err := c.bulkhead.Acquire(ctx); err != nil {
		return nil, err
	}
	defer c.bulkhead.Release()

	var result domain.PayoutResult

	_, err = c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			url := fmt.Sprintf("%s/v1/payouts", c.baseURL)
			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
			if err != nil {
				return err
			}
			httpReq.Header.Set("Content-Type", "application/json")
			if c.apiKey != "" {
				httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
			}

			resp, err := c.httpClient.Do(httpReq)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return fmt.Errorf("processor returned status %d: %s", resp.StatusCode, string(body))
			}

			var dr disburseResponse
			if err := json.Unmarshal(body, &dr); err != nil {
				return fmt.Errorf("decode processor response: %w", err)
			}

			result = domain.PayoutResult{
				Success:       dr.Status == "completed",
				TransactionID: dr.TransactionID,
				FailureReason: dr.FailureReason,
			}
			return nil
		})
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, &domain.ErrCircuitOpen{Service: "processor"}
		}
		return nil, &domain.ErrExternalService{Service: "processor", Err: err}
	}

	return &result, nil
}
