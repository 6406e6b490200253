// Package supabase implements the persistence gateway over the Supabase
// PostgREST API. Every ledger operation is expressed in terms of filtered
// reads, inserts, upserts and conditional updates so the gateway can be
// swapped for another store.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/juniorcfabio/ViralizaAi-sub005/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// isUniqueViolation reports whether a PostgREST error carries a Postgres
// unique-index conflict (error code 23505). Insert paths map it to
// ErrDuplicate so the services can resolve concurrent-insert races by
// re-reading the winning row.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key")
}

// Client wraps HTTP calls to Supabase PostgREST.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	logger         *zap.Logger
}

// NewClient creates a Supabase client.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		cfg:            cfg,
		logger:         logger,
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte, prefer string) (*http.Request, error) {
	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))
	req.Header.Set("Content-Type", "application/json")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
	return req, nil
}

func (c *Client) send(req *http.Request) ([]byte, error) {
	method, path := req.Method, req.URL.Path

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("supabase: failed to read response body",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return nil, nil // no data
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, fmt.Errorf("supabase returned status %d: %s", resp.StatusCode, string(body))
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)
	return body, nil
}

// doGet executes a filtered read. Reads are side-effect free, so they run
// with retry + circuit breaker.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	var body []byte
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			req, err := c.newRequest(ctx, http.MethodGet, path, nil, "")
			if err != nil {
				return err
			}
			body, err = c.send(req)
			return err
		})
	})
	return body, err
}

// doPost inserts a row and returns its representation. Inserts are not
// retried: a retry after an ambiguous failure could duplicate the row.
func (c *Client) doPost(ctx context.Context, table string, row any) ([]byte, error) {
	payload, err := json.Marshal(row)
	if err != nil {
		return nil, err
	}
	return c.execWrite(ctx, http.MethodPost, table, payload, "return=representation")
}

// doUpsert inserts or merges a row keyed by conflictKey.
func (c *Client) doUpsert(ctx context.Context, table, conflictKey string, row any) ([]byte, error) {
	payload, err := json.Marshal(row)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("%s?on_conflict=%s", table, conflictKey)
	return c.execWrite(ctx, http.MethodPost, path, payload, "resolution=merge-duplicates,return=representation")
}

// doPatch updates rows matching the path filter and returns the updated
// representations. An empty array back means no row matched the filter,
// which conditional transitions use as their precondition check.
func (c *Client) doPatch(ctx context.Context, path string, patch map[string]any) ([]byte, error) {
	payload, err := json.Marshal(patch)
	if err != nil {
		return nil, err
	}
	return c.execWrite(ctx, http.MethodPatch, path, payload, "return=representation")
}

// doDelete removes rows matching the path filter.
func (c *Client) doDelete(ctx context.Context, path string) error {
	_, err := c.execWrite(ctx, http.MethodDelete, path, nil, "")
	return err
}

func (c *Client) execWrite(ctx context.Context, method, path string, payload []byte, prefer string) ([]byte, error) {
	var body []byte
	_, err := c.cb.Execute(func() (any, error) {
		req, err := c.newRequest(ctx, method, path, payload, prefer)
		if err != nil {
			return nil, err
		}
		body, err = c.send(req)
		return nil, err
	})
	return body, err
}
