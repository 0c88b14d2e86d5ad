package cms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/ppiankov/concordia/internal/model"
)

const (
	recordsMaxAttempts = 3
	maxRecordsBytes    = 32 << 20
)

// fetchSleepFunc is swapped out in tests
var fetchSleepFunc = time.Sleep

// StatusError is returned for non-2xx responses
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %s", e.Status)
}

// Records returns the target's records, from the snapshot cache when fresh.
// Transient failures are retried with exponential backoff.
func (c *Client) Records(ctx context.Context) ([]model.CanonicalRecord, error) {
	endpoint := c.RecordsURL()

	if c.snapshots != nil {
		if records, ok := c.snapshots.Get(endpoint); ok {
			c.logger.Debug("record snapshot served from cache", "records", len(records))
			return records, nil
		}
	}

	var (
		records []model.CanonicalRecord
		err     error
	)
	for attempt := 0; attempt < recordsMaxAttempts; attempt++ {
		records, err = c.fetchRecords(ctx, endpoint)
		if err == nil || !isRetryableFetchError(err) || ctx.Err() != nil {
			break
		}
		if attempt < recordsMaxAttempts-1 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			c.logger.Warn("record fetch failed, retrying", "attempt", attempt+1, "backoff", backoff, "error", err)
			fetchSleepFunc(backoff)
		}
	}
	if err != nil {
		return nil, err
	}

	if c.snapshots != nil {
		if cerr := c.snapshots.Put(endpoint, records); cerr != nil {
			c.logger.Warn("could not cache record snapshot", "error", cerr)
		}
	}
	return records, nil
}

func (c *Client) fetchRecords(ctx context.Context, endpoint string) ([]model.CanonicalRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.decorate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRecordsBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	records, skipped, err := decodeRecords(body, c.target.TitleField)
	if err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	if skipped > 0 {
		c.logger.Warn("records without an id were skipped", "skipped", skipped)
	}
	c.logger.Debug("fetched records", "records", len(records))
	return records, nil
}

type recordsEnvelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// decodeRecords accepts either a bare array or {success, data: [...]}.
// Items without an id are skipped and counted.
func decodeRecords(body []byte, titleField string) ([]model.CanonicalRecord, int, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, 0, errors.New("empty body")
	}

	raw := body
	if body[0] == '{' {
		var env recordsEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, 0, err
		}
		if env.Success != nil && !*env.Success {
			msg := env.Message
			if msg == "" {
				msg = "request not successful"
			}
			return nil, 0, fmt.Errorf("server reported failure: %s", msg)
		}
		raw = env.Data
		if len(bytes.TrimSpace(raw)) == 0 || string(raw) == "null" {
			return []model.CanonicalRecord{}, 0, nil
		}
	}

	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, 0, fmt.Errorf("expected an array of records: %w", err)
	}

	if titleField == "" {
		titleField = "title"
	}

	records := make([]model.CanonicalRecord, 0, len(items))
	skipped := 0
	for _, item := range items {
		id := idOf(item)
		if id == "" {
			skipped++
			continue
		}
		records = append(records, model.CanonicalRecord{
			ID:    id,
			Title: stringOf(item[titleField]),
		})
	}
	return records, skipped, nil
}

// idOf reads "id" or "_id"; document stores may wrap the latter as {"$oid": "..."}
func idOf(item map[string]json.RawMessage) string {
	for _, field := range []string{"id", "_id"} {
		v, ok := item[field]
		if !ok {
			continue
		}
		if s := stringOf(v); s != "" {
			return s
		}
		var oid struct {
			OID string `json:"$oid"`
		}
		if json.Unmarshal(v, &oid) == nil && oid.OID != "" {
			return oid.OID
		}
	}
	return ""
}

// stringOf renders a JSON string or number; anything else is ""
func stringOf(v json.RawMessage) string {
	if len(v) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(v, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(v, &n) == nil {
		return n.String()
	}
	return ""
}

// isRetryableFetchError reports whether err looks transient
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= 500 || statusErr.Code == http.StatusTooManyRequests
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	s := strings.ToLower(err.Error())
	return strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset") ||
		strings.Contains(s, "timeout")
}
