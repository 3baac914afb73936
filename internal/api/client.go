// Package api talks to the central store's domain API. It stamps every
// mutating call with an idempotency key and maps HTTP outcomes onto the
// sync error taxonomy the dispatcher acts on.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strconv"
	"time"

	apperrors "github.com/Isna13/BarManagerPro-sub003/internal/errors"
	"github.com/Isna13/BarManagerPro-sub003/internal/models"
	"github.com/Isna13/BarManagerPro-sub003/internal/sync/idempotency"
)

// Change is one remote mutation returned by the changes-since endpoint.
type Change struct {
	EntityType models.EntityType `json:"entity_type"`
	EntityID   models.UUID       `json:"entity_id"`
	Payload    json.RawMessage   `json:"payload"`
	Version    int64             `json:"version"`
	UpdatedAt  int64             `json:"updated_at"`
	Deleted    bool              `json:"deleted"`
}

// ChangesPage is one page of the downstream feed. NextCursor is an opaque
// server-issued token; the client stores and echoes it without
// interpretation.
type ChangesPage struct {
	Changes    []Change `json:"changes"`
	NextCursor string   `json:"next_cursor"`
	HasMore    bool     `json:"has_more"`
}

// Remote is the surface of the central store the sync engine depends on.
type Remote interface {
	// Apply transmits one queued mutation. The returned error, if any,
	// carries a sync taxonomy code.
	Apply(ctx context.Context, item *models.SyncQueueItem) error

	// Changes fetches remote mutations past the cursor, paginated.
	Changes(ctx context.Context, cursor string, limit int) (*ChangesPage, error)
}

// ConflictError carries the remote entity state returned with a 409 so the
// conflict resolver can merge against it.
type ConflictError struct {
	Remote *models.Entity
}

func (e *ConflictError) Error() string {
	if e.Remote == nil {
		return "remote version is newer"
	}
	return fmt.Sprintf("remote version %d of %s/%s is newer",
		e.Remote.Version, e.Remote.EntityType, e.Remote.ID)
}

// Client is the HTTP implementation of Remote.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the given base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Apply implements Remote. Deletes are soft-deletes server-side; a delete
// against a row that is already gone counts as success. Counter mutations
// route to the delta adjust endpoint so concurrent adjustments commute.
func (c *Client) Apply(ctx context.Context, item *models.SyncQueueItem) error {
	var (
		method string
		url    string
		body   io.Reader
	)

	switch item.Operation {
	case models.OperationCreate:
		method = http.MethodPost
		url = fmt.Sprintf("%s/api/%s", c.baseURL, item.EntityType)
		body = bytes.NewReader(item.Payload)
	case models.OperationUpdate:
		if adj, ok := models.ParseAdjustment(item.Payload); ok {
			return c.adjust(ctx, item, adj)
		}
		method = http.MethodPut
		url = fmt.Sprintf("%s/api/%s/%s", c.baseURL, item.EntityType, item.EntityID)
		body = bytes.NewReader(item.Payload)
	case models.OperationDelete:
		method = http.MethodDelete
		url = fmt.Sprintf("%s/api/%s/%s", c.baseURL, item.EntityType, item.EntityID)
	default:
		return apperrors.New(apperrors.ErrInvalid, fmt.Sprintf("unknown operation %q", item.Operation))
	}

	resp, respBody, err := c.do(ctx, method, url, body, item.IdempotencyKey)
	if err != nil {
		return err
	}
	return c.classify(item, resp, respBody)
}

// adjust transmits a delta mutation to a counter field.
func (c *Client) adjust(ctx context.Context, item *models.SyncQueueItem, adj *models.Adjustment) error {
	url := fmt.Sprintf("%s/api/%s/%s/adjust", c.baseURL, item.EntityType, item.EntityID)
	payload, _ := json.Marshal(adj)

	resp, respBody, err := c.do(ctx, http.MethodPost, url, bytes.NewReader(payload), item.IdempotencyKey)
	if err != nil {
		return err
	}
	return c.classify(item, resp, respBody)
}

// Changes implements Remote.
func (c *Client) Changes(ctx context.Context, cursor string, limit int) (*ChangesPage, error) {
	// The cursor token is server-issued and opaque; it must survive the
	// round trip byte for byte.
	query := neturl.Values{}
	query.Set("cursor", cursor)
	query.Set("limit", strconv.Itoa(limit))
	url := fmt.Sprintf("%s/api/changes?%s", c.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, "failed to build request", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrTransient, "changes fetch failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrTransient, "failed to read changes response", err)
	}
	if resp.StatusCode >= 500 {
		return nil, apperrors.New(apperrors.ErrTransient,
			fmt.Sprintf("changes endpoint returned %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.New(apperrors.ErrSyncFailed,
			fmt.Sprintf("changes endpoint returned %d", resp.StatusCode))
	}

	var page ChangesPage
	if err := json.Unmarshal(respBody, &page); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSyncFailed, "malformed changes page", err)
	}
	return &page, nil
}

// do issues a mutating request with the idempotency key stamped on.
// Network-level failures are always transient.
func (c *Client) do(ctx context.Context, method, url string, body io.Reader, key string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrInternal, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(idempotency.Header, key)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrTransient, "remote call failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrTransient, "failed to read response", err)
	}
	return resp, respBody, nil
}

// classify maps an HTTP response onto the sync error taxonomy:
//
//	2xx                      -> success
//	404 on delete            -> success (row already soft-deleted)
//	404 otherwise            -> dependency not ready (parent missing)
//	409                      -> conflict, body carries the remote state
//	other 4xx                -> validation, permanent
//	5xx                      -> transient
func (c *Client) classify(item *models.SyncQueueItem, resp *http.Response, body []byte) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil

	case resp.StatusCode == http.StatusNotFound:
		if item.Operation == models.OperationDelete {
			return nil
		}
		return apperrors.New(apperrors.ErrDependencyNotReady,
			fmt.Sprintf("remote parent of %s/%s not found", item.EntityType, item.EntityID))

	case resp.StatusCode == http.StatusConflict:
		conflict := &ConflictError{}
		var remote models.Entity
		if err := json.Unmarshal(body, &remote); err == nil && remote.ID != "" {
			conflict.Remote = &remote
		}
		return apperrors.Wrap(apperrors.ErrSyncConflict, "remote rejected stale write", conflict)

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return apperrors.New(apperrors.ErrSyncValidation,
			fmt.Sprintf("remote rejected request: %d %s", resp.StatusCode, truncate(body, 200)))

	default:
		return apperrors.New(apperrors.ErrTransient,
			fmt.Sprintf("remote returned %d", resp.StatusCode))
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
