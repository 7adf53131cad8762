package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"passage/internal/domain"
	"passage/internal/port"
)

const (
	DefaultURL     = "http://localhost:9200"
	DefaultTimeout = 30 * time.Second
	DefaultRetries = 10

	retryDelay = 500 * time.Millisecond
)

// Client talks to an Elasticsearch-compatible document store over its
// HTTP/JSON API. Transport-level failures (connection errors, timeouts)
// retry up to the configured budget; HTTP error statuses do not.
type Client struct {
	baseURL string
	http    *http.Client
	retries int
	log     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, retries int, log *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if retries < 0 {
		retries = DefaultRetries
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		retries: retries,
		log:     log,
	}
}

var _ port.DocumentStore = (*Client)(nil)

func (c *Client) Ping(ctx context.Context) error {
	status, _, err := c.send(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return fmt.Errorf("failed to ping document store: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("document store ping returned status %d", status)
	}
	return nil
}

func (c *Client) IndexExists(ctx context.Context, index string) (bool, error) {
	status, _, err := c.send(ctx, http.MethodHead, "/"+index, nil)
	if err != nil {
		return false, fmt.Errorf("failed to check index %s: %w", index, err)
	}
	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("index check for %s returned status %d", index, status)
	}
}

func (c *Client) CreateIndex(ctx context.Context, index string, settings []byte) error {
	status, body, err := c.send(ctx, http.MethodPut, "/"+index, settings)
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", index, err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("create index %s returned status %d: %s", index, status, body)
	}
	c.log.Info("index created", zap.String("index", index))
	return nil
}

// DeleteIndex removes index. A missing index is logged and ignored.
func (c *Client) DeleteIndex(ctx context.Context, index string) error {
	status, body, err := c.send(ctx, http.MethodDelete, "/"+index, nil)
	if err != nil {
		return fmt.Errorf("failed to delete index %s: %w", index, err)
	}
	switch status {
	case http.StatusOK:
		c.log.Info("deleting index", zap.String("index", index))
		return nil
	case http.StatusNotFound:
		c.log.Info("index does not exist, nothing to delete", zap.String("index", index))
		return nil
	default:
		return fmt.Errorf("delete index %s returned status %d: %s", index, status, body)
	}
}

type documentBody struct {
	DocumentText string `json:"document_text"`
	Title        string `json:"title,omitempty"`
}

func (c *Client) IndexDocument(ctx context.Context, index string, id int, title, text string) error {
	body, err := json.Marshal(documentBody{DocumentText: text, Title: title})
	if err != nil {
		return fmt.Errorf("failed to marshal document %d: %w", id, err)
	}

	status, respBody, err := c.send(ctx, http.MethodPut, fmt.Sprintf("/%s/_doc/%d", index, id), body)
	if err != nil {
		return fmt.Errorf("failed to index document %d: %w", id, err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return fmt.Errorf("index document %d returned status %d: %s", id, status, respBody)
	}
	return nil
}

func (c *Client) UpdateDocument(ctx context.Context, index string, id int, text string) error {
	body, err := json.Marshal(struct {
		Doc documentBody `json:"doc"`
	}{Doc: documentBody{DocumentText: text}})
	if err != nil {
		return fmt.Errorf("failed to marshal update for document %d: %w", id, err)
	}

	status, respBody, err := c.send(ctx, http.MethodPost, fmt.Sprintf("/%s/_update/%d", index, id), body)
	if err != nil {
		return fmt.Errorf("failed to update document %d: %w", id, err)
	}
	switch status {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
	default:
		return fmt.Errorf("update document %d returned status %d: %s", id, status, respBody)
	}
}

func (c *Client) DeleteDocument(ctx context.Context, index string, id int) error {
	status, respBody, err := c.send(ctx, http.MethodDelete, fmt.Sprintf("/%s/_doc/%d", index, id), nil)
	if err != nil {
		return fmt.Errorf("failed to delete document %d: %w", id, err)
	}
	switch status {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
	default:
		return fmt.Errorf("delete document %d returned status %d: %s", id, status, respBody)
	}
}

type getResponse struct {
	ID     string         `json:"_id"`
	Found  bool           `json:"found"`
	Source port.HitSource `json:"_source"`
}

func (c *Client) GetDocument(ctx context.Context, index string, id int) (port.StoredDocument, error) {
	status, body, err := c.send(ctx, http.MethodGet, fmt.Sprintf("/%s/_doc/%d", index, id), nil)
	if err != nil {
		return port.StoredDocument{}, fmt.Errorf("failed to get document %d: %w", id, err)
	}
	if status == http.StatusNotFound {
		return port.StoredDocument{}, fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
	}
	if status != http.StatusOK {
		return port.StoredDocument{}, fmt.Errorf("get document %d returned status %d: %s", id, status, body)
	}

	var resp getResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return port.StoredDocument{}, fmt.Errorf("failed to parse document %d: %w", id, err)
	}
	if !resp.Found {
		return port.StoredDocument{}, fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
	}
	return port.StoredDocument{ID: resp.ID, Source: resp.Source}, nil
}

func (c *Client) Count(ctx context.Context, index string) (int, error) {
	status, body, err := c.send(ctx, http.MethodGet, "/"+index+"/_count", nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count index %s: %w", index, err)
	}
	if status == http.StatusNotFound {
		return 0, fmt.Errorf("index %s: %w", index, domain.ErrNoIndex)
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("count for %s returned status %d: %s", index, status, body)
	}

	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("failed to parse count for %s: %w", index, err)
	}
	return resp.Count, nil
}

type matchClause struct {
	Match map[string]string `json:"match"`
}

type boolClause struct {
	Must []matchClause `json:"must"`
}

type queryClause struct {
	Bool     *boolClause `json:"bool,omitempty"`
	MatchAll *struct{}   `json:"match_all,omitempty"`
}

type searchRequest struct {
	Query queryClause `json:"query"`
	Size  int         `json:"size"`
}

type searchResponse struct {
	Hits struct {
		Hits []hitJSON `json:"hits"`
	} `json:"hits"`
}

type hitJSON struct {
	ID     string         `json:"_id"`
	Score  float64        `json:"_score"`
	Source port.HitSource `json:"_source"`
}

// MatchQuery runs a boolean must-match over the document text. Zero
// matches yield an empty slice, not an error.
func (c *Client) MatchQuery(ctx context.Context, index string, text string, k int) ([]port.Hit, error) {
	req := searchRequest{
		Query: queryClause{
			Bool: &boolClause{
				Must: []matchClause{{Match: map[string]string{"document_text": text}}},
			},
		},
		Size: k,
	}
	return c.search(ctx, index, req)
}

// AllDocuments fetches every document via a match-all query sized to the
// current document count.
func (c *Client) AllDocuments(ctx context.Context, index string) ([]port.Hit, error) {
	count, err := c.Count(ctx, index)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	req := searchRequest{
		Query: queryClause{MatchAll: &struct{}{}},
		Size:  count,
	}
	return c.search(ctx, index, req)
}

func (c *Client) search(ctx context.Context, index string, req searchRequest) ([]port.Hit, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	status, respBody, err := c.send(ctx, http.MethodPost, "/"+index+"/_search", body)
	if err != nil {
		return nil, fmt.Errorf("failed to search index %s: %w", index, err)
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("index %s: %w", index, domain.ErrNoIndex)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("search on %s returned status %d: %s", index, status, respBody)
	}

	var resp searchResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	hits := make([]port.Hit, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		hits = append(hits, port.Hit{ID: h.ID, Score: h.Score, Source: h.Source})
	}
	return hits, nil
}

func (c *Client) ListIndices(ctx context.Context) ([]string, error) {
	status, body, err := c.send(ctx, http.MethodGet, "/_alias", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list indices: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("list indices returned status %d: %s", status, body)
	}

	var aliases map[string]json.RawMessage
	if err := json.Unmarshal(body, &aliases); err != nil {
		return nil, fmt.Errorf("failed to parse index list: %w", err)
	}

	indices := make([]string, 0, len(aliases))
	for name := range aliases {
		indices = append(indices, name)
	}
	sort.Strings(indices)
	return indices, nil
}

// send issues one request with the configured retry budget. Any
// transport error retries after a flat delay unless the context is done.
func (c *Client) send(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.log.Debug("retrying document store request",
				zap.String("method", method),
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return 0, nil, ctx.Err()
			case <-time.After(retryDelay):
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to create request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return 0, nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return resp.StatusCode, data, nil
	}

	return 0, nil, fmt.Errorf("request failed after %d retries: %w", c.retries, lastErr)
}
