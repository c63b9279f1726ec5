package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/knotline/knot/internal/model"
	"github.com/knotline/knot/internal/presence"
)

// HTTPClient implements KnotClient using the knot HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8008"). When token is non-empty, an
// Authorization header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// roomPath builds /v1/rooms/{roomID}/... with every segment escaped, so
// IDs with colons and reaction keys with emoji survive the URL.
func roomPath(roomID string, segments ...string) string {
	parts := []string{"/v1/rooms", url.PathEscape(roomID)}
	for _, s := range segments {
		parts = append(parts, url.PathEscape(s))
	}
	return strings.Join(parts, "/")
}

// --- Events ---

// sendBody is the JSON body shared by the send endpoints. Everything
// else travels in the URL path.
type sendBody struct {
	Sender  string          `json:"sender"`
	Content json.RawMessage `json:"content,omitempty"`
}

func (c *HTTPClient) SendEvent(ctx context.Context, req *SendEventRequest) (string, error) {
	var resp struct {
		EventID string `json:"event_id"`
	}
	path := roomPath(req.RoomID, "send", req.Type)
	if err := c.doJSON(ctx, http.MethodPost, path, sendBody{req.Sender, req.Content}, &resp); err != nil {
		return "", err
	}
	return resp.EventID, nil
}

func (c *HTTPClient) SendStateEvent(ctx context.Context, req *SendStateEventRequest) (string, error) {
	var resp struct {
		EventID string `json:"event_id"`
	}
	path := roomPath(req.RoomID, "state", req.Type, req.StateKey)
	if err := c.doJSON(ctx, http.MethodPost, path, sendBody{req.Sender, req.Content}, &resp); err != nil {
		return "", err
	}
	return resp.EventID, nil
}

func (c *HTTPClient) GetEvent(ctx context.Context, roomID, eventID string) (*model.Event, error) {
	var ev model.Event
	if err := c.doJSON(ctx, http.MethodGet, roomPath(roomID, "event", eventID), nil, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (c *HTTPClient) RedactEvent(ctx context.Context, roomID, eventID, sender string) (string, error) {
	body := map[string]string{"sender": sender}
	var resp struct {
		EventID string `json:"event_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, roomPath(roomID, "redact", eventID), body, &resp); err != nil {
		return "", err
	}
	return resp.EventID, nil
}

// --- Relations ---

func (c *HTTPClient) SendRelation(ctx context.Context, req *SendRelationRequest) (string, error) {
	path := roomPath(req.RoomID, "send_relation", req.TargetEventID, string(req.RelType), req.EventType)
	if req.Key != "" {
		path += "?key=" + url.QueryEscape(req.Key)
	}

	var resp struct {
		EventID string `json:"event_id"`
	}
	if err := c.doJSON(ctx, http.MethodPut, path, sendBody{req.Sender, req.Content}, &resp); err != nil {
		return "", err
	}
	return resp.EventID, nil
}

func (c *HTTPClient) ListRelations(ctx context.Context, req *ListRelationsRequest) (*EventPage, error) {
	segments := []string{"relations", req.TargetEventID}
	if req.RelType != "" {
		segments = append(segments, string(req.RelType))
		if req.EventType != "" {
			segments = append(segments, req.EventType)
		}
	}
	path := roomPath(req.RoomID, segments...) + pageQuery(req.From, req.Limit)

	var page EventPage
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *HTTPClient) ListAggregations(ctx context.Context, req *ListAggregationsRequest) (*GroupPage, error) {
	segments := []string{"aggregations", req.TargetEventID}
	if req.RelType != "" {
		segments = append(segments, string(req.RelType))
		if req.EventType != "" {
			segments = append(segments, req.EventType)
		}
	}
	path := roomPath(req.RoomID, segments...) + pageQuery(req.From, req.Limit)

	var page GroupPage
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *HTTPClient) ListGroupEvents(ctx context.Context, req *ListGroupEventsRequest) (*EventPage, error) {
	path := roomPath(req.RoomID, "aggregations", req.TargetEventID, string(req.RelType), req.EventType, req.Key) +
		pageQuery(req.From, req.Limit)

	var page EventPage
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// --- Presence ---

func (c *HTTPClient) Presence(ctx context.Context, staleThresholdSecs int) ([]presence.Entry, error) {
	path := "/v1/presence"
	if staleThresholdSecs > 0 {
		path += fmt.Sprintf("?stale_threshold_secs=%d", staleThresholdSecs)
	}
	var resp struct {
		Senders []presence.Entry `json:"senders"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Senders, nil
}

// --- Journal ---

func (c *HTTPClient) Journal(ctx context.Context, limit int) ([]*model.JournalEntry, error) {
	path := "/v1/journal"
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	var resp struct {
		Entries []*model.JournalEntry `json:"entries"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Errcode    string
	Message    string
}

func (e *APIError) Error() string {
	if e.Errcode != "" {
		return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Errcode, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func pageQuery(from string, limit int) string {
	q := url.Values{}
	if from != "" {
		q.Set("from", from)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// doJSON performs an HTTP request with optional JSON body and decodes the
// JSON response. If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Errcode string `json:"errcode"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Errcode: errResp.Errcode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
