package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// APIClient is the mutation request surface: synchronous request/response
// against the queue's HTTP endpoints. setPlaying and remove are idempotent
// and safe to retry; add is not, the server's duplicate check answers 409.
type APIClient struct {
	baseURL string
	httpc   *http.Client
}

func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		httpc:   http.DefaultClient,
	}
}

func (c *APIClient) Add(ctx context.Context, track Track, addedBy string) (Entry, error) {
	var entry Entry
	err := c.do(ctx, "POST", "/queue/tracks", map[string]any{
		"track":   track,
		"addedBy": addedBy,
	}, http.StatusCreated, &entry)
	return entry, err
}

func (c *APIClient) Reorder(ctx context.Context, entryID string, prevID, nextID *string) (Entry, error) {
	var entry Entry
	err := c.do(ctx, "PATCH", "/queue/tracks/"+entryID, map[string]any{
		"prevId": prevID,
		"nextId": nextID,
	}, http.StatusOK, &entry)
	return entry, err
}

func (c *APIClient) Vote(ctx context.Context, entryID, direction string) (Entry, error) {
	var entry Entry
	err := c.do(ctx, "POST", "/queue/tracks/"+entryID+"/vote", map[string]any{
		"direction": direction,
	}, http.StatusOK, &entry)
	return entry, err
}

func (c *APIClient) SetPlaying(ctx context.Context, entryID string) (Entry, error) {
	var entry Entry
	err := c.do(ctx, "POST", "/queue/tracks/"+entryID+"/playing", nil, http.StatusOK, &entry)
	return entry, err
}

func (c *APIClient) Remove(ctx context.Context, entryID string) error {
	return c.do(ctx, "DELETE", "/queue/tracks/"+entryID, nil, http.StatusNoContent, nil)
}

// Queue fetches the current snapshot out of band of the realtime channel.
func (c *APIClient) Queue(ctx context.Context) ([]Entry, uint64, error) {
	var res struct {
		Version uint64  `json:"version"`
		Entries []Entry `json:"entries"`
	}
	if err := c.do(ctx, "GET", "/queue", nil, http.StatusOK, &res); err != nil {
		return nil, 0, err
	}
	return res.Entries, res.Version, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, body any, wantStatus int, out any) error {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("syncclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		var res struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&res)
		switch resp.StatusCode {
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusConflict:
			return ErrDuplicateTrack
		default:
			return &apiError{status: resp.StatusCode, msg: res.Error}
		}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
