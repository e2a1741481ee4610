package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/scbrown/terse/internal/model"
)

// RemoteStore implements Store by forwarding requests over HTTP to a
// `terse serve` instance, so several machines or containers can share one
// ledger.
type RemoteStore struct {
	baseURL string
	client  *http.Client
}

// NewRemote creates a RemoteStore pointing at the given base URL (e.g., "http://localhost:7274").
func NewRemote(baseURL string) *RemoteStore {
	return &RemoteStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (r *RemoteStore) Append(ctx context.Context, inv model.Invocation) error {
	inv, err := prepare(inv)
	if err != nil {
		return err
	}
	return r.postJSON(ctx, "/api/v1/invocations", inv, nil)
}

func queryValues(since time.Time, tool string) url.Values {
	q := url.Values{}
	if !since.IsZero() {
		q.Set("since", since.UTC().Format(time.RFC3339Nano))
	}
	if tool != "" {
		q.Set("tool", tool)
	}
	return q
}

func (r *RemoteStore) Summary(ctx context.Context, opts QueryOpts) (Summary, error) {
	var sum Summary
	err := r.getJSON(ctx, "/api/v1/gain", queryValues(opts.Since, opts.Tool), &sum)
	return sum, err
}

func (r *RemoteStore) ByTool(ctx context.Context, opts QueryOpts) ([]ToolStats, error) {
	var out []ToolStats
	if err := r.getJSON(ctx, "/api/v1/gain/tools", queryValues(opts.Since, opts.Tool), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *RemoteStore) Daily(ctx context.Context, days int) ([]DayStats, error) {
	q := url.Values{}
	if days > 0 {
		q.Set("days", strconv.Itoa(days))
	}
	var out []DayStats
	if err := r.getJSON(ctx, "/api/v1/gain/daily", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *RemoteStore) History(ctx context.Context, opts HistoryOpts) ([]model.Invocation, error) {
	q := queryValues(opts.Since, opts.Tool)
	if opts.Outcome != "" {
		q.Set("outcome", string(opts.Outcome))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	var out []model.Invocation
	if err := r.getJSON(ctx, "/api/v1/invocations", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *RemoteStore) Discover(ctx context.Context, opts DiscoverOpts) ([]Candidate, error) {
	q := queryValues(opts.Since, "")
	if opts.Top > 0 {
		q.Set("top", strconv.Itoa(opts.Top))
	}
	var out []Candidate
	if err := r.getJSON(ctx, "/api/v1/discover", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Close is a no-op for the remote store.
func (r *RemoteStore) Close() error {
	return nil
}

// getJSON performs a GET request and decodes the JSON response into dst.
func (r *RemoteStore) getJSON(ctx context.Context, path string, query url.Values, dst any) error {
	u := r.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("remote request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return remoteError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// postJSON performs a POST request with a JSON body and optionally decodes the response.
func (r *RemoteStore) postJSON(ctx context.Context, path string, body any, dst any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("remote request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return remoteError(resp)
	}
	if dst != nil {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// remoteError reads an error response from the server and returns it as an error.
func remoteError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var errResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		return fmt.Errorf("remote store (%d): %s", resp.StatusCode, errResp.Error)
	}
	return fmt.Errorf("remote store (%d): %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}
