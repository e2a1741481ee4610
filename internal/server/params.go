package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/scbrown/terse/internal/model"
	"github.com/scbrown/terse/internal/store"
)

// parseSince extracts a "since" query parameter as a time.Time.
// Accepts RFC3339 timestamps or duration shorthand (e.g., "24h", "7d").
func parseSince(r *http.Request) (time.Time, error) {
	return ParseSince(r.URL.Query().Get("since"), time.Now())
}

// ParseSince parses an RFC3339 timestamp or a duration shorthand ("90m",
// "24h", "7d") relative to now. An empty value yields the zero time.
func ParseSince(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if len(s) > 1 {
		numStr := s[:len(s)-1]
		unit := s[len(s)-1]
		if n, err := strconv.Atoi(numStr); err == nil && n >= 0 {
			switch unit {
			case 'm':
				return now.UTC().Add(-time.Duration(n) * time.Minute), nil
			case 'h':
				return now.UTC().Add(-time.Duration(n) * time.Hour), nil
			case 'd':
				return now.UTC().Add(-time.Duration(n) * 24 * time.Hour), nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("invalid since value %q: expected RFC3339 timestamp or duration (e.g., 24h, 7d)", s)
}

func parseInt(r *http.Request, key string) (int, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s value %q: must not be negative", key, s)
	}
	return n, nil
}

func parseQueryOpts(r *http.Request) (store.QueryOpts, error) {
	since, err := parseSince(r)
	if err != nil {
		return store.QueryOpts{}, err
	}
	return store.QueryOpts{
		Since: since,
		Tool:  r.URL.Query().Get("tool"),
	}, nil
}

func parseHistoryOpts(r *http.Request) (store.HistoryOpts, error) {
	q, err := parseQueryOpts(r)
	if err != nil {
		return store.HistoryOpts{}, err
	}
	limit, err := parseInt(r, "limit")
	if err != nil {
		return store.HistoryOpts{}, err
	}
	opts := store.HistoryOpts{Since: q.Since, Tool: q.Tool, Limit: limit}
	if s := r.URL.Query().Get("outcome"); s != "" {
		o, err := model.ParseOutcome(s)
		if err != nil {
			return store.HistoryOpts{}, err
		}
		opts.Outcome = o
	}
	return opts, nil
}

func parseDiscoverOpts(r *http.Request) (store.DiscoverOpts, error) {
	since, err := parseSince(r)
	if err != nil {
		return store.DiscoverOpts{}, err
	}
	top, err := parseInt(r, "top")
	if err != nil {
		return store.DiscoverOpts{}, err
	}
	return store.DiscoverOpts{Since: since, Top: top}, nil
}
