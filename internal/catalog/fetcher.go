package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	logx "gamewatch/pkg/logx"
)

// DefaultURL is the catalog endpoint used when none is configured.
const DefaultURL = "https://Pomdapie.pythonanywhere.com/api/games/"

// ErrStatus is returned (wrapped) when the endpoint answers with a non-2xx status.
var ErrStatus = errors.New("catalog: unexpected status")

// maxBodyBytes bounds the response body read into memory.
const maxBodyBytes = 32 << 20

type Config struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
}

// Fetcher performs one GET per Fetch call. It does not retry.
type Fetcher struct {
	cfg    Config
	client *http.Client
	log    logx.Logger
}

// NewFetcher builds a Fetcher. A nil client gets a fresh http.Client using
// cfg.Timeout.
func NewFetcher(cfg Config, client *http.Client, log logx.Logger) *Fetcher {
	if strings.TrimSpace(cfg.URL) == "" {
		cfg.URL = DefaultURL
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Fetcher{cfg: cfg, client: client, log: log}
}

func (f *Fetcher) URL() string { return f.cfg.URL }

// Fetch downloads and decodes the whole catalog.
//
// A 200 response with "{}" returns an empty, non-nil Snapshot and no error;
// callers use the error, not emptiness, to detect failures.
func (f *Fetcher) Fetch(ctx context.Context) (Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(f.cfg.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: get %s: %w", f.cfg.URL, err)
	}
	defer resp.Body.Close()

	f.log.Debug("catalog response", logx.Int("status", resp.StatusCode), logx.Duration("took", time.Since(start)))
	if resp.StatusCode/100 != 2 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("catalog: read body: %w", err)
	}
	snap, issues, err := decode(body)
	if err != nil {
		return nil, err
	}
	for _, is := range issues {
		f.log.Warn("catalog record field ignored", logx.String("id", is.ID), logx.String("field", is.Field), logx.String("reason", is.Reason))
	}
	return snap, nil
}

// Issue describes a record field that could not be read as text.
type Issue struct {
	ID     string
	Field  string
	Reason string
}

// Decode parses a catalog body. The top level must be a JSON object. Each
// key is kept as an entry id whatever its value looks like; fields that are
// not strings are coerced (numbers, booleans) or dropped (objects, arrays).
func Decode(body []byte) (Snapshot, error) {
	snap, _, err := decode(body)
	return snap, err
}

func decode(body []byte) (Snapshot, []Issue, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return nil, nil, errors.New("catalog: body is not a JSON object")
	}
	var records map[string]json.RawMessage
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, nil, fmt.Errorf("catalog: decode: %w", err)
	}

	snap := make(Snapshot, len(records))
	var issues []Issue
	for id, raw := range records {
		e, bad := decodeEntry(id, raw)
		snap[id] = e
		issues = append(issues, bad...)
	}
	sort.Slice(issues, func(i, j int) bool {
		if issues[i].ID != issues[j].ID {
			return issues[i].ID < issues[j].ID
		}
		return issues[i].Field < issues[j].Field
	})
	return snap, issues, nil
}

func decodeEntry(id string, raw json.RawMessage) (Entry, []Issue) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return Entry{}, []Issue{{ID: id, Reason: "record is not an object"}}
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Entry{}, []Issue{{ID: id, Reason: err.Error()}}
	}

	var (
		e      Entry
		issues []Issue
	)
	for name, dst := range map[string]*string{
		"official_name": &e.OfficialName,
		"description":   &e.Description,
		"image_url":     &e.ImageURL,
	} {
		v, ok := fields[name]
		if !ok {
			continue
		}
		s, reason := textValue(v)
		*dst = s
		if reason != "" {
			issues = append(issues, Issue{ID: id, Field: name, Reason: reason})
		}
	}
	return e, issues
}

// textValue reads a JSON value as text. reason is empty for strings and null.
func textValue(v json.RawMessage) (s string, reason string) {
	v = bytes.TrimSpace(v)
	if len(v) == 0 {
		return "", ""
	}
	switch v[0] {
	case '"':
		if err := json.Unmarshal(v, &s); err != nil {
			return "", err.Error()
		}
		return s, ""
	case 'n':
		return "", ""
	case '{', '[':
		return "", "not a string; dropped"
	default:
		// Numbers and booleans are kept as their literal text.
		return string(v), "not a string; coerced"
	}
}
