package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// Kind classifies why a fetch failed.
type Kind int

const (
	KindNetwork    Kind = iota + 1 // transport failure
	KindHTTPStatus                 // non-2xx response
	KindParse                      // body missing or malformed
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindHTTPStatus:
		return "http status"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching against a *FetchError.
var (
	ErrNetwork    = errors.New("results: network error")
	ErrHTTPStatus = errors.New("results: unexpected http status")
	ErrParse      = errors.New("results: malformed payload")
)

// FetchError is the single error type returned by Fetch. Callers that only
// care whether the poll failed can treat every FetchError the same way.
type FetchError struct {
	Kind       Kind
	StatusCode int // set for KindHTTPStatus
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("results: fetch failed (%s %d)", e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("results: fetch failed (%s): %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrParse) and friends match on Kind.
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrHTTPStatus:
		return e.Kind == KindHTTPStatus
	case ErrParse:
		return e.Kind == KindParse
	}
	return false
}

// rawPayload mirrors the feed's top-level JSON object. Pointers distinguish
// absent fields from empty ones.
type rawPayload struct {
	Data      *[]Record `json:"data"`
	UpdatedAt *string   `json:"updatedAt"`
}

// timestamp layouts accepted for updatedAt, tried in order.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-0700",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Fetcher performs single GET requests against the results endpoint.
type Fetcher struct {
	url    string
	client *http.Client
}

// NewFetcher creates a Fetcher for url. A nil client means a plain
// http.Client, which applies no timeout of its own.
func NewFetcher(url string, client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &Fetcher{url: url, client: client}
}

// URL returns the endpoint this Fetcher polls.
func (f *Fetcher) URL() string { return f.url }

// Fetch issues one request and decodes the response. It never retries.
func (f *Fetcher) Fetch(ctx context.Context) (Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return Payload{}, &FetchError{Kind: KindNetwork, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return Payload{}, &FetchError{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return Payload{}, &FetchError{
			Kind:       KindHTTPStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("GET %s: %s", f.url, resp.Status),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Payload{}, &FetchError{Kind: KindNetwork, Err: fmt.Errorf("read body: %w", err)}
	}

	payload, err := Decode(body)
	if err != nil {
		return Payload{}, &FetchError{Kind: KindParse, Err: err}
	}
	return payload, nil
}

// Decode parses a results feed body. An updatedAt that is present but not
// a recognised timestamp does not fail the poll: the records are kept and
// UpdatedAt is left zero so the previous time stays on the board.
func Decode(body []byte) (Payload, error) {
	var raw rawPayload
	if err := json.Unmarshal(body, &raw); err != nil {
		return Payload{}, fmt.Errorf("decode body: %w", err)
	}
	if raw.Data == nil {
		return Payload{}, errors.New(`missing "data" array`)
	}
	if raw.UpdatedAt == nil {
		return Payload{}, errors.New(`missing "updatedAt"`)
	}

	updatedAt, err := parseTimestamp(*raw.UpdatedAt)
	if err != nil {
		log.WithError(err).Warn("results: keeping records with unreadable updatedAt")
	}

	records := *raw.Data
	for i, r := range records {
		if r.Votes < 0 {
			return Payload{}, fmt.Errorf("record %d (%s): negative vote count %d", i, r.Candidate, r.Votes)
		}
	}

	return Payload{Records: records, UpdatedAt: updatedAt}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("updatedAt %q is not an ISO-8601 timestamp", s)
}
