// Package store implements the Store Adapter (C10): access to the external
// document store through find/list/create/update/update_flag operations,
// rate-limited at 5 writes/second, with a typed error taxonomy and
// per-ticket advisory locking. Grounded on the teacher's token-bucket
// throttle (throttle.go, golang.org/x/time/rate) and its habit of one small
// HTTP client wrapper per vendor API, generalized to an Airtable-like
// filter-by-formula document store.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/junksamiad/argan-call-log/internal/model"
	"github.com/junksamiad/argan-call-log/internal/resilience"
)

// storeBackoff is the Store Adapter's retry schedule (§4.10: exponential,
// max 3 attempts total, base 500ms, factor 2.0 — 2 retry delays after the
// first attempt: 500ms, 1s).
var storeBackoff = resilience.NewExponential(500*time.Millisecond, 2)

// Adapter is the sole point of contact with the external document store.
type Adapter struct {
	baseURL   string
	apiKey    string
	baseID    string
	tableName string
	httpc     *http.Client
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New builds an Adapter. writeQPS is the configured token-bucket rate
// (§4.10, default 5); the bucket's burst is the same value, so after an
// idle period at most writeQPS writes pass at once before the sustained
// rate applies.
func New(baseURL, apiKey, baseID, tableName string, deadline time.Duration, writeQPS float64) *Adapter {
	return &Adapter{
		baseURL:   baseURL,
		apiKey:    apiKey,
		baseID:    baseID,
		tableName: tableName,
		httpc:     &http.Client{Timeout: deadline},
		limiter:   rate.NewLimiter(rate.Limit(writeQPS), int(writeQPS)),
		breaker:   resilience.NewBreaker("store"),
		locks:     map[string]*sync.Mutex{},
	}
}

// LockTicket returns the in-process advisory lock for ticketID, creating it
// on first use (§5). The lock is never released implicitly: callers must
// Unlock what they Lock.
func (a *Adapter) LockTicket(ticketID string) *sync.Mutex {
	a.locksMu.Lock()
	defer a.locksMu.Unlock()
	l, ok := a.locks[ticketID]
	if !ok {
		l = &sync.Mutex{}
		a.locks[ticketID] = l
	}
	return l
}

type fields map[string]interface{}

type airtableRecord struct {
	ID     string `json:"id,omitempty"`
	Fields fields `json:"fields"`
}

type listResponse struct {
	Records []airtableRecord `json:"records"`
	Offset  string           `json:"offset,omitempty"`
}

// FindByTicket implements find_by_ticket (§4.10).
func (a *Adapter) FindByTicket(ctx context.Context, ticketID string) (*model.TicketRecord, error) {
	formula := fmt.Sprintf(`{ticket_id}="%s"`, ticketID)
	records, err := a.list(ctx, formula, "")
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return recordFromAirtable(records[0]), nil
}

// Exists is used by the Ticket Allocator to validate candidates.
func (a *Adapter) Exists(ctx context.Context, ticketID string) (bool, error) {
	_, err := a.FindByTicket(ctx, ticketID)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MaxSequenceForPrefix implements list_by_date_prefix for allocator use
// (§4.6), tolerating partial pagination by following Airtable's offset
// cursor until exhausted.
func (a *Adapter) MaxSequenceForPrefix(ctx context.Context, datePrefix string) (uint32, error) {
	formula := fmt.Sprintf(`LEFT({ticket_id}, %d)="%s"`, len(datePrefix), datePrefix)
	var maxSeq uint32
	offset := ""
	for {
		records, next, err := a.listPage(ctx, formula, offset)
		if err != nil {
			return 0, err
		}
		for _, r := range records {
			if seq, ok := trailingSequence(asString(r.Fields["ticket_id"])); ok && seq > maxSeq {
				maxSeq = seq
			}
		}
		if next == "" {
			break
		}
		offset = next
	}
	return maxSeq, nil
}

// Create implements create(record) (§4.10): optimistic uniqueness on
// ticket_id, returning a ConflictError when the store already holds that
// identifier.
func (a *Adapter) Create(ctx context.Context, rec *model.TicketRecord) (string, error) {
	if err := a.waitRateLimit(ctx); err != nil {
		return "", err
	}
	if exists, err := a.Exists(ctx, rec.TicketID); err != nil {
		return "", err
	} else if exists {
		return "", &ConflictError{TicketID: rec.TicketID}
	}

	body := airtableRecord{Fields: fieldsFromRecord(rec)}
	payload, _ := gojson.Marshal(struct {
		Records []airtableRecord `json:"records"`
	}{Records: []airtableRecord{body}})

	respBody, err := a.do(ctx, http.MethodPost, a.tableURL(), payload)
	if err != nil {
		return "", err
	}
	var resp listResponse
	if err := gojson.Unmarshal(respBody, &resp); err != nil {
		return "", &FatalError{Err: err}
	}
	if len(resp.Records) == 0 {
		return "", &FatalError{Err: fmt.Errorf("store: create returned no records")}
	}
	return resp.Records[0].ID, nil
}

// Update implements update(id, patch) (§4.10): a partial update.
func (a *Adapter) Update(ctx context.Context, id string, patch map[string]interface{}) error {
	if err := a.waitRateLimit(ctx); err != nil {
		return err
	}
	payload, _ := gojson.Marshal(airtableRecord{Fields: patch})
	_, err := a.do(ctx, http.MethodPatch, a.tableURL()+"/"+url.PathEscape(id), payload)
	return err
}

// UpdateFlag implements update_flag(ticket_id, field, value) (§4.10), used
// for ack_sent.
func (a *Adapter) UpdateFlag(ctx context.Context, ticketID, field string, value interface{}) error {
	rec, err := a.FindByTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	return a.Update(ctx, rec.ID, map[string]interface{}{field: value})
}

func (a *Adapter) list(ctx context.Context, formula, offset string) ([]airtableRecord, error) {
	records, _, err := a.listPage(ctx, formula, offset)
	return records, err
}

func (a *Adapter) listPage(ctx context.Context, formula, offset string) ([]airtableRecord, string, error) {
	q := url.Values{}
	q.Set("filterByFormula", formula)
	if offset != "" {
		q.Set("offset", offset)
	}
	target := a.tableURL() + "?" + q.Encode()

	body, err := a.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", err
	}
	var resp listResponse
	if err := gojson.Unmarshal(body, &resp); err != nil {
		return nil, "", &FatalError{Err: err}
	}
	return resp.Records, resp.Offset, nil
}

func (a *Adapter) waitRateLimit(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.limiter.Wait(waitCtx); err != nil {
		return &TransientError{Err: err}
	}
	return nil
}

// do issues one logical store request, retrying transient failures with the
// exponential schedule of §4.10 (max 3 attempts, base 500ms, factor 2.0) and
// failing fast via the circuit breaker when the store is in a sustained
// outage rather than burning the retry budget against a dead endpoint.
// Conflict and fatal errors are not retried: the allocator/caller handles
// conflicts, and fatal errors are not expected to clear on retry.
func (a *Adapter) do(ctx context.Context, method, target string, body []byte) ([]byte, error) {
	var result []byte
	err := resilience.Do(ctx, storeBackoff, IsTransient, func(attempt int) error {
		out, breakerErr := a.breaker.Execute(func() (interface{}, error) {
			return a.doOnce(ctx, method, target, body)
		})
		if breakerErr != nil {
			if errors.Is(breakerErr, gobreaker.ErrOpenState) || errors.Is(breakerErr, gobreaker.ErrTooManyRequests) {
				return &TransientError{Err: breakerErr}
			}
			return breakerErr
		}
		result = out.([]byte)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// doOnce makes a single HTTP attempt against the store and classifies the
// outcome into the typed error taxonomy of §7/§4.10.
func (a *Adapter) doOnce(ctx context.Context, method, target string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &FatalError{Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpc.Do(req)
	if err != nil {
		return nil, &TransientError{Err: err}
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Err: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return respBody, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &TransientError{Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))}
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, &FatalError{Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))}
	}
}

// Ping performs the lightweight store reachability check run once at
// startup (§6 exit code 3 path, surfaced by GET /health): a single list
// call that tolerates "no matching records" and only surfaces connectivity,
// auth, or sustained-outage failures.
func (a *Adapter) Ping(ctx context.Context) error {
	_, _, err := a.listPage(ctx, `{ticket_id}=""`, "")
	if err != nil && err != ErrNotFound {
		return err
	}
	return nil
}

func (a *Adapter) tableURL() string {
	return fmt.Sprintf("%s/%s/%s", a.baseURL, a.baseID, url.PathEscape(a.tableName))
}
