// Package ticketid implements the Ticket Allocator (C6): production of a
// collision-free ticket identifier per calendar day, re-querying the store
// to validate each candidate. Grounded on the teacher's retry-loop idiom
// (cf. O365Ingester's paged Graph API fetch) generalized to a store-race
// retry loop, with a small in-process cache supplementing (never replacing)
// the store-authoritative re-query.
package ticketid

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Store is the narrow view of the Store Adapter the allocator needs.
type Store interface {
	MaxSequenceForPrefix(ctx context.Context, datePrefix string) (uint32, error)
	Exists(ctx context.Context, ticketID string) (bool, error)
}

const maxRetries = 5

// Allocator assigns new ticket identifiers of the form PREFIX-YYYYMMDD-NNNN.
type Allocator struct {
	store    Store
	prefix   string
	location *time.Location

	cacheMu sync.Mutex
	cache   map[string]uint32 // date -> last known max_seq, invalidated on collision
}

// New builds an Allocator. prefix is the installation prefix (§6
// install.prefix); loc is the configured time zone used to compute "today".
func New(store Store, prefix string, loc *time.Location) *Allocator {
	return &Allocator{
		store:    store,
		prefix:   prefix,
		location: loc,
		cache:    map[string]uint32{},
	}
}

// Allocate produces a new, collision-free ticket identifier for now,
// following the algorithm of §4.6: query the store's max sequence for
// today's prefix, propose max+1, re-validate, retry up to 5 times, and fall
// back to a microsecond-derived candidate if every retry collides.
func (a *Allocator) Allocate(ctx context.Context, now time.Time) (string, error) {
	today := now.In(a.location).Format("20060102")
	datePrefix := fmt.Sprintf("%s-%s-", a.prefix, today)

	maxSeq, err := a.seedMaxSeq(ctx, today, datePrefix)
	if err != nil {
		return "", err
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		candidateSeq := maxSeq + uint32(attempt) + 1
		candidate := fmt.Sprintf("%s%04d", datePrefix, candidateSeq)
		exists, err := a.store.Exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			a.setCache(today, candidateSeq)
			return candidate, nil
		}
		a.invalidateCache(today)
	}

	fallbackSeq := microsecondsSinceMidnight(now.In(a.location)) % 10000
	return fmt.Sprintf("%s%04d", datePrefix, fallbackSeq), nil
}

func (a *Allocator) seedMaxSeq(ctx context.Context, today, datePrefix string) (uint32, error) {
	a.cacheMu.Lock()
	cached, ok := a.cache[today]
	a.cacheMu.Unlock()
	if ok {
		return cached, nil
	}
	seq, err := a.store.MaxSequenceForPrefix(ctx, datePrefix)
	if err != nil {
		return 0, err
	}
	a.setCache(today, seq)
	return seq, nil
}

func (a *Allocator) setCache(date string, seq uint32) {
	a.cacheMu.Lock()
	defer a.cacheMu.Unlock()
	a.cache[date] = seq
}

func (a *Allocator) invalidateCache(date string) {
	a.cacheMu.Lock()
	defer a.cacheMu.Unlock()
	delete(a.cache, date)
}

func microsecondsSinceMidnight(t time.Time) uint64 {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return uint64(t.Sub(midnight).Microseconds())
}
