// Package dedup implements the Dedup Gate (C3): an at-most-once admission
// check keyed on Message-Id, modeled on the teacher's O365Ingester
// stateTracker (temp map + state map + periodic sweep/dump), generalized
// from Gravwell's ingest-dedup horizon to the webhook gateway's
// Message-Id-keyed claim semantics.
package dedup

import (
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// UnknownMessageID is the sentinel value the Context Builder assigns when no
// Message-Id header is found. Per §4.3 it is never deduplicated: every
// request carrying it is treated as new.
const UnknownMessageID = "unknown"

// Gate tracks which message-ids have already been admitted, evicting entries
// older than ttl. A claim is atomic: Claim reports whether the caller won
// the race to process a given id.
type Gate struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	ttl     time.Duration
	statePath string
	fileLock  *flock.Flock
}

// New creates a Gate with the given TTL. statePath, if non-empty, is an
// on-disk snapshot path guarded by an advisory file lock so a single-process
// deployment survives a restart without replaying messages still inside the
// TTL window; it is best-effort and never blocks Claim.
func New(ttl time.Duration, statePath string) *Gate {
	g := &Gate{
		seen:      map[string]time.Time{},
		ttl:       ttl,
		statePath: statePath,
	}
	if statePath != "" {
		g.fileLock = flock.New(statePath + ".lock")
		g.loadSnapshot()
	}
	return g
}

// Claim reports true if id has not been seen within the TTL window and
// atomically marks it as seen. The unknown-message-id sentinel always
// returns true and is never recorded, per §4.3(c).
func (g *Gate) Claim(id string, now time.Time) bool {
	if id == UnknownMessageID || id == "" {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if seenAt, ok := g.seen[id]; ok && now.Sub(seenAt) <= g.ttl {
		return false
	}
	g.seen[id] = now
	return true
}

// Sweep removes entries older than the TTL and persists the snapshot, if
// configured. It is intended to be called periodically (e.g. every 30s,
// matching the teacher's tick cadence) by the gateway command's background
// sweeper loop, not on the request path.
func (g *Gate) Sweep(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for k, v := range g.seen {
		if now.Sub(v) > g.ttl {
			delete(g.seen, k)
		}
	}
	g.dumpSnapshotNoLock()
}

// Size reports the number of currently tracked ids. Used by health checks.
func (g *Gate) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}

func (g *Gate) loadSnapshot() {
	if g.fileLock == nil {
		return
	}
	locked, err := g.fileLock.TryLock()
	if err != nil || !locked {
		return
	}
	defer g.fileLock.Unlock()

	f, err := os.Open(g.statePath)
	if err != nil {
		return
	}
	defer f.Close()

	loaded, err := decodeSnapshot(f)
	if err != nil {
		return
	}
	g.mu.Lock()
	for k, v := range loaded {
		g.seen[k] = v
	}
	g.mu.Unlock()
}

func (g *Gate) dumpSnapshotNoLock() {
	if g.fileLock == nil {
		return
	}
	locked, err := g.fileLock.TryLock()
	if err != nil || !locked {
		return
	}
	defer g.fileLock.Unlock()

	f, err := os.OpenFile(g.statePath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0660)
	if err != nil {
		return
	}
	defer f.Close()
	_ = encodeSnapshot(f, g.seen)
}
