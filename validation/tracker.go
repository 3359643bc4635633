package validation

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Statuses a human can assign to a closed position.
const (
	StatusValid   = "Valid"
	StatusInvalid = "Invalid"
)

// Entry records a closed position pending (or past) human review. Entries
// are never deleted; they are the audit history that survives restarts.
type Entry struct {
	ID                 string
	CloseTime          time.Time
	Instrument         string
	PnL                decimal.Decimal
	RequiresValidation bool
	Status             string // StatusValid, StatusInvalid, or empty while unresolved
}

// PositionID derives the tracker key for a closed position.
func PositionID(closeTime time.Time, instrument, account string) string {
	return fmt.Sprintf("%s_%s_%s", closeTime.Format("20060102150405"), instrument, account)
}

// Tracker is a coarse-locked store of validation entries. Volumes are dozens
// of closed positions per session, so one mutex around the map wins on
// auditability over anything cleverer.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

func NewTracker() *Tracker {
	return &Tracker{entries: make(map[string]*Entry)}
}

// AddPosition registers a closed position. The first writer wins; a repeat
// id is a no-op.
func (t *Tracker) AddPosition(id string, closeTime time.Time, instrument string, pnl decimal.Decimal, requiresValidation bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[id]; ok {
		return
	}
	t.entries[id] = &Entry{
		ID:                 id,
		CloseTime:          closeTime,
		Instrument:         instrument,
		PnL:                pnl,
		RequiresValidation: requiresValidation,
	}
}

// MarkValidated resolves an entry: the status is set and the requirement
// flag cleared in one step. Unknown ids are ignored.
func (t *Tracker) MarkValidated(id, status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return
	}
	e.Status = status
	e.RequiresValidation = false
}

// Get returns a copy of one entry.
func (t *Tracker) Get(id string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// GetUnvalidated snapshots every entry still waiting for review, most
// recent close first. Safe to call concurrently with writers.
func (t *Tracker) GetUnvalidated() []Entry {
	return t.filtered("")
}

// GetUnvalidatedForInstrument is GetUnvalidated scoped to one instrument.
// This is exactly the set the enforcement gate may block on.
func (t *Tracker) GetUnvalidatedForInstrument(instrument string) []Entry {
	return t.filtered(instrument)
}

func (t *Tracker) filtered(instrument string) []Entry {
	t.mu.Lock()
	out := make([]Entry, 0)
	for _, e := range t.entries {
		if !e.RequiresValidation {
			continue
		}
		if instrument != "" && e.Instrument != instrument {
			continue
		}
		out = append(out, *e)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CloseTime.After(out[j].CloseTime) })
	return out
}

// Entries snapshots the full set for persistence, oldest close first.
func (t *Tracker) Entries() []Entry {
	t.mu.Lock()
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, *e)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CloseTime.Before(out[j].CloseTime) })
	return out
}

// restore puts a persisted entry back without first-writer-wins semantics.
func (t *Tracker) restore(e Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := e
	t.entries[e.ID] = &cp
}
