package audit

import (
	"sync"
	"time"

	domain "github.com/bryanwahyu/alttext-audit/internal/domain/audit"
)

// Progress is the ephemeral state of the one in-flight scan for a site.
type Progress struct {
	ScanType   domain.ScanType `json:"scan_type"`
	Batch      int             `json:"current_batch"`
	Processed  int             `json:"processed"`
	Total      int             `json:"total"`
	Percentage int             `json:"percentage"`
	LastUpdate time.Time       `json:"last_update"`
	StartedAt  time.Time       `json:"started_at"`
}

// Tracker holds per-site scan progress and pending cancellation flags.
// Scans are externally paced, one batch per call, so this is plain shared
// state guarded by a mutex rather than anything long-running.
type Tracker struct {
	mu        sync.Mutex
	active    map[string]*Progress
	cancelled map[string]bool
}

func NewTracker() *Tracker {
	return &Tracker{
		active:    make(map[string]*Progress),
		cancelled: make(map[string]bool),
	}
}

// Begin registers a new scan at batch 0. Returns ErrScanInProgress when a
// different scan is already running for the site; restarting the same scan
// type from batch 0 is an idempotent restart, not a conflict.
func (t *Tracker) Begin(site string, scanType domain.ScanType, now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p, ok := t.active[site]; ok && p.ScanType != scanType {
		return domain.ErrScanInProgress
	}
	t.active[site] = &Progress{
		ScanType:   scanType,
		LastUpdate: now,
		StartedAt:  now,
	}
	return nil
}

// Update records the outcome of one batch.
func (t *Tracker) Update(site string, p Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := p
	if old, ok := t.active[site]; ok && cp.StartedAt.IsZero() {
		cp.StartedAt = old.StartedAt
	}
	t.active[site] = &cp
}

// Get returns a copy of the in-flight progress, if any.
func (t *Tracker) Get(site string) (Progress, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.active[site]
	if !ok {
		return Progress{}, false
	}
	return *p, true
}

// Clear drops all progress state for a site (scan completed or cancelled).
func (t *Tracker) Clear(site string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.active, site)
	delete(t.cancelled, site)
}

// RequestCancel sets the cooperative cancellation flag. It does not
// interrupt in-flight work; the flag is consulted at the next batch boundary.
func (t *Tracker) RequestCancel(site string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelled[site] = true
}

// ConsumeCancel reports and clears a pending cancellation, wiping progress
// with it. After a cancellation the caller must restart from batch 0.
func (t *Tracker) ConsumeCancel(site string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.cancelled[site] {
		return false
	}
	delete(t.cancelled, site)
	delete(t.active, site)
	return true
}
