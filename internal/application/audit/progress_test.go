package audit

import (
	"errors"
	"testing"
	"time"

	domain "github.com/bryanwahyu/alttext-audit/internal/domain/audit"
)

func TestTrackerBeginRejectsDifferentScanType(t *testing.T) {
	tr := NewTracker()
	now := time.Now()

	if err := tr.Begin("site1", domain.ScanContent, now); err != nil {
		t.Fatal(err)
	}
	err := tr.Begin("site1", domain.ScanMedia, now)
	if !errors.Is(err, domain.ErrScanInProgress) {
		t.Errorf("expected ErrScanInProgress, got %v", err)
	}

	// Other sites are independent.
	if err := tr.Begin("site2", domain.ScanMedia, now); err != nil {
		t.Errorf("other site should not conflict: %v", err)
	}
}

func TestTrackerBeginSameTypeIsIdempotentRestart(t *testing.T) {
	tr := NewTracker()
	now := time.Now()

	if err := tr.Begin("site1", domain.ScanContent, now); err != nil {
		t.Fatal(err)
	}
	tr.Update("site1", Progress{ScanType: domain.ScanContent, Batch: 3, Processed: 150})

	if err := tr.Begin("site1", domain.ScanContent, now); err != nil {
		t.Fatalf("restart from batch 0 should be allowed: %v", err)
	}
	p, ok := tr.Get("site1")
	if !ok || p.Processed != 0 || p.Batch != 0 {
		t.Errorf("restart should reset progress, got %+v", p)
	}
}

func TestTrackerCancelConsumedOnce(t *testing.T) {
	tr := NewTracker()
	if err := tr.Begin("site1", domain.ScanContent, time.Now()); err != nil {
		t.Fatal(err)
	}
	tr.RequestCancel("site1")

	if !tr.ConsumeCancel("site1") {
		t.Fatal("first consume should report the cancellation")
	}
	if tr.ConsumeCancel("site1") {
		t.Error("second consume should be a no-op")
	}
	if _, ok := tr.Get("site1"); ok {
		t.Error("consuming a cancellation must wipe progress")
	}
}

func TestTrackerClear(t *testing.T) {
	tr := NewTracker()
	_ = tr.Begin("site1", domain.ScanMedia, time.Now())
	tr.RequestCancel("site1")
	tr.Clear("site1")

	if _, ok := tr.Get("site1"); ok {
		t.Error("cleared site still has progress")
	}
	if tr.ConsumeCancel("site1") {
		t.Error("clear must drop the pending cancellation too")
	}
}
