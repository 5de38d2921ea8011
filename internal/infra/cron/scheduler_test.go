package cron

import (
	"context"
	"testing"

	domain "github.com/bryanwahyu/alttext-audit/internal/domain/audit"
	domhistory "github.com/bryanwahyu/alttext-audit/internal/domain/history"
)

type fakeScanner struct {
	scanned []string
	fail    map[string]error
}

func (f *fakeScanner) RunFull(_ context.Context, site string, trigger domhistory.Trigger, userID int64) error {
	if trigger != domhistory.TriggerCron || userID != 0 {
		panic("cron runs must use the cron trigger and system user")
	}
	if err := f.fail[site]; err != nil {
		return err
	}
	f.scanned = append(f.scanned, site)
	return nil
}

type fakeSites struct{ sites []string }

func (f *fakeSites) List(_ context.Context) ([]string, error) { return f.sites, nil }

type fakeSettings struct{ kv map[string]string }

func (f *fakeSettings) Get(_ context.Context, site, key string) (string, error) {
	return f.kv[site+"/"+key], nil
}

func (f *fakeSettings) Set(_ context.Context, site, key, value string) error {
	if f.kv == nil {
		f.kv = map[string]string{}
	}
	f.kv[site+"/"+key] = value
	return nil
}

func sites(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = string(rune('a' + i))
	}
	return out
}

func TestTickRotatesThroughSites(t *testing.T) {
	scanner := &fakeScanner{}
	settings := &fakeSettings{kv: map[string]string{"_cron/cron_batch_size": "10"}}
	s := &Scheduler{
		Audit:    scanner,
		Sites:    &fakeSites{sites: sites(25)},
		Settings: settings,
	}
	ctx := context.Background()

	s.Tick(ctx)
	if len(scanner.scanned) != 10 {
		t.Fatalf("first tick should cover 10 sites, got %d", len(scanner.scanned))
	}
	if scanner.scanned[0] != "a" || scanner.scanned[9] != "j" {
		t.Errorf("first tick order: %v", scanner.scanned)
	}
	if settings.kv["_cron/rotation_cursor"] != "10" {
		t.Errorf("cursor: %q", settings.kv["_cron/rotation_cursor"])
	}

	s.Tick(ctx)
	s.Tick(ctx)
	// 25 sites, 10 per tick: the third tick wraps around.
	if settings.kv["_cron/rotation_cursor"] != "5" {
		t.Errorf("cursor after wrap: %q", settings.kv["_cron/rotation_cursor"])
	}
	if len(scanner.scanned) != 30 {
		t.Errorf("three ticks cover 30 slots, got %d", len(scanner.scanned))
	}
	if scanner.scanned[20] != "u" || scanner.scanned[29] != "e" {
		t.Errorf("wrap order: %v", scanner.scanned[20:])
	}
}

func TestTickCursorAdvancesPastSkippedSites(t *testing.T) {
	scanner := &fakeScanner{}
	settings := &fakeSettings{kv: map[string]string{
		"_cron/cron_batch_size": "10",
		"b/cron_enabled":        "false", // opted out
	}}
	s := &Scheduler{
		Audit:    scanner,
		Sites:    &fakeSites{sites: sites(25)},
		Settings: settings,
	}

	s.Tick(context.Background())
	if len(scanner.scanned) != 9 {
		t.Errorf("opted-out site is skipped, got %v", scanner.scanned)
	}
	// The cursor still advances by the full batch: skips never stall rotation.
	if settings.kv["_cron/rotation_cursor"] != "10" {
		t.Errorf("cursor: %q", settings.kv["_cron/rotation_cursor"])
	}
}

func TestTickFailingSiteDoesNotStallRotation(t *testing.T) {
	scanner := &fakeScanner{fail: map[string]error{"c": domain.ErrScanInProgress}}
	settings := &fakeSettings{kv: map[string]string{"_cron/cron_batch_size": "10"}}
	s := &Scheduler{
		Audit:    scanner,
		Sites:    &fakeSites{sites: sites(25)},
		Settings: settings,
	}

	s.Tick(context.Background())
	if len(scanner.scanned) != 9 {
		t.Errorf("failing site skipped, rest scanned: %v", scanner.scanned)
	}
	if settings.kv["_cron/rotation_cursor"] != "10" {
		t.Errorf("cursor must advance regardless: %q", settings.kv["_cron/rotation_cursor"])
	}
}

func TestTickBatchSizeFallbacks(t *testing.T) {
	scanner := &fakeScanner{}
	// Stored setting is junk; config PerTick is junk too; default applies.
	settings := &fakeSettings{kv: map[string]string{"_cron/cron_batch_size": "17"}}
	s := &Scheduler{
		Audit:    scanner,
		Sites:    &fakeSites{sites: sites(25)},
		Settings: settings,
		PerTick:  7,
	}

	s.Tick(context.Background())
	if len(scanner.scanned) != 10 {
		t.Errorf("unrecognized sizes fall back to 10, got %d", len(scanner.scanned))
	}
}

func TestTickNoSites(t *testing.T) {
	scanner := &fakeScanner{}
	settings := &fakeSettings{}
	s := &Scheduler{Audit: scanner, Sites: &fakeSites{}, Settings: settings}

	s.Tick(context.Background())
	if len(scanner.scanned) != 0 {
		t.Error("nothing to scan")
	}
	if _, ok := settings.kv["_cron/rotation_cursor"]; ok {
		t.Error("cursor untouched when there are no sites")
	}
}
