package cron

import (
	"context"
	"errors"
	"log"
	"strconv"

	"github.com/robfig/cron/v3"

	domain "github.com/bryanwahyu/alttext-audit/internal/domain/audit"
	domhistory "github.com/bryanwahyu/alttext-audit/internal/domain/history"
)

// FullScanner runs one complete unattended scan for a site.
type FullScanner interface {
	RunFull(ctx context.Context, site string, trigger domhistory.Trigger, userID int64) error
}

// SettingsScope is the pseudo-site holding scheduler-wide state in the
// settings KV. Rotation covers every site, so the cursor and batch size
// are service-level, not per-site.
const SettingsScope = "_cron"

const (
	cursorKey      = "rotation_cursor"
	batchSizeKey   = "cron_batch_size"
	cronEnabledKey = "cron_enabled"
	defaultPerTick = 10
)

// allowedBatchSizes are the recognized sites-per-tick settings.
var allowedBatchSizes = map[int]bool{10: true, 25: true, 50: true, 100: true}

// Scheduler runs full scans on a rotation: each tick covers the next slice
// of sites so one huge fleet never scans everything at once. The cursor is
// persisted and advances by the batch size even when sites are skipped, so
// a permanently failing site cannot stall the rotation.
type Scheduler struct {
	Audit    FullScanner
	Sites    domain.TenantRepository
	Settings domain.SettingsStore
	Spec     string
	PerTick  int

	c *cron.Cron
}

// Start registers the tick on the cron spec and begins scheduling.
func (s *Scheduler) Start() error {
	s.c = cron.New()
	_, err := s.c.AddFunc(s.Spec, func() {
		s.Tick(context.Background())
	})
	if err != nil {
		return err
	}
	s.c.Start()
	return nil
}

// Stop stops scheduling; a tick in flight runs to completion.
func (s *Scheduler) Stop() {
	if s.c != nil {
		<-s.c.Stop().Done()
	}
}

// Tick scans the next batch of sites in rotation order.
func (s *Scheduler) Tick(ctx context.Context) {
	sites, err := s.Sites.List(ctx)
	if err != nil {
		log.Printf("cron: listing sites: %v", err)
		return
	}
	if len(sites) == 0 {
		return
	}

	cursor := s.readInt(ctx, cursorKey, 0)
	perTick := s.perTick(ctx)

	for i := 0; i < perTick && i < len(sites); i++ {
		site := sites[(cursor+i)%len(sites)]
		if !s.cronEnabled(ctx, site) {
			continue
		}
		if err := s.Audit.RunFull(ctx, site, domhistory.TriggerCron, 0); err != nil {
			if errors.Is(err, domain.ErrScanInProgress) {
				log.Printf("cron: site=%s already scanning, skipped", site)
				continue
			}
			log.Printf("cron: site=%s full scan failed: %v", site, err)
		}
	}

	next := (cursor + perTick) % len(sites)
	if err := s.Settings.Set(ctx, SettingsScope, cursorKey, strconv.Itoa(next)); err != nil {
		log.Printf("cron: persisting rotation cursor: %v", err)
	}
}

func (s *Scheduler) perTick(ctx context.Context) int {
	if v := s.readInt(ctx, batchSizeKey, 0); allowedBatchSizes[v] {
		return v
	}
	if allowedBatchSizes[s.PerTick] {
		return s.PerTick
	}
	return defaultPerTick
}

// cronEnabled is an opt-out: sites scan unless explicitly disabled.
func (s *Scheduler) cronEnabled(ctx context.Context, site string) bool {
	v, err := s.Settings.Get(ctx, site, cronEnabledKey)
	if err != nil {
		log.Printf("cron: site=%s reading %s: %v", site, cronEnabledKey, err)
		return false
	}
	return v != "false" && v != "0"
}

func (s *Scheduler) readInt(ctx context.Context, key string, fallback int) int {
	v, err := s.Settings.Get(ctx, SettingsScope, key)
	if err != nil || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
