package history

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/google/uuid"

	"github.com/bryanwahyu/alttext-audit/internal/application"
	domaudit "github.com/bryanwahyu/alttext-audit/internal/domain/audit"
	domain "github.com/bryanwahyu/alttext-audit/internal/domain/history"
)

const retentionDaysKey = "cleanup_retention_days"

// allowedRetentionDays are the recognized age-cutoff settings, in days.
// "never" disables the age cutoff; the record cap still applies.
var allowedRetentionDays = map[int]bool{30: true, 60: true, 90: true, 120: true, 365: true}

// CreateArgs captures a completed scan run for the record book.
type CreateArgs struct {
	ScanType       string
	Trigger        domain.Trigger
	UserID         int64
	Stats          domain.StatsSnapshot
	ReportFilename string
}

// Service manages the scan record book: a per-site log of completed runs,
// capped at MaxRecords and optionally pruned by age.
type Service struct {
	Repo     domain.Repository
	Reports  domaudit.ReportStore
	Settings domaudit.SettingsStore
	Clock    application.Clock

	// DefaultRetentionDays applies when the site has no stored setting.
	// Zero means no age cutoff.
	DefaultRetentionDays int
}

// CreateRecord inserts a record for a completed run and enforces the cap,
// removing evicted records' report artifacts as it goes.
func (s *Service) CreateRecord(ctx context.Context, site string, args CreateArgs) (*domain.Record, error) {
	rec := &domain.Record{
		ID:             domain.RecordID(uuid.NewString()),
		SiteID:         site,
		ScanType:       args.ScanType,
		Trigger:        args.Trigger,
		UserID:         args.UserID,
		Date:           s.Clock.Now(),
		Stats:          args.Stats,
		ReportFilename: args.ReportFilename,
	}
	if rec.ReportFilename != "" && s.Reports != nil {
		rec.ReportURL = s.Reports.URL(rec.ReportFilename)
	}
	if err := s.Repo.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("inserting scan record: %w", err)
	}
	if err := s.CleanupByCount(ctx, site); err != nil {
		log.Printf("site=%s: history cap cleanup: %v", site, err)
	}
	return rec, nil
}

// List returns the record book, newest first.
func (s *Service) List(ctx context.Context, site string) ([]*domain.Record, error) {
	return s.Repo.List(ctx, site)
}

// DeleteRecords removes the given records and their report artifacts,
// returning how many records were actually deleted.
func (s *Service) DeleteRecords(ctx context.Context, site string, ids []domain.RecordID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	files, err := s.Repo.Delete(ctx, site, ids)
	if err != nil {
		return 0, fmt.Errorf("deleting scan records: %w", err)
	}
	s.removeArtifacts(ctx, site, files)
	return len(files), nil
}

// CleanupByCount trims the record book down to MaxRecords, oldest first.
func (s *Service) CleanupByCount(ctx context.Context, site string) error {
	ids, err := s.Repo.BeyondCap(ctx, site, domain.MaxRecords)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	_, err = s.DeleteRecords(ctx, site, ids)
	return err
}

// CleanupByAge removes records older than the site's retention setting.
// A setting of "never" (or no setting and no default) disables the cutoff.
func (s *Service) CleanupByAge(ctx context.Context, site string) error {
	days := s.retentionDays(ctx, site)
	if days <= 0 {
		return nil
	}
	cutoff := s.Clock.Now().AddDate(0, 0, -days)
	ids, err := s.Repo.OlderThan(ctx, site, cutoff)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	_, err = s.DeleteRecords(ctx, site, ids)
	return err
}

// ClearAll wipes the record book and every report artifact it references.
func (s *Service) ClearAll(ctx context.Context, site string) error {
	recs, err := s.Repo.List(ctx, site)
	if err != nil {
		return err
	}
	ids := make([]domain.RecordID, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	_, err = s.DeleteRecords(ctx, site, ids)
	return err
}

func (s *Service) retentionDays(ctx context.Context, site string) int {
	days := s.DefaultRetentionDays
	if s.Settings != nil {
		if v, err := s.Settings.Get(ctx, site, retentionDaysKey); err == nil && v != "" {
			if v == "never" {
				return 0
			}
			if n, err := strconv.Atoi(v); err == nil && allowedRetentionDays[n] {
				days = n
			}
		}
	}
	return days
}

func (s *Service) removeArtifacts(ctx context.Context, site string, files []string) {
	if s.Reports == nil {
		return
	}
	for _, f := range files {
		if f == "" {
			continue
		}
		if err := s.Reports.Remove(ctx, f); err != nil {
			log.Printf("site=%s: removing report artifact %s: %v", site, f, err)
		}
	}
}

// RetentionSetting parses and validates a user-supplied retention value.
// Accepted: "never" or one of the recognized day counts.
func RetentionSetting(v string) (string, error) {
	if v == "never" {
		return v, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || !allowedRetentionDays[n] {
		return "", fmt.Errorf("invalid retention period: %q", v)
	}
	return strconv.Itoa(n), nil
}
