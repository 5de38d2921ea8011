package audit

import (
	"context"
	"fmt"
	"log"
	"math"
	"path"
	"sync"
	"time"

	"github.com/bryanwahyu/alttext-audit/internal/application"
	apphistory "github.com/bryanwahyu/alttext-audit/internal/application/history"
	domattr "github.com/bryanwahyu/alttext-audit/internal/domain/attribution"
	domain "github.com/bryanwahyu/alttext-audit/internal/domain/audit"
	domhistory "github.com/bryanwahyu/alttext-audit/internal/domain/history"
)

const (
	// DefaultBatchSize bounds worst-case latency of one ScanBatch call.
	DefaultBatchSize = 50

	// statsTTL is how long cached statistics stay fresh without an
	// explicit invalidation.
	statsTTL = 24 * time.Hour

	// reportItemCap limits how many missing items go into a report.
	reportItemCap = 500

	// reportUserCap limits the top-users table in a report.
	reportUserCap = 10

	lastScanKey = "audit_last_scan"
)

// ReportGenerator renders and stores a report artifact for a completed scan,
// returning the stored filename. Implemented by infra/report.
type ReportGenerator interface {
	Generate(ctx context.Context, site string, stats *domain.Statistics, topUsers []*domattr.UserCount, missing domain.ResultPage) (string, error)
}

// AttributionReader is the slice of the attribution service the engine needs
// on scan completion (report data) and result mutation (invalidate).
type AttributionReader interface {
	TopOffenders(ctx context.Context, site string, limit int) ([]*domattr.UserCount, error)
	Invalidate(site string)
}

// Service implements the scan engine use-cases. Scans are externally paced:
// the caller re-invokes ScanBatch with an increasing batch index until
// Continue is false. Safe for concurrent use.
type Service struct {
	Results     domain.ResultRepository
	Content     domain.ContentSource
	Media       domain.MediaSource
	Index       domain.AttachmentIndex
	Settings    domain.SettingsStore
	Authorizer  domain.Authorizer
	Reports     ReportGenerator
	History     *apphistory.Service
	Attribution AttributionReader
	Progress    *Tracker
	Clock       application.Clock
	BatchSize   int

	statsMu    sync.Mutex
	statsCache map[string]statsEntry
}

type statsEntry struct {
	stats   *domain.Statistics
	expires time.Time
}

// UpdateOutcome reports what the fix-it workflow touched.
type UpdateOutcome struct {
	Updated        bool               `json:"updated"`
	SavedToMedia   bool               `json:"saved_to_media"`
	SavedToContent bool               `json:"saved_to_post_content"`
	AttachmentID   *int64             `json:"attachment_id,omitempty"`
	ContentType    domain.ContentType `json:"content_type"`
}

func (s *Service) batchSize() int {
	if s.BatchSize > 0 {
		return s.BatchSize
	}
	return DefaultBatchSize
}

// ScanBatch runs one bounded unit of scan work. On batch 0 prior results for
// the site are purged and progress is initialised; a pending cancellation is
// honored before any processing and clears all progress state.
func (s *Service) ScanBatch(ctx context.Context, site string, scanType domain.ScanType, batch int, userID int64) (*domain.BatchProgress, error) {
	switch scanType {
	case domain.ScanContent, domain.ScanDrafts, domain.ScanMedia:
	default:
		return nil, domain.ErrInvalidScanType
	}
	if batch < 0 {
		return nil, fmt.Errorf("%w: batch index must be >= 0", domain.ErrInvalidScanType)
	}

	if s.Progress.ConsumeCancel(site) {
		return nil, domain.ErrScanCancelled
	}

	if batch == 0 {
		if err := s.Progress.Begin(site, scanType, s.Clock.Now()); err != nil {
			return nil, err
		}
		if err := s.Results.ClearAll(ctx, site); err != nil {
			s.Progress.Clear(site)
			return nil, fmt.Errorf("clearing previous results: %w", err)
		}
		s.invalidateCaches(site)
	}

	bp, err := s.runBatch(ctx, site, scanType, batch)
	if err != nil {
		return nil, err
	}

	if !bp.Continue {
		if err := s.finishScan(ctx, site, scanType, domhistory.TriggerManual, userID); err != nil {
			return nil, err
		}
		s.Progress.Clear(site)
	}
	return bp, nil
}

// CancelScan sets the cooperative cancellation flag; the flag is consulted
// at the top of the next ScanBatch call, never mid-batch.
func (s *Service) CancelScan(site string) {
	s.Progress.RequestCancel(site)
}

// ScanProgress returns the in-flight progress for a site, if any.
func (s *Service) ScanProgress(site string) (Progress, bool) {
	return s.Progress.Get(site)
}

// RunFull drives a complete scan across all scan types in sequence
// (content, drafts, media), then runs the completion pipeline once with a
// single history record. Suitable for cron or an unattended manual trigger.
func (s *Service) RunFull(ctx context.Context, site string, trigger domhistory.Trigger, userID int64) error {
	if err := s.Progress.Begin(site, domain.ScanFull, s.Clock.Now()); err != nil {
		return err
	}
	defer s.Progress.Clear(site)

	if err := s.Results.ClearAll(ctx, site); err != nil {
		return fmt.Errorf("clearing previous results: %w", err)
	}
	s.invalidateCaches(site)

	for _, st := range []domain.ScanType{domain.ScanContent, domain.ScanDrafts, domain.ScanMedia} {
		for batch := 0; ; batch++ {
			if s.Progress.ConsumeCancel(site) {
				return domain.ErrScanCancelled
			}
			bp, err := s.runBatch(ctx, site, st, batch)
			if err != nil {
				return err
			}
			if !bp.Continue {
				break
			}
		}
	}

	return s.finishScan(ctx, site, domain.ScanFull, trigger, userID)
}

// runBatch fetches one page of content, extracts and matches images, and
// bulk-writes the rows. A failure on a single item is logged and skipped; a
// bulk-write failure is fatal for the batch and progress is not advanced.
func (s *Service) runBatch(ctx context.Context, site string, scanType domain.ScanType, batch int) (*domain.BatchProgress, error) {
	size := s.batchSize()
	offset := batch * size
	now := s.Clock.Now()

	var (
		rows     []*domain.Result
		total    int
		lastItem string
	)

	switch scanType {
	case domain.ScanContent, domain.ScanDrafts:
		drafts := scanType == domain.ScanDrafts
		contentType := domain.ContentPost
		if drafts {
			contentType = domain.ContentDraft
		}
		docs, t, err := s.Content.Page(ctx, site, drafts, offset, size)
		if err != nil {
			return nil, fmt.Errorf("fetching %s page %d: %w", scanType, batch, err)
		}
		total = t
		for _, doc := range docs {
			for _, img := range domain.ExtractImages(doc.Body) {
				attachmentID, err := domain.MatchAttachment(ctx, s.Index, site, img.Src)
				if err != nil {
					log.Printf("site=%s doc=%d: attachment match failed for %s: %v", site, doc.ID, img.Src, err)
					attachmentID = nil
				}
				rows = append(rows, &domain.Result{
					SiteID:       site,
					ContentType:  contentType,
					ContentID:    doc.ID,
					ImageSource:  img.Src,
					AttachmentID: attachmentID,
					HasAlt:       img.Alt != "",
					AltText:      img.Alt,
					UserID:       doc.AuthorID,
					PostType:     doc.PostType,
					ScanDate:     now,
					LastUpdated:  now,
				})
			}
			lastItem = doc.Title
		}

	case domain.ScanMedia:
		items, t, err := s.Media.Page(ctx, site, offset, size)
		if err != nil {
			return nil, fmt.Errorf("fetching media page %d: %w", batch, err)
		}
		total = t
		for _, it := range items {
			id := it.ID
			rows = append(rows, &domain.Result{
				SiteID:       site,
				ContentType:  domain.ContentMedia,
				ContentID:    it.ID,
				ImageSource:  it.URL,
				AttachmentID: &id,
				HasAlt:       it.AltText != "",
				AltText:      it.AltText,
				UserID:       it.UploaderID,
				ScanDate:     now,
				LastUpdated:  now,
			})
			lastItem = path.Base(it.URL)
		}
	}

	if len(rows) > 0 {
		if err := s.Results.BulkInsert(ctx, site, rows); err != nil {
			return nil, fmt.Errorf("bulk insert for batch %d failed: %w", batch, err)
		}
		s.invalidateCaches(site)
	}

	processed := offset + size
	if processed > total {
		processed = total
	}
	percentage := 100
	if total > 0 {
		percentage = int(math.Round(float64(processed) / float64(total) * 100))
	}
	cont := processed < total

	s.Progress.Update(site, Progress{
		ScanType:   scanType,
		Batch:      batch,
		Processed:  processed,
		Total:      total,
		Percentage: percentage,
		LastUpdate: now,
	})

	return &domain.BatchProgress{
		ScanType:     scanType,
		Batch:        batch,
		Processed:    processed,
		Total:        total,
		Percentage:   percentage,
		Continue:     cont,
		ResultsCount: len(rows),
		CurrentItem:  lastItem,
		Message:      fmt.Sprintf("Processed %d of %d items (%d%%)", processed, total, percentage),
	}, nil
}

// finishScan is the completion pipeline: refresh statistics, render the
// report, record history, and run retention cleanup. A report failure is
// logged and the record is written without one; a history failure is fatal.
func (s *Service) finishScan(ctx context.Context, site string, scanType domain.ScanType, trigger domhistory.Trigger, userID int64) error {
	now := s.Clock.Now()
	if s.Settings != nil {
		if err := s.Settings.Set(ctx, site, lastScanKey, now.UTC().Format(time.RFC3339)); err != nil {
			log.Printf("site=%s: storing last scan time: %v", site, err)
		}
	}

	stats, err := s.GetStatistics(ctx, site, true)
	if err != nil {
		return fmt.Errorf("refreshing statistics: %w", err)
	}

	reportFile := ""
	if s.Reports != nil {
		hasAlt := false
		missing, err := s.Results.Query(ctx, site, domain.Query{
			HasAlt:  &hasAlt,
			Page:    1,
			PerPage: reportItemCap,
			OrderBy: "scan_date",
			Order:   "DESC",
		})
		if err != nil {
			log.Printf("site=%s: fetching missing items for report: %v", site, err)
		} else {
			var topUsers []*domattr.UserCount
			if s.Attribution != nil {
				if topUsers, err = s.Attribution.TopOffenders(ctx, site, reportUserCap); err != nil {
					log.Printf("site=%s: fetching top users for report: %v", site, err)
					topUsers = nil
				}
			}
			if reportFile, err = s.Reports.Generate(ctx, site, stats, topUsers, missing); err != nil {
				log.Printf("site=%s: report generation failed: %v", site, err)
				reportFile = ""
			}
		}
	}

	if s.History != nil {
		_, err = s.History.CreateRecord(ctx, site, apphistory.CreateArgs{
			ScanType: string(scanType),
			Trigger:  trigger,
			UserID:   userID,
			Stats: domhistory.StatsSnapshot{
				Total:   stats.TotalImages,
				Missing: stats.MissingAlt,
				HasAlt:  stats.HasAlt,
			},
			ReportFilename: reportFile,
		})
		if err != nil {
			return fmt.Errorf("recording scan history: %w", err)
		}
		if err := s.History.CleanupByAge(ctx, site); err != nil {
			log.Printf("site=%s: history age cleanup: %v", site, err)
		}
	}
	return nil
}

// GetStatistics returns site statistics, cached for 24h. forceRefresh
// bypasses and repopulates the cache.
func (s *Service) GetStatistics(ctx context.Context, site string, forceRefresh bool) (*domain.Statistics, error) {
	s.statsMu.Lock()
	if !forceRefresh {
		if e, ok := s.statsCache[site]; ok && s.Clock.Now().Before(e.expires) {
			s.statsMu.Unlock()
			return e.stats, nil
		}
	}
	s.statsMu.Unlock()

	stats, err := s.Results.Statistics(ctx, site)
	if err != nil {
		return nil, err
	}
	if s.Settings != nil {
		if v, err := s.Settings.Get(ctx, site, lastScanKey); err == nil && v != "" {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				stats.LastScanDate = &t
			}
		}
	}

	s.statsMu.Lock()
	if s.statsCache == nil {
		s.statsCache = make(map[string]statsEntry)
	}
	s.statsCache[site] = statsEntry{stats: stats, expires: s.Clock.Now().Add(statsTTL)}
	s.statsMu.Unlock()
	return stats, nil
}

// GetResults queries the result store with validated filters and sorting.
func (s *Service) GetResults(ctx context.Context, site string, q domain.Query) (domain.ResultPage, error) {
	if q.OrderBy != "" && !domain.AllowedOrderBy[q.OrderBy] {
		return domain.ResultPage{}, fmt.Errorf("invalid sort column: %s", q.OrderBy)
	}
	if q.ContentType != nil && !domain.AllowedContentTypes[*q.ContentType] {
		return domain.ResultPage{}, fmt.Errorf("invalid content type: %s", *q.ContentType)
	}
	return s.Results.Query(ctx, site, q)
}

// UpdateResult is the fix-it workflow: write the new alt-text back into the
// media library and/or content body, then into the audit row itself. The
// content rewrite matches by exact source or basename and skips silently
// when the image is no longer present.
func (s *Service) UpdateResult(ctx context.Context, site string, id domain.ResultID, altText string, userID int64) (*UpdateOutcome, error) {
	if len(altText) > 255 {
		return nil, domain.ErrAltTextTooLong
	}

	res, err := s.Results.Get(ctx, site, id)
	if err != nil {
		return nil, err
	}

	out := &UpdateOutcome{
		AttachmentID: res.AttachmentID,
		ContentType:  res.ContentType,
	}

	if res.AttachmentID != nil {
		if err := s.Media.UpdateAlt(ctx, site, *res.AttachmentID, altText); err != nil {
			log.Printf("site=%s result=%d: media alt write failed: %v", site, id, err)
		} else {
			out.SavedToMedia = true
		}
	}

	if res.ContentType == domain.ContentPost || res.ContentType == domain.ContentDraft {
		if s.Authorizer != nil && !s.Authorizer.CanEditContent(ctx, site, res.ContentID) {
			return nil, domain.ErrPermissionDenied
		}
		body, err := s.Content.Body(ctx, site, res.ContentID)
		if err != nil {
			log.Printf("site=%s result=%d: loading content %d: %v", site, id, res.ContentID, err)
		} else if updated, found := domain.RewriteImageAlt(body, res.ImageSource, altText); found {
			if err := s.Content.UpdateBody(ctx, site, res.ContentID, updated); err != nil {
				log.Printf("site=%s result=%d: content body write failed: %v", site, id, err)
			} else {
				out.SavedToContent = true
			}
		}
	}

	if err := s.Results.UpdateAlt(ctx, site, id, altText, s.Clock.Now()); err != nil {
		return nil, fmt.Errorf("updating audit row: %w", err)
	}
	s.invalidateCaches(site)

	out.Updated = true
	return out, nil
}

// ClearAllData wipes audit rows, history records, and report artifacts for
// a site. Destructive; the router gates it behind CanManage.
func (s *Service) ClearAllData(ctx context.Context, site string) error {
	if err := s.Results.ClearAll(ctx, site); err != nil {
		return fmt.Errorf("clearing results: %w", err)
	}
	s.invalidateCaches(site)
	if s.History != nil {
		if err := s.History.ClearAll(ctx, site); err != nil {
			return fmt.Errorf("clearing history: %w", err)
		}
	}
	return nil
}

// invalidateCaches drops the statistics cache and the attribution cache.
// Called at every mutation site so cached reads never outlive a write.
func (s *Service) invalidateCaches(site string) {
	s.statsMu.Lock()
	delete(s.statsCache, site)
	s.statsMu.Unlock()
	if s.Attribution != nil {
		s.Attribution.Invalidate(site)
	}
}
