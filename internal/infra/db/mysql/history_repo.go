package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/alttext-audit/internal/domain/history"
)

const recordColumns = `id, site_id, scan_type, triggered_by, user_id, scan_date,
       total_images, missing_alt, has_alt, report_filename, report_url`

// HistoryRepository persists the scan record book.
type HistoryRepository struct {
	db *sql.DB
}

func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) Insert(ctx context.Context, rec *domain.Record) error {
	const q = `
INSERT INTO scan_records
(id, site_id, scan_type, triggered_by, user_id, scan_date,
 total_images, missing_alt, has_alt, report_filename, report_url)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`
	_, err := r.db.ExecContext(ctx, q,
		rec.ID, rec.SiteID, rec.ScanType, rec.Trigger, rec.UserID, rec.Date,
		rec.Stats.Total, rec.Stats.Missing, rec.Stats.HasAlt,
		rec.ReportFilename, rec.ReportURL,
	)
	return err
}

// List returns all records for a site, newest first.
func (r *HistoryRepository) List(ctx context.Context, site string) ([]*domain.Record, error) {
	q := `SELECT ` + recordColumns + ` FROM scan_records WHERE site_id=? ORDER BY scan_date DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, site)
	if err != nil {
		return nil, fmt.Errorf("querying scan records: %w", err)
	}
	defer rows.Close()

	var out []*domain.Record
	for rows.Next() {
		var rec domain.Record
		if err := rows.Scan(
			&rec.ID, &rec.SiteID, &rec.ScanType, &rec.Trigger, &rec.UserID, &rec.Date,
			&rec.Stats.Total, &rec.Stats.Missing, &rec.Stats.HasAlt,
			&rec.ReportFilename, &rec.ReportURL,
		); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// Delete removes the given records and returns the report filenames of the
// rows that actually existed, so artifacts can be purged with them.
func (r *HistoryRepository) Delete(ctx context.Context, site string, ids []domain.RecordID) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, site)
	for _, id := range ids {
		args = append(args, id)
	}

	q := `SELECT report_filename FROM scan_records WHERE site_id=? AND id IN (` + placeholders(len(ids)) + `)`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("selecting records to delete: %w", err)
	}
	var files []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			rows.Close()
			return nil, err
		}
		files = append(files, f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	del := `DELETE FROM scan_records WHERE site_id=? AND id IN (` + placeholders(len(ids)) + `)`
	if _, err := r.db.ExecContext(ctx, del, args...); err != nil {
		return nil, fmt.Errorf("deleting records: %w", err)
	}
	return files, nil
}

// OlderThan returns ids of records dated before cutoff.
func (r *HistoryRepository) OlderThan(ctx context.Context, site string, cutoff time.Time) ([]domain.RecordID, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM scan_records WHERE site_id=? AND scan_date < ?`, site, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows)
}

// BeyondCap returns ids of records past the newest keep.
func (r *HistoryRepository) BeyondCap(ctx context.Context, site string, keep int) ([]domain.RecordID, error) {
	const q = `
SELECT id FROM scan_records
WHERE site_id=?
ORDER BY scan_date DESC, id DESC
LIMIT 18446744073709551615 OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, site, keep)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows)
}

func collectIDs(rows *sql.Rows) ([]domain.RecordID, error) {
	var ids []domain.RecordID
	for rows.Next() {
		var id domain.RecordID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
