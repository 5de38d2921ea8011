package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	domattr "github.com/bryanwahyu/alttext-audit/internal/domain/attribution"
	domain "github.com/bryanwahyu/alttext-audit/internal/domain/audit"
)

const resultColumns = `id, site_id, content_type, content_id, image_source, attachment_id,
       has_alt, alt_text, user_id, post_type, scan_date, last_updated`

// ResultRepository persists audit rows. It also serves the attribution
// aggregates, which are plain GROUP BY views over the same table.
type ResultRepository struct {
	db *sql.DB
}

func NewResultRepository(db *sql.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// BulkInsert writes one batch of rows in a single multi-row statement.
func (r *ResultRepository) BulkInsert(ctx context.Context, site string, rows []*domain.Result) error {
	if len(rows) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO audit_results
(site_id, content_type, content_id, image_source, attachment_id, has_alt, alt_text, user_id, post_type, scan_date, last_updated)
VALUES `)
	args := make([]interface{}, 0, len(rows)*11)
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?,?,?,?,?,?,?,?,?,?,?)")
		args = append(args,
			site, row.ContentType, row.ContentID, row.ImageSource, row.AttachmentID,
			row.HasAlt, row.AltText, row.UserID, stringOrDash(row.PostType),
			row.ScanDate, row.LastUpdated,
		)
	}
	if _, err := r.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("inserting %d audit rows: %w", len(rows), err)
	}
	return nil
}

// ClearAll purges the site's rows; the next scan builds a fresh generation.
func (r *ResultRepository) ClearAll(ctx context.Context, site string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM audit_results WHERE site_id=?`, site)
	return err
}

func (r *ResultRepository) Get(ctx context.Context, site string, id domain.ResultID) (*domain.Result, error) {
	q := `SELECT ` + resultColumns + ` FROM audit_results WHERE site_id=? AND id=? LIMIT 1`
	row := r.db.QueryRowContext(ctx, q, site, id)
	res, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrResultNotFound
	}
	return res, err
}

// Query lists rows with validated filters and whitelisted sorting.
// PerPage == -1 returns the full filtered set (export mode).
func (r *ResultRepository) Query(ctx context.Context, site string, q domain.Query) (domain.ResultPage, error) {
	where, args := resultFilters(site, q)

	orderBy := "scan_date"
	if q.OrderBy != "" {
		if !domain.AllowedOrderBy[q.OrderBy] {
			return domain.ResultPage{}, fmt.Errorf("invalid sort column: %s", q.OrderBy)
		}
		orderBy = q.OrderBy
	}
	dir := "DESC"
	if strings.EqualFold(q.Order, "ASC") {
		dir = "ASC"
	}

	query := `SELECT ` + resultColumns + ` FROM audit_results ` + where +
		fmt.Sprintf(" ORDER BY %s %s, id ASC", orderBy, dir)

	page := q.Page
	if page <= 0 {
		page = 1
	}
	perPage := q.PerPage
	if perPage == 0 {
		perPage = 20
	}
	if perPage > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, perPage, (page-1)*perPage)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.ResultPage{}, fmt.Errorf("querying audit rows: %w", err)
	}
	defer rows.Close()

	var out []*domain.Result
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return domain.ResultPage{}, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return domain.ResultPage{}, fmt.Errorf("iterating rows: %w", err)
	}

	countWhere, countArgs := resultFilters(site, q)
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_results `+countWhere, countArgs...).Scan(&total); err != nil {
		return domain.ResultPage{}, fmt.Errorf("counting rows: %w", err)
	}

	totalPages := 1
	if perPage > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(perPage)))
	}
	return domain.ResultPage{
		Rows:       out,
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

// UpdateAlt rewrites the alt-text of a single row; has_alt follows from
// whether the new text is empty.
func (r *ResultRepository) UpdateAlt(ctx context.Context, site string, id domain.ResultID, altText string, when time.Time) error {
	const q = `UPDATE audit_results SET alt_text=?, has_alt=?, last_updated=? WHERE site_id=? AND id=?`
	_, err := r.db.ExecContext(ctx, q, altText, altText != "", when, site, id)
	return err
}

// Statistics computes the headline numbers and the per-source breakdown
// in one grouped pass.
func (r *ResultRepository) Statistics(ctx context.Context, site string) (*domain.Statistics, error) {
	const q = `
SELECT content_type,
       COUNT(*) AS total,
       COALESCE(SUM(CASE WHEN has_alt=0 THEN 1 ELSE 0 END),0) AS missing
FROM audit_results
WHERE site_id=?
GROUP BY content_type`
	rows, err := r.db.QueryContext(ctx, q, site)
	if err != nil {
		return nil, fmt.Errorf("computing statistics: %w", err)
	}
	defer rows.Close()

	stats := &domain.Statistics{BySource: make(map[domain.ContentType]domain.SourceCounts)}
	for rows.Next() {
		var ct string
		var total, missing int
		if err := rows.Scan(&ct, &total, &missing); err != nil {
			return nil, err
		}
		stats.BySource[domain.ContentType(ct)] = domain.SourceCounts{Total: total, Missing: missing}
		stats.TotalImages += total
		stats.MissingAlt += missing
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stats.HasAlt = stats.TotalImages - stats.MissingAlt
	if stats.TotalImages > 0 {
		stats.MissingPercentage = round1(float64(stats.MissingAlt) / float64(stats.TotalImages) * 100)
		stats.HasPercentage = round1(float64(stats.HasAlt) / float64(stats.TotalImages) * 100)
	}
	return stats, nil
}

// UserCounts groups rows per user, keeping only users with missing alt,
// worst offender first. Identity fields are filled by the caller.
func (r *ResultRepository) UserCounts(ctx context.Context, site string) ([]*domattr.UserCount, error) {
	const q = `
SELECT user_id,
       COUNT(*) AS total,
       COALESCE(SUM(CASE WHEN has_alt=0 THEN 1 ELSE 0 END),0) AS missing
FROM audit_results
WHERE site_id=?
GROUP BY user_id
HAVING missing > 0
ORDER BY missing DESC, user_id ASC`
	rows, err := r.db.QueryContext(ctx, q, site)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domattr.UserCount
	for rows.Next() {
		var c domattr.UserCount
		if err := rows.Scan(&c.UserID, &c.TotalImages, &c.MissingAlt); err != nil {
			return nil, err
		}
		c.HasAlt = c.TotalImages - c.MissingAlt
		out = append(out, &c)
	}
	return out, rows.Err()
}

// UserDetail aggregates one user's rows; nil when the user has none.
func (r *ResultRepository) UserDetail(ctx context.Context, site string, userID int64) (*domattr.UserCount, error) {
	const q = `
SELECT user_id,
       COUNT(*) AS total,
       COALESCE(SUM(CASE WHEN has_alt=0 THEN 1 ELSE 0 END),0) AS missing
FROM audit_results
WHERE site_id=? AND user_id=?
GROUP BY user_id`
	var c domattr.UserCount
	err := r.db.QueryRowContext(ctx, q, site, userID).Scan(&c.UserID, &c.TotalImages, &c.MissingAlt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.HasAlt = c.TotalImages - c.MissingAlt
	return &c, nil
}

func (r *ResultRepository) Summary(ctx context.Context, site string) (domattr.Summary, error) {
	const q = `
SELECT COUNT(DISTINCT user_id),
       COUNT(DISTINCT CASE WHEN has_alt=0 THEN user_id END)
FROM audit_results
WHERE site_id=?`
	var s domattr.Summary
	err := r.db.QueryRowContext(ctx, q, site).Scan(&s.TotalUsers, &s.UsersWithMissing)
	return s, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanResult(row rowScanner) (*domain.Result, error) {
	var res domain.Result
	var attachmentID sql.NullInt64
	if err := row.Scan(
		&res.ID, &res.SiteID, &res.ContentType, &res.ContentID, &res.ImageSource, &attachmentID,
		&res.HasAlt, &res.AltText, &res.UserID, &res.PostType, &res.ScanDate, &res.LastUpdated,
	); err != nil {
		return nil, err
	}
	if attachmentID.Valid {
		res.AttachmentID = &attachmentID.Int64
	}
	if res.PostType == "-" {
		res.PostType = ""
	}
	return &res, nil
}

func resultFilters(site string, q domain.Query) (string, []interface{}) {
	where := "WHERE site_id=?"
	args := []interface{}{site}
	if q.HasAlt != nil {
		where += " AND has_alt=?"
		args = append(args, *q.HasAlt)
	}
	if q.UserID != nil {
		where += " AND user_id=?"
		args = append(args, *q.UserID)
	}
	if q.ContentType != nil {
		where += " AND content_type=?"
		args = append(args, *q.ContentType)
	}
	if q.PostType != "" {
		where += " AND post_type=?"
		args = append(args, q.PostType)
	}
	if q.Search != "" {
		where += " AND (image_source LIKE ? OR alt_text LIKE ?)"
		pat := "%" + escapeLikePattern(q.Search) + "%"
		args = append(args, pat, pat)
	}
	return where, args
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
