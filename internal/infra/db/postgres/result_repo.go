package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	_ "github.com/lib/pq"

	domain "github.com/bryanwahyu/alttext-audit/internal/domain/audit"
)

const resultColumns = `id, site_id, content_type, content_id, image_source, attachment_id,
       has_alt, alt_text, user_id, post_type, scan_date, last_updated`

// ResultRepository is the Postgres variant of the audit row store, for
// deployments that already run Postgres. Same table shape, $n placeholders.
type ResultRepository struct {
	db *sql.DB
}

func NewResultRepository(db *sql.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// Connect opens and pings a Postgres pool with the same limits as the
// MySQL connector.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		return nil, err
	}
	return db, nil
}

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
		base := i * 11
		sb.WriteString("(")
		for j := 1; j <= 11; j++ {
			if j > 1 {
				sb.WriteString(",")
			}
			fmt.Fprintf(&sb, "$%d", base+j)
		}
		sb.WriteString(")")
		postType := row.PostType
		if postType == "" {
			postType = "-"
		}
		args = append(args,
			site, row.ContentType, row.ContentID, row.ImageSource, row.AttachmentID,
			row.HasAlt, row.AltText, row.UserID, postType,
			row.ScanDate, row.LastUpdated,
		)
	}
	if _, err := r.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("inserting %d audit rows: %w", len(rows), err)
	}
	return nil
}

func (r *ResultRepository) ClearAll(ctx context.Context, site string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM audit_results WHERE site_id=$1`, site)
	return err
}

func (r *ResultRepository) Get(ctx context.Context, site string, id domain.ResultID) (*domain.Result, error) {
	q := `SELECT ` + resultColumns + ` FROM audit_results WHERE site_id=$1 AND id=$2 LIMIT 1`
	row := r.db.QueryRowContext(ctx, q, site, id)

	var res domain.Result
	var attachmentID sql.NullInt64
	err := row.Scan(
		&res.ID, &res.SiteID, &res.ContentType, &res.ContentID, &res.ImageSource, &attachmentID,
		&res.HasAlt, &res.AltText, &res.UserID, &res.PostType, &res.ScanDate, &res.LastUpdated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrResultNotFound
	}
	if err != nil {
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

func (r *ResultRepository) Query(ctx context.Context, site string, q domain.Query) (domain.ResultPage, error) {
	where, args := filters(site, q)

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
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, perPage, (page-1)*perPage)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.ResultPage{}, fmt.Errorf("querying audit rows: %w", err)
	}
	defer rows.Close()

	var out []*domain.Result
	for rows.Next() {
		var res domain.Result
		var attachmentID sql.NullInt64
		if err := rows.Scan(
			&res.ID, &res.SiteID, &res.ContentType, &res.ContentID, &res.ImageSource, &attachmentID,
			&res.HasAlt, &res.AltText, &res.UserID, &res.PostType, &res.ScanDate, &res.LastUpdated,
		); err != nil {
			return domain.ResultPage{}, fmt.Errorf("scanning row: %w", err)
		}
		if attachmentID.Valid {
			res.AttachmentID = &attachmentID.Int64
		}
		if res.PostType == "-" {
			res.PostType = ""
		}
		out = append(out, &res)
	}
	if err := rows.Err(); err != nil {
		return domain.ResultPage{}, err
	}

	countWhere, countArgs := filters(site, q)
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

func (r *ResultRepository) UpdateAlt(ctx context.Context, site string, id domain.ResultID, altText string, when time.Time) error {
	const q = `UPDATE audit_results SET alt_text=$1, has_alt=$2, last_updated=$3 WHERE site_id=$4 AND id=$5`
	_, err := r.db.ExecContext(ctx, q, altText, altText != "", when, site, id)
	return err
}

func (r *ResultRepository) Statistics(ctx context.Context, site string) (*domain.Statistics, error) {
	const q = `
SELECT content_type,
       COUNT(*) AS total,
       COALESCE(SUM(CASE WHEN has_alt=false THEN 1 ELSE 0 END),0) AS missing
FROM audit_results
WHERE site_id=$1
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
		stats.MissingPercentage = math.Round(float64(stats.MissingAlt)/float64(stats.TotalImages)*1000) / 10
		stats.HasPercentage = math.Round(float64(stats.HasAlt)/float64(stats.TotalImages)*1000) / 10
	}
	return stats, nil
}

func filters(site string, q domain.Query) (string, []interface{}) {
	where := "WHERE site_id=$1"
	args := []interface{}{site}
	n := func() int { return len(args) + 1 }
	if q.HasAlt != nil {
		where += fmt.Sprintf(" AND has_alt=$%d", n())
		args = append(args, *q.HasAlt)
	}
	if q.UserID != nil {
		where += fmt.Sprintf(" AND user_id=$%d", n())
		args = append(args, *q.UserID)
	}
	if q.ContentType != nil {
		where += fmt.Sprintf(" AND content_type=$%d", n())
		args = append(args, *q.ContentType)
	}
	if q.PostType != "" {
		where += fmt.Sprintf(" AND post_type=$%d", n())
		args = append(args, q.PostType)
	}
	if q.Search != "" {
		pat := "%" + escapeLikePattern(q.Search) + "%"
		where += fmt.Sprintf(" AND (image_source LIKE $%d OR alt_text LIKE $%d)", n(), n()+1)
		args = append(args, pat, pat)
	}
	return where, args
}

func escapeLikePattern(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
