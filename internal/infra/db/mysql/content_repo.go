package mysql

import (
	"context"
	"database/sql"
	"fmt"

	domain "github.com/bryanwahyu/alttext-audit/internal/domain/audit"
)

// ContentRepository reads and writes the host CMS documents being audited.
type ContentRepository struct {
	db *sql.DB
}

func NewContentRepository(db *sql.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// Page lists one batch of documents of a single status, newest-modified
// first with id tie-break so offsets stay stable within a scan generation.
func (r *ContentRepository) Page(ctx context.Context, site string, drafts bool, offset, limit int) ([]*domain.Document, int, error) {
	status := "publish"
	if drafts {
		status = "draft"
	}

	const q = `
SELECT id, title, body, post_type, author_id, modified_at
FROM documents
WHERE site_id=? AND status=?
ORDER BY modified_at DESC, id DESC
LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, site, status, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(&d.ID, &d.Title, &d.Body, &d.PostType, &d.AuthorID, &d.Modified); err != nil {
			return nil, 0, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE site_id=? AND status=?`, site, status,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting documents: %w", err)
	}
	return docs, total, nil
}

func (r *ContentRepository) Body(ctx context.Context, site string, id int64) (string, error) {
	var body string
	err := r.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE site_id=? AND id=? LIMIT 1`, site, id,
	).Scan(&body)
	return body, err
}

func (r *ContentRepository) UpdateBody(ctx context.Context, site string, id int64, body string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE documents SET body=? WHERE site_id=? AND id=?`, body, site, id)
	return err
}

// Titles resolves document titles in one IN query; deleted ids are absent.
func (r *ContentRepository) Titles(ctx context.Context, site string, ids []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	q := `SELECT id, title FROM documents WHERE site_id=? AND id IN (` + placeholders(len(ids)) + `)`
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, site)
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var title string
		if err := rows.Scan(&id, &title); err != nil {
			return nil, err
		}
		out[id] = title
	}
	return out, rows.Err()
}
