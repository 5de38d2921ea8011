package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain "github.com/bryanwahyu/alttext-audit/internal/domain/audit"
)

// MediaRepository reads and writes the host CMS image attachments. It also
// backs the attachment index used for src-to-attachment matching.
type MediaRepository struct {
	db *sql.DB
}

func NewMediaRepository(db *sql.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

// Page lists one batch of image attachments, newest-uploaded first with id
// tie-break. Non-image attachments never enter the audit.
func (r *MediaRepository) Page(ctx context.Context, site string, offset, limit int) ([]*domain.MediaItem, int, error) {
	const q = `
SELECT id, url, alt_text, uploader_id, uploaded_at
FROM attachments
WHERE site_id=? AND mime_type LIKE 'image/%'
ORDER BY uploaded_at DESC, id DESC
LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, site, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("querying attachments: %w", err)
	}
	defer rows.Close()

	var items []*domain.MediaItem
	for rows.Next() {
		var m domain.MediaItem
		if err := rows.Scan(&m.ID, &m.URL, &m.AltText, &m.UploaderID, &m.Uploaded); err != nil {
			return nil, 0, fmt.Errorf("scanning attachment: %w", err)
		}
		items = append(items, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attachments WHERE site_id=? AND mime_type LIKE 'image/%'`, site,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting attachments: %w", err)
	}
	return items, total, nil
}

func (r *MediaRepository) UpdateAlt(ctx context.Context, site string, attachmentID int64, altText string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE attachments SET alt_text=? WHERE site_id=? AND id=?`, altText, site, attachmentID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Row may exist with the same value; verify before reporting gone.
		var one int
		err := r.db.QueryRowContext(ctx,
			`SELECT 1 FROM attachments WHERE site_id=? AND id=? LIMIT 1`, site, attachmentID,
		).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("attachment %d not found", attachmentID)
		}
		return err
	}
	return nil
}

// ByRelativePath resolves the path after the uploads marker to an
// attachment id. Exact match, the strong variant of the two lookups.
func (r *MediaRepository) ByRelativePath(ctx context.Context, site string, relPath string) (int64, bool, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM attachments WHERE site_id=? AND rel_path=? LIMIT 1`, site, relPath,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// ByBasename is the weak fallback: a suffix match on the stored relative
// path, so renamed or prefixed variants (my-hero.jpg for hero.jpg) still
// resolve. Collides across directories; oldest attachment wins for
// determinism.
func (r *MediaRepository) ByBasename(ctx context.Context, site string, basename string) (int64, bool, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM attachments WHERE site_id=? AND rel_path LIKE ? ORDER BY id ASC LIMIT 1`,
		site, "%"+escapeLikePattern(basename),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}
