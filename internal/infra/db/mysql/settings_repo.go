package mysql

import (
	"context"
	"database/sql"
	"errors"
)

// SettingsRepository is the per-site KV for recognized options. Unknown
// keys read back as empty string so callers can fall back to defaults.
type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) Get(ctx context.Context, site, key string) (string, error) {
	var v string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM audit_settings WHERE site_id=? AND name=? LIMIT 1`, site, key,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

func (r *SettingsRepository) Set(ctx context.Context, site, key, value string) error {
	const q = `
INSERT INTO audit_settings (site_id, name, value)
VALUES (?,?,?)
ON DUPLICATE KEY UPDATE value=VALUES(value)`
	_, err := r.db.ExecContext(ctx, q, site, key, value)
	return err
}

// SiteRepository lists the sites known to the service in a stable order,
// which the rotation cursor depends on.
type SiteRepository struct {
	db *sql.DB
}

func NewSiteRepository(db *sql.DB) *SiteRepository {
	return &SiteRepository{db: db}
}

func (r *SiteRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT site_id FROM sites ORDER BY site_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
