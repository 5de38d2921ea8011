package mysql

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate creates the schema when it does not exist yet. Statements are
// idempotent so startup can always run this.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS audit_results (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			site_id VARCHAR(64) NOT NULL,
			content_type VARCHAR(32) NOT NULL,
			content_id BIGINT NOT NULL,
			image_source TEXT NOT NULL,
			attachment_id BIGINT NULL,
			has_alt TINYINT(1) NOT NULL DEFAULT 0,
			alt_text VARCHAR(255) NOT NULL DEFAULT '',
			user_id BIGINT NOT NULL DEFAULT 0,
			post_type VARCHAR(32) NOT NULL DEFAULT '-',
			scan_date DATETIME NOT NULL,
			last_updated DATETIME NOT NULL,
			KEY idx_results_site (site_id),
			KEY idx_results_site_alt (site_id, has_alt),
			KEY idx_results_site_user (site_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS scan_records (
			id VARCHAR(36) PRIMARY KEY,
			site_id VARCHAR(64) NOT NULL,
			scan_type VARCHAR(16) NOT NULL,
			triggered_by VARCHAR(16) NOT NULL,
			user_id BIGINT NOT NULL DEFAULT 0,
			scan_date DATETIME NOT NULL,
			total_images INT NOT NULL DEFAULT 0,
			missing_alt INT NOT NULL DEFAULT 0,
			has_alt INT NOT NULL DEFAULT 0,
			report_filename VARCHAR(255) NOT NULL DEFAULT '',
			report_url VARCHAR(512) NOT NULL DEFAULT '',
			KEY idx_records_site_date (site_id, scan_date)
		)`,
		`CREATE TABLE IF NOT EXISTS audit_settings (
			site_id VARCHAR(64) NOT NULL,
			name VARCHAR(64) NOT NULL,
			value VARCHAR(255) NOT NULL,
			PRIMARY KEY (site_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS sites (
			site_id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			site_id VARCHAR(64) NOT NULL,
			title VARCHAR(255) NOT NULL DEFAULT '',
			body MEDIUMTEXT NOT NULL,
			post_type VARCHAR(32) NOT NULL DEFAULT 'post',
			status VARCHAR(16) NOT NULL DEFAULT 'publish',
			author_id BIGINT NOT NULL DEFAULT 0,
			modified_at DATETIME NOT NULL,
			KEY idx_documents_site_status (site_id, status, modified_at)
		)`,
		`CREATE TABLE IF NOT EXISTS attachments (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			site_id VARCHAR(64) NOT NULL,
			url VARCHAR(512) NOT NULL,
			rel_path VARCHAR(512) NOT NULL DEFAULT '',
			basename VARCHAR(255) NOT NULL DEFAULT '',
			mime_type VARCHAR(64) NOT NULL DEFAULT '',
			alt_text VARCHAR(255) NOT NULL DEFAULT '',
			uploader_id BIGINT NOT NULL DEFAULT 0,
			uploaded_at DATETIME NOT NULL,
			KEY idx_attachments_site (site_id, uploaded_at),
			KEY idx_attachments_relpath (site_id, rel_path),
			KEY idx_attachments_basename (site_id, basename)
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY,
			site_id VARCHAR(64) NOT NULL,
			display_name VARCHAR(255) NOT NULL DEFAULT '',
			login VARCHAR(64) NOT NULL DEFAULT '',
			email VARCHAR(255) NOT NULL DEFAULT '',
			role VARCHAR(32) NOT NULL DEFAULT '',
			KEY idx_users_site (site_id)
		)`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("running migration: %w", err)
		}
	}
	return nil
}
