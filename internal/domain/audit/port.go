package audit

import (
	"context"
	"time"
)

// ResultRepository port (interface untuk persistence)
type ResultRepository interface {
	BulkInsert(ctx context.Context, site string, rows []*Result) error
	ClearAll(ctx context.Context, site string) error
	Get(ctx context.Context, site string, id ResultID) (*Result, error)
	Query(ctx context.Context, site string, q Query) (ResultPage, error)
	UpdateAlt(ctx context.Context, site string, id ResultID, altText string, when time.Time) error
	Statistics(ctx context.Context, site string) (*Statistics, error)
}

// ContentSource pages through documents of one status,
// newest-modified first. Ordering must be deterministic so batch
// offsets stay stable within a scan generation.
type ContentSource interface {
	Page(ctx context.Context, site string, drafts bool, offset, limit int) ([]*Document, int, error)
	Body(ctx context.Context, site string, id int64) (string, error)
	UpdateBody(ctx context.Context, site string, id int64, body string) error
	// Titles resolves document titles in one batch; missing ids are absent.
	Titles(ctx context.Context, site string, ids []int64) (map[int64]string, error)
}

// MediaSource pages through image attachments, newest-uploaded first.
type MediaSource interface {
	Page(ctx context.Context, site string, offset, limit int) ([]*MediaItem, int, error)
	UpdateAlt(ctx context.Context, site string, attachmentID int64, altText string) error
}

// AttachmentIndex resolves relative storage paths to attachment ids.
type AttachmentIndex interface {
	ByRelativePath(ctx context.Context, site string, relPath string) (int64, bool, error)
	ByBasename(ctx context.Context, site string, basename string) (int64, bool, error)
}

// ReportStore port (interface untuk penyimpanan artefak)
type ReportStore interface {
	Put(ctx context.Context, key string, html []byte) (string, error)
	Remove(ctx context.Context, key string) error
	// List returns object keys under prefix, newest first.
	List(ctx context.Context, prefix string) ([]string, error)
	URL(key string) string
}

// Authorizer is the injected authorization collaborator. The core never
// embeds host-platform permission checks.
type Authorizer interface {
	CanManage(ctx context.Context, site string) bool
	CanUpload(ctx context.Context, site string) bool
	CanEditContent(ctx context.Context, site string, contentID int64) bool
}

// SettingsStore is a small per-site KV for recognized options
// (cron_enabled, cleanup_retention_days, cron_batch_size, rotation cursor).
type SettingsStore interface {
	Get(ctx context.Context, site, key string) (string, error)
	Set(ctx context.Context, site, key, value string) error
}

// TenantRepository lists the site ids known to the service, in a stable order.
type TenantRepository interface {
	List(ctx context.Context) ([]string, error)
}
