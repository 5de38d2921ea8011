package audit

import (
	"time"
)

// ResultID tipe untuk audit rows
type ResultID int64

// ContentType enum
type ContentType string

const (
	ContentPost  ContentType = "post_content"
	ContentDraft ContentType = "draft_content"
	ContentMedia ContentType = "media_library"
)

// ScanType enum
type ScanType string

const (
	ScanContent ScanType = "content"
	ScanDrafts  ScanType = "drafts"
	ScanMedia   ScanType = "media"
	ScanFull    ScanType = "full"
)

// Result is one image occurrence found by a scan. Rows are created in bulk
// during a batch, updated individually only by the fix-it workflow, and
// destroyed wholesale when a new scan generation starts.
type Result struct {
	ID           ResultID    `json:"id"`
	SiteID       string      `json:"site_id"`
	ContentType  ContentType `json:"content_type"`
	ContentID    int64       `json:"content_id"`
	ImageSource  string      `json:"image_source"`
	AttachmentID *int64      `json:"attachment_id,omitempty"`
	HasAlt       bool        `json:"has_alt"`
	AltText      string      `json:"alt_text"`
	UserID       int64       `json:"user_id"`
	PostType     string      `json:"post_type,omitempty"`
	ScanDate     time.Time   `json:"scan_date"`
	LastUpdated  time.Time   `json:"last_updated"`
}

// SourceCounts value object for the per-content-type breakdown
type SourceCounts struct {
	Total   int `json:"total"`
	Missing int `json:"missing"`
}

// Statistics derived from the result store; cached by the application layer.
type Statistics struct {
	TotalImages       int                          `json:"total_images"`
	MissingAlt        int                          `json:"missing_alt"`
	HasAlt            int                          `json:"has_alt"`
	MissingPercentage float64                      `json:"missing_percentage"`
	HasPercentage     float64                      `json:"has_percentage"`
	BySource          map[ContentType]SourceCounts `json:"by_source"`
	LastScanDate      *time.Time                   `json:"last_scan_date,omitempty"`
}

// Query filters and pagination for the result store.
// PerPage == -1 returns everything (export mode).
type Query struct {
	HasAlt      *bool
	UserID      *int64
	ContentType *ContentType
	PostType    string
	Search      string
	Page        int
	PerPage     int
	OrderBy     string
	Order       string
}

// ResultPage is a paginated response with data and metadata
type ResultPage struct {
	Rows       []*Result `json:"rows"`
	Page       int       `json:"page"`
	PerPage    int       `json:"perPage"`
	Total      int64     `json:"totalItems"`
	TotalPages int       `json:"totalPages"`
}

// Document is a content item (post or page) fetched for scanning.
type Document struct {
	ID       int64
	Title    string
	Body     string
	PostType string
	AuthorID int64
	Modified time.Time
}

// MediaItem is a media-library attachment. The attachment carries its own
// alt attribute, no HTML parsing is involved.
type MediaItem struct {
	ID         int64
	URL        string
	AltText    string
	UploaderID int64
	Uploaded   time.Time
}

// Image is a single {src, alt} pair extracted from a document body.
type Image struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// BatchProgress is what one ScanBatch invocation reports back to the driver.
type BatchProgress struct {
	ScanType     ScanType `json:"scan_type"`
	Batch        int      `json:"current_batch"`
	Processed    int      `json:"processed"`
	Total        int      `json:"total"`
	Percentage   int      `json:"percentage"`
	Continue     bool     `json:"continue"`
	ResultsCount int      `json:"results_count"`
	CurrentItem  string   `json:"current_item,omitempty"`
	Message      string   `json:"message"`
}

// AllowedOrderBy is the sort-column allow-list for result queries.
var AllowedOrderBy = map[string]bool{
	"scan_date":    true,
	"user_id":      true,
	"has_alt":      true,
	"content_type": true,
}

// AllowedContentTypes whitelists the content_type filter values.
var AllowedContentTypes = map[ContentType]bool{
	ContentPost:  true,
	ContentDraft: true,
	ContentMedia: true,
}
