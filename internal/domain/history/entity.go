package history

import "time"

// RecordID tipe untuk scan records
type RecordID string

// Trigger enum
type Trigger string

const (
	TriggerManual Trigger = "manual"
	TriggerCron   Trigger = "cron"
)

// StatsSnapshot is the final statistics frozen into a scan record.
type StatsSnapshot struct {
	Total   int `json:"total"`
	Missing int `json:"missing"`
	HasAlt  int `json:"has_alt"`
}

// Record is one completed scan run. History is advisory, capped at
// MaxRecords and additionally subject to an age cutoff.
type Record struct {
	ID             RecordID      `json:"id"`
	SiteID         string        `json:"site_id"`
	ScanType       string        `json:"scan_type"`
	Trigger        Trigger       `json:"trigger"`
	UserID         int64         `json:"user_id"` // 0 for cron/system
	Date           time.Time     `json:"date"`
	Stats          StatsSnapshot `json:"stats"`
	ReportFilename string        `json:"report_filename,omitempty"`
	ReportURL      string        `json:"report_url,omitempty"`
}

// MaxRecords is the hard cap on retained scan records per site.
const MaxRecords = 50
