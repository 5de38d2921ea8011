package audit

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	domattr "github.com/bryanwahyu/alttext-audit/internal/domain/attribution"
	domain "github.com/bryanwahyu/alttext-audit/internal/domain/audit"
)

// utf8BOM makes spreadsheet tools pick the right encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var csvHeader = []string{"Image Source", "Found In", "Post Type", "Content Type", "User", "Scan Date"}

// Exporter streams the missing-alt rows of a site as CSV. Rows are written
// as they are assembled so large exports never buffer fully in memory.
type Exporter struct {
	Results domain.ResultRepository
	Content domain.ContentSource
	Users   domattr.Directory
}

// WriteCSV writes a UTF-8 BOM, the header, then one row per missing-alt
// result matching the filters in q. Pagination in q is ignored; an export
// always covers the full filtered set.
func (e *Exporter) WriteCSV(ctx context.Context, w io.Writer, site string, q domain.Query) error {
	hasAlt := false
	q.HasAlt = &hasAlt
	q.Page = 1
	q.PerPage = -1 // all rows
	if q.OrderBy == "" {
		q.OrderBy = "scan_date"
		q.Order = "DESC"
	}

	page, err := e.Results.Query(ctx, site, q)
	if err != nil {
		return fmt.Errorf("querying rows for export: %w", err)
	}

	titles, users, err := e.lookups(ctx, site, page.Rows)
	if err != nil {
		return err
	}

	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, r := range page.Rows {
		foundIn := "Media Library"
		postType := "attachment"
		if r.ContentType != domain.ContentMedia {
			foundIn = titles[r.ContentID]
			if foundIn == "" {
				foundIn = fmt.Sprintf("(deleted content #%d)", r.ContentID)
			}
			postType = r.PostType
		}

		userName := fmt.Sprintf("Deleted User (ID: %d)", r.UserID)
		if info, ok := users[r.UserID]; ok {
			userName = info.DisplayName
		}

		row := []string{
			escapeCell(r.ImageSource),
			escapeCell(foundIn),
			escapeCell(postType),
			escapeCell(string(r.ContentType)),
			escapeCell(userName),
			r.ScanDate.Format("2006-01-02 15:04:05"),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func (e *Exporter) lookups(ctx context.Context, site string, rows []*domain.Result) (map[int64]string, map[int64]domattr.UserInfo, error) {
	contentIDs := make([]int64, 0, len(rows))
	userIDs := make([]int64, 0, len(rows))
	seenContent := make(map[int64]bool)
	seenUser := make(map[int64]bool)
	for _, r := range rows {
		if r.ContentType != domain.ContentMedia && !seenContent[r.ContentID] {
			seenContent[r.ContentID] = true
			contentIDs = append(contentIDs, r.ContentID)
		}
		if !seenUser[r.UserID] {
			seenUser[r.UserID] = true
			userIDs = append(userIDs, r.UserID)
		}
	}

	titles := map[int64]string{}
	if e.Content != nil && len(contentIDs) > 0 {
		var err error
		if titles, err = e.Content.Titles(ctx, site, contentIDs); err != nil {
			return nil, nil, fmt.Errorf("resolving document titles: %w", err)
		}
	}
	users := map[int64]domattr.UserInfo{}
	if e.Users != nil && len(userIDs) > 0 {
		var err error
		if users, err = e.Users.BatchUsers(ctx, site, userIDs); err != nil {
			return nil, nil, fmt.Errorf("resolving user names: %w", err)
		}
	}
	return titles, users, nil
}

// escapeCell neutralises spreadsheet formula injection: any cell starting
// with a formula trigger character gets a literal apostrophe prefix.
func escapeCell(v string) string {
	if v == "" {
		return v
	}
	if strings.ContainsAny(v[:1], "=+-@\t\r") {
		return "'" + v
	}
	return v
}
