package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log"
	"strconv"
	"time"

	"github.com/bryanwahyu/alttext-audit/internal/application"
	domattr "github.com/bryanwahyu/alttext-audit/internal/domain/attribution"
	domain "github.com/bryanwahyu/alttext-audit/internal/domain/audit"
)

// DefaultRetention is how many report artifacts a site keeps.
const DefaultRetention = 20

const retentionKey = "report_retention_count"

// Renderer produces a static HTML snapshot of a completed scan and stores
// it as an artifact. Old artifacts are trimmed after every render; the
// per-site retention setting overrides the configured default.
type Renderer struct {
	Store     domain.ReportStore
	Settings  domain.SettingsStore
	Clock     application.Clock
	Retention int
}

type reportData struct {
	Site        string
	GeneratedAt string
	Stats       *domain.Statistics
	Sources     []sourceRow
	TopUsers    []*domattr.UserCount
	Missing     []*domain.Result
	Truncated   int
}

type sourceRow struct {
	Label   string
	Total   int
	Missing int
}

var sourceLabels = []struct {
	ct    domain.ContentType
	label string
}{
	{domain.ContentPost, "Published Content"},
	{domain.ContentDraft, "Draft Content"},
	{domain.ContentMedia, "Media Library"},
}

// Generate renders the report and returns the stored artifact key. The
// missing page is expected pre-capped by the caller; Truncated reflects
// rows beyond the page.
func (r *Renderer) Generate(ctx context.Context, site string, stats *domain.Statistics, topUsers []*domattr.UserCount, missing domain.ResultPage) (string, error) {
	now := r.Clock.Now()
	data := reportData{
		Site:        site,
		GeneratedAt: now.Format("2006-01-02 15:04:05"),
		Stats:       stats,
		TopUsers:    topUsers,
		Missing:     missing.Rows,
	}
	for _, s := range sourceLabels {
		if c, ok := stats.BySource[s.ct]; ok {
			data.Sources = append(data.Sources, sourceRow{Label: s.label, Total: c.Total, Missing: c.Missing})
		}
	}
	if extra := missing.Total - int64(len(missing.Rows)); extra > 0 {
		data.Truncated = int(extra)
	}

	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering report: %w", err)
	}

	key := fmt.Sprintf("%s/reports/alttext-report-%s.html", site, now.UTC().Format("20060102-150405"))
	if _, err := r.Store.Put(ctx, key, buf.Bytes()); err != nil {
		return "", err
	}

	if err := r.CleanupOld(ctx, site); err != nil {
		log.Printf("site=%s: trimming old reports: %v", site, err)
	}
	return key, nil
}

// CleanupOld removes artifacts past the newest retention count for a site.
func (r *Renderer) CleanupOld(ctx context.Context, site string) error {
	keep := r.retention(ctx, site)
	keys, err := r.Store.List(ctx, site+"/reports/")
	if err != nil {
		return err
	}
	for _, key := range keys[minInt(keep, len(keys)):] {
		if err := r.Store.Remove(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) retention(ctx context.Context, site string) int {
	keep := r.Retention
	if keep <= 0 {
		keep = DefaultRetention
	}
	if r.Settings != nil {
		if v, err := r.Settings.Get(ctx, site, retentionKey); err == nil && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 1 && n <= 200 {
				keep = n
			}
		}
	}
	return keep
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

var reportTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"fmtDate": func(t time.Time) string { return t.Format("2006-01-02 15:04") },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Alt-Text Audit Report - {{.Site}}</title>
<style>
body{font-family:sans-serif;margin:2rem;color:#222}
h1{font-size:1.4rem}
.cards{display:flex;gap:1rem;margin:1rem 0}
.card{border:1px solid #ddd;border-radius:6px;padding:1rem;min-width:10rem}
.card .num{font-size:1.6rem;font-weight:bold}
.missing .num{color:#b00}
table{border-collapse:collapse;width:100%;margin-top:1rem}
th,td{border:1px solid #ddd;padding:.4rem .6rem;text-align:left;font-size:.9rem}
th{background:#f5f5f5}
.more{font-style:italic;color:#666}
</style>
</head>
<body>
<h1>Alt-Text Audit Report &mdash; {{.Site}}</h1>
<p>Generated {{.GeneratedAt}}</p>

<div class="cards">
  <div class="card"><div class="num">{{.Stats.TotalImages}}</div>Total images</div>
  <div class="card missing"><div class="num">{{.Stats.MissingAlt}}</div>Missing alt ({{printf "%.1f" .Stats.MissingPercentage}}%)</div>
  <div class="card"><div class="num">{{.Stats.HasAlt}}</div>With alt ({{printf "%.1f" .Stats.HasPercentage}}%)</div>
</div>

{{if .Sources}}
<h2>By source</h2>
<table>
<tr><th>Source</th><th>Total</th><th>Missing</th></tr>
{{range .Sources}}<tr><td>{{.Label}}</td><td>{{.Total}}</td><td>{{.Missing}}</td></tr>
{{end}}
</table>
{{end}}

{{if .TopUsers}}
<h2>Top users by missing alt-text</h2>
<table>
<tr><th>User</th><th>Role</th><th>Total</th><th>Missing</th><th>Missing %</th></tr>
{{range .TopUsers}}<tr><td>{{.DisplayName}}</td><td>{{.Role}}</td><td>{{.TotalImages}}</td><td>{{.MissingAlt}}</td><td>{{printf "%.1f" .MissingPercentage}}%</td></tr>
{{end}}
</table>
{{end}}

{{if .Missing}}
<h2>Images missing alt-text</h2>
<table>
<tr><th>Image</th><th>Content type</th><th>Post type</th><th>User</th><th>Scanned</th></tr>
{{range .Missing}}<tr><td>{{.ImageSource}}</td><td>{{.ContentType}}</td><td>{{.PostType}}</td><td>{{.UserID}}</td><td>{{fmtDate .ScanDate}}</td></tr>
{{end}}
{{if gt .Truncated 0}}<tr class="more"><td colspan="5">&hellip;and {{.Truncated}} more</td></tr>{{end}}
</table>
{{else}}
<p>No images are missing alt-text. Nice.</p>
{{end}}
</body>
</html>
`))
