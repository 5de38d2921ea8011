package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appai "github.com/bryanwahyu/alttext-audit/internal/application/ai"
	appattr "github.com/bryanwahyu/alttext-audit/internal/application/attribution"
	appaudit "github.com/bryanwahyu/alttext-audit/internal/application/audit"
	apphistory "github.com/bryanwahyu/alttext-audit/internal/application/history"
	domai "github.com/bryanwahyu/alttext-audit/internal/domain/ai"
	domain "github.com/bryanwahyu/alttext-audit/internal/domain/audit"
	domhistory "github.com/bryanwahyu/alttext-audit/internal/domain/history"
	cronsched "github.com/bryanwahyu/alttext-audit/internal/infra/cron"
	"github.com/bryanwahyu/alttext-audit/internal/middleware"
)

type Router struct {
	auditSvc *appaudit.Service
	attrSvc  *appattr.Service
	histSvc  *apphistory.Service
	aiSvc    *appai.Service
	exporter *appaudit.Exporter
	settings domain.SettingsStore
	authz    domain.Authorizer
}

// Deps bundles everything the router needs; keeps NewRouter readable.
type Deps struct {
	Audit    *appaudit.Service
	Attr     *appattr.Service
	History  *apphistory.Service
	AI       *appai.Service
	Exporter *appaudit.Exporter
	Settings domain.SettingsStore
	Authz    domain.Authorizer
	Health   map[string]middleware.HealthChecker
}

func NewRouter(d Deps) http.Handler {
	r := &Router{
		auditSvc: d.Audit,
		attrSvc:  d.Attr,
		histSvc:  d.History,
		aiSvc:    d.AI,
		exporter: d.Exporter,
		settings: d.Settings,
		authz:    d.Authz,
	}
	mux := chi.NewRouter()

	// Dashboards are served from another origin than the API.
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	mux.Get("/health", middleware.HealthHandler(d.Health))
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1/{site}", func(rt chi.Router) {
		rt.Post("/scan", r.wrap(r.handleScanBatch))
		rt.Post("/scan/cancel", r.wrap(r.handleScanCancel))
		rt.Post("/scan/full", r.wrap(r.handleScanFull))
		rt.Get("/scan/progress", r.wrap(r.handleScanProgress))

		rt.Get("/stats", r.wrap(r.handleStats))
		rt.Get("/results", r.wrap(r.handleResults))
		rt.Put("/results/{id}", r.wrap(r.handleUpdateResult))

		// Exports walk the full result set; keep them on a short leash.
		rt.With(middleware.RateLimitMiddleware(5, 1)).
			Get("/export.csv", r.wrap(r.handleExport))

		rt.Get("/users", r.wrap(r.handleUsers))
		rt.Get("/users/summary", r.wrap(r.handleUsersSummary))
		rt.Get("/users/{id}", r.wrap(r.handleUserDetail))

		rt.Get("/history", r.wrap(r.handleHistoryList))
		rt.Delete("/history", r.wrap(r.handleHistoryDelete))

		rt.Get("/settings", r.wrap(r.handleSettingsGet))
		rt.Put("/settings", r.wrap(r.handleSettingsPut))

		rt.Delete("/data", r.wrap(r.handleClearData))

		rt.Post("/suggest-alt", r.wrap(r.handleSuggestAlt))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// errBadRequest tags synchronous request-parse rejections (malformed
// filters, unknown sort columns) so wrap answers 400, not 500.
var errBadRequest = errors.New("bad request")

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		switch {
		case errors.Is(err, domain.ErrScanCancelled):
			writeJSON(w, http.StatusOK, map[string]any{
				"cancelled": true,
				"message":   err.Error(),
			})
		case errors.Is(err, domain.ErrScanInProgress):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, domain.ErrInvalidScanType),
			errors.Is(err, domain.ErrAltTextTooLong),
			errors.Is(err, domai.ErrInvalidImage),
			errors.Is(err, errBadRequest):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, domain.ErrPermissionDenied):
			http.Error(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, domain.ErrResultNotFound), errors.Is(err, sql.ErrNoRows):
			http.Error(w, "not found", http.StatusNotFound)
		case errors.Is(err, domai.ErrQuotaExceeded):
			http.Error(w, "ai quota exceeded", http.StatusTooManyRequests)
		case errors.Is(err, domai.ErrDisabled):
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// POST /v1/{site}/scan
// Body: {"scan_type": "content|drafts|media", "batch": 0}
// The client drives the loop: re-POST with batch+1 until continue is false.
func (r *Router) handleScanBatch(w http.ResponseWriter, req *http.Request) error {
	site := chi.URLParam(req, "site")
	var body struct {
		ScanType string `json:"scan_type"`
		Batch    int    `json:"batch"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return err
	}
	if err := middleware.ValidateScanType(body.ScanType); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidScanType, body.ScanType)
	}

	userID := middleware.GetUserFromContext(req.Context())
	bp, err := r.auditSvc.ScanBatch(req.Context(), site, domain.ScanType(body.ScanType), body.Batch, userID)
	if err != nil {
		middleware.IncrementScanBatchesFailed()
		return err
	}
	middleware.IncrementScanBatches()
	middleware.AddResultsWritten(bp.ResultsCount)

	writeJSON(w, http.StatusOK, bp)
	return nil
}

// POST /v1/{site}/scan/cancel
func (r *Router) handleScanCancel(w http.ResponseWriter, req *http.Request) error {
	site := chi.URLParam(req, "site")
	r.auditSvc.CancelScan(site)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "cancellation requested",
		"message": "the scan stops at the next batch boundary",
	})
	return nil
}

// POST /v1/{site}/scan/full
// Runs the whole content+drafts+media sequence in the background and
// returns immediately, same contract as a cron-triggered run.
func (r *Router) handleScanFull(w http.ResponseWriter, req *http.Request) error {
	site := chi.URLParam(req, "site")
	userID := middleware.GetUserFromContext(req.Context())

	go func() {
		if err := r.auditSvc.RunFull(context.Background(), site, domhistory.TriggerManual, userID); err != nil {
			log.Printf("background full scan site=%s: %v", site, err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":   "queued",
		"site":     site,
		"message":  "full scan started in background",
		"queuedAt": time.Now(),
	})
	return nil
}

// GET /v1/{site}/scan/progress
func (r *Router) handleScanProgress(w http.ResponseWriter, req *http.Request) error {
	site := chi.URLParam(req, "site")
	p, ok := r.auditSvc.ScanProgress(site)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"active": false})
		return nil
	}
	writeJSON(w, http.StatusOK, map[string]any{"active": true, "progress": p})
	return nil
}

// GET /v1/{site}/stats?refresh=1
func (r *Router) handleStats(w http.ResponseWriter, req *http.Request) error {
	site := chi.URLParam(req, "site")
	refresh := req.URL.Query().Get("refresh") == "1"

	stats, err := r.auditSvc.GetStatistics(req.Context(), site, refresh)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, stats)
	return nil
}

// GET /v1/{site}/results?has_alt=&user_id=&content_type=&post_type=&search=&page=&per_page=&orderby=&order=
func (r *Router) handleResults(w http.ResponseWriter, req *http.Request) error {
	site := chi.URLParam(req, "site")
	q, err := parseResultQuery(req)
	if err != nil {
		return err
	}

	page, err := r.auditSvc.GetResults(req.Context(), site, q)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, page)
	return nil
}

// PUT /v1/{site}/results/{id}
// Body: {"alt_text": "..."}
func (r *Router) handleUpdateResult(w http.ResponseWriter, req *http.Request) error {
	site := chi.URLParam(req, "site")
	id, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
	if err != nil {
		return domain.ErrResultNotFound
	}

	var body struct {
		AltText string `json:"alt_text"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return err
	}
	altText := middleware.SanitizeString(body.AltText)
	if err := middleware.ValidateAltText(altText); err != nil {
		return domain.ErrAltTextTooLong
	}

	userID := middleware.GetUserFromContext(req.Context())
	out, err := r.auditSvc.UpdateResult(req.Context(), site, domain.ResultID(id), altText, userID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

// GET /v1/{site}/export.csv
func (r *Router) handleExport(w http.ResponseWriter, req *http.Request) error {
	site := chi.URLParam(req, "site")
	q, err := parseResultQuery(req)
	if err != nil {
		return err
	}

	middleware.IncrementExports()
	filename := fmt.Sprintf("alt-text-audit-%s-%s.csv", site, time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	return r.exporter.WriteCSV(req.Context(), w, site, q)
}

// GET /v1/{site}/users?limit=10
func (r *Router) handleUsers(w http.ResponseWriter, req *http.Request) error {
	site := chi.URLParam(req, "site")
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	var counts any
	var err error
	if limit > 0 {
		counts, err = r.attrSvc.TopOffenders(req.Context(), site, limit)
	} else {
		counts, err = r.attrSvc.GetUserCounts(req.Context(), site, false)
	}
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, counts)
	return nil
}

// GET /v1/{site}/users/summary
func (r *Router) handleUsersSummary(w http.ResponseWriter, req *http.Request) error {
	site := chi.URLParam(req, "site")
	s, err := r.attrSvc.Summary(req.Context(), site)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, s)
	return nil
}

// GET /v1/{site}/users/{id}
func (r *Router) handleUserDetail(w http.ResponseWriter, req *http.Request) error {
	site := chi.URLParam(req, "site")
	id, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
	if err != nil {
		return sql.ErrNoRows
	}
	detail, err := r.attrSvc.UserDetail(req.Context(), site, id)
	if err != nil {
		return err
	}
	if detail == nil {
		return sql.ErrNoRows
	}
	writeJSON(w, http.StatusOK, detail)
	return nil
}

// GET /v1/{site}/history
func (r *Router) handleHistoryList(w http.ResponseWriter, req *http.Request) error {
	site := chi.URLParam(req, "site")
	recs, err := r.histSvc.List(req.Context(), site)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, recs)
	return nil
}

// DELETE /v1/{site}/history
// Body: {"ids": ["..."]}; empty ids clears everything.
func (r *Router) handleHistoryDelete(w http.ResponseWriter, req *http.Request) error {
	site := chi.URLParam(req, "site")
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return err
	}

	if len(body.IDs) == 0 {
		if err := r.histSvc.ClearAll(req.Context(), site); err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, map[string]any{"cleared": true})
		return nil
	}

	ids := make([]domhistory.RecordID, 0, len(body.IDs))
	for _, id := range body.IDs {
		ids = append(ids, domhistory.RecordID(id))
	}
	n, err := r.histSvc.DeleteRecords(req.Context(), site, ids)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": n})
	return nil
}

// recognized per-site settings and their validators
var settingValidators = map[string]func(string) error{
	"cron_enabled": func(v string) error {
		if v != "true" && v != "false" {
			return fmt.Errorf("invalid value: %s (allowed: true, false)", v)
		}
		return nil
	},
	"cleanup_retention_days": middleware.ValidateCleanupDays,
	"cron_batch_size": func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid number: %s", v)
		}
		return middleware.ValidateCronBatchSize(n)
	},
	"report_retention_count": func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid number: %s", v)
		}
		return middleware.ValidateReportRetention(n)
	},
}

// settingScope returns the KV scope a setting lives in. The rotation batch
// size is service-wide (the scheduler walks all sites), so reads and writes
// go to the scheduler's scope; everything else is per site.
func settingScope(site, key string) string {
	if key == "cron_batch_size" {
		return cronsched.SettingsScope
	}
	return site
}

// GET /v1/{site}/settings
func (r *Router) handleSettingsGet(w http.ResponseWriter, req *http.Request) error {
	site := chi.URLParam(req, "site")
	out := map[string]string{}
	for key := range settingValidators {
		v, err := r.settings.Get(req.Context(), settingScope(site, key), key)
		if err != nil {
			return err
		}
		if v != "" {
			out[key] = v
		}
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

// PUT /v1/{site}/settings
// Body: {"cron_enabled": "false", "cleanup_retention_days": "90", ...}
// Unknown keys are rejected, recognized ones validated before any write.
func (r *Router) handleSettingsPut(w http.ResponseWriter, req *http.Request) error {
	site := chi.URLParam(req, "site")
	if r.authz != nil && !r.authz.CanManage(req.Context(), site) {
		return domain.ErrPermissionDenied
	}
	var body map[string]string
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return err
	}

	for key, value := range body {
		validate, ok := settingValidators[key]
		if !ok {
			http.Error(w, "unknown setting: "+key, http.StatusBadRequest)
			return nil
		}
		if err := validate(value); err != nil {
			http.Error(w, key+": "+err.Error(), http.StatusBadRequest)
			return nil
		}
	}
	for key, value := range body {
		if err := r.settings.Set(req.Context(), settingScope(site, key), key, value); err != nil {
			return err
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"saved": len(body)})
	return nil
}

// DELETE /v1/{site}/data
func (r *Router) handleClearData(w http.ResponseWriter, req *http.Request) error {
	site := chi.URLParam(req, "site")
	if r.authz != nil && !r.authz.CanManage(req.Context(), site) {
		return domain.ErrPermissionDenied
	}
	if err := r.auditSvc.ClearAllData(req.Context(), site); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"cleared": true})
	return nil
}

// POST /v1/{site}/suggest-alt
// Body: {"image_url": "https://..."}
func (r *Router) handleSuggestAlt(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		ImageURL string `json:"image_url"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return err
	}
	if err := middleware.ValidateImageURL(body.ImageURL); err != nil {
		return fmt.Errorf("%w: %v", domai.ErrInvalidImage, err)
	}

	suggestion, err := r.aiSvc.SuggestAlt(req.Context(), body.ImageURL)
	if err != nil {
		return err
	}
	middleware.IncrementSuggestions()
	writeJSON(w, http.StatusOK, map[string]string{"alt_text": suggestion})
	return nil
}

func parseResultQuery(req *http.Request) (domain.Query, error) {
	qs := req.URL.Query()
	var q domain.Query

	if v := qs.Get("has_alt"); v != "" {
		b := v == "1" || v == "true"
		q.HasAlt = &b
	}
	if v := qs.Get("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return q, fmt.Errorf("%w: invalid user_id: %s", errBadRequest, v)
		}
		q.UserID = &id
	}
	if v := qs.Get("content_type"); v != "" {
		ct := domain.ContentType(v)
		if !domain.AllowedContentTypes[ct] {
			return q, fmt.Errorf("%w: invalid content_type: %s", errBadRequest, v)
		}
		q.ContentType = &ct
	}
	q.PostType = middleware.SanitizeString(qs.Get("post_type"))
	q.Search = middleware.SanitizeString(qs.Get("search"))

	q.Page, _ = strconv.Atoi(qs.Get("page"))
	perPage, _ := strconv.Atoi(qs.Get("per_page"))
	q.PerPage = middleware.ValidatePerPage(perPage)

	q.OrderBy = qs.Get("orderby")
	if err := middleware.ValidateSortColumn(q.OrderBy); err != nil {
		return q, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	q.Order = qs.Get("order")
	return q, nil
}
