package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bryanwahyu/alttext-audit/internal/application"
	appai "github.com/bryanwahyu/alttext-audit/internal/application/ai"
	appattr "github.com/bryanwahyu/alttext-audit/internal/application/attribution"
	appaudit "github.com/bryanwahyu/alttext-audit/internal/application/audit"
	apphistory "github.com/bryanwahyu/alttext-audit/internal/application/history"
	"github.com/bryanwahyu/alttext-audit/internal/config"
	domain "github.com/bryanwahyu/alttext-audit/internal/domain/audit"
	openaiClient "github.com/bryanwahyu/alttext-audit/internal/infra/ai/openai"
	cronsched "github.com/bryanwahyu/alttext-audit/internal/infra/cron"
	mysqlp "github.com/bryanwahyu/alttext-audit/internal/infra/db/mysql"
	postgresp "github.com/bryanwahyu/alttext-audit/internal/infra/db/postgres"
	"github.com/bryanwahyu/alttext-audit/internal/infra/httpserver"
	"github.com/bryanwahyu/alttext-audit/internal/infra/report"
	minioStore "github.com/bryanwahyu/alttext-audit/internal/infra/storage"
	"github.com/bryanwahyu/alttext-audit/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	// connect DB (mysql default, postgres supported for the result store)
	db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
	if err != nil {
		log.Fatalf("mysql connect error: %v", err)
	}
	defer db.Close()

	if err := mysqlp.Migrate(ctx, db); err != nil {
		log.Fatalf("migrate error: %v", err)
	}

	// init repos
	var results domain.ResultRepository = mysqlp.NewResultRepository(db)
	if cfg.Database.Driver == "postgres" {
		pgdb, err := postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatalf("postgres connect error: %v", err)
		}
		defer pgdb.Close()
		results = postgresp.NewResultRepository(pgdb)
	}
	mysqlResults := mysqlp.NewResultRepository(db)
	contentRepo := mysqlp.NewContentRepository(db)
	mediaRepo := mysqlp.NewMediaRepository(db)
	userRepo := mysqlp.NewUserRepository(db)
	historyRepo := mysqlp.NewHistoryRepository(db)
	settingsRepo := mysqlp.NewSettingsRepository(db)
	siteRepo := mysqlp.NewSiteRepository(db)
	authz := mysqlp.NewAuthzRepository(db, middleware.GetUserFromContext)

	// init minio
	store, err := minioStore.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
	if err != nil {
		log.Fatalf("minio init error: %v", err)
	}

	clock := application.SystemClock{}

	renderer := &report.Renderer{
		Store:     store,
		Settings:  settingsRepo,
		Clock:     clock,
		Retention: cfg.Audit.ReportRetentionCount,
	}

	histSvc := &apphistory.Service{
		Repo:                 historyRepo,
		Reports:              store,
		Settings:             settingsRepo,
		Clock:                clock,
		DefaultRetentionDays: cfg.Audit.CleanupRetentionDays,
	}

	attrSvc := &appattr.Service{
		Source:    mysqlResults,
		Directory: userRepo,
		Clock:     clock,
	}

	auditSvc := &appaudit.Service{
		Results:     results,
		Content:     contentRepo,
		Media:       mediaRepo,
		Index:       mediaRepo,
		Settings:    settingsRepo,
		Authorizer:  authz,
		Reports:     renderer,
		History:     histSvc,
		Attribution: attrSvc,
		Progress:    appaudit.NewTracker(),
		Clock:       clock,
		BatchSize:   cfg.Audit.BatchSize,
	}

	exporter := &appaudit.Exporter{
		Results: results,
		Content: contentRepo,
		Users:   userRepo,
	}

	var aiSvc *appai.Service
	if cfg.OpenAI.APIKey != "" {
		aiSvc = &appai.Service{Client: openaiClient.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)}
	} else {
		aiSvc = &appai.Service{}
	}

	// cron rotation over all sites
	if cfg.Cron.Enabled {
		sched := &cronsched.Scheduler{
			Audit:    auditSvc,
			Sites:    siteRepo,
			Settings: settingsRepo,
			Spec:     cfg.Cron.Spec,
			PerTick:  cfg.Cron.BatchSize,
		}
		if err := sched.Start(); err != nil {
			log.Fatalf("cron start error: %v", err)
		}
		defer sched.Stop()
	}

	// init router
	api := httpserver.NewRouter(httpserver.Deps{
		Audit:    auditSvc,
		Attr:     attrSvc,
		History:  histSvc,
		AI:       aiSvc,
		Exporter: exporter,
		Settings: settingsRepo,
		Authz:    authz,
		Health: map[string]middleware.HealthChecker{
			"database": &middleware.DatabaseHealthChecker{DB: db},
			"storage":  &middleware.StorageHealthChecker{List: store.List},
		},
	})

	mux := chi.NewRouter()
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(middleware.UserFromHeader)
	if len(cfg.APIKeys) > 0 {
		keys := make(map[string]string, len(cfg.APIKeys))
		for site, key := range cfg.APIKeys {
			keys[site] = key
		}
		mux.Use(middleware.APIKeyAuth(keys))
		mux.Use(middleware.RequireSiteMatch(siteFromPath))
	}
	mux.Mount("/", api)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // exports can be slow
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// siteFromPath extracts the {site} segment of /v1/{site}/... paths before
// routing happens, for the auth middleware.
func siteFromPath(r *http.Request) string {
	p := strings.TrimPrefix(r.URL.Path, "/v1/")
	if p == r.URL.Path {
		return ""
	}
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return p
}
