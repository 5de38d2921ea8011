package mysql

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	domain "github.com/bryanwahyu/alttext-audit/internal/domain/audit"
)

var resultCols = []string{
	"id", "site_id", "content_type", "content_id", "image_source", "attachment_id",
	"has_alt", "alt_text", "user_id", "post_type", "scan_date", "last_updated",
}

func newMock(t *testing.T) (*ResultRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return NewResultRepository(db), mock
}

func TestGetNotFound(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery("SELECT .* FROM audit_results WHERE site_id=\\? AND id=\\?").
		WithArgs("site1", domain.ResultID(9)).
		WillReturnRows(sqlmock.NewRows(resultCols))

	_, err := repo.Get(context.Background(), "site1", 9)
	if !errors.Is(err, domain.ErrResultNotFound) {
		t.Errorf("expected ErrResultNotFound, got %v", err)
	}
}

func TestQueryAppliesFiltersAndPagination(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()
	hasAlt := false
	ct := domain.ContentPost

	mock.ExpectQuery("SELECT .* FROM audit_results WHERE site_id=\\? AND has_alt=\\? AND content_type=\\? AND \\(image_source LIKE \\? OR alt_text LIKE \\?\\) ORDER BY user_id ASC, id ASC LIMIT \\? OFFSET \\?").
		WithArgs("site1", false, ct, "%hero\\_img%", "%hero\\_img%", 10, 10).
		WillReturnRows(sqlmock.NewRows(resultCols).
			AddRow(5, "site1", "post_content", 3, "https://e/uploads/hero_img.jpg", nil,
				false, "", 2, "post", now, now))

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM audit_results WHERE site_id=\\? AND has_alt=\\? AND content_type=\\? AND \\(image_source LIKE \\? OR alt_text LIKE \\?\\)").
		WithArgs("site1", false, ct, "%hero\\_img%", "%hero\\_img%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	page, err := repo.Query(context.Background(), "site1", domain.Query{
		HasAlt:      &hasAlt,
		ContentType: &ct,
		Search:      "hero_img", // underscore must be LIKE-escaped
		Page:        2,
		PerPage:     10,
		OrderBy:     "user_id",
		Order:       "asc",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Rows) != 1 || page.Total != 11 || page.TotalPages != 2 || page.Page != 2 {
		t.Errorf("page: rows=%d total=%d pages=%d page=%d", len(page.Rows), page.Total, page.TotalPages, page.Page)
	}
	r := page.Rows[0]
	if r.AttachmentID != nil {
		t.Errorf("NULL attachment_id should map to nil, got %v", r.AttachmentID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestQueryRejectsUnknownSortColumn(t *testing.T) {
	repo, _ := newMock(t)
	_, err := repo.Query(context.Background(), "site1", domain.Query{OrderBy: "alt_text; DROP TABLE"})
	if err == nil {
		t.Fatal("sort column outside the allow-list must be rejected")
	}
}

func TestQueryExportModeNoLimit(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery("SELECT .* FROM audit_results WHERE site_id=\\? ORDER BY scan_date DESC, id ASC$").
		WithArgs("site1").
		WillReturnRows(sqlmock.NewRows(resultCols))
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("site1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	page, err := repo.Query(context.Background(), "site1", domain.Query{PerPage: -1})
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalPages != 1 {
		t.Errorf("export mode is a single page, got %d", page.TotalPages)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestStatisticsAggregation(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery("SELECT content_type,").
		WithArgs("site1").
		WillReturnRows(sqlmock.NewRows([]string{"content_type", "total", "missing"}).
			AddRow("post_content", 60, 20).
			AddRow("media_library", 40, 5))

	stats, err := repo.Statistics(context.Background(), "site1")
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalImages != 100 || stats.MissingAlt != 25 || stats.HasAlt != 75 {
		t.Errorf("totals: %+v", stats)
	}
	if stats.MissingPercentage != 25.0 || stats.HasPercentage != 75.0 {
		t.Errorf("percentages: %v / %v", stats.MissingPercentage, stats.HasPercentage)
	}
	if stats.BySource[domain.ContentMedia].Missing != 5 {
		t.Errorf("by source: %+v", stats.BySource)
	}
}

func TestUserCountsOrderingAndHasAlt(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery("SELECT user_id,").
		WithArgs("site1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "total", "missing"}).
			AddRow(3, 20, 15).
			AddRow(1, 8, 2))

	counts, err := repo.UserCounts(context.Background(), "site1")
	if err != nil {
		t.Fatal(err)
	}
	if len(counts) != 2 || counts[0].UserID != 3 {
		t.Errorf("counts: %+v", counts)
	}
	if counts[0].HasAlt != 5 || counts[1].HasAlt != 6 {
		t.Errorf("has_alt must be derived from total-missing: %+v", counts)
	}
}

func TestBulkInsertBatch(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_results")).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.BulkInsert(context.Background(), "site1", []*domain.Result{
		{ContentType: domain.ContentPost, ContentID: 1, ImageSource: "a.jpg", ScanDate: now, LastUpdated: now, PostType: "post"},
		{ContentType: domain.ContentMedia, ContentID: 2, ImageSource: "b.jpg", ScanDate: now, LastUpdated: now},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestBulkInsertEmptyIsNoop(t *testing.T) {
	repo, mock := newMock(t)
	if err := repo.BulkInsert(context.Background(), "site1", nil); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUpdateAltDerivesHasAlt(t *testing.T) {
	repo, mock := newMock(t)
	when := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE audit_results SET alt_text=?, has_alt=?, last_updated=? WHERE site_id=? AND id=?")).
		WithArgs("described", true, when, "site1", domain.ResultID(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateAlt(context.Background(), "site1", 7, "described", when); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
