package mysql

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMediaMock(t *testing.T) (*MediaRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return NewMediaRepository(db), mock
}

func TestByBasenameSuffixMatch(t *testing.T) {
	repo, mock := newMediaMock(t)

	// Suffix LIKE so prefixed variants and date-folder paths still resolve;
	// underscore must be escaped out of its wildcard meaning.
	mock.ExpectQuery("SELECT id FROM attachments WHERE site_id=\\? AND rel_path LIKE \\? ORDER BY id ASC LIMIT 1").
		WithArgs("site1", "%hero\\_img.jpg").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	id, ok, err := repo.ByBasename(context.Background(), "site1", "hero_img.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || id != 7 {
		t.Errorf("got id=%d ok=%v", id, ok)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestByBasenameNoMatch(t *testing.T) {
	repo, mock := newMediaMock(t)

	mock.ExpectQuery("SELECT id FROM attachments").
		WithArgs("site1", "%gone.jpg").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, ok, err := repo.ByBasename(context.Background(), "site1", "gone.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("no rows means no match, not an error")
	}
}
