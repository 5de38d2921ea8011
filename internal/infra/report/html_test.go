package report

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	domattr "github.com/bryanwahyu/alttext-audit/internal/domain/attribution"
	domain "github.com/bryanwahyu/alttext-audit/internal/domain/audit"
)

type fakeClock struct{ t time.Time }

func (f fakeClock) Now() time.Time { return f.t }

type memStore struct {
	objects map[string][]byte
	removed []string
}

func newMemStore() *memStore { return &memStore{objects: map[string][]byte{}} }

func (m *memStore) Put(_ context.Context, key string, html []byte) (string, error) {
	m.objects[key] = html
	return key, nil
}

func (m *memStore) Remove(_ context.Context, key string) error {
	delete(m.objects, key)
	m.removed = append(m.removed, key)
	return nil
}

func (m *memStore) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys, nil
}

func (m *memStore) URL(key string) string { return "http://store/" + key }

func sampleStats() *domain.Statistics {
	return &domain.Statistics{
		TotalImages:       100,
		MissingAlt:        25,
		HasAlt:            75,
		MissingPercentage: 25,
		HasPercentage:     75,
		BySource: map[domain.ContentType]domain.SourceCounts{
			domain.ContentPost:  {Total: 60, Missing: 20},
			domain.ContentMedia: {Total: 40, Missing: 5},
		},
	}
}

func TestGenerateStoresTimestampedKey(t *testing.T) {
	store := newMemStore()
	r := &Renderer{
		Store: store,
		Clock: fakeClock{t: time.Date(2026, 8, 1, 14, 30, 5, 0, time.UTC)},
	}

	topUsers := []*domattr.UserCount{
		{UserID: 3, DisplayName: "Alice Writer", Role: "author", TotalImages: 20, MissingAlt: 15, MissingPercentage: 75},
	}
	key, err := r.Generate(context.Background(), "site1", sampleStats(), topUsers, domain.ResultPage{
		Rows: []*domain.Result{
			{ImageSource: "https://e/uploads/a.jpg", ContentType: domain.ContentPost, PostType: "post", UserID: 3, ScanDate: time.Now()},
		},
		Total: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if key != "site1/reports/alttext-report-20260801-143005.html" {
		t.Errorf("key: %q", key)
	}

	html := string(store.objects[key])
	for _, want := range []string{"100", "25", "75", "Published Content", "Media Library", "Alice Writer", "https://e/uploads/a.jpg"} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered report missing %q", want)
		}
	}
}

func TestGenerateTruncationRow(t *testing.T) {
	store := newMemStore()
	r := &Renderer{Store: store, Clock: fakeClock{t: time.Now()}}

	key, err := r.Generate(context.Background(), "site1", sampleStats(), nil, domain.ResultPage{
		Rows:  []*domain.Result{{ImageSource: "a.jpg", ScanDate: time.Now()}},
		Total: 501, // 500 beyond the rendered page
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(store.objects[key]), "and 500 more") {
		t.Error("truncation row missing")
	}
}

func TestCleanupOldKeepsRetention(t *testing.T) {
	store := newMemStore()
	clock := fakeClock{t: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)}
	r := &Renderer{Store: store, Clock: clock, Retention: 3}

	// Pre-seed five artifacts; keys sort by timestamp.
	for i := 0; i < 5; i++ {
		key := time.Date(2026, 7, 1+i, 0, 0, 0, 0, time.UTC).UTC().Format("20060102-150405")
		store.objects["site1/reports/alttext-report-"+key+".html"] = []byte("x")
	}

	if err := r.CleanupOld(context.Background(), "site1"); err != nil {
		t.Fatal(err)
	}
	if len(store.objects) != 3 {
		t.Errorf("expected 3 survivors, got %d", len(store.objects))
	}
	// The two oldest are the ones removed.
	for _, rm := range store.removed {
		if !strings.Contains(rm, "20260701") && !strings.Contains(rm, "20260702") {
			t.Errorf("unexpected removal: %s", rm)
		}
	}
}

type fakeSettings struct{ kv map[string]string }

func (f *fakeSettings) Get(_ context.Context, site, key string) (string, error) {
	return f.kv[site+"/"+key], nil
}

func (f *fakeSettings) Set(_ context.Context, site, key, value string) error {
	f.kv[site+"/"+key] = value
	return nil
}

func TestCleanupOldHonorsRetentionSetting(t *testing.T) {
	store := newMemStore()
	r := &Renderer{
		Store:     store,
		Settings:  &fakeSettings{kv: map[string]string{"site1/report_retention_count": "2"}},
		Clock:     fakeClock{t: time.Now()},
		Retention: 4, // the stored setting must win over the configured default
	}

	for i := 0; i < 5; i++ {
		key := time.Date(2026, 7, 1+i, 0, 0, 0, 0, time.UTC).Format("20060102-150405")
		store.objects["site1/reports/alttext-report-"+key+".html"] = []byte("x")
	}

	if err := r.CleanupOld(context.Background(), "site1"); err != nil {
		t.Fatal(err)
	}
	if len(store.objects) != 2 {
		t.Errorf("expected 2 survivors, got %d", len(store.objects))
	}
}

func TestCleanupOldIgnoresBadRetentionSetting(t *testing.T) {
	store := newMemStore()
	r := &Renderer{
		Store:    store,
		Settings: &fakeSettings{kv: map[string]string{"site1/report_retention_count": "0"}},
		Clock:    fakeClock{t: time.Now()},
	}

	for i := 0; i < 3; i++ {
		key := time.Date(2026, 7, 1+i, 0, 0, 0, 0, time.UTC).Format("20060102-150405")
		store.objects["site1/reports/alttext-report-"+key+".html"] = []byte("x")
	}

	if err := r.CleanupOld(context.Background(), "site1"); err != nil {
		t.Fatal(err)
	}
	// Out-of-range value falls back to the default, which keeps all three.
	if len(store.objects) != 3 {
		t.Errorf("expected 3 survivors, got %d", len(store.objects))
	}
}

func TestGenerateNoMissingItems(t *testing.T) {
	store := newMemStore()
	r := &Renderer{Store: store, Clock: fakeClock{t: time.Now()}}

	stats := &domain.Statistics{TotalImages: 10, HasAlt: 10, HasPercentage: 100,
		BySource: map[domain.ContentType]domain.SourceCounts{}}
	key, err := r.Generate(context.Background(), "site1", stats, nil, domain.ResultPage{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(store.objects[key]), "No images are missing alt-text") {
		t.Error("clean report should say so")
	}
}
