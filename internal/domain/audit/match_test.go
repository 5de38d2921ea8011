package audit

import (
	"context"
	"testing"
)

// fakeIndex maps relative paths and basenames to ids.
type fakeIndex struct {
	byRel  map[string]int64
	byBase map[string]int64
}

func (f *fakeIndex) ByRelativePath(_ context.Context, _ string, rel string) (int64, bool, error) {
	id, ok := f.byRel[rel]
	return id, ok, nil
}

func (f *fakeIndex) ByBasename(_ context.Context, _ string, base string) (int64, bool, error) {
	id, ok := f.byBase[base]
	return id, ok, nil
}

func TestMatchAttachmentPrefersRelativePath(t *testing.T) {
	// Two files named hero.jpg in different folders; the exact path must win
	// over the colliding basename.
	idx := &fakeIndex{
		byRel:  map[string]int64{"2024/01/hero.jpg": 11, "2025/03/hero.jpg": 22},
		byBase: map[string]int64{"hero.jpg": 22},
	}

	id, err := MatchAttachment(context.Background(), idx, "site1", "https://example.com/wp-content/uploads/2024/01/hero.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if id == nil || *id != 11 {
		t.Errorf("expected id 11 from relative path, got %v", id)
	}
}

func TestMatchAttachmentBasenameFallback(t *testing.T) {
	idx := &fakeIndex{
		byRel:  map[string]int64{},
		byBase: map[string]int64{"photo.png": 7},
	}

	// No uploads marker in the path at all.
	id, err := MatchAttachment(context.Background(), idx, "site1", "https://cdn.example.com/assets/photo.png")
	if err != nil {
		t.Fatal(err)
	}
	if id == nil || *id != 7 {
		t.Errorf("expected id 7 from basename fallback, got %v", id)
	}
}

func TestMatchAttachmentUnmatched(t *testing.T) {
	idx := &fakeIndex{byRel: map[string]int64{}, byBase: map[string]int64{}}

	id, err := MatchAttachment(context.Background(), idx, "site1", "https://elsewhere.example/img/external.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if id != nil {
		t.Errorf("unmatched source must resolve to nil, got %d", *id)
	}
}

func TestMatchAttachmentEmptySource(t *testing.T) {
	idx := &fakeIndex{byRel: map[string]int64{"x": 1}, byBase: map[string]int64{"x": 1}}
	id, err := MatchAttachment(context.Background(), idx, "site1", "")
	if err != nil || id != nil {
		t.Errorf("empty source: want nil,nil got %v,%v", id, err)
	}
}
