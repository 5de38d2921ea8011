package attribution

import (
	"context"
	"testing"
	"time"

	domain "github.com/bryanwahyu/alttext-audit/internal/domain/attribution"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time { return f.t }

type fakeSource struct {
	calls  int
	counts []*domain.UserCount
}

func (f *fakeSource) UserCounts(_ context.Context, _ string) ([]*domain.UserCount, error) {
	f.calls++
	out := make([]*domain.UserCount, len(f.counts))
	for i, c := range f.counts {
		cp := *c
		out[i] = &cp
	}
	return out, nil
}

func (f *fakeSource) UserDetail(_ context.Context, _ string, userID int64) (*domain.UserCount, error) {
	for _, c := range f.counts {
		if c.UserID == userID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeSource) Summary(_ context.Context, _ string) (domain.Summary, error) {
	return domain.Summary{TotalUsers: len(f.counts), UsersWithMissing: len(f.counts)}, nil
}

type fakeDirectory struct{ users map[int64]domain.UserInfo }

func (f *fakeDirectory) BatchUsers(_ context.Context, _ string, _ []int64) (map[int64]domain.UserInfo, error) {
	return f.users, nil
}

func newService(counts []*domain.UserCount, users map[int64]domain.UserInfo) (*Service, *fakeSource, *fakeClock) {
	src := &fakeSource{counts: counts}
	clock := &fakeClock{t: time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC)}
	return &Service{
		Source:    src,
		Directory: &fakeDirectory{users: users},
		Clock:     clock,
	}, src, clock
}

func TestGetUserCountsResolvesIdentities(t *testing.T) {
	svc, _, _ := newService(
		[]*domain.UserCount{
			{UserID: 1, TotalImages: 10, MissingAlt: 8, HasAlt: 2},
			{UserID: 2, TotalImages: 4, MissingAlt: 1, HasAlt: 3},
		},
		map[int64]domain.UserInfo{
			1: {DisplayName: "Robin Writer", Login: "robin", Role: "editor"},
			2: {DisplayName: "Sam Author", Login: "sam", Role: "author"},
		},
	)

	counts, err := svc.GetUserCounts(context.Background(), "site1", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(counts) != 2 {
		t.Fatalf("got %d counts", len(counts))
	}
	if counts[0].DisplayName != "Robin Writer" || counts[0].Role != "editor" {
		t.Errorf("identity not resolved: %+v", counts[0])
	}
	if counts[0].MissingPercentage != 80 {
		t.Errorf("missing percentage: %v", counts[0].MissingPercentage)
	}
}

func TestGetUserCountsDeletedUserPlaceholder(t *testing.T) {
	svc, _, _ := newService(
		[]*domain.UserCount{{UserID: 55, TotalImages: 3, MissingAlt: 3}},
		map[int64]domain.UserInfo{}, // directory has no such user
	)

	counts, err := svc.GetUserCounts(context.Background(), "site1", false)
	if err != nil {
		t.Fatal(err)
	}
	c := counts[0]
	if c.DisplayName != "Deleted User (ID: 55)" || c.Role != "Deleted" {
		t.Errorf("deleted user should keep an attributable placeholder: %+v", c)
	}
}

func TestGetUserCountsCaching(t *testing.T) {
	svc, src, clock := newService(
		[]*domain.UserCount{{UserID: 1, TotalImages: 1, MissingAlt: 1}},
		map[int64]domain.UserInfo{1: {DisplayName: "X"}},
	)
	ctx := context.Background()

	if _, err := svc.GetUserCounts(ctx, "site1", false); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GetUserCounts(ctx, "site1", false); err != nil {
		t.Fatal(err)
	}
	if src.calls != 1 {
		t.Errorf("second read should come from cache, got %d source calls", src.calls)
	}

	// forceRefresh bypasses the cache.
	if _, err := svc.GetUserCounts(ctx, "site1", true); err != nil {
		t.Fatal(err)
	}
	if src.calls != 2 {
		t.Errorf("force refresh should hit the source, got %d calls", src.calls)
	}

	// Invalidation clears the cache.
	svc.Invalidate("site1")
	if _, err := svc.GetUserCounts(ctx, "site1", false); err != nil {
		t.Fatal(err)
	}
	if src.calls != 3 {
		t.Errorf("invalidated cache should recompute, got %d calls", src.calls)
	}

	// Expiry also invalidates.
	clock.t = clock.t.Add(2 * time.Hour)
	if _, err := svc.GetUserCounts(ctx, "site1", false); err != nil {
		t.Fatal(err)
	}
	if src.calls != 4 {
		t.Errorf("expired cache should recompute, got %d calls", src.calls)
	}
}

func TestTopOffenders(t *testing.T) {
	svc, _, _ := newService(
		[]*domain.UserCount{
			{UserID: 1, TotalImages: 10, MissingAlt: 9},
			{UserID: 2, TotalImages: 10, MissingAlt: 5},
			{UserID: 3, TotalImages: 10, MissingAlt: 2},
		},
		map[int64]domain.UserInfo{},
	)

	top, err := svc.TopOffenders(context.Background(), "site1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 || top[0].UserID != 1 {
		t.Errorf("top offenders: %+v", top)
	}
}

func TestUserDetail(t *testing.T) {
	svc, _, _ := newService(
		[]*domain.UserCount{{UserID: 7, TotalImages: 5, MissingAlt: 2}},
		map[int64]domain.UserInfo{7: {DisplayName: "Dana"}},
	)

	d, err := svc.UserDetail(context.Background(), "site1", 7)
	if err != nil {
		t.Fatal(err)
	}
	if d == nil || d.DisplayName != "Dana" || d.MissingPercentage != 40 {
		t.Errorf("detail: %+v", d)
	}

	none, err := svc.UserDetail(context.Background(), "site1", 999)
	if err != nil {
		t.Fatal(err)
	}
	if none != nil {
		t.Errorf("user with no rows should yield nil, got %+v", none)
	}
}
