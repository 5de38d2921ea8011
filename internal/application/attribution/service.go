package attribution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bryanwahyu/alttext-audit/internal/application"
	domain "github.com/bryanwahyu/alttext-audit/internal/domain/attribution"
)

// cacheTTL is shorter than the statistics cache: attribution drives the
// accountability views, which go stale faster than headline numbers.
const cacheTTL = time.Hour

// Service aggregates audit findings per author/uploader and resolves their
// identities through the user directory. Results are cached per site and
// invalidated whenever audit rows change.
type Service struct {
	Source    domain.Source
	Directory domain.Directory
	Clock     application.Clock

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	counts  []*domain.UserCount
	expires time.Time
}

// GetUserCounts returns per-user aggregates, missing-count descending,
// identities resolved. Users whose directory entry is gone get a
// placeholder identity rather than being dropped.
func (s *Service) GetUserCounts(ctx context.Context, site string, forceRefresh bool) ([]*domain.UserCount, error) {
	s.mu.Lock()
	if !forceRefresh {
		if e, ok := s.cache[site]; ok && s.Clock.Now().Before(e.expires) {
			s.mu.Unlock()
			return e.counts, nil
		}
	}
	s.mu.Unlock()

	counts, err := s.Source.UserCounts(ctx, site)
	if err != nil {
		return nil, fmt.Errorf("aggregating user counts: %w", err)
	}

	ids := make([]int64, 0, len(counts))
	for _, c := range counts {
		ids = append(ids, c.UserID)
	}
	if err := s.resolve(ctx, site, ids, counts); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.cache == nil {
		s.cache = make(map[string]cacheEntry)
	}
	s.cache[site] = cacheEntry{counts: counts, expires: s.Clock.Now().Add(cacheTTL)}
	s.mu.Unlock()
	return counts, nil
}

// TopOffenders returns the first limit entries of GetUserCounts.
func (s *Service) TopOffenders(ctx context.Context, site string, limit int) ([]*domain.UserCount, error) {
	counts, err := s.GetUserCounts(ctx, site, false)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(counts) > limit {
		counts = counts[:limit]
	}
	return counts, nil
}

// UserDetail aggregates a single user's rows regardless of whether they
// have missing alt-text. Returns nil when the user has no audit rows.
func (s *Service) UserDetail(ctx context.Context, site string, userID int64) (*domain.UserCount, error) {
	detail, err := s.Source.UserDetail(ctx, site, userID)
	if err != nil {
		return nil, err
	}
	if detail == nil {
		return nil, nil
	}
	if err := s.resolve(ctx, site, []int64{userID}, []*domain.UserCount{detail}); err != nil {
		return nil, err
	}
	return detail, nil
}

// Summary counts distinct users represented in the audit data.
func (s *Service) Summary(ctx context.Context, site string) (domain.Summary, error) {
	return s.Source.Summary(ctx, site)
}

// Invalidate drops the cached aggregates for a site.
func (s *Service) Invalidate(site string) {
	s.mu.Lock()
	delete(s.cache, site)
	s.mu.Unlock()
}

func (s *Service) resolve(ctx context.Context, site string, ids []int64, counts []*domain.UserCount) error {
	if s.Directory == nil || len(ids) == 0 {
		return nil
	}
	users, err := s.Directory.BatchUsers(ctx, site, ids)
	if err != nil {
		return fmt.Errorf("resolving user identities: %w", err)
	}
	for _, c := range counts {
		if info, ok := users[c.UserID]; ok {
			c.DisplayName = info.DisplayName
			c.Login = info.Login
			c.Email = info.Email
			c.Role = info.Role
		} else {
			// Content outlives accounts; keep the row attributable.
			c.DisplayName = fmt.Sprintf("Deleted User (ID: %d)", c.UserID)
			c.Role = "Deleted"
		}
		if c.TotalImages > 0 {
			c.MissingPercentage = float64(c.MissingAlt) / float64(c.TotalImages) * 100
		}
	}
	return nil
}
