package attribution

import "context"

// Source aggregates audit rows per user. Implemented by the result store.
type Source interface {
	// UserCounts groups by user_id, excludes users with no missing alt,
	// ordered by missing count descending. Identity fields are left blank
	// for the Directory to fill.
	UserCounts(ctx context.Context, site string) ([]*UserCount, error)
	// UserDetail aggregates a single user's rows; nil when the user has none.
	UserDetail(ctx context.Context, site string, userID int64) (*UserCount, error)
	Summary(ctx context.Context, site string) (Summary, error)
}

// Directory resolves user identities in one batch lookup. Ids with no
// resolvable identity are simply absent from the returned map.
type Directory interface {
	BatchUsers(ctx context.Context, site string, ids []int64) (map[int64]UserInfo, error)
}
