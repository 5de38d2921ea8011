package mysql

import (
	"context"
	"database/sql"
)

// AuthzRepository answers permission checks from the users table. The acting
// user comes from the request context via the injected UserID func, so this
// package stays ignorant of the HTTP layer.
type AuthzRepository struct {
	db     *sql.DB
	UserID func(ctx context.Context) int64
}

func NewAuthzRepository(db *sql.DB, userID func(ctx context.Context) int64) *AuthzRepository {
	return &AuthzRepository{db: db, UserID: userID}
}

func (r *AuthzRepository) role(ctx context.Context, site string) string {
	id := r.UserID(ctx)
	if id == 0 {
		// System actor (cron, unauthenticated deployments without user
		// propagation) is unrestricted.
		return "administrator"
	}
	var role string
	err := r.db.QueryRowContext(ctx,
		`SELECT role FROM users WHERE site_id=? AND id=?`, site, id).Scan(&role)
	if err != nil {
		return ""
	}
	return role
}

// CanManage allows destructive operations (clear data, settings writes).
func (r *AuthzRepository) CanManage(ctx context.Context, site string) bool {
	return r.role(ctx, site) == "administrator"
}

// CanUpload mirrors media-library write access.
func (r *AuthzRepository) CanUpload(ctx context.Context, site string) bool {
	switch r.role(ctx, site) {
	case "administrator", "editor", "author":
		return true
	}
	return false
}

// CanEditContent allows editors and admins everywhere, authors only on
// documents they wrote.
func (r *AuthzRepository) CanEditContent(ctx context.Context, site string, contentID int64) bool {
	switch r.role(ctx, site) {
	case "administrator", "editor":
		return true
	case "author", "contributor":
		var authorID int64
		err := r.db.QueryRowContext(ctx,
			`SELECT author_id FROM documents WHERE site_id=? AND id=?`, site, contentID).Scan(&authorID)
		if err != nil {
			return false
		}
		return authorID == r.UserID(ctx)
	}
	return false
}
