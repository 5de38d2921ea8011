package mysql

import (
	"context"
	"database/sql"

	domain "github.com/bryanwahyu/alttext-audit/internal/domain/attribution"
)

// UserRepository resolves user identities for attribution views.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// BatchUsers fetches identities in one IN query. Deleted users are simply
// absent from the map; callers decide how to present them.
func (r *UserRepository) BatchUsers(ctx context.Context, site string, ids []int64) (map[int64]domain.UserInfo, error) {
	out := make(map[int64]domain.UserInfo, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	q := `SELECT id, display_name, login, email, role FROM users WHERE site_id=? AND id IN (` + placeholders(len(ids)) + `)`
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, site)
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var info domain.UserInfo
		if err := rows.Scan(&id, &info.DisplayName, &info.Login, &info.Email, &info.Role); err != nil {
			return nil, err
		}
		out[id] = info
	}
	return out, rows.Err()
}
