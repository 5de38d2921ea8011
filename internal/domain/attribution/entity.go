package attribution

// UserCount is the per-user aggregate of audit findings. Users with zero
// missing images are excluded at the query level.
type UserCount struct {
	UserID            int64   `json:"user_id"`
	DisplayName       string  `json:"display_name"`
	Login             string  `json:"user_login,omitempty"`
	Email             string  `json:"user_email,omitempty"`
	Role              string  `json:"role"`
	TotalImages       int     `json:"total_images"`
	MissingAlt        int     `json:"missing_alt"`
	HasAlt            int     `json:"has_alt"`
	MissingPercentage float64 `json:"missing_percentage"`
}

// UserInfo is the identity resolved from the user directory.
type UserInfo struct {
	DisplayName string
	Login       string
	Email       string
	Role        string
}

// Summary counts distinct users in the audit data.
type Summary struct {
	TotalUsers       int `json:"total_users"`
	UsersWithMissing int `json:"users_with_missing"`
}
