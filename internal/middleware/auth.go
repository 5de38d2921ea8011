package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
)

type contextKey string

const (
	SiteKey   contextKey = "site"
	APIKeyKey contextKey = "api_key"
	UserKey   contextKey = "user_id"
)

// APIKeyAuth validates API key from Authorization header. Each key maps to
// the site it is allowed to operate on.
func APIKeyAuth(validKeys map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip auth for health check
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				http.Error(w, "missing Authorization header", http.StatusUnauthorized)
				return
			}

			// Support both "Bearer <key>" and "<key>" formats
			apiKey := strings.TrimPrefix(auth, "Bearer ")
			apiKey = strings.TrimSpace(apiKey)

			if apiKey == "" {
				http.Error(w, "invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			// Constant-time comparison to prevent timing attacks
			valid := false
			var site string
			for s, key := range validKeys {
				if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
					valid = true
					site = s
					break
				}
			}

			if !valid {
				http.Error(w, "invalid API key", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), SiteKey, site)
			ctx = context.WithValue(ctx, APIKeyKey, apiKey)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromHeader propagates the acting user id sent by the integrating CMS
// in the X-User-ID header. The API key already authenticates the caller;
// this only attributes writes to the right editor.
func UserFromHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v := r.Header.Get("X-User-ID"); v != "" {
			if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
				r = r.WithContext(context.WithValue(r.Context(), UserKey, id))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// GetSiteFromContext extracts the authenticated site from context
func GetSiteFromContext(ctx context.Context) string {
	if site, ok := ctx.Value(SiteKey).(string); ok {
		return site
	}
	return ""
}

// GetUserFromContext extracts the acting user id, 0 when unset.
func GetUserFromContext(ctx context.Context) int64 {
	if id, ok := ctx.Value(UserKey).(int64); ok {
		return id
	}
	return 0
}

// RequireSiteMatch ensures the site in the URL matches the authenticated
// key's site. A key for one site cannot read another site's audit data.
func RequireSiteMatch(urlSite func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			authSite := GetSiteFromContext(r.Context())
			if authSite == "" {
				next.ServeHTTP(w, r)
				return
			}
			if err := ValidateSiteID(authSite); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if s := urlSite(r); s != "" && s != authSite {
				http.Error(w, "api key not valid for this site", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
