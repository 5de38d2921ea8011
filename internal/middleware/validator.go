package middleware

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	domain "github.com/bryanwahyu/alttext-audit/internal/domain/audit"
)

// Input validation and sanitization utilities

// ValidateScanType checks the scan type against the allowed list
func ValidateScanType(scanType string) error {
	allowed := map[string]bool{
		"content": true,
		"drafts":  true,
		"media":   true,
	}

	if !allowed[strings.ToLower(scanType)] {
		return fmt.Errorf("invalid scan type: %s (allowed: content, drafts, media)", scanType)
	}
	return nil
}

// ValidateSortColumn checks a results sort column against the allow-list
func ValidateSortColumn(column string) error {
	if column == "" {
		return nil // Optional field
	}
	if !domain.AllowedOrderBy[column] {
		return fmt.Errorf("invalid sort column: %s (allowed: scan_date, user_id, has_alt, content_type)", column)
	}
	return nil
}

// ValidateAltText enforces the alt-text length limit
func ValidateAltText(altText string) error {
	if len(altText) > 255 {
		return fmt.Errorf("alt text exceeds 255 characters")
	}
	return nil
}

// ValidateCleanupDays checks the history retention setting
func ValidateCleanupDays(v string) error {
	allowed := map[string]bool{
		"never": true,
		"30":    true,
		"60":    true,
		"90":    true,
		"120":   true,
		"365":   true,
	}
	if !allowed[v] {
		return fmt.Errorf("invalid retention period: %s (allowed: never, 30, 60, 90, 120, 365)", v)
	}
	return nil
}

// ValidateCronBatchSize checks the sites-per-tick rotation setting
func ValidateCronBatchSize(n int) error {
	switch n {
	case 10, 25, 50, 100:
		return nil
	}
	return fmt.Errorf("invalid cron batch size: %d (allowed: 10, 25, 50, 100)", n)
}

// ValidateReportRetention checks how many report artifacts a site keeps
func ValidateReportRetention(n int) error {
	if n < 1 || n > 200 {
		return fmt.Errorf("invalid report retention: %d (allowed: 1-200)", n)
	}
	return nil
}

// ValidateImageURL validates the image URL sent for AI suggestions
func ValidateImageURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s (allowed: http, https)", u.Scheme)
	}

	// Check for localhost/internal IPs (SSRF protection)
	host := strings.ToLower(u.Hostname())
	blocked := []string{"localhost", "127.0.0.1", "0.0.0.0", "[::]", "::1"}
	for _, b := range blocked {
		if strings.Contains(host, b) {
			return fmt.Errorf("localhost/internal IPs are not allowed")
		}
	}

	// Block private IP ranges (basic check)
	if strings.HasPrefix(host, "10.") ||
		strings.HasPrefix(host, "192.168.") ||
		strings.HasPrefix(host, "172.16.") ||
		strings.HasPrefix(host, "172.31.") {
		return fmt.Errorf("private IP ranges are not allowed")
	}

	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// ValidateSiteID validates site ID format
func ValidateSiteID(site string) error {
	if site == "" {
		return fmt.Errorf("site ID cannot be empty")
	}

	// Allow alphanumeric, dash, underscore, dot (max 64 chars)
	pattern := `^[a-zA-Z0-9._-]{1,64}$`
	matched, _ := regexp.MatchString(pattern, site)
	if !matched {
		return fmt.Errorf("invalid site ID format (alphanumeric, dot, dash, underscore only, max 64 chars)")
	}

	return nil
}

// ValidatePerPage validates pagination size
func ValidatePerPage(perPage int) int {
	if perPage == -1 {
		return -1 // export mode, no limit
	}
	if perPage <= 0 {
		return 20 // default
	}
	if perPage > 100 {
		return 100 // max limit
	}
	return perPage
}
