package audit

import "errors"

// Policy and request-level sentinels, mapped to HTTP statuses by the router.
var (
	// ErrScanInProgress means another scan is already running for the site.
	// Normal rejection, not a crash.
	ErrScanInProgress = errors.New("a scan is already in progress for this site")

	// ErrScanCancelled is reported when a pending cancellation is honored at
	// a batch boundary. Distinct from failure; all progress state is cleared.
	ErrScanCancelled = errors.New("scan cancelled by user")

	// ErrInvalidScanType rejects scan types outside {content, drafts, media}.
	ErrInvalidScanType = errors.New("invalid scan type")

	// ErrAltTextTooLong rejects alt-text over 255 characters.
	ErrAltTextTooLong = errors.New("alt-text must be 255 characters or less")

	// ErrResultNotFound means the audit row id does not exist.
	ErrResultNotFound = errors.New("audit result not found")

	// ErrPermissionDenied means the actor lacks the capability the
	// operation requires.
	ErrPermissionDenied = errors.New("permission denied")
)
