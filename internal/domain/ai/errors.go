package ai

import "errors"

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrDisabled indicates no AI provider is configured for this deployment.
var ErrDisabled = errors.New("ai suggestions are not configured")

// ErrInvalidImage rejects empty or unusable image URLs before any API call.
var ErrInvalidImage = errors.New("invalid image url")
