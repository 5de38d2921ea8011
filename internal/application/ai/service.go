package ai

import (
	"context"
	"strings"

	domain "github.com/bryanwahyu/alttext-audit/internal/domain/ai"
)

// Service wraps the suggestion client with the checks that don't belong in
// the transport adapter.
type Service struct {
	Client domain.Client
}

// SuggestAlt returns a generated alt-text candidate for the image at url.
// The caller reviews the suggestion; nothing is written automatically.
func (s *Service) SuggestAlt(ctx context.Context, url string) (string, error) {
	if s.Client == nil {
		return "", domain.ErrDisabled
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return "", domain.ErrInvalidImage
	}
	return s.Client.SuggestAlt(ctx, url)
}
