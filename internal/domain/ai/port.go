package ai

import "context"

type Client interface {
	SuggestAlt(ctx context.Context, imageURL string) (string, error)
}
