package pubfront

import (
	"context"
	"fmt"

	"github.com/eringen/pubfront/content"
)

// StaticPaths lists every post slug for prerendering. A query failure is
// returned as is; callers treat it as a failed build.
func StaticPaths(ctx context.Context, src content.Source) (Paths, error) {
	slugs, err := src.ListSlugs(ctx)
	if err != nil {
		return Paths{}, fmt.Errorf("pubfront: list slugs: %w", err)
	}
	params := make([]PathParams, 0, len(slugs))
	seen := make(map[string]struct{}, len(slugs))
	for _, s := range slugs {
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		params = append(params, PathParams{Slug: s})
	}
	return Paths{Params: params, Fallback: FallbackBlocking}, nil
}
