package audit

import (
	"context"
	"net/url"
	"path"
	"strings"
)

// uploadsMarker is the storage-root segment that separates the public URL
// from the attachment's relative path.
const uploadsMarker = "/uploads/"

// MatchAttachment resolves an image source to a media-library attachment id.
//
// Strategy 1 is an exact match on the path after the uploads marker, which
// keeps same-named files in different date folders apart (2024/01/hero.jpg
// vs 2025/03/hero.jpg). Strategy 2 falls back to a basename match, trading
// precision for recall on resized/variant filenames. Returns nil when
// nothing matches; an unresolvable source is a per-item condition, never
// an abort.
func MatchAttachment(ctx context.Context, idx AttachmentIndex, site, imageSource string) (*int64, error) {
	if imageSource == "" {
		return nil, nil
	}

	u, err := url.Parse(imageSource)
	if err != nil || u.Path == "" {
		return nil, nil
	}
	fullPath := u.Path

	relPath := ""
	if i := strings.Index(fullPath, uploadsMarker); i >= 0 {
		relPath = fullPath[i+len(uploadsMarker):]
	} else {
		relPath = path.Base(fullPath)
	}

	if relPath != "" {
		id, ok, err := idx.ByRelativePath(ctx, site, relPath)
		if err != nil {
			return nil, err
		}
		if ok {
			return &id, nil
		}
	}

	base := path.Base(fullPath)
	if base == "" || base == "." || base == "/" {
		return nil, nil
	}
	id, ok, err := idx.ByBasename(ctx, site, base)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &id, nil
}
