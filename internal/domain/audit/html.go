package audit

import (
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractImages parses a document body and returns every <img> with a
// non-empty src, in document order. Alt defaults to "" when absent. The
// parser is tolerant: malformed markup yields whatever tags are recoverable,
// an empty body yields an empty list.
func ExtractImages(body string) []Image {
	var images []Image

	if strings.TrimSpace(body) == "" {
		return images
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		// x/net/html recovers from bad markup on its own; an actual parse
		// error here means unreadable input, treat as no images.
		return images
	}

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok || src == "" {
			return
		}
		alt, _ := s.Attr("alt")
		images = append(images, Image{Src: src, Alt: alt})
	})

	return images
}

// RewriteImageAlt sets the alt attribute on the first <img> in body whose
// src matches imageSource, either exactly or by basename of the URL path.
// Returns the updated body and whether a matching tag was found; when no
// tag matches, the body comes back unchanged and found is false (not an
// error, the image may have been edited out since the scan).
func RewriteImageAlt(body, imageSource, altText string) (string, bool) {
	if strings.TrimSpace(body) == "" {
		return body, false
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return body, false
	}

	wantBase := pathBasename(imageSource)
	found := false

	doc.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, ok := s.Attr("src")
		if !ok || src == "" {
			return true
		}
		if src == imageSource || (wantBase != "" && pathBasename(src) == wantBase) {
			s.SetAttr("alt", altText)
			found = true
			return false
		}
		return true
	})

	if !found {
		return body, false
	}

	// goquery wraps fragments in html/body during parsing; serialize only
	// the body content back out.
	updated, err := doc.Find("body").Html()
	if err != nil {
		return body, false
	}
	return updated, true
}

// pathBasename returns the final path segment of a URL or path string.
func pathBasename(src string) string {
	p := src
	if u, err := url.Parse(src); err == nil && u.Path != "" {
		p = u.Path
	}
	base := path.Base(p)
	if base == "." || base == "/" {
		return ""
	}
	return base
}
