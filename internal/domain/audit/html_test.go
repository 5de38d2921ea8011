package audit

import (
	"strings"
	"testing"
)

func TestExtractImages(t *testing.T) {
	body := `<p>intro</p>
<img src="https://cdn.example.com/uploads/2024/01/hero.jpg" alt="A hero image">
<img src="/uploads/2024/02/chart.png" alt="">
<img alt="no src at all">
<img src="">
<img src="relative/dog.gif">`

	images := ExtractImages(body)
	if len(images) != 3 {
		t.Fatalf("expected 3 images, got %d: %+v", len(images), images)
	}
	if images[0].Src != "https://cdn.example.com/uploads/2024/01/hero.jpg" || images[0].Alt != "A hero image" {
		t.Errorf("first image wrong: %+v", images[0])
	}
	if images[1].Src != "/uploads/2024/02/chart.png" || images[1].Alt != "" {
		t.Errorf("second image should keep empty alt: %+v", images[1])
	}
	if images[2].Src != "relative/dog.gif" {
		t.Errorf("third image wrong: %+v", images[2])
	}
}

func TestExtractImagesEmptyAndMalformed(t *testing.T) {
	if got := ExtractImages(""); len(got) != 0 {
		t.Errorf("empty body should yield no images, got %+v", got)
	}
	if got := ExtractImages("   \n\t"); len(got) != 0 {
		t.Errorf("whitespace body should yield no images, got %+v", got)
	}

	// Unclosed tags still parse; the img should be recovered.
	got := ExtractImages(`<div><p>broken<img src="x.jpg" alt="x"`)
	if len(got) != 1 || got[0].Src != "x.jpg" {
		t.Errorf("malformed markup should still recover the img, got %+v", got)
	}
}

func TestExtractImagesMissingAltDefaultsEmpty(t *testing.T) {
	got := ExtractImages(`<img src="a.png">`)
	if len(got) != 1 {
		t.Fatalf("expected 1 image, got %d", len(got))
	}
	if got[0].Alt != "" {
		t.Errorf("absent alt should read as empty string, got %q", got[0].Alt)
	}
}

func TestRewriteImageAltExactMatch(t *testing.T) {
	body := `<p>text</p><img src="https://example.com/uploads/a.jpg" alt="old"><img src="https://example.com/uploads/b.jpg" alt="keep">`

	updated, found := RewriteImageAlt(body, "https://example.com/uploads/a.jpg", "new text")
	if !found {
		t.Fatal("expected a match")
	}
	if !strings.Contains(updated, `alt="new text"`) {
		t.Errorf("updated body missing new alt: %s", updated)
	}
	if !strings.Contains(updated, `alt="keep"`) {
		t.Errorf("other image should be untouched: %s", updated)
	}
}

func TestRewriteImageAltBasenameMatch(t *testing.T) {
	// Scan recorded the full CDN URL but the body uses a relative path.
	body := `<img src="/uploads/2024/01/hero.jpg" alt="">`

	updated, found := RewriteImageAlt(body, "https://cdn.example.com/uploads/2024/01/hero.jpg", "described")
	if !found {
		t.Fatal("expected basename match")
	}
	if !strings.Contains(updated, `alt="described"`) {
		t.Errorf("alt not rewritten: %s", updated)
	}
}

func TestRewriteImageAltNoMatch(t *testing.T) {
	body := `<img src="other.png" alt="x">`
	updated, found := RewriteImageAlt(body, "https://example.com/uploads/gone.jpg", "new")
	if found {
		t.Fatal("should not match")
	}
	if updated != body {
		t.Errorf("body must come back unchanged, got %s", updated)
	}
}

func TestRewriteImageAltOnlyFirstMatch(t *testing.T) {
	body := `<img src="dup.jpg" alt="one"><img src="dup.jpg" alt="two">`
	updated, found := RewriteImageAlt(body, "dup.jpg", "rewritten")
	if !found {
		t.Fatal("expected match")
	}
	if strings.Count(updated, `alt="rewritten"`) != 1 {
		t.Errorf("only the first occurrence should be rewritten: %s", updated)
	}
	if !strings.Contains(updated, `alt="two"`) {
		t.Errorf("second occurrence should keep its alt: %s", updated)
	}
}
