package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxImagesPerListing = 10

var imageBlocklist = []string{"logo", "icon", "favicon", "sprite", "blank"}

// extractImages collects gallery image URLs from a card, rewriting thumbnail
// paths to their full-size variants. Order follows document order; duplicates
// keep their first position.
func extractImages(el *goquery.Selection) []string {
	var images []string
	seen := make(map[string]struct{})

	el.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src, ok := img.Attr("src")
		if !ok || src == "" {
			return true
		}
		if !strings.Contains(src, "thumbs") && !strings.Contains(src, "images") && !strings.Contains(src, "img") {
			return true
		}
		src = strings.Replace(src, "thumbs", "images", 1)
		if !strings.HasPrefix(src, "http") {
			return true
		}
		lower := strings.ToLower(src)
		for _, blocked := range imageBlocklist {
			if strings.Contains(lower, blocked) {
				return true
			}
		}
		if _, dup := seen[src]; dup {
			return true
		}
		seen[src] = struct{}{}
		images = append(images, src)
		return len(images) < maxImagesPerListing
	})

	return images
}
