package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

var adIDPattern = regexp.MustCompile(`/(\d+)\.htm`)

// listingID derives a stable identifier. The numeric ad reference embedded in
// the URL is preferred; a full URL is the next best stable key; otherwise the
// title and price are hashed so repeated scans of the same card agree.
func listingID(url, title string, price, index int) string {
	if m := adIDPattern.FindStringSubmatch(url); m != nil {
		return "lbc_" + m[1]
	}
	if strings.HasPrefix(url, "http") {
		return url
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s_%d_%d", title, price, index)))
	return hex.EncodeToString(sum[:])[:16]
}
