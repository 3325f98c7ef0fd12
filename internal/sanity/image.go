package sanity

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ImageURL converts an asset reference such as "image-abc123-1200x800-jpg" into a CDN URL.
// width > 0 requests a resized rendition. Unknown references yield "".
func (c *Client) ImageURL(ref string, width int) string {
	if c == nil || c.projectID == "" {
		return ""
	}
	id, dims, ext, ok := parseImageRef(ref)
	if !ok {
		return ""
	}
	u := fmt.Sprintf("https://cdn.sanity.io/images/%s/%s/%s-%s.%s", c.projectID, c.dataset, id, dims, ext)
	if width > 0 {
		q := url.Values{}
		q.Set("w", strconv.Itoa(width))
		q.Set("auto", "format")
		u += "?" + q.Encode()
	}
	return u
}

func parseImageRef(ref string) (id, dims, ext string, ok bool) {
	ref = strings.TrimSpace(ref)
	if !strings.HasPrefix(ref, "image-") {
		return "", "", "", false
	}
	parts := strings.Split(strings.TrimPrefix(ref, "image-"), "-")
	if len(parts) != 3 {
		return "", "", "", false
	}
	id, dims, ext = parts[0], parts[1], parts[2]
	if id == "" || ext == "" || !strings.Contains(dims, "x") {
		return "", "", "", false
	}
	return id, dims, ext, true
}
