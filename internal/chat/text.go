package chat

import (
	"regexp"
	"strings"
)

var linkPattern = regexp.MustCompile(`https?://\S+`)

func IsImage(body string) bool {
	return strings.HasPrefix(body, ImagePrefix)
}

// ImageURL returns the image URL carried by an image message.
func ImageURL(body string) (string, bool) {
	if !IsImage(body) {
		return "", false
	}
	return strings.TrimPrefix(body, ImagePrefix), true
}

// FirstLink returns the first http(s) URL in a text message. Image messages
// never yield a link.
func FirstLink(body string) string {
	if IsImage(body) {
		return ""
	}
	return linkPattern.FindString(body)
}
