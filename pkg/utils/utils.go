package utils

import (
	neturl "net/url"
	"strings"
)

// DefaultTitle is used when no title can be derived from a video URL.
const DefaultTitle = "Video"

func HasURLScheme(text string) bool {
	return strings.Contains(text, "http://") || strings.Contains(text, "https://")
}

// ParseVideoInput splits a "Title | URL" message into its parts. Without a
// separator the whole message is the URL and the title is the
// percent-decoded last path segment, falling back to DefaultTitle.
func ParseVideoInput(text string) (title, url string) {
	if strings.Contains(text, "|") {
		parts := strings.SplitN(text, "|", 2)
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}

	url = strings.TrimSpace(text)

	parsed, err := neturl.Parse(url)
	if err != nil {
		return DefaultTitle, url
	}

	segments := strings.Split(parsed.Path, "/")
	segment := segments[len(segments)-1]
	if segment == "" {
		return DefaultTitle, url
	}

	decoded, err := neturl.PathUnescape(segment)
	if err != nil {
		return DefaultTitle, url
	}

	return decoded, url
}

// TruncateTitle shortens button labels so long titles do not blow up the
// inline keyboard.
func TruncateTitle(title string, max int) string {
	runes := []rune(title)
	if len(runes) <= max {
		return title
	}
	return string(runes[:max]) + "..."
}
