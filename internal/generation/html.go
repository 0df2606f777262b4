package generation

import "strings"

const fence = "```"

// StripCodeFences removes a surrounding markdown code fence (```html ... ```)
// that models often wrap their answer in. Text without fences is only trimmed.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, fence) {
		rest := s[len(fence):]
		// An html marker is dropped even when markup follows on the same line.
		// Any other info string runs up to the first newline.
		if len(rest) >= 4 && strings.EqualFold(rest[:4], "html") {
			rest = strings.TrimSpace(rest[4:])
		} else if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.ContainsRune(rest[:nl], '<') {
			rest = rest[nl+1:]
		} else if nl < 0 && !strings.ContainsRune(rest, '<') {
			rest = ""
		}
		s = rest
	}

	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, fence) {
		s = strings.TrimSpace(s[:len(s)-len(fence)])
	}

	return s
}
