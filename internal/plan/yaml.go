package plan

import (
	"strings"
)

// ExtractYAML pulls a YAML document out of model output. It prefers a
// ```yaml fence, then any ``` fence, then the raw text, and drops a leading
// document separator.
func ExtractYAML(text string) string {
	var body string
	switch {
	case strings.Contains(text, "```yaml"):
		body = fenced(text, "```yaml")
	case strings.Contains(text, "```"):
		body = fenced(text, "```")
	default:
		body = text
	}
	body = strings.TrimSpace(body)
	body = strings.TrimPrefix(body, "---")
	return strings.TrimSpace(body)
}

// fenced returns the text between the first opening marker and the last
// closing fence, or to the end when the fence is never closed.
func fenced(text, open string) string {
	start := strings.Index(text, open) + len(open)
	rest := text[start:]
	if end := strings.LastIndex(rest, "```"); end >= 0 {
		return rest[:end]
	}
	return rest
}
