package report

import "strings"

// StripMarkdownFence removes a leading ```json or ``` fence and a trailing
// ``` fence from a model reply. Models often wrap JSON in markdown even when
// told not to. This is a pure prefix/suffix trim applied at most once per
// side; fenced and unfenced replies yield identical output.
func StripMarkdownFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	if strings.HasSuffix(s, "```") {
		s = s[:len(s)-len("```")]
	}
	return strings.TrimSpace(s)
}
