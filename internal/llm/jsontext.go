package llm

import (
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("(?s)^```(?:json|JSON)?\\s*(.*?)\\s*```$")

// StripFences removes a surrounding markdown code fence from a model reply.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

// ExtractJSONArray returns the outermost JSON array found in text. When the
// reply holds a single object instead, it is wrapped in an array. The second
// result is false when neither is present.
func ExtractJSONArray(text string) (string, bool) {
	text = StripFences(text)
	if start, end := strings.Index(text, "["), strings.LastIndex(text, "]"); start != -1 && end > start {
		return text[start : end+1], true
	}
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start != -1 && end > start {
		return "[" + text[start:end+1] + "]", true
	}
	return "", false
}

// ExtractJSONObject returns the outermost JSON object found in text.
func ExtractJSONObject(text string) (string, bool) {
	text = StripFences(text)
	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}
