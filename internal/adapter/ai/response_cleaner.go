package ai

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	trailingComma = regexp.MustCompile(`,(\s*[}\]])`)
	fencePrefix   = regexp.MustCompile("^```[a-zA-Z]*\\s*")
)

// CleanJSONResponse strips the usual wrapping models put around a JSON
// object: markdown fences, leading prose, trailing commentary and trailing
// commas. The result may still be invalid; callers validate it.
func CleanJSONResponse(response string) string {
	s := strings.TrimSpace(response)
	s = fencePrefix.ReplaceAllString(s, "")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	if obj, ok := extractObject(s); ok {
		s = obj
	}
	if json.Valid([]byte(s)) {
		return s
	}
	return trailingComma.ReplaceAllString(s, "$1")
}

// extractObject returns the first balanced {...} in s. Braces inside JSON
// strings are ignored.
func extractObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// FirstLine returns the first non-empty line of a free-text completion with
// list markers and wrapping quotes removed. Models often number questions.
func FirstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*•#0123456789.) ")
		line = strings.Trim(line, "\"' ")
		if line != "" {
			return line
		}
	}
	return ""
}
