package inlinecompletion

import (
	"strings"
)

var _openingBrackets = "([{"

// postProcess turns raw model output into text that can be inserted at the cursor.
func postProcess(raw string, linePrefix string) string {
	text := stripCodeFences(raw)
	text = trimDuplicateBracket(text, linePrefix)
	text = reindent(text, leadingWhitespace(linePrefix))
	return strings.TrimRight(text, " \t\r\n")
}

// stripCodeFences removes a markdown fence wrapped around the text, including its language tag.
func stripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return strings.TrimRight(text, " \t\r\n")
	}

	lines := strings.Split(trimmed, "\n")
	lines = lines[1:]
	if n := len(lines); n > 0 && strings.HasPrefix(strings.TrimSpace(lines[n-1]), "```") {
		lines = lines[:n-1]
	}
	return strings.Join(lines, "\n")
}

// reindent shifts continuation lines so that their shallowest indentation equals indent.
// The first line is inserted at the cursor and is left alone.
func reindent(text string, indent string) string {
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return text
	}

	common := ""
	first := true
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lead := leadingWhitespace(line)
		if first || len(lead) < len(common) {
			common = lead
			first = false
		}
	}

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" {
			lines[i] = ""
			continue
		}
		lines[i] = indent + strings.TrimPrefix(lines[i], common)
	}
	return strings.Join(lines, "\n")
}

// trimDuplicateBracket drops an opening bracket the model repeated from the end of linePrefix.
func trimDuplicateBracket(text string, linePrefix string) string {
	before := strings.TrimRight(linePrefix, " \t")
	if before == "" || text == "" {
		return text
	}
	last := before[len(before)-1]
	if strings.IndexByte(_openingBrackets, last) >= 0 && text[0] == last {
		return text[1:]
	}
	return text
}
