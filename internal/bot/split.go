package bot

import (
	"strings"
	"unicode/utf8"
)

// Telegram caps messages around 4096 chars; stay under it.
const maxReplyLen = 3800

// splitReply breaks a long reply into chunks on line boundaries where
// possible, hard-splitting single oversized lines.
func splitReply(text string, maxLen int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return []string{"…"}
	}
	if len(text) <= maxLen {
		return []string{text}
	}

	var parts []string
	var buf strings.Builder

	flush := func() {
		if p := strings.TrimSpace(buf.String()); p != "" {
			parts = append(parts, p)
		}
		buf.Reset()
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		for len(line) > maxLen {
			flush()
			// Back off to a rune boundary; a mid-rune cut would send
			// invalid UTF-8.
			cut := maxLen
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			if cut == 0 {
				cut = maxLen
			}
			parts = append(parts, strings.TrimSpace(line[:cut]))
			line = line[cut:]
		}
		if buf.Len()+len(line) > maxLen {
			flush()
		}
		buf.WriteString(line)
	}
	flush()

	if len(parts) == 0 {
		return []string{"…"}
	}
	return parts
}
