package bot

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSplitReply(t *testing.T) {
	t.Run("short text untouched", func(t *testing.T) {
		assert.Equal(t, []string{"hello"}, splitReply("  hello  ", 100))
	})

	t.Run("empty text becomes ellipsis", func(t *testing.T) {
		assert.Equal(t, []string{"…"}, splitReply("   ", 100))
	})

	t.Run("splits on line boundaries", func(t *testing.T) {
		text := strings.Repeat("aaaa\n", 10) // 50 chars
		parts := splitReply(text, 20)
		assert.Greater(t, len(parts), 1)
		for _, p := range parts {
			assert.LessOrEqual(t, len(p), 20)
			assert.NotEmpty(t, p)
		}
	})

	t.Run("hard splits oversized lines", func(t *testing.T) {
		text := strings.Repeat("x", 95)
		parts := splitReply(text, 40)
		assert.Len(t, parts, 3)
		assert.Equal(t, strings.Repeat("x", 40), parts[0])
	})

	t.Run("never cuts a rune in half", func(t *testing.T) {
		text := strings.Repeat("привет", 20) // two-byte runes, no split-friendly newlines
		parts := splitReply(text, 25)
		assert.Greater(t, len(parts), 1)
		var joined strings.Builder
		for _, p := range parts {
			assert.True(t, utf8.ValidString(p), "chunk %q is not valid UTF-8", p)
			assert.LessOrEqual(t, len(p), 25)
			joined.WriteString(p)
		}
		assert.Equal(t, text, joined.String())
	})

	t.Run("content preserved", func(t *testing.T) {
		text := "line one\nline two\nline three"
		parts := splitReply(text, 12)
		joined := strings.Join(parts, "\n")
		for _, want := range []string{"line one", "line two", "line three"} {
			assert.Contains(t, joined, want)
		}
	})
}
