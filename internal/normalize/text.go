package normalize

import (
	"regexp"
	"strings"

	"github.com/omochice/j2me-gateway/internal/emoji"
)

// Converter turns unicode emoji into colon names.
type Converter interface {
	Replace(s string) string
}

const (
	replyMaxLen   = 50
	replyKeepLen  = 47
	replyEllipsis = "..."
)

var (
	guildEmojiPattern = regexp.MustCompile(`<a?:(\w+):\d+>`)
	lineBreakPattern  = regexp.MustCompile(`\r\n|\r|\n`)
)

// Text rewrites message content for a client that can only show plain text.
// Custom guild emoji collapse to ":name:" unless showGuildEmoji is set,
// unicode emoji become colon names, and flag letters become
// ":regional_indicator_x:". Flags go last because the converter does not
// treat indicator pairs as a unit.
func (n *Normalizer) Text(content string, showGuildEmoji bool) string {
	if !showGuildEmoji {
		content = guildEmojiPattern.ReplaceAllString(content, ":${1}:")
	}
	content = n.conv.Replace(content)
	return spellRegionalIndicators(content)
}

func spellRegionalIndicators(s string) string {
	if !strings.ContainsFunc(s, emoji.IsRegionalIndicator) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if !emoji.IsRegionalIndicator(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteString(":regional_indicator_")
		b.WriteRune('a' + r - 0x1F1E6)
		b.WriteByte(':')
	}
	return b.String()
}

// replyPreview squeezes already normalized reply text onto one short line.
func replyPreview(content string) string {
	content = lineBreakPattern.ReplaceAllString(content, "  ")
	runes := []rune(content)
	if len(runes) > replyMaxLen {
		content = strings.TrimSpace(string(runes[:replyKeepLen])) + replyEllipsis
	}
	return content
}
