// Package emoji converts unicode emoji into their colon-delimited names.
package emoji

import (
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	codemap "github.com/kyokomi/emoji/v2"
)

const variationSelector = '\uFE0F'

// Converter replaces unicode emoji with colon names such as ":grinning:".
// It is immutable after construction and safe for concurrent use.
type Converter struct {
	names  map[string]string
	starts map[rune]struct{}
	maxLen int
}

var defaultConverter = sync.OnceValue(func() *Converter {
	return New(codemap.RevCodeMap())
})

// Default returns the converter built from the bundled emoji table.
func Default() *Converter {
	return defaultConverter()
}

// New builds a converter from a table mapping emoji to their known names.
// When an emoji has several names the shortest one wins, ties broken
// alphabetically. Regional indicator sequences are left out: flags are
// spelled out letter by letter by the caller.
func New(table map[string][]string) *Converter {
	c := &Converter{
		names:  make(map[string]string, len(table)),
		starts: make(map[rune]struct{}),
	}
	for code, aliases := range table {
		code = strings.TrimSpace(code)
		name := pickName(aliases)
		if code == "" || name == "" || !eligible(code) {
			continue
		}
		c.add(code, name)
		if trimmed := strings.ReplaceAll(code, string(variationSelector), ""); trimmed != code && trimmed != "" && eligible(trimmed) {
			if _, ok := table[trimmed]; !ok {
				c.add(trimmed, name)
			}
		}
	}
	return c
}

func (c *Converter) add(code, name string) {
	if existing, ok := c.names[code]; ok && !shorter(name, existing) {
		return
	}
	c.names[code] = name
	first, _ := utf8.DecodeRuneInString(code)
	c.starts[first] = struct{}{}
	if n := utf8.RuneCountInString(code); n > c.maxLen {
		c.maxLen = n
	}
}

// Replace returns s with every known emoji replaced by its name. The longest
// matching sequence wins, and a variation selector directly following a
// replaced emoji is dropped with it.
func (c *Converter) Replace(s string) string {
	if len(c.names) == 0 {
		return s
	}
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(runes); {
		if _, ok := c.starts[runes[i]]; !ok {
			b.WriteRune(runes[i])
			i++
			continue
		}
		matched := 0
		for n := min(c.maxLen, len(runes)-i); n > 0; n-- {
			if name, ok := c.names[string(runes[i:i+n])]; ok {
				b.WriteString(name)
				matched = n
				break
			}
		}
		if matched == 0 {
			b.WriteRune(runes[i])
			i++
			continue
		}
		i += matched
		if i < len(runes) && runes[i] == variationSelector {
			i++
		}
	}
	return b.String()
}

func pickName(aliases []string) string {
	names := make([]string, 0, len(aliases))
	for _, a := range aliases {
		if strings.HasPrefix(a, ":") && strings.HasSuffix(a, ":") && len(a) > 2 {
			names = append(names, a)
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Slice(names, func(i, j int) bool { return shorter(names[i], names[j]) })
	return names[0]
}

func shorter(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// eligible rejects plain ASCII sequences and anything containing a regional
// indicator symbol.
func eligible(code string) bool {
	ascii := true
	for _, r := range code {
		if IsRegionalIndicator(r) {
			return false
		}
		if r >= utf8.RuneSelf {
			ascii = false
		}
	}
	return !ascii
}

// IsRegionalIndicator reports whether r is one of the 26 regional indicator
// symbols used to build flags.
func IsRegionalIndicator(r rune) bool {
	return r >= 0x1F1E6 && r <= 0x1F1FF
}
