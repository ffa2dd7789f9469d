package sink

import "strings"

// UnknownName stands in for any name that is missing or unreadable.
const UnknownName = "Unknown"

// SanitizeName keeps printable ASCII only, trims it, and falls back to
// UnknownName when fewer than two characters remain. Raw names can embed
// protocol control bytes, so every name crossing to the collector passes here.
func SanitizeName(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c >= 0x20 && c <= 0x7E {
			b.WriteByte(c)
		}
	}
	name := strings.TrimSpace(b.String())
	if len(name) < 2 {
		return UnknownName
	}
	return name
}
