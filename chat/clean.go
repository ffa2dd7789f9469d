package chat

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/encoding/japanese"
)

// Encodings understood by Cleaner.
const (
	EncodingASCII    = "ascii"
	EncodingShiftJIS = "shift-jis"
)

// In-game timestamp marker, e.g. "j[4:32:53pm] "
var timestampRe = regexp.MustCompile(`j\[[^\]]*:[^\]]*\] ?`)

// Cleaner turns raw client text into a single printable line.
type Cleaner struct {
	Encoding string
}

// Buffer cleans a fixed-size chat buffer snapshot. The buffer is cut at the
// first NUL; stale bytes past it belong to older messages.
func (c Cleaner) Buffer(raw []byte) string {
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	return normalize(c.decode(raw))
}

// Line cleans one line returned by a capture API. Those lines carry the
// client's inline formatting codes: 0x1E and 0x7F are markers, 0x1F is
// followed by a one-byte color argument.
func (c Cleaner) Line(raw []byte) string {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		b := raw[i]
		switch {
		case b == 0:
			i = len(raw)
		case b == 0x1E, b == 0x7F:
		case b == 0x1F:
			i++
		case b < 0x20 && b != '\n' && b != '\r' && b != '\t':
		default:
			out = append(out, b)
		}
	}
	return normalize(c.decode(out))
}

func (c Cleaner) decode(raw []byte) string {
	if c.Encoding == EncodingShiftJIS {
		decoded, err := japanese.ShiftJIS.NewDecoder().Bytes(raw)
		if err == nil {
			return strings.Map(func(r rune) rune {
				if r == unicode.ReplacementChar || unicode.IsControl(r) {
					return -1
				}
				return r
			}, string(decoded))
		}
	}

	out := make([]byte, 0, len(raw))
	for _, b := range raw {
		if b >= 0x20 && b <= 0x7E {
			out = append(out, b)
		}
	}
	return string(out)
}

func normalize(s string) string {
	s = timestampRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = stripDoubledLead(s)
	s = stripLineMarker(s)
	return strings.TrimSpace(s)
}

// stripDoubledLead removes a lowercase lead byte that the client doubles in
// front of a capitalized word: "yYou find" becomes "You find".
func stripDoubledLead(s string) string {
	if len(s) < 2 {
		return s
	}
	a, b := s[0], s[1]
	if a >= 'a' && a <= 'z' && b == a-'a'+'A' {
		return s[1:]
	}
	return s
}

// stripLineMarker drops the digit of a trailing ".<digit>" marker.
func stripLineMarker(s string) string {
	n := len(s)
	if n >= 2 && s[n-2] == '.' && s[n-1] >= '0' && s[n-1] <= '9' {
		return s[:n-1]
	}
	return s
}
