package chat

import (
	"regexp"
	"strings"
	"time"
)

type pattern struct {
	re  *regexp.Regexp
	typ MessageType
}

// Ordered, first match wins. Patterns overlap, so the order is significant.
var patterns = []pattern{
	{regexp.MustCompile(`^\s*\([^)]+\)`), Party},
	{regexp.MustCompile(`^\s*You>>`), Tell},
	{regexp.MustCompile(`^\s*[^>]+>>`), Tell},
	{regexp.MustCompile(`^\s*>>[^\s]`), Tell},
	{regexp.MustCompile(`\[1\]<`), Linkshell1},
	{regexp.MustCompile(`\[2\]<`), Linkshell2},
	{regexp.MustCompile(`\([^)]+\)`), Party},
	{regexp.MustCompile(`[^>]+>>`), Tell},
	{regexp.MustCompile(`>>[^\s]`), Tell},
	// A braced token needs a letter; "{3}" is not a sender
	{regexp.MustCompile(`^\s*\{[^}]*[A-Za-z][^}]*\}`), Unity},
	{regexp.MustCompile(`^\s*\[[^\]\d][^\]]*\]\s*:`), Shout},
	{regexp.MustCompile(`^\s*[A-Za-z]+\[[^\]]+\]\s*:`), Yell},
	{regexp.MustCompile(`^\s*[A-Za-z]+'?[A-Za-z]*\s+:\s+`), Say},
	{regexp.MustCompile(`You find a`), Drops},
	{regexp.MustCompile(`obtains a`), Obtained},
	{regexp.MustCompile(`^Obtained key item:`), Obtained},
	{regexp.MustCompile(`^[A-Za-z]+\s+\d+:`), Trial},
}

// Classify returns the type of the first matching pattern, System otherwise.
func Classify(line string) MessageType {
	for _, p := range patterns {
		if p.re.MatchString(line) {
			return p.typ
		}
	}
	return System
}

// Parser turns one cleaned line into a Message.
type Parser interface {
	Parse(line string, at time.Time) Message
}

// LineParser is the default Parser.
type LineParser struct{}

// Parse classifies line and splits sender from body. When the delimiter
// shape cannot be split, the whole line becomes the body. A message whose
// body ends up empty is Unknown and must be dropped by the caller.
func (LineParser) Parse(line string, at time.Time) Message {
	trimmed := strings.TrimSpace(line)
	msg := Message{
		Raw:       line,
		Type:      Classify(trimmed),
		Timestamp: at,
	}
	if trimmed == "" {
		msg.Type = Unknown
		return msg
	}

	var ok bool
	switch msg.Type {
	case Party:
		msg.Sender, msg.Body, ok = between(trimmed, "(", ")")
	case Tell:
		msg.Sender, msg.Body, ok = splitTell(trimmed)
	case Linkshell1, Linkshell2:
		msg.Sender, msg.Body, ok = between(trimmed, "<", ">")
	case Unity:
		msg.Sender, msg.Body, ok = between(trimmed, "{", "}")
	case Shout:
		msg.Sender, msg.Body, ok = splitAfter(trimmed, "[", "]")
	case Yell:
		msg.Sender, msg.Body, ok = splitYell(trimmed)
	case Say:
		var sender string
		sender, msg.Body, ok = strings.Cut(trimmed, " : ")
		msg.Sender = cleanSender(sender)
	default:
		msg.Sender, msg.Body, ok = "System", trimmed, true
	}

	if !ok {
		msg.Sender, msg.Body = "", trimmed
	}
	msg.Body = strings.TrimSpace(msg.Body)
	if msg.Body == "" {
		msg.Type = Unknown
	}
	return msg
}

// between splits "<open>sender<close> body".
func between(line, open, close string) (sender, body string, ok bool) {
	i := strings.Index(line, open)
	j := strings.Index(line, close)
	if i < 0 || j < 0 || j < i {
		return "", "", false
	}
	return cleanSender(line[i+len(open) : j]), line[j+len(close):], true
}

// splitAfter handles "[sender] : body".
func splitAfter(line, open, close string) (sender, body string, ok bool) {
	sender, rest, ok := between(line, open, close)
	if !ok {
		return "", "", false
	}
	_, body, ok = strings.Cut(rest, ":")
	return sender, body, ok
}

// splitYell handles "sender[zone]: body".
func splitYell(line string) (sender, body string, ok bool) {
	i := strings.Index(line, "[")
	if i < 0 {
		return "", "", false
	}
	_, body, ok = strings.Cut(line[i:], ":")
	return cleanSender(line[:i]), body, ok
}

// splitTell handles ">>to : body", "You>> to : body" and "from>> body".
// Sent tells are reported with sender "You >> to".
func splitTell(line string) (sender, body string, ok bool) {
	from, rest, found := strings.Cut(line, ">>")
	if !found {
		return "", "", false
	}
	from = strings.TrimSpace(from)

	if from == "" || from == "You" {
		to, text, found := strings.Cut(rest, ":")
		if !found {
			return "", "", false
		}
		return "You >> " + cleanSender(to), text, true
	}
	return cleanSender(from), rest, true
}

// cleanSender keeps printable ASCII and trims it. Senders carry color and
// auto-translate markers around the name.
func cleanSender(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= 0x20 && c <= 0x7E {
			b.WriteByte(c)
		}
	}
	return strings.TrimSpace(b.String())
}
