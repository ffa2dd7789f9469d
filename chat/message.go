// Package chat extracts chat lines from a client, classifies them and
// delivers them to the collector in debounced batches.
package chat

import (
	"strings"
	"time"
)

// MessageType classifies one chat line.
type MessageType int

const (
	Say MessageType = iota
	Shout
	Tell
	Party
	Linkshell1
	Linkshell2
	Yell
	Unity
	Drops
	Obtained
	Trial
	System
	Emote
	Unknown MessageType = 99
)

var typeNames = map[MessageType]string{
	Say:        "SAY",
	Shout:      "SHOUT",
	Tell:       "TELL",
	Party:      "PARTY",
	Linkshell1: "LINKSHELL1",
	Linkshell2: "LINKSHELL2",
	Yell:       "YELL",
	Unity:      "UNITY",
	Drops:      "DROPS",
	Obtained:   "OBTAINED",
	Trial:      "TRIAL",
	System:     "SYSTEM",
	Emote:      "EMOTE",
}

func (t MessageType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseMessageType is the inverse of String. Unrecognized names are Unknown.
func ParseMessageType(s string) MessageType {
	for t, name := range typeNames {
		if strings.EqualFold(name, s) {
			return t
		}
	}
	return Unknown
}

// Message is one parsed chat line. Raw keeps the line exactly as it was
// handed to the parser, even when sender and body could not be separated.
type Message struct {
	Sender    string
	Body      string
	Raw       string
	Type      MessageType
	Timestamp time.Time
}
