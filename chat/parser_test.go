package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseLines(t *testing.T) {
	now := time.Unix(1700000000, 0)

	tests := []struct {
		line   string
		typ    MessageType
		sender string
		body   string
	}{
		{"(Piplup) hello", Party, "Piplup", "hello"},
		{"You>> Bob : hi", Tell, "You >> Bob", "hi"},
		{">>Bob : on my way", Tell, "You >> Bob", "on my way"},
		{"Bob>> need help?", Tell, "Bob", "need help?"},
		{"[1]<Alice> gj", Linkshell1, "Alice", "gj"},
		{"[2]<Alice> gg", Linkshell2, "Alice", "gg"},
		{"Zeid : lfg", Say, "Zeid", "lfg"},
		{"{Nomad} ready?", Unity, "Nomad", "ready?"},
		{"[Zeid] : selling crystals", Shout, "Zeid", "selling crystals"},
		{"Zeid[Jeuno]: buying ore", Yell, "Zeid", "buying ore"},
		{"You find a Fire Crystal on the Goblin.", Drops, "System", "You find a Fire Crystal on the Goblin."},
		{"Zeid obtains a Potion.", Obtained, "System", "Zeid obtains a Potion."},
		{"Obtained key item: Map of Jeuno.", Obtained, "System", "Obtained key item: Map of Jeuno."},
		{"Trial 42: objective complete.", Trial, "System", "Trial 42: objective complete."},
		{"{3}", System, "System", "{3}"},
		{"The party leader has changed.", System, "System", "The party leader has changed."},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			msg := LineParser{}.Parse(tt.line, now)
			assert.Equal(t, tt.typ, msg.Type)
			assert.Equal(t, tt.sender, msg.Sender)
			assert.Equal(t, tt.body, msg.Body)
			assert.Equal(t, tt.line, msg.Raw)
			assert.Equal(t, now, msg.Timestamp)
		})
	}
}

func TestBracedDigitsAreNotUnity(t *testing.T) {
	assert.NotEqual(t, Unity, Classify("{3}"))
	assert.Equal(t, Unity, Classify("{Mercenary 3} hi"))
}

func TestEmptyBodyIsUnknown(t *testing.T) {
	assert.Equal(t, Unknown, LineParser{}.Parse("(Piplup)", time.Now()).Type)
	assert.Equal(t, Unknown, LineParser{}.Parse("   ", time.Now()).Type)
}

func TestRawIsUntouched(t *testing.T) {
	msg := LineParser{}.Parse("  (Piplup) hello \t", time.Now())
	assert.Equal(t, Party, msg.Type)
	assert.Equal(t, "Piplup", msg.Sender)
	assert.Equal(t, "hello", msg.Body)
	assert.Equal(t, "  (Piplup) hello \t", msg.Raw)
}

func TestUnsplittableLineKeepsWholeBody(t *testing.T) {
	// Tell shape without a recipient separator
	msg := LineParser{}.Parse("You>> Bob", time.Now())
	assert.Equal(t, Tell, msg.Type)
	assert.Equal(t, "", msg.Sender)
	assert.Equal(t, "You>> Bob", msg.Body)
}

func TestMessageTypeNames(t *testing.T) {
	assert.Equal(t, "LINKSHELL1", Linkshell1.String())
	assert.Equal(t, "UNKNOWN", Unknown.String())
	assert.Equal(t, "UNKNOWN", MessageType(42).String())
	assert.Equal(t, Tell, ParseMessageType("tell"))
	assert.Equal(t, Unknown, ParseMessageType("nope"))
}

func TestCleanBuffer(t *testing.T) {
	c := Cleaner{Encoding: EncodingASCII}

	raw := []byte("j[4:32:53pm] yYou find a crystal.1\x00stale text")
	assert.Equal(t, "You find a crystal.", c.Buffer(raw))

	assert.Equal(t, "Zeid : hi", c.Buffer([]byte("\x01Zeid : hi\x7f\x00\x00")))
	assert.Equal(t, "", c.Buffer(make([]byte, 32)))
	assert.Equal(t, "[1]<Alice> gj", c.Buffer([]byte("[1]<Alice> gj")))
}

func TestCleanCaptureLine(t *testing.T) {
	c := Cleaner{Encoding: EncodingASCII}
	assert.Equal(t, "Zeid : hi", c.Line([]byte("\x1f\x05Zeid : hi\x1e\x7f")))
	assert.Equal(t, "You obtain a Potion.", c.Line([]byte("\x1e\x01You obtain a Potion.\x00junk")))
}

func TestCleanShiftJIS(t *testing.T) {
	c := Cleaner{Encoding: EncodingShiftJIS}
	assert.Equal(t, "Zeid : あこ", c.Buffer([]byte("Zeid : \x82\xa0\x82\xb1\x00")))
}
