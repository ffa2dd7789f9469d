package hexdump

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDumpLayout(t *testing.T) {
	data := []byte("Zeid : hi\x00\x01\x02\x03\x04\x05\x06AB")
	out := DumpBytes(data)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 2)

	assert.Equal(t, "00000000  5a 65 69 64 20 3a 20 68 69 00 01 02 03 04 05 06  |Zeid : hi.......|", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "00000010  41 42 "))
	assert.True(t, strings.HasSuffix(lines[1], "  |AB|"))
	assert.Equal(t, len(lines[0])-14, len(lines[1]))
}

func TestDumpWithOffsetAndLimit(t *testing.T) {
	out := DumpWithOffset([]byte{1, 2}, 0x20001000)
	assert.True(t, strings.HasPrefix(out, "20001000  01 02"))

	opts := DefaultOptions()
	opts.MaxLines = 1
	out = Dump(make([]byte, 40), opts)
	assert.Contains(t, out, "... 24 more bytes")
}

func TestPointerAnnotation(t *testing.T) {
	opts := DefaultOptions()
	opts.PointerSize = 4
	opts.IsPointer = func(addr uint64) bool { return addr >= 0x20000000 && addr < 0x30000000 }

	data := []byte{0x00, 0x10, 0x00, 0x20, 0x05, 0x00, 0x00, 0x00}
	out := Dump(data, opts)
	assert.Contains(t, out, "-> 0x20001000")
	assert.NotContains(t, out, "0x5")
}
