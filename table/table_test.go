package table

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderAligns(t *testing.T) {
	tb := New(Column{Header: "PID"}, Column{Header: "NAME"}, Column{Header: "TP"})
	tb.AddRow("10", "Valdemar", "1500")
	tb.AddRow("1234", "", "0")

	var buf bytes.Buffer
	require.NoError(t, tb.Render(&buf))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "PID   NAME      TP", lines[0])
	assert.Equal(t, "----  --------  ----", lines[1])
	assert.Equal(t, "10    Valdemar  1500", lines[2])
	assert.Equal(t, "1234  -         0", lines[3])
	assert.Equal(t, 2, tb.Len())
}

func TestWideRunesAndTruncation(t *testing.T) {
	assert.Equal(t, 4, displayWidth("あこ"))
	assert.Equal(t, 3, displayWidth("abc"))

	tb := New(Column{Header: "MSG", MaxWidth: 5})
	tb.AddRow("hello world")
	assert.Equal(t, "hell~", tb.rows[0][0])
}

func TestFormatFuncDoesNotAffectWidth(t *testing.T) {
	tb := New(Column{Header: "A", FormatFunc: func(s string) string { return "\033[31m" + s + "\033[0m" }}, Column{Header: "B"})
	tb.AddRow("x", "y")

	var buf bytes.Buffer
	require.NoError(t, tb.Render(&buf))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Equal(t, "\033[31mx\033[0m  y", lines[2])
}
