// Package hexdump formats raw client memory for debug logs and the peek
// command. Output is plain text so it can go to log files.
package hexdump

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// Options controls the dump layout.
type Options struct {
	BytesPerLine int
	GroupSize    int
	ShowASCII    bool
	StartOffset  uint64
	OffsetWidth  int
	MaxLines     int // 0 for no limit

	// PointerSize > 0 annotates each line with the aligned pointer-sized
	// values for which IsPointer reports true.
	PointerSize int
	IsPointer   func(addr uint64) bool
}

func DefaultOptions() Options {
	return Options{
		BytesPerLine: 16,
		GroupSize:    1,
		ShowASCII:    true,
		OffsetWidth:  8,
	}
}

func Dump(data []byte, options Options) string {
	var buf bytes.Buffer
	DumpToWriter(&buf, data, options)
	return buf.String()
}

// DumpToWriter writes one line per BytesPerLine bytes.
func DumpToWriter(w io.Writer, data []byte, options Options) {
	if options.BytesPerLine <= 0 {
		options.BytesPerLine = 16
	}
	if options.GroupSize <= 0 {
		options.GroupSize = 1
	}
	if options.OffsetWidth <= 0 {
		options.OffsetWidth = 8
	}

	lines := 0
	for off := 0; off < len(data); off += options.BytesPerLine {
		if options.MaxLines > 0 && lines >= options.MaxLines {
			fmt.Fprintf(w, "... %d more bytes\n", len(data)-off)
			return
		}
		end := min(off+options.BytesPerLine, len(data))
		formatLine(w, data[off:end], options.StartOffset+uint64(off), options)
		lines++
	}
}

func formatLine(w io.Writer, data []byte, offset uint64, options Options) {
	fmt.Fprintf(w, "%0*x  ", options.OffsetWidth, offset)

	hex := hexGroups(data, options.GroupSize)
	fmt.Fprint(w, hex)
	if full := len(hexGroups(make([]byte, options.BytesPerLine), options.GroupSize)); len(hex) < full {
		fmt.Fprint(w, strings.Repeat(" ", full-len(hex)))
	}

	if options.ShowASCII {
		fmt.Fprint(w, "  |")
		for _, b := range data {
			if b >= 0x20 && b <= 0x7E {
				fmt.Fprintf(w, "%c", b)
			} else {
				fmt.Fprint(w, ".")
			}
		}
		fmt.Fprint(w, "|")
	}

	if ptrs := pointers(data, options); len(ptrs) > 0 {
		fmt.Fprint(w, "  -> ", strings.Join(ptrs, " "))
	}
	fmt.Fprintln(w)
}

func hexGroups(data []byte, groupSize int) string {
	var b strings.Builder
	for i, v := range data {
		if i > 0 && i%groupSize == 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02x", v)
	}
	return b.String()
}

func pointers(data []byte, options Options) []string {
	if options.IsPointer == nil || (options.PointerSize != 4 && options.PointerSize != 8) {
		return nil
	}
	var out []string
	for i := 0; i+options.PointerSize <= len(data); i += options.PointerSize {
		var v uint64
		if options.PointerSize == 4 {
			v = uint64(binary.LittleEndian.Uint32(data[i:]))
		} else {
			v = binary.LittleEndian.Uint64(data[i:])
		}
		if v != 0 && options.IsPointer(v) {
			out = append(out, fmt.Sprintf("0x%x", v))
		}
	}
	return out
}

// DumpBytes dumps data with the default options.
func DumpBytes(data []byte) string {
	return Dump(data, DefaultOptions())
}

// DumpWithOffset numbers lines from startOffset, usually the address the
// bytes were read from.
func DumpWithOffset(data []byte, startOffset uint64) string {
	options := DefaultOptions()
	options.StartOffset = startOffset
	return Dump(data, options)
}
