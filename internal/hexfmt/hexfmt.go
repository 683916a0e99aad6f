// Package hexfmt implements the hex-ROM dump format produced by
// makeHexBuffer (spec.md §6.4): one line per N words, each word
// hex-encoded big-endian-within-the-word, with sections separated by
// a "// Section <n>, size <bytes>" comment. Grounded on the teacher's
// tools/format.go column-based text formatter, generalized from
// "pretty-print assembly source" to "pretty-print a binary section".
package hexfmt

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ForwardCom/bintools/internal/elf2"
)

// DefaultMaxLines is the default words-per-line, overridden by the
// CLI's -maxlines flag (spec.md §6.3).
const DefaultMaxLines = 8

// Dump renders every allocated section of c as a hex-ROM listing. The
// per-section header's byte count is grouped (1,234 rather than 1234)
// the way the teacher's tools/format.go right-aligns numeric columns,
// which matters once a data section runs past four digits.
func Dump(c *elf2.Container, wordsPerLine int) string {
	if wordsPerLine <= 0 {
		wordsPerLine = DefaultMaxLines
	}
	p := message.NewPrinter(language.English)
	var b strings.Builder
	for si, h := range c.Sections {
		if !h.IsAlloc() {
			continue
		}
		p.Fprintf(&b, "// Section %d, size %d\n", si, h.Size)
		start := int(h.Offset)
		end := start + int(h.Size)
		if start < 0 || end > len(c.DataBuffer) || start > end {
			continue
		}
		writeSection(&b, c.DataBuffer[start:end], wordsPerLine)
	}
	return b.String()
}

func writeSection(b *strings.Builder, data []byte, wordsPerLine int) {
	n := (len(data) + 3) / 4
	for i := 0; i < n; i++ {
		if i > 0 && i%wordsPerLine == 0 {
			b.WriteByte('\n')
		} else if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(b, "%08X", wordAt(data, i*4))
	}
	if n > 0 {
		b.WriteByte('\n')
	}
}

// wordAt reads the 32-bit word at byte offset off, big-endian within
// the word (spec.md §6.4), zero-padding past the end of data.
func wordAt(data []byte, off int) uint32 {
	var w uint32
	for i := 0; i < 4; i++ {
		w <<= 8
		if off+i < len(data) {
			w |= uint32(data[off+i])
		}
	}
	return w
}
