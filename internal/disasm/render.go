package disasm

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Render formats lines as aligned listing text: a decimal byte-offset
// column (grouped the way golang.org/x/text/message renders large
// counts, mirroring the teacher's tools/format.go column alignment)
// followed by the hex address, mnemonic and operands. A line's label,
// if any, is printed on its own line before it.
func Render(lines []Line) string {
	p := message.NewPrinter(language.English)
	var b strings.Builder
	for _, l := range lines {
		if l.Symbol != "" {
			p.Fprintf(&b, "%s:\n", l.Symbol)
		}
		p.Fprintf(&b, "  [%6d] %08x: %s %s\n", l.Address, l.Address, l.Mnemonic, l.Operands)
	}
	return b.String()
}
