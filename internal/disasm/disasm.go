// Package disasm renders a structured, line-oriented view of an
// elf2.Container's code sections: each decoded instruction becomes a
// Line carrying its address, raw words, mnemonic, and symbolic operand
// text. Grounded on the teacher's vm/symbol_resolver.go
// (address-to-symbol lookup) and debugger/expressions.go (operand
// rendering), restructured to emit data records instead of TUI text so
// a CLI front end or a test can consume them directly.
package disasm

import (
	"fmt"
	"sort"

	"github.com/ForwardCom/bintools/internal/elf2"
	"github.com/ForwardCom/bintools/internal/format"
)

// Line is one disassembled instruction.
type Line struct {
	Address  uint32
	Section  int
	Words    []uint32
	Mnemonic string
	Operands string
	Symbol   string // nearest preceding symbol name in this section, if any
}

// Resolver maps an address within a section to the nearest preceding
// symbol's name, mirroring vm/symbol_resolver.go's reverse lookup.
type Resolver struct {
	bySection map[int][]elf2.Symbol // sorted by Address ascending
	names     func(nameOff uint32) string
}

// NewResolver builds a Resolver from c; c.SortForDisassembly should
// already have been called so symbols are grouped by section and
// address (spec.md §8.1 "Symbol-sort permutation").
func NewResolver(c *elf2.Container) *Resolver {
	r := &Resolver{bySection: make(map[int][]elf2.Symbol), names: c.SymName}
	for _, s := range c.Symbols {
		r.bySection[int(s.Section)] = append(r.bySection[int(s.Section)], s)
	}
	for sec := range r.bySection {
		syms := r.bySection[sec]
		sort.Slice(syms, func(i, j int) bool { return syms[i].Address() < syms[j].Address() })
		r.bySection[sec] = syms
	}
	return r
}

// Lookup returns the nearest symbol at or before addr in section, if any.
func (r *Resolver) Lookup(section int, addr uint32) (string, bool) {
	syms := r.bySection[section]
	if len(syms) == 0 {
		return "", false
	}
	i := sort.Search(len(syms), func(i int) bool { return syms[i].Address() > addr }) - 1
	if i < 0 {
		return "", false
	}
	return r.names(syms[i].Name), true
}

// Disassemble walks every allocated, executable section of c and
// produces one Line per instruction word group, using entry.Words to
// determine how many 32-bit words each instruction occupies. decodeOp
// maps a format catalog index (from format.LookupFormat) to a
// mnemonic and rendered operand string; callers that only need
// addresses/symbols (e.g. the linker's diagnostics) may pass a decoder
// that returns placeholders.
func Disassemble(c *elf2.Container, res *Resolver, decodeOp func(words []uint32, entryIdx int) (mnemonic, operands string)) ([]Line, error) {
	var lines []Line
	for si, h := range c.Sections {
		if !h.IsAlloc() || h.Flags&elf2.SHFExec == 0 {
			continue
		}
		start := int(h.Offset)
		end := start + int(h.Size)
		if start < 0 || end > len(c.DataBuffer) || start > end {
			return nil, fmt.Errorf("disasm: section %d data out of range", si)
		}
		data := c.DataBuffer[start:end]

		addr := uint32(0)
		for addr < uint32(len(data)) {
			word := leWord(data, int(addr))
			idx := format.LookupFormat(word)
			words := 1
			if idx >= 0 {
				words = format.Catalog[idx].Words
			}
			wbuf := make([]uint32, words)
			for i := 0; i < words; i++ {
				if int(addr)+i*4+4 <= len(data) {
					wbuf[i] = leWord(data, int(addr)+i*4)
				}
			}
			mnem, ops := "??", ""
			if decodeOp != nil {
				mnem, ops = decodeOp(wbuf, idx)
			}
			line := Line{Address: addr, Section: si, Words: wbuf, Mnemonic: mnem, Operands: ops}
			if res != nil {
				if name, ok := res.Lookup(si, addr); ok {
					line.Symbol = name
				}
			}
			lines = append(lines, line)
			addr += uint32(words) * 4
		}
	}
	return lines, nil
}

func leWord(data []byte, off int) uint32 {
	if off+4 > len(data) {
		var w uint32
		for i := 0; off+i < len(data) && i < 4; i++ {
			w |= uint32(data[off+i]) << (8 * uint(i))
		}
		return w
	}
	return uint32(data[off]) | uint32(data[off+1])<<8 | uint32(data[off+2])<<16 | uint32(data[off+3])<<24
}
