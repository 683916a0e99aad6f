package elf2

import (
	"encoding/binary"
	"sort"
)

// FillerInstruction is the constant no-op word used to pad executable
// sections to their required alignment (spec.md §4.1, §4.6).
const FillerInstruction uint32 = 0x00000000

const wordAlign = 4

// AddSection appends a new data section to the output side, padding
// DataBuffer with FillerInstruction words (for executable sections) or
// zero bytes (otherwise) to the section's required alignment, and
// returns the section's index (spec.md §4.1 "add_section").
func (c *Container) AddSection(h SectionHeader, data []byte) int {
	c.alignDataBuffer(h)
	h.Offset = uint64(len(c.DataBuffer))
	c.DataBuffer = append(c.DataBuffer, data...)
	h.Size = uint64(len(data))
	c.Sections = append(c.Sections, h)
	return len(c.Sections) - 1
}

// ExtendSection appends data to an already-added section, keeping its
// Size in sync (spec.md §4.1 "extend_section"). The data is inserted
// right after the section's current bytes; sections stored after it in
// DataBuffer move up by len(data).
func (c *Container) ExtendSection(idx int, data []byte) {
	h := &c.Sections[idx]
	at := h.Offset + h.Size
	tail := append([]byte(nil), c.DataBuffer[at:]...)
	c.DataBuffer = append(append(c.DataBuffer[:at], data...), tail...)
	for i := range c.Sections {
		if i != idx && c.Sections[i].Offset >= at {
			c.Sections[i].Offset += uint64(len(data))
		}
	}
	h.Size += uint64(len(data))
}

func (c *Container) alignDataBuffer(h SectionHeader) {
	align := h.AddrAlign
	if align < wordAlign {
		align = wordAlign
	}
	rem := uint64(len(c.DataBuffer)) % align
	if rem == 0 {
		return
	}
	pad := align - rem
	if h.Flags&SHFExec != 0 {
		for pad >= 4 {
			c.DataBuffer = binary.LittleEndian.AppendUint32(c.DataBuffer, FillerInstruction)
			pad -= 4
		}
	}
	for pad > 0 {
		c.DataBuffer = append(c.DataBuffer, 0)
		pad--
	}
}

// AddSymbol appends sym and returns its index (spec.md §4.1 "add_symbol").
func (c *Container) AddSymbol(sym Symbol) uint32 {
	c.Symbols = append(c.Symbols, sym)
	return uint32(len(c.Symbols) - 1)
}

// AddRelocation appends r and returns its index (spec.md §4.1
// "add_relocation").
func (c *Container) AddRelocation(r Relocation) uint32 {
	c.Relocations = append(c.Relocations, r)
	return uint32(len(c.Relocations) - 1)
}

// SortForDisassembly sorts Symbols and Relocations by (section, address)
// as the disassembler requires (spec.md §8.1 "Symbol-sort permutation").
// Because the sort moves indexes, the old index is saved in each symbol's
// Reguse1 field before sorting, and every relocation's Symbol/RefSymbol
// is rewritten through the resulting permutation afterward — the
// "index-preservation-through-sort" contract of spec.md §4.1.
func (c *Container) SortForDisassembly() {
	oldIndexOf := make(map[int]uint32, len(c.Symbols))
	for i := range c.Symbols {
		c.Symbols[i].Reguse1 = uint32(i)
		oldIndexOf[i] = uint32(i)
	}

	order := make([]int, len(c.Symbols))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		sa, sb := c.Symbols[order[a]], c.Symbols[order[b]]
		if sa.Section != sb.Section {
			return sa.Section < sb.Section
		}
		return sa.Address() < sb.Address()
	})

	newIndexOf := make(map[uint32]uint32, len(order))
	sorted := make([]Symbol, len(order))
	for newIdx, oldIdx := range order {
		sorted[newIdx] = c.Symbols[oldIdx]
		newIndexOf[uint32(oldIdx)] = uint32(newIdx)
	}
	c.Symbols = sorted

	for i := range c.Relocations {
		r := &c.Relocations[i]
		if ni, ok := newIndexOf[r.Symbol]; ok {
			r.Symbol = ni
		}
		if r.RefSymbol != 0 {
			if ni, ok := newIndexOf[r.RefSymbol]; ok {
				r.RefSymbol = ni
			}
		}
	}

	sort.SliceStable(c.Relocations, func(a, b int) bool {
		ra, rb := c.Relocations[a], c.Relocations[b]
		if ra.Section != rb.Section {
			return ra.Section < rb.Section
		}
		return ra.Offset < rb.Offset
	})
}
