package link

import (
	"fmt"
	"sort"

	"github.com/ForwardCom/bintools/internal/elf2"
)

// MemoryMapAlign is the minimum program-header alignment (spec.md §4.8).
const MemoryMapAlign = 4096

// placedSection is one section placed into the final executable, still
// tagged with the module it came from so relocation can find it.
type placedSection struct {
	Module  *Module
	Section int
	Header  elf2.SectionHeader
	Order   uint32
}

// Layout is the planner's output (spec.md §4.8).
type Layout struct {
	Sections     []placedSection
	Programs     []elf2.ProgramHeader
	IPBase       uint64
	DatapBase    uint64
	ThreadpBase  uint64
	EventTableOf uint64
	EventTableN  uint32
}

// sectionOrder computes the 32-bit order key described in spec.md
// §4.8: class bits occupy the high bits (read-only-IP < exec-IP <
// datap < threadp < non-allocated); within exec-IP, bit 0 flips to 1
// at the boundary where __ip_base is placed.
func sectionOrder(h elf2.SectionHeader) uint32 {
	var class uint32
	switch {
	case !h.IsAlloc():
		class = 5
	case h.Flags&elf2.SHFThreadp != 0:
		class = 4
	case h.Flags&elf2.SHFDatap != 0:
		class = 3
	case h.Flags&elf2.SHFExec != 0:
		class = 2
	default:
		class = 1 // IP-based read-only
	}

	var sub uint32
	switch class {
	case 1:
		sub = roSubOrder(h)
	case 2:
		sub = execSubOrder(h)
	case 3, 4:
		sub = dataSubOrder(h)
	}
	return class<<8 | sub
}

func roSubOrder(h elf2.SectionHeader) uint32 {
	switch {
	case h.Flags&elf2.SHFEventHnd != 0:
		return 0
	case h.Flags&elf2.SHFDebugInfo != 0:
		return 1
	case h.Flags&elf2.SHFComment != 0:
		return 2
	case h.Flags&elf2.SHFWrite != 0:
		return 3
	case h.Flags&elf2.SHFAutogen != 0:
		return 4
	case h.Flags&elf2.SHFRelink != 0:
		return 5
	case h.Flags&elf2.SHFFixed != 0:
		return 7
	default:
		return 6
	}
}

// execSubOrder orders fixed < non-relinkable < relinkable < autogen,
// so bit 0 (the lowest bit) is 0 for fixed/non-relinkable and 1 for
// relinkable/autogen — the __ip_base transition point.
func execSubOrder(h elf2.SectionHeader) uint32 {
	switch {
	case h.Flags&elf2.SHFFixed != 0:
		return 0
	case h.Flags&elf2.SHFAutogen != 0:
		return 5
	case h.Flags&elf2.SHFRelink != 0:
		return 3
	default:
		return 2
	}
}

func dataSubOrder(h elf2.SectionHeader) uint32 {
	isBSS := h.Type == 8 // SHT_NOBITS
	if !isBSS {
		switch {
		case h.Flags&elf2.SHFRelink != 0:
			return 0
		case h.Flags&elf2.SHFFixed != 0:
			return 2
		default:
			return 1
		}
	}
	switch {
	case h.Flags&elf2.SHFFixed != 0:
		return 3
	case h.Flags&elf2.SHFRelink != 0:
		return 5
	case h.Flags&elf2.SHFAutogen != 0:
		return 6
	default:
		return 4
	}
}

// ErrLayout reports a planner failure (spec.md §4.8 "Relinking invariant").
type ErrLayout struct{ Msg string }

func (e *ErrLayout) Error() string { return fmt.Sprintf("link: %s", e.Msg) }

// PlanLayout sorts every section across every module by its order key,
// places the three base pointers at their class transitions, and
// groups adjacent same-base/access sections into program headers
// (spec.md §4.8).
func (l *Linker) PlanLayout() (*Layout, error) {
	var placed []placedSection
	for _, m := range l.Modules {
		for si, h := range m.Container.Sections {
			if h.Type == 0 {
				continue
			}
			placed = append(placed, placedSection{Module: m, Section: si, Header: h, Order: sectionOrder(h)})
		}
	}
	sort.SliceStable(placed, func(a, b int) bool { return placed[a].Order < placed[b].Order })

	lay := &Layout{Sections: placed}

	var addr uint64
	prevClass := uint32(0)
	for i := range placed {
		h := &placed[i].Header
		class := placed[i].Order >> 8
		if class != prevClass {
			switch class {
			case 2:
				// nothing yet: __ip_base set at the bit-0 flip below
			case 3:
				lay.DatapBase = addr
			case 4:
				lay.ThreadpBase = addr
			}
			prevClass = class
		}
		if class == 2 && placed[i].Order&1 == 1 && lay.IPBase == 0 {
			lay.IPBase = addr
		}
		align := h.AddrAlign
		if align == 0 {
			align = 1
		}
		if rem := addr % align; rem != 0 {
			addr += align - rem
		}
		h.Addr = addr
		addr += h.Size
	}

	lay.Programs = groupProgramHeaders(placed)
	return lay, nil
}

// groupProgramHeaders groups adjacent sections sharing pointer-base and
// access flags into ProgramHeaders (spec.md §4.8), with alignment the
// max of the group's sections but never below MemoryMapAlign.
func groupProgramHeaders(placed []placedSection) []elf2.ProgramHeader {
	const baseAccessMask = elf2.SHFExec | elf2.SHFWrite | elf2.SHFAlloc |
		elf2.SHFIP | elf2.SHFDatap | elf2.SHFThreadp

	var out []elf2.ProgramHeader
	i := 0
	for i < len(placed) {
		if !placed[i].Header.IsAlloc() {
			i++
			continue
		}
		key := placed[i].Header.Flags & baseAccessMask
		start := i
		align := placed[i].Header.AddrAlign
		for i < len(placed) && placed[i].Header.IsAlloc() && placed[i].Header.Flags&baseAccessMask == key {
			if placed[i].Header.AddrAlign > align {
				align = placed[i].Header.AddrAlign
			}
			i++
		}
		if align < MemoryMapAlign {
			align = MemoryMapAlign
		}
		out = append(out, elf2.ProgramHeader{
			Type:   1, // PT_LOAD
			Flags:  uint32(key),
			Vaddr:  placed[start].Header.Addr,
			Offset: placed[start].Header.Offset,
			Paddr:  elf2.MakePaddr(start, i-start),
			Align:  align,
		})
	}
	return out
}
