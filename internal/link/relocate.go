package link

import (
	"encoding/binary"
	"fmt"

	"github.com/ForwardCom/bintools/internal/elf2"
)

// ErrRelocate reports a fatal relocation failure (spec.md §4.9).
type ErrRelocate struct{ Msg string }

func (e *ErrRelocate) Error() string { return fmt.Sprintf("link: %s", e.Msg) }

// ResolvedTarget is what find_symbol_address returns (spec.md §4.9
// step 1): the absolute address of a relocation's target symbol, the
// base-pointer class it is relative to (for mismatch detection), and
// whether the containing section may move again at load time.
type ResolvedTarget struct {
	Address    uint64
	BaseClass  uint64 // one of SHFIP/SHFDatap/SHFThreadp, or 0 for absolute
	Relinkable bool
}

// FindSymbolAddress follows a local symbol to its section base +
// offset, or looks up an external symbol in symbolExports and
// recurses (spec.md §4.9 step 1).
func (l *Linker) FindSymbolAddress(lay *Layout, m *Module, symIndex uint32) (ResolvedTarget, error) {
	sym := m.Container.Symbols[symIndex]
	if sym.Section != elf2.SectionUndef {
		return resolveLocal(lay, m, int(sym.Section), sym.Address())
	}
	name := m.Container.SymName(sym.Name)
	ref, ok := l.ResolveExport(name)
	if !ok {
		return ResolvedTarget{}, &ErrRelocate{Msg: fmt.Sprintf("undefined symbol %q", name)}
	}
	return l.FindSymbolAddress(lay, ref.Module, ref.Index)
}

func resolveLocal(lay *Layout, m *Module, sectionIdx int, offset uint32) (ResolvedTarget, error) {
	for _, ps := range lay.Sections {
		if ps.Module == m && ps.Section == sectionIdx {
			base := classOf(ps.Header.Flags)
			relinkable := ps.Header.Flags&elf2.SHFRelink != 0
			return ResolvedTarget{Address: ps.Header.Addr + uint64(offset), BaseClass: base, Relinkable: relinkable}, nil
		}
	}
	return ResolvedTarget{}, &ErrRelocate{Msg: "relocation target section not placed by layout"}
}

func classOf(flags uint64) uint64 {
	switch {
	case flags&elf2.SHFThreadp != 0:
		return elf2.SHFThreadp
	case flags&elf2.SHFDatap != 0:
		return elf2.SHFDatap
	default:
		return elf2.SHFIP
	}
}

func baseAddress(lay *Layout, class uint64) uint64 {
	switch class {
	case elf2.SHFDatap:
		return lay.DatapBase
	case elf2.SHFThreadp:
		return lay.ThreadpBase
	default:
		return lay.IPBase
	}
}

// Relocate applies one relocation to data (the target section's
// output bytes), per spec.md §4.9 steps 2-5. refSymAddr resolves r's
// RefSymbol when its Kind is RelocRelativeToReferencePoint.
func Relocate(lay *Layout, r elf2.Relocation, target ResolvedTarget, siteAddress uint64, refSymAddr uint64, data []byte) error {
	value := int64(target.Address) + r.Addend

	switch r.Kind {
	case elf2.RelocSelfRelative:
		value -= int64(siteAddress)
	case elf2.RelocRelativeToIPBase:
		if target.BaseClass != 0 && target.BaseClass != elf2.SHFIP {
			return &ErrRelocate{Msg: "DifferentBasePointers"}
		}
		value -= int64(baseAddress(lay, elf2.SHFIP))
	case elf2.RelocRelativeToDatapBase:
		if target.BaseClass != 0 && target.BaseClass != elf2.SHFDatap {
			return &ErrRelocate{Msg: "DifferentBasePointers"}
		}
		value -= int64(baseAddress(lay, elf2.SHFDatap))
	case elf2.RelocRelativeToThreadpBase:
		if target.BaseClass != 0 && target.BaseClass != elf2.SHFThreadp {
			return &ErrRelocate{Msg: "DifferentBasePointers"}
		}
		value -= int64(baseAddress(lay, elf2.SHFThreadp))
	case elf2.RelocRelativeToReferencePoint:
		value -= int64(refSymAddr)
	case elf2.RelocAbsolute:
		// value already holds target.Address + addend
	}

	if r.Scale > 0 {
		div := int64(1) << uint(r.Scale)
		if value%div != 0 {
			return &ErrRelocate{Msg: "misaligned relocation target"}
		}
		value /= div
	}

	if err := checkSizeClass(value, r.Size); err != nil {
		return err
	}
	writeRelocValue(data, int(r.Offset), r.Size, value)
	return nil
}

func checkSizeClass(v int64, sc elf2.SizeClass) error {
	fits := func(bits uint) bool {
		lo := -(int64(1) << (bits - 1))
		hi := int64(1)<<(bits-1) - 1
		return v >= lo && v <= hi
	}
	switch sc {
	case elf2.Size8:
		if !fits(8) {
			return &ErrRelocate{Msg: "relocation overflow (8-bit)"}
		}
	case elf2.Size16:
		if !fits(16) {
			return &ErrRelocate{Msg: "relocation overflow (16-bit)"}
		}
	case elf2.Size24:
		if !fits(24) {
			return &ErrRelocate{Msg: "relocation overflow (24-bit)"}
		}
	case elf2.Size32, elf2.Size32Lo, elf2.Size32Hi:
		if !fits(32) {
			return &ErrRelocate{Msg: "relocation overflow (32-bit)"}
		}
	case elf2.Size64, elf2.Size64Lo, elf2.Size64Hi:
		// 64-bit split forms always fit by construction
	}
	return nil
}

func writeRelocValue(data []byte, offset int, sc elf2.SizeClass, v int64) {
	if offset < 0 || offset >= len(data) {
		return
	}
	switch sc {
	case elf2.Size8:
		data[offset] = byte(v)
	case elf2.Size16:
		if offset+2 <= len(data) {
			binary.LittleEndian.PutUint16(data[offset:], uint16(v))
		}
	case elf2.Size24:
		if offset+3 <= len(data) {
			data[offset] = byte(v)
			data[offset+1] = byte(v >> 8)
			data[offset+2] = byte(v >> 16)
		}
	case elf2.Size32, elf2.Size32Lo:
		if offset+4 <= len(data) {
			binary.LittleEndian.PutUint32(data[offset:], uint32(v))
		}
	case elf2.Size32Hi:
		if offset+4 <= len(data) {
			binary.LittleEndian.PutUint32(data[offset:], uint32(v>>32))
		}
	case elf2.Size64, elf2.Size64Lo:
		if offset+8 <= len(data) {
			binary.LittleEndian.PutUint64(data[offset:], uint64(v))
		}
	}
}

// KeepsLoadTimeRecord reports whether a relocation must survive into
// the executable's relocation table (spec.md §4.9 step 6): the resolved
// target lives in a relinkable section, or the relocation is itself
// load-time (absolute address, system-function id). The section of the
// reference symbol (RefSymbol) is not checked.
func KeepsLoadTimeRecord(r elf2.Relocation, target ResolvedTarget) bool {
	return r.LoadTime || target.Relinkable
}
