package link

import "github.com/ForwardCom/bintools/internal/elf2"

// secKey identifies one section of one ingested module.
type secKey struct {
	Module  *Module
	Section int
}

// Emit builds the merged output container from a planned layout
// (spec.md §4.8-§4.9): copies every placed section's bytes and symbols
// into one elf2.Container at its planned address, then walks every
// module's relocations, resolving and patching each one in place.
// Relocations that must survive into the executable (KeepsLoadTimeRecord)
// are re-added against the merged container's own symbol indexes.
//
// relink marks the emitted container itself relinkable (spec.md §6.3
// "-relink marks output as relinkable"): every relocation this pass
// resolves is retained with a load-time record regardless of the
// target section's own SHFRelink flag, since a later relink pass may
// move any of this output's sections again.
func (l *Linker) Emit(lay *Layout, relink bool) (*elf2.Container, []error) {
	out := elf2.New()
	out.Header.Relinkable = relink
	var errs []error

	secOf := make(map[secKey]int, len(lay.Sections))
	for _, ps := range lay.Sections {
		data := sectionBytes(ps.Module.Container, ps.Section)
		h := ps.Header
		h.Name = out.AddSecName(ps.Module.Container.SecName(ps.Header.Name))
		idx := out.AddSection(h, data)
		secOf[secKey{ps.Module, ps.Section}] = idx
	}

	symOf := make(map[SymbolRef]uint32)
	for _, m := range l.Modules {
		for i, s := range m.Container.Symbols {
			newSec := int32(elf2.SectionUndef)
			if s.Section != elf2.SectionUndef {
				if idx, ok := secOf[secKey{m, int(s.Section)}]; ok {
					newSec = int32(idx)
				}
			}
			sym := s
			sym.Name = out.AddSymName(m.Container.SymName(s.Name))
			sym.Section = newSec
			symOf[SymbolRef{Module: m, Index: uint32(i)}] = out.AddSymbol(sym)
		}
	}

	for _, m := range l.Modules {
		for _, r := range m.Container.Relocations {
			newSecIdx, ok := secOf[secKey{m, r.Section}]
			if !ok {
				continue
			}
			target, err := l.FindSymbolAddress(lay, m, r.Symbol)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			var refAddr uint64
			if r.RefSymbol != 0 {
				rt, err := l.FindSymbolAddress(lay, m, r.RefSymbol)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				refAddr = rt.Address
			}

			site := out.Sections[newSecIdx]
			siteAddress := site.Addr + r.Offset
			data := out.DataBuffer[site.Offset : site.Offset+site.Size]
			if err := Relocate(lay, r, target, siteAddress, refAddr, data); err != nil {
				errs = append(errs, err)
				continue
			}

			if relink || KeepsLoadTimeRecord(r, target) {
				nr := r
				nr.Section = newSecIdx
				if ni, ok := symOf[SymbolRef{Module: m, Index: r.Symbol}]; ok {
					nr.Symbol = ni
				}
				if r.RefSymbol != 0 {
					if ni, ok := symOf[SymbolRef{Module: m, Index: r.RefSymbol}]; ok {
						nr.RefSymbol = ni
					}
				}
				out.AddRelocation(nr)
			}
		}
	}

	return out, errs
}

func sectionBytes(c *elf2.Container, idx int) []byte {
	h := c.Sections[idx]
	start := int(h.Offset)
	end := start + int(h.Size)
	if start < 0 || end > len(c.DataBuffer) || start > end {
		return nil
	}
	return c.DataBuffer[start:end]
}
