package link

import (
	"fmt"
	"sort"

	"github.com/ForwardCom/bintools/internal/elf2"
)

// communalFlag marks a section as a communal (tentative-definition)
// group subject to merging (spec.md §4.7 "Communal merging"); reuses
// the SHF_AUTOGEN-adjacent high bits since ForwardCom's real bit
// assignment for "communal" is not otherwise named in the container
// layout.
const communalFlag = 1 << 29

// CommunalGroup is every section sharing one communal name.
type CommunalGroup struct {
	Name     string
	Sections []SectionRef
}

// SectionRef locates one section within one module.
type SectionRef struct {
	Module  *Module
	Section int
}

// MergeCommunals groups communal sections by name, keeps the largest
// member of each group (warning on size mismatch), and drops groups no
// non-weak import references unless debugLevel >= 2 (spec.md §4.7).
// It returns the surviving section of each group plus the dropped
// group names.
func (l *Linker) MergeCommunals(debugLevel int) (survivors []SectionRef, dropped []string) {
	groups := make(map[string]*CommunalGroup)
	for _, m := range l.Modules {
		for si, sec := range m.Container.Sections {
			if sec.Flags&communalFlag == 0 {
				continue
			}
			name := m.Container.SecName(sec.Name)
			g, ok := groups[name]
			if !ok {
				g = &CommunalGroup{Name: name}
				groups[name] = g
			}
			g.Sections = append(g.Sections, SectionRef{Module: m, Section: si})
		}
	}

	var names []string
	for n := range groups {
		names = append(names, n)
	}
	sort.Strings(names)

	referenced := l.referencedCommunalNames()

	for _, name := range names {
		g := groups[name]
		best := g.Sections[0]
		bestSize := best.Module.Container.Sections[best.Section].Size
		mismatch := false
		for _, sr := range g.Sections[1:] {
			size := sr.Module.Container.Sections[sr.Section].Size
			if size != bestSize {
				mismatch = true
			}
			if size > bestSize {
				best, bestSize = sr, size
			}
		}
		if mismatch {
			l.Warnings = append(l.Warnings, fmt.Sprintf("communal %q has mismatched sizes across modules", name))
		}
		if !referenced[name] && debugLevel < 2 {
			dropped = append(dropped, name)
			continue
		}
		if best.Module.Container.Header.Relinkable {
			best.Module.Container.Sections[best.Section].Flags |= elf2.SHFRelink
		}
		survivors = append(survivors, best)
	}
	return survivors, dropped
}

func (l *Linker) referencedCommunalNames() map[string]bool {
	referenced := make(map[string]bool)
	for _, m := range l.Modules {
		for _, s := range m.Container.Symbols {
			if s.Section == elf2.SectionUndef {
				continue
			}
			if int(s.Section) < 0 || int(s.Section) >= len(m.Container.Sections) {
				continue
			}
			sec := m.Container.Sections[s.Section]
			if sec.Flags&communalFlag == 0 {
				continue
			}
			for _, imp := range l.symbolImports[m.Container.SymName(s.Name)] {
				if !isWeak(imp.Module.Container.Symbols[imp.Index].Bind) {
					referenced[m.Container.SecName(sec.Name)] = true
				}
			}
		}
	}
	return referenced
}

// RegisterUseMismatch is reported when a caller's declared clobber set
// disagrees with a callee marked STV_REGUSE (spec.md §4.7
// "Register-use check").
type RegisterUseMismatch struct {
	Caller, Callee string
	ExcessCaller   uint32
	ExcessCallee   uint32
}

// CheckRegisterUse compares, for every callee named in callerClobber
// whose exported symbol is marked STV_REGUSE, the caller's declared
// clobber bitmap (the map value) against the callee's Reguse1,
// reporting any bits set in one but not the other.
func (l *Linker) CheckRegisterUse(callerClobber map[string]uint32) []RegisterUseMismatch {
	var mismatches []RegisterUseMismatch
	for calleeName, callerRegs := range callerClobber {
		ref, ok := l.ResolveExport(calleeName)
		if !ok {
			continue
		}
		sym := ref.Module.Container.Symbols[ref.Index]
		if sym.Other&elf2.STVReguse == 0 {
			continue
		}
		calleeRegs := sym.Reguse1
		if excess := callerRegs &^ calleeRegs; excess != 0 {
			mismatches = append(mismatches, RegisterUseMismatch{Caller: "<call site>", Callee: calleeName, ExcessCaller: excess})
		}
		if excess := calleeRegs &^ callerRegs; excess != 0 {
			mismatches = append(mismatches, RegisterUseMismatch{Caller: "<call site>", Callee: calleeName, ExcessCallee: excess})
		}
	}
	return mismatches
}
