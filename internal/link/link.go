// Package link implements the linker front end, layout planner, and
// relocator (spec.md C7/C8/C9 / §4.7-4.9): classify inputs, resolve
// symbols against libraries to a fixed point, merge communal sections,
// lay out the executable's sections and program headers, then patch
// every relocation. Grounded on the teacher's loader/loader.go file
// and segment handling, generalized from "load one ELF into memory"
// to "merge N objects and M library members into one executable",
// and on original_source/linker1.cpp for the search/merge algorithms.
package link

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ForwardCom/bintools/internal/arlib"
	"github.com/ForwardCom/bintools/internal/elf2"
)

// Module is one ingested object file, renamed so filename punctuation
// that would break a symbol name is normalized (spec.md §4.7 "File
// ingestion").
type Module struct {
	Name      string // colons/whitespace replaced with '_'
	Container *elf2.Container
}

// NormalizeModuleName applies the §4.7 "colons and whitespace in
// filenames become underscores" rule.
func NormalizeModuleName(filename string) string {
	r := strings.NewReplacer(":", "_", " ", "_", "\t", "_")
	return r.Replace(filename)
}

// ClassifyInput reports whether filename names an object or a library
// by extension (spec.md §4.7 "File ingestion"): ".li*" and ".a" are
// libraries, everything else is an object.
func ClassifyInput(filename string) (isLibrary bool) {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".a"):
		return true
	default:
		dot := strings.LastIndexByte(lower, '.')
		if dot >= 0 && strings.HasPrefix(lower[dot:], ".li") {
			return true
		}
		return false
	}
}

// SymbolRef locates one symbol inside a loaded module.
type SymbolRef struct {
	Module *Module
	Index  uint32
}

// Linker accumulates modules, libraries, and the resulting symbol
// tables across the whole link (spec.md §4.7).
type Linker struct {
	Modules   []*Module
	Libraries []*arlib.Library

	// symbolExports holds every public/weak symbol from every object and
	// library member (spec.md §4.7), keyed by name.
	symbolExports map[string][]SymbolRef
	// symbolImports holds every external reference, keyed by name.
	symbolImports map[string][]SymbolRef

	pendingWeakDummies map[string]bool // const/ip-data/datap-data/threadp-data/function

	Errors   []error
	Warnings []string
}

func New() *Linker {
	return &Linker{
		symbolExports:      make(map[string][]SymbolRef),
		symbolImports:      make(map[string][]SymbolRef),
		pendingWeakDummies: make(map[string]bool),
	}
}

// AddModule ingests an already-parsed object (spec.md §4.7 "Load, tag
// with moduleName, verify the file magic" — magic verification already
// happened in elf2.Parse).
func (l *Linker) AddModule(filename string, c *elf2.Container) *Module {
	m := &Module{Name: NormalizeModuleName(filename), Container: c}
	l.Modules = append(l.Modules, m)
	return m
}

// AddLibrary registers an already-parsed library for the search phase.
func (l *Linker) AddLibrary(lib *arlib.Library) {
	lib.Index()
	l.Libraries = append(l.Libraries, lib)
}

func isExported(b elf2.Bind) bool {
	return b == elf2.BindGlobal || b == elf2.BindWeak || b == elf2.BindWeak2 || b == elf2.BindIgnore
}

func isWeak(b elf2.Bind) bool {
	return b == elf2.BindWeak || b == elf2.BindWeak2
}

// BuildSymbolTables scans every ingested module and records
// symbolExports/symbolImports (spec.md §4.7 "Symbol tables"). Call
// again after SearchLibraries pulls in new members.
func (l *Linker) BuildSymbolTables() {
	l.symbolExports = make(map[string][]SymbolRef)
	l.symbolImports = make(map[string][]SymbolRef)
	for _, m := range l.Modules {
		for i, s := range m.Container.Symbols {
			name := m.Container.SymName(s.Name)
			if name == "" {
				continue
			}
			ref := SymbolRef{Module: m, Index: uint32(i)}
			if s.Section == elf2.SectionUndef {
				l.symbolImports[name] = append(l.symbolImports[name], ref)
				continue
			}
			if isExported(s.Bind) {
				l.symbolExports[name] = append(l.symbolExports[name], ref)
			}
		}
	}
}

// DuplicateSymbols reports every name exported non-weak by more than
// one module (spec.md §4.7 "Duplicate detection": weak/weak and
// weak/strong collisions are permitted).
func (l *Linker) DuplicateSymbols() []string {
	var dups []string
	for name, refs := range l.symbolExports {
		strongCount := 0
		for _, r := range refs {
			if !isWeak(r.Module.Container.Symbols[r.Index].Bind) {
				strongCount++
			}
		}
		if strongCount > 1 {
			dups = append(dups, name)
		}
	}
	sort.Strings(dups)
	return dups
}

// ResolveExport picks the surviving definition for name per §4.7's
// "strong-wins / first-wins" rule.
func (l *Linker) ResolveExport(name string) (SymbolRef, bool) {
	refs := l.symbolExports[name]
	if len(refs) == 0 {
		return SymbolRef{}, false
	}
	for _, r := range refs {
		if !isWeak(r.Module.Container.Symbols[r.Index].Bind) {
			return r, true
		}
	}
	return refs[0], true
}

// SearchLibraries repeats the library search to a fixed point (spec.md
// §4.7 "Library search"): for each unresolved non-weak import, find
// the first library exporting it, load that member as a new Module,
// and rescan. Returns the names still unresolved (strong) after the
// fixed point. The weak-dummy classes are not returned;
// PendingWeakDummyClasses reports them.
func (l *Linker) SearchLibraries() (unresolvedStrong []string) {
	for {
		l.BuildSymbolTables()
		progressed := false

		var names []string
		for name := range l.symbolImports {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			if _, ok := l.symbolExports[name]; ok {
				continue
			}
			refs := l.symbolImports[name]
			anyStrong := false
			for _, r := range refs {
				if !isWeak(r.Module.Container.Symbols[r.Index].Bind) {
					anyStrong = true
				}
			}
			if !anyStrong {
				continue
			}
			member, lib, found := l.findInLibraries(name)
			if !found {
				continue
			}
			c, err := elf2.Parse(member.Data)
			if err != nil {
				l.Errors = append(l.Errors, fmt.Errorf("library member %s: %w", member.Name, err))
				continue
			}
			_ = lib
			l.AddModule(member.Name, c)
			progressed = true
		}
		if !progressed {
			break
		}
	}

	l.BuildSymbolTables()
	var unresolved []string
	for name, refs := range l.symbolImports {
		if _, ok := l.symbolExports[name]; ok {
			continue
		}
		anyStrong := false
		for _, r := range refs {
			if !isWeak(r.Module.Container.Symbols[r.Index].Bind) {
				anyStrong = true
			} else {
				l.recordWeakDummyClass(r)
			}
		}
		if anyStrong {
			unresolved = append(unresolved, name)
		}
	}
	sort.Strings(unresolved)
	return unresolved
}

func (l *Linker) findInLibraries(name string) (arlib.Member, *arlib.Library, bool) {
	for _, lib := range l.Libraries {
		if m, ok := lib.FindSymbol(name); ok {
			return m, lib, true
		}
	}
	return arlib.Member{}, nil, false
}

// recordWeakDummyClass tracks which dummy section classes the layout
// planner must synthesize (spec.md §4.7/§4.8).
func (l *Linker) recordWeakDummyClass(r SymbolRef) {
	s := r.Module.Container.Symbols[r.Index]
	switch {
	case s.Other&elf2.STVIP != 0:
		l.pendingWeakDummies["ip-data"] = true
	case s.Other&elf2.STVDatap != 0:
		l.pendingWeakDummies["datap-data"] = true
	case s.Other&elf2.STVThreadp != 0:
		l.pendingWeakDummies["threadp-data"] = true
	case s.Other&elf2.STVExec != 0:
		l.pendingWeakDummies["function"] = true
	default:
		l.pendingWeakDummies["const"] = true
	}
}

// PendingWeakDummyClasses returns the dummy classes recorded by
// SearchLibraries, sorted.
func (l *Linker) PendingWeakDummyClasses() []string {
	var out []string
	for k := range l.pendingWeakDummies {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
