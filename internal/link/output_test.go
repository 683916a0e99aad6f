package link

import (
	"encoding/binary"
	"testing"

	"github.com/ForwardCom/bintools/internal/elf2"
	"github.com/stretchr/testify/require"
)

func containerWithSection(flags uint64, data []byte) *elf2.Container {
	c := elf2.New()
	nameOff := c.AddSecName(".text")
	c.AddSection(elf2.SectionHeader{Name: nameOff, Type: 1, Flags: flags, AddrAlign: 4}, data)
	return c
}

func TestEmitPatchesSelfRelativeCrossModuleReloc(t *testing.T) {
	l := New()

	a := containerWithSection(elf2.SHFAlloc|elf2.SHFExec, []byte{0, 0, 0, 0})
	barOff := a.AddSymName("bar")
	a.AddSymbol(elf2.Symbol{Name: barOff, Bind: elf2.BindGlobal, Section: elf2.SectionUndef})
	a.AddRelocation(elf2.Relocation{Section: 0, Offset: 0, Kind: elf2.RelocSelfRelative, Size: elf2.Size32})
	l.AddModule("a.fco", a)

	b := containerWithSection(elf2.SHFAlloc|elf2.SHFExec, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	sym := elf2.Symbol{Name: b.AddSymName("bar"), Bind: elf2.BindGlobal, Section: 0}
	sym.SetAddress(4)
	b.AddSymbol(sym)
	l.AddModule("b.fco", b)

	l.BuildSymbolTables()
	require.Empty(t, l.DuplicateSymbols())
	require.Empty(t, l.SearchLibraries())

	lay, err := l.PlanLayout()
	require.NoError(t, err)

	out, errs := l.Emit(lay, false)
	require.Empty(t, errs)
	require.Len(t, out.Sections, 2)

	aOut := out.Sections[0]
	patched := out.DataBuffer[aOut.Offset : aOut.Offset+aOut.Size]
	require.Equal(t, uint32(8), binary.LittleEndian.Uint32(patched))
}

func TestEmitRelinkMarksOutputAndKeepsRelocations(t *testing.T) {
	l := New()

	a := containerWithSection(elf2.SHFAlloc|elf2.SHFExec, []byte{0, 0, 0, 0})
	barOff := a.AddSymName("bar")
	a.AddSymbol(elf2.Symbol{Name: barOff, Bind: elf2.BindGlobal, Section: elf2.SectionUndef})
	a.AddRelocation(elf2.Relocation{Section: 0, Offset: 0, Kind: elf2.RelocSelfRelative, Size: elf2.Size32})
	l.AddModule("a.fco", a)

	b := containerWithSection(elf2.SHFAlloc|elf2.SHFExec, []byte{1, 2, 3, 4})
	sym := elf2.Symbol{Name: b.AddSymName("bar"), Bind: elf2.BindGlobal, Section: 0}
	sym.SetAddress(0)
	b.AddSymbol(sym)
	l.AddModule("b.fco", b)

	l.BuildSymbolTables()
	require.Empty(t, l.DuplicateSymbols())
	require.Empty(t, l.SearchLibraries())

	lay, err := l.PlanLayout()
	require.NoError(t, err)

	out, errs := l.Emit(lay, true)
	require.Empty(t, errs)
	require.True(t, out.Header.Relinkable)
	require.NotEmpty(t, out.Relocations, "a relink build must retain a load-time record even for a non-SHFRelink target section")
}

func TestResolveWeakImportsBindsDummySection(t *testing.T) {
	l := New()
	a := containerWithSection(elf2.SHFAlloc|elf2.SHFExec, []byte{0, 0, 0, 0})
	off := a.AddSymName("__missing_weak")
	a.AddSymbol(elf2.Symbol{Name: off, Bind: elf2.BindWeak, Section: elf2.SectionUndef})
	l.AddModule("a.fco", a)

	l.BuildSymbolTables()
	require.Empty(t, l.SearchLibraries())
	require.Equal(t, []string{"const"}, l.PendingWeakDummyClasses())

	l.ResolveWeakImports(elf2.New())
	require.Contains(t, l.symbolExports, "__missing_weak")
}
