package link

import (
	"testing"

	"github.com/ForwardCom/bintools/internal/elf2"
	"github.com/stretchr/testify/require"
)

func TestClassifyInput(t *testing.T) {
	require.True(t, ClassifyInput("foo.a"))
	require.True(t, ClassifyInput("foo.lib"))
	require.True(t, ClassifyInput("foo.li"))
	require.False(t, ClassifyInput("foo.fco"))
	require.False(t, ClassifyInput("foo.o"))
}

func TestNormalizeModuleName(t *testing.T) {
	require.Equal(t, "a_b_c_d", NormalizeModuleName("a:b c\td"))
}

func moduleWithSymbol(name string, bind elf2.Bind, section int32) *elf2.Container {
	c := elf2.New()
	nameOff := c.AddSymName(name)
	sym := elf2.Symbol{Name: nameOff, Bind: bind, Section: section}
	sym.SetAddress(0)
	c.AddSymbol(sym)
	return c
}

func TestBuildSymbolTablesSeparatesExportsAndImports(t *testing.T) {
	l := New()
	l.AddModule("a.fco", moduleWithSymbol("foo", elf2.BindGlobal, 0))
	l.AddModule("b.fco", moduleWithSymbol("foo", elf2.BindUnresolved, elf2.SectionUndef))

	l.BuildSymbolTables()
	require.Len(t, l.symbolExports["foo"], 1)
	require.Len(t, l.symbolImports["foo"], 1)
}

func TestDuplicateSymbolsFlagsTwoStrongExports(t *testing.T) {
	l := New()
	l.AddModule("a.fco", moduleWithSymbol("foo", elf2.BindGlobal, 0))
	l.AddModule("b.fco", moduleWithSymbol("foo", elf2.BindGlobal, 0))
	l.BuildSymbolTables()

	require.Equal(t, []string{"foo"}, l.DuplicateSymbols())
}

func TestDuplicateSymbolsAllowsWeakAndStrong(t *testing.T) {
	l := New()
	l.AddModule("a.fco", moduleWithSymbol("foo", elf2.BindGlobal, 0))
	l.AddModule("b.fco", moduleWithSymbol("foo", elf2.BindWeak, 0))
	l.BuildSymbolTables()

	require.Empty(t, l.DuplicateSymbols())
}

func TestResolveExportPrefersStrong(t *testing.T) {
	l := New()
	weakC := moduleWithSymbol("foo", elf2.BindWeak, 0)
	strongC := moduleWithSymbol("foo", elf2.BindGlobal, 0)
	l.AddModule("weak.fco", weakC)
	l.AddModule("strong.fco", strongC)
	l.BuildSymbolTables()

	ref, ok := l.ResolveExport("foo")
	require.True(t, ok)
	require.Equal(t, elf2.BindGlobal, ref.Module.Container.Symbols[ref.Index].Bind)
}

func TestCheckSizeClassOverflow(t *testing.T) {
	require.NoError(t, checkSizeClass(127, elf2.Size8))
	require.Error(t, checkSizeClass(200, elf2.Size8))
}

func TestRelocateSelfRelative(t *testing.T) {
	lay := &Layout{}
	target := ResolvedTarget{Address: 1000}
	data := make([]byte, 4)
	err := Relocate(lay, elf2.Relocation{Kind: elf2.RelocSelfRelative, Size: elf2.Size32}, target, 900, 0, data)
	require.NoError(t, err)
	require.Equal(t, uint32(100), leU32(data))
}

func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
