package elf2

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddSectionAlignsAndTracksOffset(t *testing.T) {
	c := New()
	nameOff := c.AddSecName(".text")
	idx := c.AddSection(SectionHeader{Name: nameOff, Type: 1, Flags: SHFAlloc | SHFExec, AddrAlign: 4}, []byte{1, 2, 3, 4})
	require.Equal(t, 0, idx)
	require.Equal(t, uint64(0), c.Sections[0].Offset)
	require.Equal(t, ".text", c.SecName(c.Sections[0].Name))

	idx2 := c.AddSection(SectionHeader{Type: 1, Flags: SHFAlloc | SHFWrite, AddrAlign: 4}, []byte{9})
	require.Equal(t, 1, idx2)
	require.Equal(t, uint64(4), c.Sections[1].Offset)
}

func TestAddSymbolAndRelocationIndexes(t *testing.T) {
	c := New()
	nameOff := c.AddSymName("foo")
	si := c.AddSymbol(Symbol{Name: nameOff, Bind: BindGlobal, Section: 1})
	require.Equal(t, uint32(0), si)

	ri := c.AddRelocation(Relocation{Symbol: si, Kind: RelocSelfRelative, Size: Size32})
	require.Equal(t, uint32(0), ri)
	require.Equal(t, "foo", c.SymName(c.Symbols[0].Name))
}

func TestSymbolAddressUncertaintyPacking(t *testing.T) {
	var s Symbol
	s.SetAddress(0x1000)
	s.SetUncertainty(3)
	require.Equal(t, uint32(0x1000), s.Address())
	require.Equal(t, uint32(3), s.Uncertainty())
}

func TestSortForDisassemblyRewritesRelocationIndexes(t *testing.T) {
	c := New()
	s0 := Symbol{Section: 0}
	s0.SetAddress(100)
	s1 := Symbol{Section: 0}
	s1.SetAddress(10)
	s2 := Symbol{Section: 0}
	s2.SetAddress(50)
	c.Symbols = []Symbol{s0, s1, s2}
	c.Relocations = []Relocation{
		{Symbol: 0, Section: 0, Offset: 5},
		{Symbol: 1, RefSymbol: 2, Section: 0, Offset: 1},
	}

	c.SortForDisassembly()

	require.Equal(t, uint32(10), c.Symbols[0].Address())
	require.Equal(t, uint32(50), c.Symbols[1].Address())
	require.Equal(t, uint32(100), c.Symbols[2].Address())

	// old index 0 -> new index 2, old index 1 -> new index 0, old index 2 -> new index 1
	require.Equal(t, uint32(2), c.Relocations[1].Symbol) // was {Symbol:0,...} offset 5, now sorted second by offset
	require.Equal(t, uint32(0), c.Relocations[0].Symbol)
	require.Equal(t, uint32(1), c.Relocations[0].RefSymbol)
}

func TestRelocationEncodeDecodeRoundTrip(t *testing.T) {
	r := Relocation{Kind: RelocRelativeToIPBase, Scale: 2, Size: Size32, LoadTime: true}
	size, kind, scale, loadTime := DecodeType(r.EncodeType())
	require.Equal(t, Size32, size)
	require.Equal(t, RelocRelativeToIPBase, kind)
	require.Equal(t, 2, scale)
	require.True(t, loadTime)
}

func TestJoinProducesWellFormedHeader(t *testing.T) {
	c := New()
	c.Header.Machine = EMForwardCom
	nameOff := c.AddSecName(".text")
	c.AddSection(SectionHeader{Name: nameOff, Type: 1, Flags: SHFAlloc | SHFExec, AddrAlign: 4}, []byte{1, 2, 3, 4})
	c.AddSymbol(Symbol{Bind: BindGlobal, Section: 0})
	c.AddRelocation(Relocation{Symbol: 0, Kind: RelocSelfRelative, Size: Size32})

	out := c.Join()
	require.Equal(t, fileMagic[0], out[0])
	require.Equal(t, byte(OSABIForwardCom), out[7])
	require.True(t, len(out) > ehdrSize)
}
