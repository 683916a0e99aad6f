package disasm

import (
	"testing"

	"github.com/ForwardCom/bintools/internal/elf2"
	"github.com/ForwardCom/bintools/internal/format"
	"github.com/stretchr/testify/require"
)

func TestResolverFindsNearestPrecedingSymbol(t *testing.T) {
	c := elf2.New()
	nameOff := c.AddSymName("start")
	sym := elf2.Symbol{Name: nameOff, Section: 0}
	sym.SetAddress(0)
	c.AddSymbol(sym)

	later := elf2.Symbol{Section: 0}
	later.SetAddress(100)
	c.AddSymbol(later)

	res := NewResolver(c)
	name, ok := res.Lookup(0, 4)
	require.True(t, ok)
	require.Equal(t, "start", name)

	_, ok = res.Lookup(1, 0)
	require.False(t, ok)
}

func TestDisassembleWalksExecutableSection(t *testing.T) {
	c := elf2.New()
	nameOff := c.AddSecName(".text")
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	c.AddSection(elf2.SectionHeader{Name: nameOff, Type: 1, Flags: elf2.SHFAlloc | elf2.SHFExec, AddrAlign: 4}, data)

	lines, err := Disassemble(c, nil, func(words []uint32, entryIdx int) (string, string) {
		return "nop", ""
	})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Equal(t, uint32(0), lines[0].Address)
	require.Equal(t, uint32(4), lines[1].Address)
}

func TestDecodeOpNamesJumpFamilyAndOperands(t *testing.T) {
	idx := -1
	for i, e := range format.Catalog {
		if e.Category == format.CatJump && e.JumpSize == 16 {
			idx = i
			break
		}
	}
	require.GreaterOrEqual(t, idx, 0)

	// rt=1, rs=2, opcode=0 (sub_jump_generic), displacement=+3 words.
	word := uint32(1) | uint32(2)<<5 | uint32(3)<<16
	mnem, ops := DecodeOp([]uint32{word}, idx)
	require.Equal(t, "sub_jump_generic", mnem)
	require.Equal(t, "r1, r2, +3", ops)
}

func TestDecodeOpReportsNopAndUnknownEntry(t *testing.T) {
	nopIdx := -1
	for i, e := range format.Catalog {
		if e.Category == format.CatSingle && e.OpAvail == 0 {
			nopIdx = i
			break
		}
	}
	require.GreaterOrEqual(t, nopIdx, 0)

	mnem, ops := DecodeOp([]uint32{0}, nopIdx)
	require.Equal(t, "nop", mnem)
	require.Empty(t, ops)

	mnem, ops = DecodeOp([]uint32{0}, -1)
	require.Equal(t, "??", mnem)
	require.Empty(t, ops)
}

func TestRenderIncludesSymbolAndMnemonic(t *testing.T) {
	lines := []Line{
		{Address: 0, Mnemonic: "nop", Symbol: "start"},
		{Address: 4, Mnemonic: "ret"},
	}
	out := Render(lines)
	require.Contains(t, out, "start:")
	require.Contains(t, out, "00000000: nop")
	require.Contains(t, out, "00000004: ret")
}
