package emit

import (
	"testing"

	"github.com/ForwardCom/bintools/internal/elf2"
	"github.com/ForwardCom/bintools/internal/expr"
	"github.com/ForwardCom/bintools/internal/fit"
	"github.com/ForwardCom/bintools/internal/format"
	"github.com/stretchr/testify/require"
)

func noSymbols(uint32) (elf2.Symbol, elf2.SizeClass, bool) { return elf2.Symbol{}, elf2.SizeNone, false }

func TestEmitImmediateFieldRoundTrip(t *testing.T) {
	entry := format.Entry{
		Format2: 0x123, Category: format.CatMulti, OpAvail: format.AvailImmediate | format.AvailRT,
		ImmSize: 8, ImmPos: 32, Words: 2,
	}
	code := &fit.Code{FormatP: &entry}
	code.EType = expr.Immediate
	code.Value.I = 0x2A

	res := Emit(code, noSymbols)
	require.Len(t, res.Words, 2)

	got := readSigned(res.Words, 32, 8)
	require.Equal(t, int64(0x2A), got)
}

func TestEmitNopClearsOperandBits(t *testing.T) {
	entry := format.Entry{Format2: 0, Category: format.CatMulti, Words: 1}
	code := &fit.Code{FormatP: &entry}
	code.Instruction = format.Nop
	code.Reg1Ref = expr.RegRef{Index: 7}

	res := Emit(code, noSymbols)
	require.Equal(t, uint32(0), res.Words[0])
}

func TestEmitJumpOffsetAndRelocation(t *testing.T) {
	entry := format.Entry{Category: format.CatJump, JumpSize: 16, JumpPos: 16, Words: 1}
	code := &fit.Code{FormatP: &entry}
	code.EType = expr.Sym1
	code.Sym1 = 5
	code.OffsetJump = 40

	resolver := func(sym uint32) (elf2.Symbol, elf2.SizeClass, bool) {
		require.Equal(t, uint32(5), sym)
		return elf2.Symbol{}, elf2.Size16, true
	}
	res := Emit(code, resolver)
	require.Len(t, res.Relocations, 1)
	require.Equal(t, elf2.RelocSelfRelative, res.Relocations[0].Kind)
}

func readSigned(words []uint32, bitPos, bitSize int) int64 {
	var buf [12]byte
	for i, w := range words {
		buf[i*4] = byte(w)
		buf[i*4+1] = byte(w >> 8)
		buf[i*4+2] = byte(w >> 16)
		buf[i*4+3] = byte(w >> 24)
	}
	var uv uint64
	byteOff := bitPos / 8
	bitOff := uint(bitPos % 8)
	remaining := bitSize
	shift := uint(0)
	for remaining > 0 {
		bitsHere := 8 - int(bitOff)
		if bitsHere > remaining {
			bitsHere = remaining
		}
		chunkMask := byte(1<<uint(bitsHere) - 1)
		chunk := (buf[byteOff] >> bitOff) & chunkMask
		uv |= uint64(chunk) << shift
		remaining -= bitsHere
		shift += uint(bitsHere)
		byteOff++
		bitOff = 0
	}
	return int64(uv)
}
