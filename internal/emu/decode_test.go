package emu

import (
	"testing"

	"github.com/ForwardCom/bintools/internal/format"
	"github.com/stretchr/testify/require"
)

func jumpEntry() *format.Entry {
	for i, e := range format.FormatsForJump() {
		if e.JumpSize == 16 {
			return &format.FormatsForJump()[i]
		}
	}
	return nil
}

func TestDecodeExtractsRegistersAndDisplacement(t *testing.T) {
	e := jumpEntry()
	require.NotNil(t, e)

	regs := &RegisterFile{}
	regs.Set(3, 5)
	regs.Set(4, 5)

	// rt=3 (bits 0-4), rs=4 (bits 5-9), opcode=0 (bits 10-15, sub_jump_eq),
	// displacement 2 (bits 16-31).
	word := uint32(3) | uint32(4)<<5 | uint32(2)<<16
	in, err := Decode([]uint32{word}, e, regs)
	require.NoError(t, err)
	require.Equal(t, uint8(0), in.Opcode)
	require.Equal(t, int32(2), in.AddrOperand)
	require.Equal(t, int64(5), in.A)
	require.Equal(t, int64(5), in.B)

	sess := &Session{}
	require.NoError(t, Dispatch(sess, in))
	require.True(t, sess.LastTaken)
}

func TestDecodeRejectsNonJumpEntry(t *testing.T) {
	single := format.Catalog[0]
	_, err := Decode([]uint32{0}, &single, &RegisterFile{})
	require.Error(t, err)
}

func TestDecodeTestBitReadsMaskFromRS(t *testing.T) {
	e := jumpEntry()
	require.NotNil(t, e)

	regs := &RegisterFile{}
	regs.Set(1, 0x4) // rt holds the value under test
	regs.Set(2, 0x4) // rs holds the mask, per test-bit decode (no immediate field on jump entries)

	opcode := uint8(26) // test_bit_jump_true
	word := uint32(1) | uint32(2)<<5 | uint32(opcode)<<10
	in, err := Decode([]uint32{word}, e, regs)
	require.NoError(t, err)
	require.Equal(t, uint64(0x4), in.Mask)

	sess := &Session{}
	require.NoError(t, Dispatch(sess, in))
	require.True(t, sess.LastTaken)
}

func TestFamilyNameCoversDocumentedOpcodes(t *testing.T) {
	require.Equal(t, "sub_jump_generic", FamilyName(0))
	require.Equal(t, "compare_jump_generic", FamilyName(35))
	require.Equal(t, "syscall", FamilyName(63))
	require.Equal(t, "", FamilyName(9))
}
