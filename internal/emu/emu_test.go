package emu

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubJumpZeroTaken(t *testing.T) {
	sess := &Session{IP: 100}
	err := Dispatch(sess, Instruction{Opcode: 0, Type: Int32, A: 5, B: 5, AddrOperand: 10})
	require.NoError(t, err)
	require.True(t, sess.LastTaken)
	require.Equal(t, uint32(140), sess.IP)
}

func TestSubJumpOddOpcodeInvertsCondition(t *testing.T) {
	sess := &Session{IP: 0}
	// opcode 1 is opcode 0's "inverted" pair: branch on NOT zero.
	err := Dispatch(sess, Instruction{Opcode: 1, Type: Int32, A: 5, B: 5, AddrOperand: 10})
	require.NoError(t, err)
	require.False(t, sess.LastTaken)
	require.Equal(t, uint32(0), sess.IP)
}

func TestSubJumpRejectsFloatType(t *testing.T) {
	sess := &Session{}
	err := Dispatch(sess, Instruction{Opcode: 0, Type: Float})
	require.Error(t, err)
}

func TestCompareJumpUnorderedBranchesOnNaN(t *testing.T) {
	sess := &Session{}
	// opcode 38 (sub 6 = 32+6): unordered variant of the <= compare; NaN must take the branch.
	err := Dispatch(sess, Instruction{Opcode: 38, Type: Double, FA: nan(), FB: 1, AddrOperand: 4})
	require.NoError(t, err)
	require.True(t, sess.LastTaken)
}

func TestIncrementCompareJump(t *testing.T) {
	sess := &Session{}
	err := Dispatch(sess, Instruction{Opcode: 48, Type: Int32, A: 4, B: 10, AddrOperand: 1})
	require.NoError(t, err)
	require.True(t, sess.LastTaken) // 4+1=5 < 10
}

func TestCallAndReturnRoundTrip(t *testing.T) {
	sess := &Session{IP: 200}
	require.NoError(t, Dispatch(sess, Instruction{Opcode: 58, AddrOperand: 50}))
	require.Equal(t, ReturnCall, sess.ReturnType)
	require.Equal(t, []uint32{200}, sess.CallStack)

	sess.IP = 9999
	require.NoError(t, Dispatch(sess, Instruction{Opcode: 62}))
	require.Equal(t, uint32(200), sess.IP)
	require.Empty(t, sess.CallStack)
}

func TestUnknownOpcodeErrors(t *testing.T) {
	sess := &Session{}
	err := Dispatch(sess, Instruction{Opcode: 9})
	require.Error(t, err)
}

func nan() float64 {
	var zero float64
	return zero / zero
}
