// Package emu implements the jump emulator (spec.md C10 / §4.10):
// Decode extracts a jump Instruction from a catalog entry's encoded
// word, and a dispatch table indexed by the instruction's low 6
// opcode bits selects the handler that computes its branch condition,
// grouped into opcode families that share operand classes and
// condition shapes. Grounded on the teacher's vm/executor.go dispatch
// loop and vm/branch.go's "decode condition, compute target, advance
// ip" shape, generalized from ARM's 4-bit condition field to
// ForwardCom's per-family condition logic
// (original_source/emulator3.cpp's funcTab3, per the Open Question
// decision recorded in DESIGN.md).
package emu

import (
	"fmt"
	"math"
)

// OperandType is the operand class a jump instruction computes its
// condition over (spec.md §4.10).
type OperandType int

const (
	Int8 OperandType = iota
	Int16
	Int32
	Int64
	Float
	Double
)

// ErrWrongParameters is raised for an operand-type/opcode combination
// the family does not support (spec.md §4.10).
type ErrWrongParameters struct{ Detail string }

func (e *ErrWrongParameters) Error() string { return fmt.Sprintf("emu: wrong parameters: %s", e.Detail) }

// Instruction is one decoded jump instruction's operand record,
// produced by Decode from a catalog entry's encoded word.
type Instruction struct {
	Opcode      uint8 // low 6 bits select the dispatch entry
	Type        OperandType
	A, B        int64   // integer operand values (sign-extended per Type)
	FA, FB      float64 // float/double operand values, valid when Type is Float/Double
	Mask        uint64  // bit-test mask for test_bit/test_bits families
	AddrOperand int32   // branch displacement in instruction words
	VectorLen   int     // for sub_maxlen_jump_pos
}

// Session is the minimal execution context a jump handler needs: the
// instruction pointer to advance, and a debug-return classification
// slot mirroring the teacher's ExecutionState.
type Session struct {
	IP         uint32
	LastTaken  bool
	ReturnType DebugReturnType
	CallStack  []uint32
}

// DebugReturnType mirrors spec.md §4.10 "set a debug return type".
type DebugReturnType int

const (
	ReturnNone DebugReturnType = iota
	ReturnBranchTaken
	ReturnBranchNotTaken
	ReturnCall
	ReturnReturn
	ReturnSyscall
)

// Handler computes whether a jump is taken, given the decoded
// instruction. The "odd opcode inverts condition" bit and the ip
// advance are applied uniformly by Dispatch, not by the handler.
type Handler func(in Instruction) (taken bool, err error)

// dispatch is the funcTab3-equivalent table, indexed by opcode & 0x3F.
var dispatch [64]Handler

func init() {
	for op := 0; op <= 7; op++ {
		dispatch[op] = subJumpGeneric
	}
	for op := 10; op <= 15; op++ {
		dispatch[op] = bitwiseJumpZero
	}
	for op := 16; op <= 25; op++ {
		dispatch[op] = addJumpGeneric
	}
	for op := 26; op <= 27; op++ {
		dispatch[op] = testBitJumpTrue
	}
	for op := 28; op <= 29; op++ {
		dispatch[op] = testBitsAnd
	}
	for op := 30; op <= 31; op++ {
		dispatch[op] = testBitsOr
	}
	for op := 32; op <= 41; op++ {
		dispatch[op] = compareJumpGeneric
	}
	for op := 48; op <= 51; op++ {
		dispatch[op] = incrementCompareJump
	}
	for op := 52; op <= 53; op++ {
		dispatch[op] = subMaxlenJumpPos
	}
	dispatch[58] = jumpCall58
	dispatch[59] = multiwayAndIndirect
	dispatch[62] = return62
	dispatch[63] = syscall63
}

// Dispatch runs the handler for in.Opcode, applies the odd-opcode
// inverts-condition rule, and advances sess.IP by addrOperand*4 when
// taken (spec.md §4.10).
func Dispatch(sess *Session, in Instruction) error {
	h := dispatch[in.Opcode&0x3F]
	if h == nil {
		return &ErrWrongParameters{Detail: fmt.Sprintf("opcode %d has no handler", in.Opcode&0x3F)}
	}
	taken, err := h(in)
	if err != nil {
		return err
	}
	if in.Opcode&1 == 1 && in.Opcode != 63 {
		taken = !taken
	}
	sess.LastTaken = taken

	switch in.Opcode & 0x3F {
	case 58:
		sess.CallStack = append(sess.CallStack, sess.IP)
		sess.ReturnType = ReturnCall
	case 62:
		if n := len(sess.CallStack); n > 0 {
			sess.IP = sess.CallStack[n-1]
			sess.CallStack = sess.CallStack[:n-1]
		}
		sess.ReturnType = ReturnReturn
		return nil
	case 63:
		sess.ReturnType = ReturnSyscall
		return nil
	}

	if taken {
		sess.IP += uint32(in.AddrOperand) * 4
		if sess.ReturnType != ReturnCall {
			sess.ReturnType = ReturnBranchTaken
		}
	} else if sess.ReturnType != ReturnCall {
		sess.ReturnType = ReturnBranchNotTaken
	}
	return nil
}

func isFloatType(t OperandType) bool { return t == Float || t == Double }

// subJumpGeneric computes a-b and branches on zero/negative/positive/
// unsigned-borrow depending on opcode bits 2:1 (spec.md §4.10, opcodes
// 0-7). Integer types only. There is no signed-overflow condition.
func subJumpGeneric(in Instruction) (bool, error) {
	if isFloatType(in.Type) {
		return false, &ErrWrongParameters{Detail: "sub_jump_generic requires an integer type"}
	}
	diff := in.A - in.B
	switch (in.Opcode >> 1) & 0x3 {
	case 0:
		return diff == 0, nil
	case 1:
		return diff < 0, nil
	case 2:
		return diff > 0, nil
	default:
		borrow := uint64(in.A) < uint64(in.B)
		return borrow, nil
	}
}

// addJumpGeneric computes a+b and branches analogously to
// subJumpGeneric; opcodes 24/25 are reused for float fp_category
// tests (spec.md §4.10, opcodes 16-25).
func addJumpGeneric(in Instruction) (bool, error) {
	if in.Opcode == 24 || in.Opcode == 25 {
		if !isFloatType(in.Type) {
			return false, &ErrWrongParameters{Detail: "fp_category test requires a float type"}
		}
		return math.IsNaN(in.FA) || math.IsInf(in.FA, 0), nil
	}
	if isFloatType(in.Type) {
		return false, &ErrWrongParameters{Detail: "add_jump_generic requires an integer type"}
	}
	sum := in.A + in.B
	switch (in.Opcode >> 1) & 0x3 {
	case 0:
		return sum == 0, nil
	case 1:
		return sum < 0, nil
	case 2:
		return sum > 0, nil
	default:
		return (in.A > 0 && in.B > 0 && sum < 0) || (in.A < 0 && in.B < 0 && sum >= 0), nil
	}
}

// bitwiseJumpZero implements and_jump_zero/or_jump_zero/xor_jump_zero
// (spec.md §4.10, opcodes 10-15), selected by opcode bits 2:1.
func bitwiseJumpZero(in Instruction) (bool, error) {
	var r int64
	switch (in.Opcode - 10) / 2 {
	case 0:
		r = in.A & in.B
	case 1:
		r = in.A | in.B
	default:
		r = in.A ^ in.B
	}
	return r == 0, nil
}

// testBitJumpTrue implements the single-bit test family (spec.md
// §4.10, opcodes 26-27).
func testBitJumpTrue(in Instruction) (bool, error) {
	return uint64(in.A)&in.Mask != 0, nil
}

// testBitsAnd branches when every masked bit is set (spec.md §4.10,
// opcodes 28-29).
func testBitsAnd(in Instruction) (bool, error) {
	return uint64(in.A)&in.Mask == in.Mask, nil
}

// testBitsOr branches when any masked bit is set (spec.md §4.10,
// opcodes 30-31).
func testBitsOr(in Instruction) (bool, error) {
	return uint64(in.A)&in.Mask != 0, nil
}

// compareJumpGeneric implements equality and signed/unsigned ordering,
// plus NaN-aware ordered/unordered float compares with an
// absolute-value sub-bit (spec.md §4.10, opcodes 32-41).
func compareJumpGeneric(in Instruction) (bool, error) {
	sub := in.Opcode - 32
	if isFloatType(in.Type) {
		a, b := in.FA, in.FB
		if sub&1 == 1 { // absolute-value sub-bit
			a, b = math.Abs(a), math.Abs(b)
		}
		unordered := sub >= 6
		if math.IsNaN(a) || math.IsNaN(b) {
			return unordered, nil
		}
		switch sub >> 1 {
		case 0:
			return a == b, nil
		case 1:
			return a < b, nil
		default:
			return a <= b, nil
		}
	}
	switch sub >> 1 {
	case 0:
		return in.A == in.B, nil
	case 1:
		return in.A < in.B, nil
	case 2:
		return uint64(in.A) < uint64(in.B), nil
	default:
		return in.A <= in.B, nil
	}
}

// incrementCompareJump computes a+1 and branches on signed
// below/above a bound (spec.md §4.10, opcodes 48-51).
func incrementCompareJump(in Instruction) (bool, error) {
	incremented := in.A + 1
	if in.Opcode&1 == 0 {
		return incremented < in.B, nil
	}
	return incremented > in.B, nil
}

// subMaxlenJumpPos computes a - max_vector_len(T) and branches on
// positive, used for vector-loop tails (spec.md §4.10, opcodes 52-53).
func subMaxlenJumpPos(in Instruction) (bool, error) {
	maxLen := maxVectorLen(in.Type)
	return in.A-int64(maxLen) > 0, nil
}

func maxVectorLen(t OperandType) int {
	switch t {
	case Int8:
		return 64
	case Int16:
		return 32
	case Int32, Float:
		return 16
	default:
		return 8
	}
}

// jumpCall58 implements direct/indirect/table jump and call-stack push
// (spec.md §4.10, opcode 58).
func jumpCall58(in Instruction) (bool, error) {
	return true, nil
}

// multiwayAndIndirect implements the jump-table dispatch family
// (spec.md §4.10, opcode 59).
func multiwayAndIndirect(in Instruction) (bool, error) {
	return true, nil
}

// return62 pops the call stack (spec.md §4.10, opcode 62).
func return62(in Instruction) (bool, error) {
	return true, nil
}

// syscall63 dispatches a system call and never itself redirects ip
// (spec.md §4.10, opcode 63).
func syscall63(in Instruction) (bool, error) {
	return false, nil
}
