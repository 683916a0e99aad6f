// Package expr implements the expression evaluator (spec.md C3 / §4.3):
// it turns a token range into a typed Expression tree with operator
// precedence, monadic/dyadic/triadic operators, a bracket stack, and
// memory-operand accumulation. Grounded on the teacher's parser/parser.go
// operand-parsing shape, generalized from ARM's fixed operand grammar to
// ForwardCom's register/memory/immediate/option composition (spec.md §3.2).
package expr

import (
	"github.com/ForwardCom/bintools/internal/format"
	"github.com/ForwardCom/bintools/internal/token"
)

// EType is the classification bitset of an Expression (spec.md §3.2).
type EType uint64

const (
	Int EType = 1 << iota
	Flt
	String
	Reg
	Reg1
	Reg2
	Reg3
	Mem
	Base
	Index
	Offset
	Immediate
	Option
	Options
	Sym1
	Sym2
	Sym3
	Sym4
	SymScale
	Limit
	Length
	Broadcast
	Scalar
	Mask
	Fallback
	JumpOs
	Unresolved
	Op
	ErrorBit
	TypeName
	Int2
)

// Has reports whether all bits in want are set.
func (t EType) Has(want EType) bool { return t&want == want }

// Any reports whether any bit in want is set.
func (t EType) Any(want EType) bool { return t&want != 0 }

// RegClass distinguishes the three register banks (spec.md §3.2 "3 bits
// encoding class").
type RegClass uint8

const (
	RegGP RegClass = iota
	RegVector
	RegSpecial
)

// RegRef packs a 5-bit index with a register class, per spec.md §3.2.
type RegRef struct {
	Index uint8
	Class RegClass
}

func (r RegRef) IsZero() bool { return r.Index == 0 && r.Class == RegGP }

// OptionBits is the 8-bit field carrying sign bits (0-1 first operand,
// 2-3 second operand in AddAdd), the unsigned flag, and compare condition
// bits (spec.md §3.2).
type OptionBits uint8

const (
	OptSign1     OptionBits = 0x01
	OptSign1Hi   OptionBits = 0x02
	OptSign2     OptionBits = 0x04
	OptSign2Hi   OptionBits = 0x08
	OptUnsigned  OptionBits = 0x10
	OptInverted  OptionBits = 0x20 // compare "!" suffix
	OptUnordered OptionBits = 0x40 // vector float unordered compare
)

// Value is a tagged 64-bit integer or IEEE double (spec.md §3.2
// "value"). For a String expression, I holds the string's length; no
// string-buffer offset is stored.
type Value struct {
	I uint64  // integer bits, or the string's length when String is set
	F float64 // valid when Flt is set
}

// Expression is the central typed record produced by the evaluator and
// consumed by internal/fit (spec.md §3.2).
type Expression struct {
	EType EType
	Value Value

	Instruction format.InstructionID
	OptionBits  OptionBits

	Reg1Ref, Reg2Ref, Reg3Ref RegRef

	// Memory operand fields.
	BaseReg, IndexReg       RegRef
	Scale                   int64 // one of {1,2,4,8,16,-1}; -1 means "unscaled, determined later"
	SymScale1               int64
	Length                  uint32
	MaskReg, FallbackReg    RegRef
	OffsetMem, OffsetJump   int64

	// Symbol references hold whatever Resolver.LookupSymbol returned.
	// internal/asm's resolver returns symbol-table indexes, not
	// name-string offsets, so they no longer match once the table is
	// sorted.
	Sym1, Sym2, Sym3, Sym4 uint32

	// Bookkeeping.
	Tokens  int
	FitNum  uint32 // bitset of admissible numeric widths, filled by internal/fit
	FitAddr uint32
	FitJump uint32

	ErrorCode  ErrorCode
	ErrorPos   token.Position
}

// NewError builds an error Expression carrying code at pos (spec.md §4.3
// "Failure. Any inconsistency ... sets etype |= Error").
func NewError(code ErrorCode, pos token.Position) Expression {
	return Expression{EType: ErrorBit, ErrorCode: code, ErrorPos: pos}
}

// IsError reports whether ex failed evaluation.
func (ex Expression) IsError() bool { return ex.EType.Has(ErrorBit) }

// checkInvariants validates the structural invariants of spec.md §3.2
// (c)-(e). Returns the violated invariant's error code, or ErrNone.
func (ex Expression) checkInvariants() ErrorCode {
	if ex.EType.Has(Reg1) && ex.Reg1Ref.IsZero() && ex.Reg1Ref.Class == RegGP {
		// Reg1 bit set with a zero g.p. register is legal (r0 is addressable);
		// the invariant only requires consistency, not non-zero.
	}
	if ex.EType.Has(Offset) && ex.EType.Has(Limit) {
		return ErrLimitAndOffset
	}
	scalarish := 0
	if ex.EType.Has(Scalar) {
		scalarish++
	}
	if ex.EType.Has(Length) {
		scalarish++
	}
	if ex.EType.Has(Broadcast) {
		scalarish++
	}
	if scalarish > 1 {
		return ErrConflictOptions
	}
	if ex.EType.Has(Sym2) && !ex.EType.Has(Sym1) {
		return ErrTooComplex
	}
	return ErrNone
}
