package expr

import "fmt"

// ErrorCode is the flat taxonomy of §7 "Syntax"/"Semantics" errors the
// evaluator can raise. Fit/link/container/emulator errors live in their
// own packages (internal/fit, internal/link, internal/elf2, internal/emu).
type ErrorCode int

const (
	ErrNone ErrorCode = iota
	ErrMissingExpression
	ErrBracketBegin
	ErrBracketEnd
	ErrQuestionMark
	ErrUnfinishedInstruction
	ErrWrongType
	ErrMemComponentTwice
	ErrLimitAndOffset
	ErrScaleFactor
	ErrNegIndexLength
	ErrIndexAndLength
	ErrMaskNotRegister
	ErrFallbackWrong
	ErrNotInsideMem
	ErrTooComplex
	ErrTooManyOperands
	ErrTooFewOperands
	ErrCannotSwapVect
	ErrOverflow
	ErrConflictType
	ErrConflictOptions
	ErrWrongRegType
	ErrOperandsWrongOrder
	ErrR28_30_Base
)

var names = map[ErrorCode]string{
	ErrMissingExpression:     "missing expression",
	ErrBracketBegin:          "unexpected '['",
	ErrBracketEnd:            "unmatched ']'",
	ErrQuestionMark:          "unmatched '?'",
	ErrUnfinishedInstruction: "unfinished instruction",
	ErrWrongType:             "wrong type for this context",
	ErrMemComponentTwice:     "memory operand component specified twice",
	ErrLimitAndOffset:        "limit and offset are mutually exclusive",
	ErrScaleFactor:           "invalid scale factor",
	ErrNegIndexLength:        "negative index with length option",
	ErrIndexAndLength:        "index register and length option conflict",
	ErrMaskNotRegister:       "mask operand is not a register",
	ErrFallbackWrong:         "fallback operand is invalid here",
	ErrNotInsideMem:          "operator only valid inside [...]",
	ErrTooComplex:            "expression too complex to fit one instruction",
	ErrTooManyOperands:       "too many operands",
	ErrTooFewOperands:        "too few operands",
	ErrCannotSwapVect:        "cannot reorder vector operands",
	ErrOverflow:              "constant overflow",
	ErrConflictType:          "conflicting operand types",
	ErrConflictOptions:       "conflicting options (scalar/length/broadcast)",
	ErrWrongRegType:          "wrong register class for this operand",
	ErrOperandsWrongOrder:    "operands in an order this instruction cannot encode",
	ErrR28_30_Base:           "r28/r30 not allowed as index base here",
}

func (c ErrorCode) String() string {
	if s, ok := names[c]; ok {
		return s
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// Error adapts an evaluator ErrorCode + position to the standard error
// interface, matching the teacher's parser/errors.go ParseError shape.
type Error struct {
	Code ErrorCode
	Pos  fmt.Stringer
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Code)
}
