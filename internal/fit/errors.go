package fit

import (
	"fmt"

	"github.com/ForwardCom/bintools/internal/expr"
)

// ErrorCode is the §7 "Fit" error taxonomy.
type ErrorCode int

const (
	ErrNone ErrorCode = iota
	ErrNoInstructionFit
	ErrCannotHaveOption
	ErrCannotHaveFallback1
	ErrCannotHaveFallback2
	Err3OpAndFallback
	Err3OpAndMem
	ErrDestBroadcast
	ErrMissingDestination
	ErrNoDestination
	ErrVectorOption
	ErrMemWoBracket
	ErrNoBase
	ErrAbsRelocation
	ErrRelocationDomain
	ErrConstantTooLarge
	ErrImmediateTooLarge
	ErrOffsetTooLarge
	ErrLimitTooLarge
	ErrTooLargeForJump
	ErrJumpTargetMisalign
)

var names = map[ErrorCode]string{
	ErrNoInstructionFit:    "no instruction format fits these operands",
	ErrCannotHaveOption:    "this instruction cannot take that option",
	ErrCannotHaveFallback1: "fallback operand not allowed with one source operand",
	ErrCannotHaveFallback2: "fallback operand not allowed with two source operands",
	Err3OpAndFallback:      "three-operand form cannot also take a fallback",
	Err3OpAndMem:           "three-operand form cannot also address memory",
	ErrDestBroadcast:       "destination cannot be a broadcast",
	ErrMissingDestination:  "missing destination operand",
	ErrNoDestination:       "instruction produces no destination to assign",
	ErrVectorOption:        "vector option not available on this format",
	ErrMemWoBracket:        "memory operand written without [...]",
	ErrNoBase:              "memory operand needs a base pointer",
	ErrAbsRelocation:       "absolute relocation not permitted here",
	ErrRelocationDomain:    "relocation crosses an incompatible base-pointer domain",
	ErrConstantTooLarge:    "constant too large for any available format",
	ErrImmediateTooLarge:   "immediate too large for this instruction",
	ErrOffsetTooLarge:      "memory offset too large for this instruction",
	ErrLimitTooLarge:       "limit value too large",
	ErrTooLargeForJump:     "branch target too far for any jump format",
	ErrJumpTargetMisalign:  "jump target is not a multiple of the instruction word size",
}

func (c ErrorCode) String() string {
	if s, ok := names[c]; ok {
		return s
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// CheckCodeE produces the most specific failure reason for a Code that
// FitCode could not encode (spec.md §4.4 "check_code_e").
func CheckCodeE(code *Code) ErrorCode {
	if code.EType.Has(expr.Mem) && !code.EType.Has(expr.Base) && !code.EType.Has(expr.Sym1) {
		return ErrNoBase
	}
	if code.FormatP == nil && !code.EType.Has(expr.Immediate) && code.OffsetJump == 0 && code.OffsetMem == 0 {
		return ErrNoInstructionFit
	}
	if code.EType.Has(expr.Immediate) {
		fs := FitConstant(int64(code.Value.I), code.DType)
		if fs == 0 {
			return ErrConstantTooLarge
		}
		return ErrImmediateTooLarge
	}
	if code.OffsetJump != 0 && code.OffsetJump%4 != 0 {
		return ErrJumpTargetMisalign
	}
	if code.OffsetJump != 0 {
		return ErrTooLargeForJump
	}
	if code.OffsetMem != 0 {
		return ErrOffsetTooLarge
	}
	return ErrNoInstructionFit
}
