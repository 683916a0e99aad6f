// Package fit implements the code fitter (spec.md C4 / §4.4): given an
// expr.Expression already carrying a pending instruction, select the
// smallest instruction-format encoding from internal/format that can
// represent every operand, or report the most specific failure.
// Grounded on the teacher's encoder/encoder.go dispatch-by-mnemonic
// switch, generalized from ARM's single-width operands to ForwardCom's
// admissible-width-set model (spec.md §4.4's fit_constant/fit_address).
package fit

import (
	"github.com/ForwardCom/bintools/internal/expr"
	"github.com/ForwardCom/bintools/internal/format"
)

// Code is the assembler's per-instruction working record (spec.md §3.3),
// wrapping an Expression with the fields the fitter and later size/emit
// passes need.
type Code struct {
	expr.Expression

	Instr1    int // index into the sorted instruction list (caller-owned)
	FormatP   *format.Entry
	Category  format.Category
	Address   uint32
	Section   int
	Size      int // in 32-bit words
	SizeUnknown int // 0 certain, 1 pending, 2 unresolvable this pass
	DType     DType
	Label     string
	Line      int
}

// DType is the operand type with Unsigned/Plus flags (spec.md §3.3).
type DType struct {
	Base     BaseType
	Unsigned bool
	Plus     bool // "larger type is acceptable"
}

type BaseType int

const (
	TInt8 BaseType = iota
	TInt16
	TInt32
	TInt64
	TFloat16
	TFloat32
	TFloat64
)

func sizeOf(t BaseType) int {
	switch t {
	case TInt8:
		return 1
	case TInt16, TFloat16:
		return 2
	case TInt32, TFloat32:
		return 4
	default:
		return 8
	}
}

// FitSet is the bitset of admissible encodings for an immediate or
// address (spec.md §4.4 "Key details").
type FitSet uint32

const (
	FitI4 FitSet = 1 << iota
	FitI8
	FitJ8
	FitU8
	FitI8Shift
	FitI16
	FitJ16
	FitU16
	FitI16Shift
	FitI16Sh16
	FitI32
	FitJ32
	FitU32
	FitI32Shift
	FitI32Sh32
	FitFFit16
	FitFFit32
	FitFFit64
	FitReloc
	FitLarge
)

// FitCode selects an encoding for code and populates FormatP/Size/Category.
// Returns true on success; on failure the caller should call CheckCodeE to
// get the most specific error.
func FitCode(code *Code) bool {
	cat, singleFormat, multiFormats, ok := format.LookupInstruction(code.Instruction)
	if !ok {
		return false
	}
	code.Category = cat

	var candidates []format.Entry
	switch cat {
	case format.CatSingle:
		for _, e := range format.Catalog {
			if e.Category == format.CatSingle && e.Format2 == singleFormat {
				candidates = []format.Entry{e}
				break
			}
		}
	case format.CatMulti:
		candidates = format.FormatsForMultiformat(multiFormats)
	case format.CatJump:
		candidates = format.FormatsForJump()
	}

	var best *format.Entry
	for i := range candidates {
		cand := candidates[i]
		if !InstructionFits(code, &cand) {
			continue
		}
		if best == nil || cand.Words < best.Words ||
			(cand.Words == best.Words && cand.Category == format.CatMulti && best.Category != format.CatMulti) {
			best = &cand
		}
	}
	if best == nil {
		return false
	}
	code.FormatP = best
	code.Size = best.Words
	return true
}

// InstructionFits checks whether code's memory, immediate, mask and
// fallback operands can be encoded by entry (jump entries go through
// jumpInstructionFits), per spec.md §4.4 step 2. Registers, vector
// length and operand type are not checked here.
func InstructionFits(code *Code, entry *format.Entry) bool {
	if entry.Category == format.CatJump {
		return jumpInstructionFits(code, entry)
	}
	if code.EType.Has(expr.Mem) {
		if entry.OpAvail&format.AvailMemory == 0 {
			return false
		}
		if !memoryFits(code, entry) {
			return false
		}
	}
	if code.EType.Has(expr.Immediate) {
		if entry.OpAvail&format.AvailImmediate == 0 {
			return false
		}
		fs := FitConstant(int64(code.Value.I), code.DType)
		if !immediateFitsEntry(fs, entry) {
			return false
		}
	}
	if code.EType.Has(expr.Mask) && entry.OpAvail&format.AvailRU == 0 {
		return false
	}
	if code.EType.Has(expr.Fallback) && entry.OpAvail&format.AvailRD == 0 {
		return false
	}
	return true
}

func memoryFits(code *Code, entry *format.Entry) bool {
	if code.EType.Has(expr.Base) && entry.Mem&format.MemBase == 0 {
		return false
	}
	if code.EType.Has(expr.Index) && entry.Mem&format.MemIndex == 0 {
		return false
	}
	if code.EType.Has(expr.Offset) && entry.Mem&format.MemOffset == 0 {
		return false
	}
	if code.OffsetMem != 0 {
		if entry.AddrSize == 0 {
			// formats without an explicit address field only admit offset 0
			return false
		}
		fs := FitAddress(code.OffsetMem, addressKindMemory, sizeOf(code.DType.Base), 1)
		if fs&addressFitFor(entry.AddrSize) == 0 {
			return false
		}
	}
	return true
}

func addressFitFor(bits int) FitSet {
	switch {
	case bits <= 8:
		return FitI8
	case bits <= 16:
		return FitI16
	default:
		return FitI32
	}
}

func immediateFitsEntry(fs FitSet, entry *format.Entry) bool {
	switch entry.ImmSize {
	case 8:
		if entry.Imm2 == format.Imm2Shift8 {
			return fs&(FitI8Shift|FitI8|FitJ8|FitU8) != 0
		}
		return fs&(FitI8|FitJ8|FitU8) != 0
	case 16:
		if entry.Imm2 == format.Imm2Shift16 {
			return fs&(FitI16Shift|FitI16Sh16) != 0
		}
		return fs&(FitI16|FitJ16|FitU16) != 0
	case 32:
		if entry.Imm2 == format.Imm2Shift32 {
			return fs&FitI32Shift != 0
		}
		return fs&(FitI32|FitJ32|FitU32) != 0
	default:
		return false
	}
}
