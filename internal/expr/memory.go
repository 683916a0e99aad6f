package expr

import "github.com/ForwardCom/bintools/internal/token"

// op2Memory is entered whenever either operand is inside [] or contributes
// a memory-operand component (spec.md §4.3 "Memory-operand composition").
// It accumulates registers into base or index, folds an index scale, and
// realizes the symbol-difference addressing form.
func op2Memory(op string, lhs, rhs Expression) Expression {
	switch op {
	case "+":
		return memAdd(lhs, rhs)
	case "-":
		if lhs.EType.Has(Sym1) && rhs.EType.Has(Sym1) {
			return op2Symbols(op, lhs, rhs)
		}
		return memAdd(lhs, negate(rhs))
	case "<<":
		// Applied to an index, multiplies its scale (spec.md §4.3).
		if rhs.EType.Has(Int) && (lhs.EType.Has(Index) || lhs.EType.Has(Reg)) {
			out := lhs
			shift := rhs.Value.I
			newScale := int64(1) << shift
			if out.EType.Has(Index) {
				out.Scale = newScale
			} else {
				out.EType |= Index | Mem
				out.IndexReg = out.Reg1Ref
				out.Reg1Ref = RegRef{}
				out.EType &^= Reg | Reg1
				out.Scale = newScale
			}
			return out
		}
		return NewError(ErrScaleFactor, token.Position{})
	case "=":
		return op2OptionAssign(lhs, rhs)
	}
	return NewError(ErrNotInsideMem, token.Position{})
}

func negate(ex Expression) Expression {
	if ex.EType.Has(Int) {
		ex.Value.I = uint64(-int64(ex.Value.I))
	}
	return ex
}

// memAdd merges two memory-operand components. Exactly one base register
// and (optionally) one index register are allowed; a second register
// operand becomes the index with implicit scale 1, unless it is r31 (the
// stack pointer), which is never permitted as an index and forces the
// other operand into that role instead (spec.md §4.3).
func memAdd(lhs, rhs Expression) Expression {
	out := Expression{EType: Mem}

	regs := []Expression{}
	offsetSum := int64(0)
	symSeen := false
	var symOut Expression

	for _, part := range []Expression{lhs, rhs} {
		switch {
		case part.EType.Has(Base):
			regs = append(regs, Expression{EType: Base, Reg1Ref: part.BaseReg})
			out.EType |= part.EType &^ (Base | Mem)
			out.IndexReg = combineIfSet(out.IndexReg, part.IndexReg)
			if part.Scale != 0 {
				out.Scale = part.Scale
			}
			offsetSum += part.OffsetMem
		case part.EType.Has(Reg) && part.EType.Has(Reg1):
			regs = append(regs, Expression{EType: Base, Reg1Ref: part.Reg1Ref})
		case part.EType.Has(Int) || part.EType.Has(Offset):
			offsetSum += int64(part.Value.I)
		case part.EType.Has(Sym1):
			if symSeen {
				return NewError(ErrMemComponentTwice, token.Position{})
			}
			symSeen = true
			symOut = part
		default:
			return NewError(ErrMemComponentTwice, token.Position{})
		}
	}

	if len(regs) > 2 {
		return NewError(ErrMemComponentTwice, token.Position{})
	}
	if len(regs) >= 1 {
		out.BaseReg = regs[0].Reg1Ref
	}
	if len(regs) == 2 {
		r0, r1 := regs[0].Reg1Ref, regs[1].Reg1Ref
		// r31 (stack pointer) is never allowed as index; swap if needed.
		if r1.Index == 31 && r1.Class == RegGP {
			r0, r1 = r1, r0
		}
		out.BaseReg = r0
		out.IndexReg = r1
		out.EType |= Index
		if out.Scale == 0 {
			out.Scale = 1
		}
	}
	out.OffsetMem = offsetSum
	if offsetSum != 0 {
		out.EType |= Offset
	}
	if symSeen {
		out.EType |= Sym1
		out.Sym1 = symOut.Sym1
	}
	return out
}

func combineIfSet(a, b RegRef) RegRef {
	if !b.IsZero() {
		return b
	}
	return a
}
