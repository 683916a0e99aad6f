package expr

import (
	"github.com/ForwardCom/bintools/internal/format"
	"github.com/ForwardCom/bintools/internal/token"
)

// op2 composes two already-evaluated operands under a dyadic operator
// (spec.md §4.3). It dispatches to op2Memory when either operand is
// inside [] composition or not purely scalar, to op2Registers when a
// register is involved, and otherwise folds constants directly.
func op2(op string, lhs, rhs Expression, opts Options) Expression {
	if lhs.IsError() {
		return lhs
	}
	if rhs.IsError() {
		return rhs
	}

	if opts&InsideBrackets != 0 || lhs.EType.Any(Mem|Base|Index) || rhs.EType.Any(Mem|Base|Index) {
		return op2Memory(op, lhs, rhs)
	}

	if op == "=" {
		return op2OptionAssign(lhs, rhs)
	}

	if lhs.EType.Any(Reg|Reg1|Reg2|Reg3) || rhs.EType.Any(Reg|Reg1|Reg2|Reg3) {
		return op2Registers(op, lhs, rhs)
	}

	return op2Constants(op, lhs, rhs)
}

// op2Constants folds two pure-scalar operands (spec.md §4.3 "A single
// token becomes an Expression" followed up the tree by constant folding).
func op2Constants(op string, lhs, rhs Expression) Expression {
	if lhs.EType.Has(Sym1) || rhs.EType.Has(Sym1) {
		return op2Symbols(op, lhs, rhs)
	}
	if lhs.EType.Has(Flt) || rhs.EType.Has(Flt) {
		a, b := asFloat(lhs), asFloat(rhs)
		switch op {
		case "+":
			return Expression{EType: Flt, Value: Value{F: a + b}}
		case "-":
			return Expression{EType: Flt, Value: Value{F: a - b}}
		case "*":
			return Expression{EType: Flt, Value: Value{F: a * b}}
		case "/":
			if b == 0 {
				return NewError(ErrOverflow, token.Position{})
			}
			return Expression{EType: Flt, Value: Value{F: a / b}}
		default:
			return NewError(ErrWrongType, token.Position{})
		}
	}
	a, b := int64(lhs.Value.I), int64(rhs.Value.I)
	switch op {
	case "+":
		return Expression{EType: Int, Value: Value{I: uint64(a + b)}}
	case "-":
		return Expression{EType: Int, Value: Value{I: uint64(a - b)}}
	case "*":
		return Expression{EType: Int, Value: Value{I: uint64(a * b)}}
	case "/":
		if b == 0 {
			return NewError(ErrOverflow, token.Position{})
		}
		return Expression{EType: Int, Value: Value{I: uint64(a / b)}}
	case "%":
		if b == 0 {
			return NewError(ErrOverflow, token.Position{})
		}
		return Expression{EType: Int, Value: Value{I: uint64(a % b)}}
	case "&":
		return Expression{EType: Int, Value: Value{I: lhs.Value.I & rhs.Value.I}}
	case "|":
		return Expression{EType: Int, Value: Value{I: lhs.Value.I | rhs.Value.I}}
	case "^":
		return Expression{EType: Int, Value: Value{I: lhs.Value.I ^ rhs.Value.I}}
	case "<<":
		return Expression{EType: Int, Value: Value{I: lhs.Value.I << uint(b)}}
	case ">>":
		return Expression{EType: Int, Value: Value{I: lhs.Value.I >> uint(b)}}
	case "==":
		return boolExpr(a == b)
	case "!=":
		return boolExpr(a != b)
	case "<":
		return boolExpr(a < b)
	case ">":
		return boolExpr(a > b)
	case "<=":
		return boolExpr(a <= b)
	case ">=":
		return boolExpr(a >= b)
	case "&&":
		return boolExpr(a != 0 && b != 0)
	case "||":
		return boolExpr(a != 0 || b != 0)
	}
	return NewError(ErrWrongType, token.Position{})
}

// op2Symbols handles the inter-symbol-difference rule of spec.md §3.2(e):
// "(sym1 - sym2) / symscale1". A bare symbol plus/minus a constant just
// carries the constant as an addend (handled by internal/fit at address-
// fit time); symbol minus symbol sets Sym2.
func op2Symbols(op string, lhs, rhs Expression) Expression {
	if lhs.EType.Has(Sym1) && rhs.EType.Has(Sym1) && op == "-" {
		out := lhs
		out.EType |= Sym2
		out.Sym2 = rhs.Sym1
		out.SymScale1 = 1
		return out
	}
	if lhs.EType.Has(Sym1) && rhs.EType.Has(Int) {
		out := lhs
		switch op {
		case "+":
			out.Value.I += rhs.Value.I
		case "-":
			out.Value.I -= rhs.Value.I
		default:
			return NewError(ErrWrongType, token.Position{})
		}
		return out
	}
	if rhs.EType.Has(Sym1) && lhs.EType.Has(Int) && op == "+" {
		out := rhs
		out.Value.I += lhs.Value.I
		return out
	}
	return NewError(ErrTooComplex, token.Position{})
}

func asFloat(ex Expression) float64 {
	if ex.EType.Has(Flt) {
		return ex.Value.F
	}
	return float64(int64(ex.Value.I))
}

func boolExpr(b bool) Expression {
	v := uint64(0)
	if b {
		v = 1
	}
	return Expression{EType: Int, Value: Value{I: v}}
}

// op2OptionAssign realizes the `=` operator's option assignments (spec.md
// §4.3 "The = operator realizes option assignments: length = r, broadcast
// = r, limit = n, scalar, mask = r, fallback = r, options = n").
func op2OptionAssign(lhs, rhs Expression) Expression {
	out := lhs
	switch {
	case lhs.EType.Has(Length):
		if !rhs.EType.Has(Reg | Reg1) {
			return NewError(ErrWrongRegType, token.Position{})
		}
		out.Length = uint32(rhs.Reg1Ref.Index)
	case lhs.EType.Has(Broadcast):
		if !rhs.EType.Has(Reg | Reg1) {
			return NewError(ErrWrongRegType, token.Position{})
		}
	case lhs.EType.Has(Limit):
		if !rhs.EType.Has(Int) {
			return NewError(ErrWrongType, token.Position{})
		}
		out.OffsetMem = int64(rhs.Value.I)
	case lhs.EType.Has(Mask):
		if !rhs.EType.Has(Reg | Reg1) {
			return NewError(ErrMaskNotRegister, token.Position{})
		}
		out.MaskReg = rhs.Reg1Ref
	case lhs.EType.Has(Fallback):
		if !rhs.EType.Has(Reg | Reg1) {
			return NewError(ErrFallbackWrong, token.Position{})
		}
		out.FallbackReg = rhs.Reg1Ref
	case lhs.EType.Has(Options):
		if !rhs.EType.Has(Int) {
			return NewError(ErrWrongType, token.Position{})
		}
		out.OptionBits = OptionBits(rhs.Value.I)
	default:
		return NewError(ErrWrongType, token.Position{})
	}
	return out
}

var _ = format.Compare
