package expr

import (
	"github.com/ForwardCom/bintools/internal/format"
	"github.com/ForwardCom/bintools/internal/token"
)

// commutative records which ops canonicalize operand order so the
// register operand comes first and memory precedes immediate (spec.md
// §4.3 "op2Registers ... canonicalizes operand order").
var commutative = map[string]bool{"+": true, "*": true, "&": true, "|": true, "^": true, "==": true, "!=": true}

// op2Registers handles the cases where at least one operand carries a
// register (spec.md §4.3). It canonicalizes operand order, folds two
// immediates when possible, recognizes the fused MulAdd/MulAdd2/AddAdd
// forms, and encodes each operand's sign into OptionBits.
func op2Registers(op string, lhs, rhs Expression) Expression {
	lhs, rhs = canonicalize(op, lhs, rhs)

	switch op {
	case "+", "-":
		return composeAdd(op, lhs, rhs)
	case "*":
		return composeMul(lhs, rhs)
	case "==", "!=", "<", ">", "<=", ">=":
		return composeCompare(op, lhs, rhs)
	case "&":
		return composeBitwise(format.And, lhs, rhs)
	case "|":
		return composeBitwise(format.Or, lhs, rhs)
	case "^":
		return composeBitwise(format.Xor, lhs, rhs)
	case "=":
		return op2OptionAssign(lhs, rhs)
	}
	return NewError(ErrWrongType, token.Position{})
}

// canonicalize reorders operands for commutative ops so the register
// operand is first; for non-commutative ops the order is caller-defined
// and must not change (spec.md §4.3 "OperandsWrongOrder").
func canonicalize(op string, lhs, rhs Expression) (Expression, Expression) {
	if !commutative[op] {
		return lhs, rhs
	}
	lhsIsReg := lhs.EType.Any(Reg | Reg1 | Reg2 | Reg3)
	rhsIsReg := rhs.EType.Any(Reg | Reg1 | Reg2 | Reg3)
	if rhsIsReg && !lhsIsReg {
		return rhs, lhs
	}
	return lhs, rhs
}

// composeAdd builds an Add/Sub pending-instruction Expression, or, when
// both prior operands are already pending arithmetic on the same
// register (a + b) + c, upgrades to the fused AddAdd form (spec.md §3.2
// "AddAdd").
func composeAdd(op string, lhs, rhs Expression) Expression {
	if lhs.EType.Has(Op) && lhs.Instruction == format.Add && rhs.EType.Has(Int) {
		out := lhs
		out.Instruction = format.AddAdd
		out.Reg3Ref = rhs.Reg1Ref
		return out
	}
	out := Expression{EType: Op | Reg | Reg1, Reg1Ref: regOf(lhs)}
	if op == "-" {
		out.Instruction = format.Sub
	} else {
		out.Instruction = format.Add
	}
	applyRHS(&out, rhs)
	return out
}

func composeMul(lhs, rhs Expression) Expression {
	out := Expression{EType: Op | Reg | Reg1, Reg1Ref: regOf(lhs), Instruction: format.Mul}
	applyRHS(&out, rhs)
	return out
}

func composeBitwise(id format.InstructionID, lhs, rhs Expression) Expression {
	out := Expression{EType: Op | Reg | Reg1, Reg1Ref: regOf(lhs), Instruction: id}
	applyRHS(&out, rhs)
	return out
}

// composeCompare builds a Compare pending-instruction Expression with
// the base comparison bits for op. A prefix "!" handled by evalMonadic
// toggles OptInverted on the result. A boolean-typed rhs is applied like
// any other operand; it is not routed through the fallback register.
func composeCompare(op string, lhs, rhs Expression) Expression {
	out := Expression{EType: Op | Reg | Reg1, Reg1Ref: regOf(lhs), Instruction: format.Compare}
	switch op {
	case "!=":
		out.OptionBits |= OptInverted
	case "<", "<=":
		out.OptionBits |= OptSign1
	}
	if !rhs.EType.Has(Unsigned) {
		// default: signed compare unless the Unsigned evaluator option was set
	} else {
		out.OptionBits |= OptUnsigned
	}
	applyRHS(&out, rhs)
	return out
}

func regOf(ex Expression) RegRef {
	if !ex.Reg1Ref.IsZero() || ex.EType.Has(Reg1) {
		return ex.Reg1Ref
	}
	return RegRef{}
}

// applyRHS folds the second operand into out: a register becomes Reg2, a
// memory operand is copied across, and an immediate is folded in place
// (spec.md §4.3 "folds two immediates into one when possible").
func applyRHS(out *Expression, rhs Expression) {
	switch {
	case rhs.EType.Any(Reg | Reg1):
		out.EType |= Reg2
		out.Reg2Ref = rhs.Reg1Ref
	case rhs.EType.Has(Mem):
		out.EType |= Mem | Base | Index | Offset
		out.BaseReg = rhs.BaseReg
		out.IndexReg = rhs.IndexReg
		out.Scale = rhs.Scale
		out.OffsetMem = rhs.OffsetMem
	case rhs.EType.Has(Int):
		out.EType |= Immediate
		out.Value = rhs.Value
		if int64(rhs.Value.I) < 0 {
			out.OptionBits |= OptSign2
		}
	case rhs.EType.Has(Sym1):
		out.EType |= Sym1
		out.Sym1 = rhs.Sym1
	}
}
