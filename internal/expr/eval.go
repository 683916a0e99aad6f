package expr

import (
	"strconv"
	"strings"

	"github.com/ForwardCom/bintools/internal/format"
	"github.com/ForwardCom/bintools/internal/token"
)

// Options is the option set passed into Expression (spec.md §4.3).
type Options uint8

const (
	Normal Options = 0
	Unsigned Options = 1 << iota
	InsideBrackets
	InsideCurly
	OptionEqKeyword
	SyntaxCheckOnly
)

// Evaluator holds the symbol/name resolution the evaluator needs from its
// caller (internal/asm), kept as an explicit interface rather than global
// state per spec.md §9 "Global mutable state ... treat as process-wide
// context passed explicitly".
type Resolver interface {
	// LookupRegister returns the register this name denotes, if any.
	LookupRegister(name string) (RegRef, bool)
	// LookupType returns true if name is a type keyword (int8, float, ...).
	LookupType(name string) bool
	// LookupSymbol returns a name-string offset for name, creating an
	// entry if it doesn't exist yet (so unresolved forward references get
	// a stable handle). ok is false only for local-constant lookups that
	// should fail if undefined at this point.
	LookupSymbol(name string) (offset uint32, isLocalConst bool, constVal Expression, ok bool)
}

// Evaluate parses the token range toks[0:max] (max tokens, or len(toks) if
// max<=0) and returns the resulting Expression plus the count of tokens it
// consumed. This is the C3 public contract `expression(tok_start,
// max_tokens, options)` of spec.md §4.3.
func Evaluate(toks []token.Token, max int, opts Options, res Resolver) Expression {
	if max <= 0 || max > len(toks) {
		max = len(toks)
	}
	end := findStatementEnd(toks, max, opts)
	if end == 0 {
		return NewError(ErrMissingExpression, posOf(toks, 0))
	}
	ex := evalRange(toks[:end], opts, res)
	ex.Tokens = end
	if ex.IsError() {
		return ex
	}
	if code := ex.checkInvariants(); code != ErrNone {
		return NewError(code, posOf(toks, 0))
	}
	return ex
}

func posOf(toks []token.Token, i int) token.Position {
	if i < len(toks) {
		return toks[i].Pos
	}
	if len(toks) > 0 {
		return toks[len(toks)-1].Pos
	}
	return token.Position{}
}

// findStatementEnd scans forward applying the termination rules of
// spec.md §4.3: a token the grammar forbids, the token budget exhausted,
// a top-level comma, a top-level '=' (unless OptionEqKeyword set), a
// top-level semicolon, or an unmatched closing bracket.
func findStatementEnd(toks []token.Token, max int, opts Options) int {
	depth := 0
	for i := 0; i < max; i++ {
		t := toks[i]
		switch t.Kind {
		case token.KEOF, token.KNewline, token.KSemicolon:
			return i
		case token.KComma:
			if depth == 0 {
				return i
			}
		case token.KLBracket, token.KLParen, token.KLBrace:
			depth++
		case token.KRBracket, token.KRParen, token.KRBrace:
			if depth == 0 {
				return i
			}
			depth--
		case token.KOpr:
			if t.Literal == "=" && depth == 0 && opts&OptionEqKeyword == 0 {
				return i
			}
		}
	}
	return max
}

// evalRange implements the split-at-highest-priority-operator algorithm
// of spec.md §4.3. Ties favor the rightmost occurrence so the left
// subexpression evaluates first.
func evalRange(toks []token.Token, opts Options, res Resolver) Expression {
	if len(toks) == 0 {
		return NewError(ErrMissingExpression, token.Position{})
	}
	// Strip one layer of enclosing brackets/parens if they span the whole range.
	if spans, inner, bracketKind := fullySpans(toks); spans {
		sub := inner
		subOpts := opts
		if bracketKind == token.KLBracket {
			subOpts |= InsideBrackets
		} else if bracketKind == token.KLBrace {
			subOpts |= InsideCurly
		}
		return evalRange(sub, subOpts, res)
	}

	splitIdx, splitPriority := findSplit(toks)
	if splitIdx < 0 {
		// No binary/ternary operator at depth 0: single value or monadic prefix.
		return evalValue(toks, opts, res)
	}

	if toks[splitIdx].Literal == "?" {
		return evalTernary(toks, splitIdx, opts, res)
	}

	lhsToks := toks[:splitIdx]
	rhsToks := toks[splitIdx+1:]
	if len(lhsToks) == 0 {
		// Monadic operator: +, -, !, ~ applied to rhs.
		return evalMonadic(toks[splitIdx].Literal, rhsToks, opts, res)
	}
	lhs := evalRange(lhsToks, opts, res)
	if lhs.IsError() {
		return lhs
	}
	rhs := evalRange(rhsToks, opts, res)
	if rhs.IsError() {
		return rhs
	}
	_ = splitPriority
	return op2(toks[splitIdx].Literal, lhs, rhs, opts)
}

// fullySpans reports whether toks is exactly one bracketed group: an
// opening bracket at position 0 matched by a closing bracket at the end.
func fullySpans(toks []token.Token) (bool, []token.Token, token.Kind) {
	if len(toks) < 2 {
		return false, nil, 0
	}
	open := toks[0].Kind
	var close token.Kind
	switch open {
	case token.KLBracket:
		close = token.KRBracket
	case token.KLParen:
		close = token.KRParen
	case token.KLBrace:
		close = token.KRBrace
	default:
		return false, nil, 0
	}
	if toks[len(toks)-1].Kind != close {
		return false, nil, 0
	}
	depth := 0
	for i, t := range toks {
		switch t.Kind {
		case token.KLBracket, token.KLParen, token.KLBrace:
			depth++
		case token.KRBracket, token.KRParen, token.KRBrace:
			depth--
			if depth == 0 && i != len(toks)-1 {
				return false, nil, 0
			}
		}
	}
	return true, toks[1 : len(toks)-1], open
}

// findSplit locates the operator with the highest numeric priority at
// bracket depth 0, breaking ties toward the rightmost occurrence.
func findSplit(toks []token.Token) (idx int, priority int) {
	depth := 0
	idx = -1
	priority = -1
	for i, t := range toks {
		switch t.Kind {
		case token.KLBracket, token.KLParen, token.KLBrace:
			depth++
			continue
		case token.KRBracket, token.KRParen, token.KRBrace:
			depth--
			continue
		}
		if depth != 0 {
			continue
		}
		if t.Kind != token.KOpr && t.Kind != token.KQuestion {
			continue
		}
		if i == 0 && isMonadicContext(toks, i) {
			// still a candidate split point for a leading monadic operator,
			// but only if nothing higher-priority exists elsewhere.
		}
		p := t.Priority
		if t.Literal == "?" {
			p = 14
		}
		if p > priority || (p == priority && t.Literal != "?") {
			priority = p
			idx = i
		}
	}
	return idx, priority
}

// isMonadicContext reports whether the operator token at i is in "state 0"
// (expecting a value) per spec.md §4.3's state machine: true at i==0 or
// immediately after another operator/open-bracket.
func isMonadicContext(toks []token.Token, i int) bool {
	if i == 0 {
		return true
	}
	prev := toks[i-1]
	switch prev.Kind {
	case token.KOpr, token.KLBracket, token.KLParen, token.KLBrace, token.KComma:
		return true
	}
	return false
}

func evalTernary(toks []token.Token, qIdx int, opts Options, res Resolver) Expression {
	// Find the matching ':' at depth 0 after qIdx; nested '?' is split by
	// the outermost '?' first (spec.md §4.3).
	depth := 0
	colonIdx := -1
	for i := qIdx + 1; i < len(toks); i++ {
		switch toks[i].Kind {
		case token.KLBracket, token.KLParen, token.KLBrace:
			depth++
		case token.KRBracket, token.KRParen, token.KRBrace:
			depth--
		case token.KQuestion:
			depth++ // nested ternary opens another implicit level
		case token.KColon:
			if depth == 0 {
				colonIdx = i
			} else {
				depth--
			}
		}
		if colonIdx != -1 {
			break
		}
	}
	if colonIdx == -1 {
		return NewError(ErrQuestionMark, posOf(toks, qIdx))
	}
	cond := evalRange(toks[:qIdx], opts, res)
	if cond.IsError() {
		return cond
	}
	a := evalRange(toks[qIdx+1:colonIdx], opts, res)
	if a.IsError() {
		return a
	}
	b := evalRange(toks[colonIdx+1:], opts, res)
	if b.IsError() {
		return b
	}
	if !cond.EType.Has(Int) {
		return NewError(ErrWrongType, posOf(toks, 0))
	}
	if cond.Value.I != 0 {
		return a
	}
	return b
}

func evalMonadic(op string, rhsToks []token.Token, opts Options, res Resolver) Expression {
	rhs := evalRange(rhsToks, opts, res)
	if rhs.IsError() {
		return rhs
	}
	switch op {
	case "-":
		// rewrite -A as 0 - A (spec.md §8.1 "sign canonicalisation").
		zero := Expression{EType: Int, Value: Value{I: 0}}
		return op2("-", zero, rhs, opts)
	case "+":
		return rhs
	case "!":
		if rhs.Instruction == format.Compare {
			rhs.OptionBits ^= OptInverted
			if rhs.EType.Has(Reg) {
				rhs.OptionBits ^= OptUnordered
			}
			return rhs
		}
		if rhs.EType.Has(Int) {
			v := int64(0)
			if rhs.Value.I == 0 {
				v = 1
			}
			return Expression{EType: Int, Value: Value{I: uint64(v)}}
		}
		return NewError(ErrWrongType, posOf(rhsToks, 0))
	case "~":
		if rhs.EType.Has(Int) {
			return Expression{EType: Int, Value: Value{I: ^rhs.Value.I}}
		}
		return NewError(ErrWrongType, posOf(rhsToks, 0))
	}
	return NewError(ErrWrongType, posOf(rhsToks, 0))
}

// evalValue interprets a single token (or a parenthesized/bracketed
// sub-range already stripped by evalRange) per spec.md §4.3 "Value
// interpretation".
func evalValue(toks []token.Token, opts Options, res Resolver) Expression {
	if len(toks) == 0 {
		return NewError(ErrMissingExpression, token.Position{})
	}
	if len(toks) > 1 {
		// Could be memory-operand composition (reg reg, reg+imm, ...) without
		// an explicit operator only inside option assignment contexts; treat
		// as too-complex otherwise.
		return NewError(ErrTooComplex, posOf(toks, 0))
	}
	t := toks[0]
	switch t.Kind {
	case token.KNum:
		v, err := parseIntLiteral(t.Literal)
		if err != nil {
			return NewError(ErrOverflow, t.Pos)
		}
		if opts&InsideBrackets != 0 {
			return Expression{EType: Int | Offset, Value: Value{I: v}}
		}
		return Expression{EType: Int, Value: Value{I: v}}
	case token.KFlt:
		if opts&InsideBrackets != 0 {
			return NewError(ErrWrongType, t.Pos)
		}
		f, err := strconv.ParseFloat(t.Literal, 64)
		if err != nil {
			return NewError(ErrOverflow, t.Pos)
		}
		return Expression{EType: Flt, Value: Value{F: f}}
	case token.KCha:
		v, err := parseCharLiteral(t.Literal)
		if err != nil {
			return NewError(ErrWrongType, t.Pos)
		}
		return Expression{EType: Int, Value: Value{I: v}}
	case token.KStr:
		s, err := unescapeString(t.Literal)
		if err != nil {
			return NewError(ErrWrongType, t.Pos)
		}
		return Expression{EType: String, Value: Value{I: uint64(len(s))}}
	case token.KName:
		if rr, ok := res.LookupRegister(t.Literal); ok {
			if opts&InsideBrackets != 0 {
				return Expression{EType: Base | Mem, BaseReg: rr}
			}
			return Expression{EType: Reg | Reg1, Reg1Ref: rr}
		}
		if res.LookupType(t.Literal) {
			return Expression{EType: TypeName}
		}
		if off, isLocal, constVal, ok := res.LookupSymbol(t.Literal); ok {
			if isLocal {
				constVal.Tokens = 1
				return constVal
			}
			return Expression{EType: Sym1, Sym1: off}
		}
		return NewError(ErrWrongType, t.Pos)
	default:
		return NewError(ErrWrongType, t.Pos)
	}
}

func parseIntLiteral(lit string) (uint64, error) {
	lower := strings.ToLower(lit)
	switch {
	case strings.HasPrefix(lower, "0x"):
		return strconv.ParseUint(lit[2:], 16, 64)
	case strings.HasPrefix(lower, "0b"):
		return strconv.ParseUint(lit[2:], 2, 64)
	case strings.HasPrefix(lower, "0o"):
		return strconv.ParseUint(lit[2:], 8, 64)
	default:
		return strconv.ParseUint(lit, 10, 64)
	}
}

func parseCharLiteral(lit string) (uint64, error) {
	b, _, err := consumeEscape(lit)
	return uint64(b) & 0xFF, err
}

// consumeEscape resolves the first character (possibly an escape) of s
// and returns (byteValue, restOfString, error). Supported escapes:
// \n \r \t \0 \\.
func consumeEscape(s string) (byte, string, error) {
	if len(s) == 0 {
		return 0, s, nil
	}
	if s[0] != '\\' {
		return s[0], s[1:], nil
	}
	if len(s) < 2 {
		return '\\', "", nil
	}
	switch s[1] {
	case 'n':
		return '\n', s[2:], nil
	case 'r':
		return '\r', s[2:], nil
	case 't':
		return '\t', s[2:], nil
	case '0':
		return 0, s[2:], nil
	case '\\':
		return '\\', s[2:], nil
	default:
		return s[1], s[2:], nil
	}
}

// unescapeString resolves all escapes in s, appending a terminating NUL
// per spec.md §4.3 "String → ... NUL-terminated".
func unescapeString(s string) (string, error) {
	var b strings.Builder
	rest := s
	for len(rest) > 0 {
		var c byte
		var err error
		c, rest, err = consumeEscape(rest)
		if err != nil {
			return "", err
		}
		b.WriteByte(c)
	}
	b.WriteByte(0)
	return b.String(), nil
}
