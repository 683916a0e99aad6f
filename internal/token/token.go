// Package token defines the lexical token kinds produced by internal/lexer
// and consumed by internal/expr.
package token

import "fmt"

// Kind identifies the lexical class of a Token.
type Kind int

const (
	KEOF Kind = iota
	KNewline
	KComment

	KOpr        // an operator: + - * / % & | ^ ~ << >> ! = < > <= >= == != ("?" is KQuestion)
	KNum        // integer literal
	KFlt        // floating point literal
	KStr        // string literal
	KCha        // character literal
	KName       // an identifier that is not yet known to be anything else
	KLabel      // identifier immediately followed by ':'
	KSymbol     // identifier resolved to a global/external symbol
	KVariable   // identifier resolved to a local constant/variable
	KSection    // a section-name token (after .section or similar)
	KRegister   // r0-r30, v0-v31, spec registers (ip, datap, threadp, sp)
	KOption     // length=, broadcast=, limit=, scalar, mask=, fallback=, options=
	KType       // int8, int16, int32, int64, uint8, ..., float, double, etc.
	KInstr      // a recognized instruction mnemonic
	KAttribute  // weak, communal, local, etc.
	KDirective  // .section, .align, .global, ...
	KHllKeyword // if/while/for (HLL front end, parsed but otherwise opaque here)
	KSubExpr    // a parenthesized or bracketed sub-range marker

	KComma     // ,
	KColon     // :
	KSemicolon // ;
	KLBracket  // [
	KRBracket  // ]
	KLParen    // (
	KRParen    // )
	KLBrace    // {
	KRBrace    // }
	KQuestion  // ?
)

var names = map[Kind]string{
	KEOF: "EOF", KNewline: "NEWLINE", KComment: "COMMENT",
	KOpr: "OPR", KNum: "NUM", KFlt: "FLT", KStr: "STR", KCha: "CHA",
	KName: "NAME", KLabel: "LABEL", KSymbol: "SYMBOL", KVariable: "VARIABLE",
	KSection: "SECTION", KRegister: "REGISTER", KOption: "OPTION", KType: "TYPE",
	KInstr: "INSTRUCTION", KAttribute: "ATTRIBUTE", KDirective: "DIRECTIVE",
	KHllKeyword: "HLLKEYWORD", KSubExpr: "SUBEXPRESSION",
	KComma: ",", KColon: ":", KSemicolon: ";", KLBracket: "[", KRBracket: "]",
	KLParen: "(", KRParen: ")", KLBrace: "{", KRBrace: "}", KQuestion: "?",
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Position is a source location: file offset plus human-readable line/column.
type Position struct {
	File   string
	Offset int
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Token is the lexer's output unit. internal/lexer does not set Id (it
// stays zero); tokens are told apart by Kind and Literal. Priority is
// filled in for KOpr tokens per the precedence table in internal/lexer.
type Token struct {
	Kind     Kind
	Id       int64
	Priority int
	Pos      Position
	Length   int
	Literal  string
	Value    uint64 // raw immediate payload (integer bits or float bits)
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%s", t.Kind, t.Literal, t.Pos)
}
