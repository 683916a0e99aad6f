// Package asm is the assembler driver: it glues internal/lexer,
// internal/expr, internal/fit, internal/asmsize, internal/emit, and
// internal/elf2 into the single front-to-back pipeline spec.md §2's
// "Assembler" collaborator describes. Grounded on the teacher's
// encoder/encoder.go mnemonic-routing switch (generalized from ARM's
// fixed instruction set to ForwardCom's category-1/3/4 format
// catalog) and parser/parser.go's line-oriented driving loop.
package asm

import (
	"fmt"
	"strings"

	"github.com/ForwardCom/bintools/internal/asmsize"
	"github.com/ForwardCom/bintools/internal/elf2"
	"github.com/ForwardCom/bintools/internal/emit"
	"github.com/ForwardCom/bintools/internal/expr"
	"github.com/ForwardCom/bintools/internal/fit"
	"github.com/ForwardCom/bintools/internal/format"
	"github.com/ForwardCom/bintools/internal/lexer"
	"github.com/ForwardCom/bintools/internal/token"
)

// mnemonics maps a source mnemonic to its InstructionID, mirroring the
// teacher's encoder mnemonic-routing switch (spec.md §3.2's
// instruction table, abbreviated to a representative, extensible set;
// the fit/format/emit packages are mnemonic-agnostic, so adding an
// entry here is the only step needed to support another instruction).
var mnemonics = map[string]format.InstructionID{
	"NOP": format.Nop, "MOV": format.Move,
	"ADD": format.Add, "SUB": format.Sub,
	"MUL": format.Mul, "DIV": format.Div,
	"AND": format.And, "OR": format.Or, "XOR": format.Xor, "NOT": format.Not,
	"SHIFT": format.Shift, "ROTATE": format.Rotate,
	"CMP": format.Compare,
	"LOAD": format.Load, "STORE": format.Store,
	"PUSH": format.Push, "POP": format.Pop,
	"JUMP": format.Jump, "JUMPCOND": format.JumpCond,
	"CALL": format.Call, "RETURN": format.Return, "SYSCALL": format.SysCall,
}

// resolver implements expr.Resolver over the assembler's running
// register-name table and symbol table (spec.md §9's "explicit
// context, no global state").
type resolver struct {
	registers map[string]expr.RegRef
	symbols   map[string]uint32 // name -> symbol index into container
}

func newResolver() *resolver {
	r := &resolver{registers: make(map[string]expr.RegRef), symbols: make(map[string]uint32)}
	for i := 0; i < 32; i++ {
		r.registers[fmt.Sprintf("r%d", i)] = expr.RegRef{Index: uint8(i), Class: expr.RegGP}
		r.registers[fmt.Sprintf("v%d", i)] = expr.RegRef{Index: uint8(i), Class: expr.RegVector}
	}
	return r
}

func (r *resolver) LookupRegister(name string) (expr.RegRef, bool) {
	ref, ok := r.registers[strings.ToLower(name)]
	return ref, ok
}

func (r *resolver) LookupType(name string) bool {
	switch strings.ToLower(name) {
	case "int8", "int16", "int32", "int64", "float16", "float32", "float64", "uint8", "uint16", "uint32", "uint64":
		return true
	}
	return false
}

func (r *resolver) LookupSymbol(name string) (offset uint32, isLocalConst bool, constVal expr.Expression, ok bool) {
	idx, found := r.symbols[name]
	if !found {
		return 0, false, expr.Expression{}, false
	}
	return idx, false, expr.Expression{}, true
}

// Diagnostic is one assembly error or warning, carrying its source
// position (spec.md §7 "Errors carry a source position").
type Diagnostic struct {
	Pos     token.Position
	Message string
	Fatal   bool
}

func (d Diagnostic) Error() string { return fmt.Sprintf("%s: %s", d.Pos, d.Message) }

// Assembler drives one source file through the pipeline.
type Assembler struct {
	res         *resolver
	container   *elf2.Container
	diagnostics []Diagnostic
	sections    map[string]int // name -> container section index
	curSection  string

	// pendingLabels holds symbol indices for labels seen since the last
	// instruction was appended; they are attached to the next code
	// record so runSizeIteration can resolve a jump's target address
	// (spec.md §4.5).
	pendingLabels []uint32
	labelCode     map[uint32]*fit.Code // symbol index -> the code it labels
}

func New() *Assembler {
	return &Assembler{
		res:       newResolver(),
		container: elf2.New(),
		sections:  make(map[string]int),
		labelCode: make(map[uint32]*fit.Code),
	}
}

// Diagnostics returns every error/warning recorded so far.
func (a *Assembler) Diagnostics() []Diagnostic { return a.diagnostics }

func (a *Assembler) report(pos token.Position, fatal bool, format string, args ...any) {
	a.diagnostics = append(a.diagnostics, Diagnostic{Pos: pos, Message: fmt.Sprintf(format, args...), Fatal: fatal})
}

// codeLine is one source line's worth of pending work: the parsed
// instruction expression plus the section/line it belongs to, handed
// to asmsize/emit after the whole file has been scanned.
type codeLine struct {
	code    *fit.Code
	section string
}

// Assemble runs the full pipeline over src (spec.md §2): tokenize,
// evaluate each instruction line's operand expression (C3), fit it to
// an encoding (C4), iterate sizes to a fixed point (C5), and emit
// bytes plus relocations (C6) into an elf2.Container.
func (a *Assembler) Assemble(src, filename string) (*elf2.Container, []Diagnostic) {
	toks := lexer.Tokenize(src, filename)
	var lines []codeLine

	a.curSection = ".text"
	a.ensureSection(".text", elf2.SHFAlloc|elf2.SHFExec)

	i := 0
	for i < len(toks) {
		lineStart := i
		for i < len(toks) && toks[i].Kind != token.KNewline && toks[i].Kind != token.KEOF {
			i++
		}
		lineToks := toks[lineStart:i]
		if i < len(toks) && toks[i].Kind == token.KNewline {
			i++
		}
		if len(lineToks) == 0 {
			continue
		}
		a.assembleLine(lineToks, &lines)
	}

	a.runSizeIteration(lines)
	a.emitAll(lines)

	return a.container, a.diagnostics
}

func (a *Assembler) ensureSection(name string, flags uint64) int {
	if idx, ok := a.sections[name]; ok {
		return idx
	}
	nameOff := a.container.AddSecName(name)
	idx := a.container.AddSection(elf2.SectionHeader{Name: nameOff, Type: 1, Flags: flags, AddrAlign: 4}, nil)
	a.sections[name] = idx
	return idx
}

func (a *Assembler) assembleLine(lineToks []token.Token, lines *[]codeLine) {
	if lineToks[0].Kind == token.KDirective {
		a.handleDirective(lineToks)
		return
	}

	idx := 0
	if lineToks[0].Kind == token.KLabel {
		name := lineToks[0].Literal
		off := a.container.AddSymName(name)
		sec := a.sections[a.curSection]
		sym := elf2.Symbol{Name: off, Bind: elf2.BindGlobal, Section: int32(sec)}
		symIdx := a.container.AddSymbol(sym)
		a.res.symbols[name] = symIdx
		a.pendingLabels = append(a.pendingLabels, symIdx)
		idx++
		if idx < len(lineToks) && lineToks[idx].Kind == token.KColon {
			idx++
		}
	}
	if idx >= len(lineToks) {
		return
	}

	mnemName := strings.ToUpper(lineToks[idx].Literal)
	instrID, ok := mnemonics[mnemName]
	if !ok {
		a.report(lineToks[idx].Pos, false, "unknown instruction: %s", lineToks[idx].Literal)
		return
	}
	idx++

	e := expr.Evaluate(lineToks[idx:], len(lineToks)-idx, expr.Normal, a.res)
	e.Instruction = instrID
	if e.IsError() {
		a.report(e.ErrorPos, false, "%s", e.ErrorCode)
		return
	}

	code := &fit.Code{Expression: e, Section: a.sections[a.curSection], Line: lineToks[0].Pos.Line}
	for _, sym := range a.pendingLabels {
		a.labelCode[sym] = code
	}
	a.pendingLabels = a.pendingLabels[:0]
	if !fit.FitCode(code) {
		reason := fit.CheckCodeE(code)
		a.report(lineToks[0].Pos, false, "%s", reason)
		return
	}
	*lines = append(*lines, codeLine{code: code, section: a.curSection})
}

func (a *Assembler) handleDirective(lineToks []token.Token) {
	name := strings.ToLower(lineToks[0].Literal)
	switch name {
	case ".section":
		if len(lineToks) > 1 {
			a.curSection = lineToks[1].Literal
			a.ensureSection(a.curSection, elf2.SHFAlloc)
		}
	case ".global", ".globl":
		// visibility is already BindGlobal by default; nothing further to do
	case ".align":
		// filler recomputed by the size-iteration pass (spec.md §4.5)
	}
}

func (a *Assembler) runSizeIteration(lines []codeLine) {
	bySection := make(map[string][]*fit.Code)
	for _, l := range lines {
		bySection[l.section] = append(bySection[l.section], l.code)
	}
	var secs []asmsize.Section
	for name, codes := range bySection {
		idx := a.sections[name]
		secs = append(secs, asmsize.Section{Header: &a.container.Sections[idx], Codes: codes})
	}

	// seen tracks which codes have already had their Address refreshed
	// in the current pass, so a jump to a not-yet-visited label is
	// recognized as a forward reference (its Address still holds the
	// previous pass's value) rather than treated as settled.
	total := len(lines)
	seen := make(map[*fit.Code]bool, total)
	callsThisPass := 0

	asmsize.Run(secs, func(code *fit.Code, address uint32, forceLarge bool) (changed bool, uncertain bool) {
		callsThisPass++
		if callsThisPass > total {
			callsThisPass = 1
			seen = make(map[*fit.Code]bool, total)
		}
		seen[code] = true

		prevSize, prevFormat := code.Size, code.FormatP

		if code.Category == format.CatJump && code.EType.Has(expr.Sym1) {
			target, known := a.labelCode[code.Sym1]
			forward := known && !seen[target]

			if forceLarge && (!known || forward) {
				freezeLargeJump(code)
				return code.Size != prevSize, false
			}
			if known {
				end := int64(address) + int64(code.Size)*4
				code.OffsetJump = int64(target.Address) - end
			}
			if !fit.FitCode(code) {
				// keep the previous fit; a genuine failure surfaces
				// again at emitAll time via CheckCodeE.
				code.Size, code.FormatP = prevSize, prevFormat
				return false, true
			}
			return code.Size != prevSize, !known || forward
		}

		if !fit.FitCode(code) {
			code.Size, code.FormatP = prevSize, prevFormat
			return false, true
		}
		return code.Size != prevSize, false
	})
}

// freezeLargeJump pins code to the widest jump-format entry so the
// pass loop can terminate even when a target address never resolves
// within this assembly unit (an external symbol, fixed up later by a
// relocation; spec.md §4.5's forceLarge guarantee).
func freezeLargeJump(code *fit.Code) {
	jumpFormats := format.FormatsForJump()
	if len(jumpFormats) == 0 {
		return
	}
	largest := jumpFormats[0]
	for _, e := range jumpFormats[1:] {
		if e.JumpSize > largest.JumpSize {
			largest = e
		}
	}
	code.FormatP = &largest
	code.Size = largest.Words
}

func (a *Assembler) emitAll(lines []codeLine) {
	symOf := func(sym uint32) (elf2.Symbol, elf2.SizeClass, bool) {
		if int(sym) >= len(a.container.Symbols) {
			return elf2.Symbol{}, elf2.SizeNone, false
		}
		return a.container.Symbols[sym], elf2.Size32, true
	}

	bySection := make(map[string][]*fit.Code)
	for _, l := range lines {
		bySection[l.section] = append(bySection[l.section], l.code)
	}
	for name, codes := range bySection {
		idx := a.sections[name]
		var buf []byte
		for _, code := range codes {
			res := emit.Emit(code, symOf)
			for _, w := range res.Words {
				buf = append(buf, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
			}
			for _, r := range res.Relocations {
				a.container.AddRelocation(elf2.Relocation{
					Section: idx, Offset: uint64(code.Address) + uint64(r.Offset),
					Kind: r.Kind, Size: r.Size, Symbol: r.Symbol, RefSymbol: r.RefSymbol, Addend: r.Addend,
				})
			}
		}
		a.container.ExtendSection(idx, buf)
	}
}
