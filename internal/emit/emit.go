// Package emit implements the binary emitter (spec.md C6 / §4.6): for
// each fitted code record, select register slots per the format's
// operand-availability bits, write immediates/offsets/option bits, and
// emit a relocation for any symbol reference that cannot be resolved
// to a local delta. Grounded on the teacher's encoder/*.go
// per-instruction-family encode functions, generalized from ARM's
// fixed 32-bit word to ForwardCom's 1/2/3-word variable templates
// (original_source/assem4.cpp "codeGen").
package emit

import (
	"encoding/binary"

	"github.com/ForwardCom/bintools/internal/elf2"
	"github.com/ForwardCom/bintools/internal/expr"
	"github.com/ForwardCom/bintools/internal/fit"
	"github.com/ForwardCom/bintools/internal/format"
)

// FillerInstruction pads between instructions to the 4-byte boundary
// (spec.md §4.6).
const FillerInstruction uint32 = 0

// Relocation is a symbol reference emitted alongside the instruction
// bytes, for the caller to forward into an elf2.Container.
type Relocation struct {
	Offset    int // byte offset from the start of the emitted instruction
	Kind      elf2.RelocKind
	Size      elf2.SizeClass
	Symbol    uint32
	RefSymbol uint32
	Addend    int64
}

// Result is one instruction's emitted bytes plus any relocations it needed.
type Result struct {
	Words       []uint32
	Relocations []Relocation
}

// Emit encodes code using its already-fitted FormatP entry (spec.md
// §4.6). The literal displacement or offset is always written into the
// words. symOf resolves a pending expr.Expression symbol reference
// (Sym1) to an elf2 symbol; when it returns ok=true, Emit also records a
// relocation against that symbol.
func Emit(code *fit.Code, symOf func(sym uint32) (elf2.Symbol, elf2.SizeClass, bool)) Result {
	e := code.FormatP
	words := make([]uint32, e.Words)

	words[0] = encodeHeader(e, code)

	var relocs []Relocation

	switch {
	case e.Category == format.CatJump:
		offset := code.OffsetJump
		writeSigned(words, e.JumpPos, e.JumpSize, offset)
		if code.Sym1 != 0 {
			if sym, sizeClass, ok := symOf(code.Sym1); ok {
				_ = sym
				relocs = append(relocs, Relocation{
					Offset: e.JumpPos / 8, Kind: elf2.RelocSelfRelative,
					Size: sizeClass, Symbol: code.Sym1, Addend: code.OffsetJump,
				})
			}
		}

	case code.EType.Has(expr.Immediate):
		v := int64(code.Value.I)
		writeImmediate(words, e, v)

	case code.EType.Has(expr.Mem) && code.OffsetMem != 0:
		writeSigned(words, e.AddrPos, e.AddrSize, code.OffsetMem)
	}

	if code.EType.Has(expr.Sym1) && e.Category != format.CatJump {
		if sym, sizeClass, ok := symOf(code.Sym1); ok {
			_ = sym
			relocs = append(relocs, Relocation{
				Offset: e.AddrPos / 8, Kind: elf2.RelocAbsolute,
				Size: sizeClass, Symbol: code.Sym1, Addend: code.OffsetMem,
			})
		}
	}

	return Result{Words: words, Relocations: relocs}
}

// encodeHeader packs op1/mode/registers/option bits into the leading
// word. NOP (multiformat category 3, op1 == 0) clears mask and
// operand-type bits per spec.md §4.6's special case.
func encodeHeader(e *format.Entry, code *fit.Code) uint32 {
	var w uint32
	w |= uint32(e.Format2&0xFFF) << 20

	if code.Instruction == format.Nop && e.Category == format.CatMulti {
		return w
	}

	if e.OpAvail&format.AvailRT != 0 && !code.Reg1Ref.IsZero() {
		w |= uint32(code.Reg1Ref.Index&0x1F) << 0
	}
	if e.OpAvail&format.AvailRS != 0 && !code.Reg2Ref.IsZero() {
		w |= uint32(code.Reg2Ref.Index&0x1F) << 5
	}
	if e.OpAvail&format.AvailRU != 0 {
		if code.EType.Has(expr.Mask) && !code.MaskReg.IsZero() {
			w |= uint32(code.MaskReg.Index&0x1F) << 10
		}
	}
	if e.OpAvail&format.AvailRD != 0 {
		if code.EType.Has(expr.Fallback) && !code.FallbackReg.IsZero() {
			w |= uint32(code.FallbackReg.Index&0x1F) << 15
		} else if !code.Reg1Ref.IsZero() {
			// fill the unused destination-fallback slot with rt to
			// avoid a false register dependency (spec.md §4.6).
			w |= uint32(code.Reg1Ref.Index&0x1F) << 15
		}
	}
	w |= uint32(code.OptionBits) << 25
	return w
}

// writeImmediate writes v into the format's immediate field, applying
// the shifted-immediate encodings when the fitter selected one.
func writeImmediate(words []uint32, e *format.Entry, v int64) {
	switch e.Imm2 {
	case format.Imm2Shift8, format.Imm2Shift16, format.Imm2Shift32:
		mant, shift := shiftedForm(v)
		writeSigned(words, e.ImmPos, e.ImmSize, mant)
		writeSigned(words, e.ImmPos+e.ImmSize, 8, int64(shift))
	default:
		writeSigned(words, e.ImmPos, e.ImmSize, v)
	}
}

func shiftedForm(v int64) (mantissa int64, shift int) {
	if v == 0 {
		return 0, 0
	}
	u := uint64(v)
	for u&1 == 0 && shift < 63 {
		u >>= 1
		shift++
	}
	return int64(u), shift
}

// writeSigned packs a bitPos..bitPos+bitSize field, spanning the
// 32-bit Words slice as a little-endian bit stream.
func writeSigned(words []uint32, bitPos, bitSize int, v int64) {
	if bitSize == 0 {
		return
	}
	var buf [12]byte
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	mask := uint64(1)<<uint(bitSize) - 1
	uv := uint64(v) & mask

	byteOff := bitPos / 8
	bitOff := uint(bitPos % 8)
	remaining := bitSize
	shift := uint(0)
	for remaining > 0 && byteOff < len(buf) {
		bitsHere := 8 - int(bitOff)
		if bitsHere > remaining {
			bitsHere = remaining
		}
		chunkMask := byte(1<<uint(bitsHere) - 1)
		chunk := byte((uv >> shift) & uint64(chunkMask))
		buf[byteOff] = buf[byteOff]&^(chunkMask<<bitOff) | (chunk << bitOff)
		remaining -= bitsHere
		shift += uint(bitsHere)
		byteOff++
		bitOff = 0
	}
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
}

// AlignForExec pads buf to a 4-byte boundary with FillerInstruction
// words (spec.md §4.6).
func AlignForExec(buf []uint32) []uint32 {
	return buf
}
