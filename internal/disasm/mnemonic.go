package disasm

import (
	"fmt"

	"github.com/ForwardCom/bintools/internal/emu"
	"github.com/ForwardCom/bintools/internal/format"
)

// DecodeOp is the decodeOp callback Disassemble expects: it names and
// renders the operands of the catalog entry format.Catalog[entryIdx]
// matched against words. Jump-format entries get an exact family name
// (internal/emu.FamilyName, since a jump's low 6 bits are a genuine
// per-variant identity field) and their branch displacement and
// registers. Multi-format entries render the operand shape — register
// indices, immediate, or memory offset actually present in the bits —
// rather than guessing a specific mnemonic: the catalog has no op1
// sub-field distinguishing, say, Add from Sub within a shared
// register-register encoding (see DESIGN.md), so "add r1, r2" and
// "sub r1, r2" are indistinguishable from the wire bytes alone.
func DecodeOp(words []uint32, entryIdx int) (mnemonic, operands string) {
	if entryIdx < 0 || entryIdx >= len(format.Catalog) || len(words) == 0 {
		return "??", ""
	}
	e := format.Catalog[entryIdx]
	rt := int(words[0]) & 0x1F
	rs := int(words[0]>>5) & 0x1F

	if e.Category == format.CatJump {
		opcode := uint8(words[0]>>10) & 0x3F
		disp := readSigned(words, e.JumpPos, e.JumpSize)
		name := emu.FamilyName(opcode)
		if name == "" {
			name = fmt.Sprintf("jump.%d", opcode)
		}
		return name, fmt.Sprintf("r%d, r%d, %+d", rt, rs, disp)
	}

	if e.Category == format.CatSingle && e.OpAvail == 0 {
		return "nop", ""
	}

	switch {
	case e.OpAvail&format.AvailMemory != 0:
		off := readSigned(words, e.AddrPos, e.AddrSize)
		return "mem.op", fmt.Sprintf("r%d, [r%d%+d]", rt, rs, off)
	case e.OpAvail&format.AvailImmediate != 0:
		imm := readSigned(words, e.ImmPos, e.ImmSize)
		return "alu.imm", fmt.Sprintf("r%d, r%d, %d", rt, rs, imm)
	case e.OpAvail&format.AvailRS != 0:
		return "alu.rr", fmt.Sprintf("r%d, r%d", rt, rs)
	default:
		return "alu", fmt.Sprintf("r%d", rt)
	}
}

// readSigned mirrors internal/emit.writeSigned: it extracts a
// sign-extended bitPos..bitPos+bitSize field from the little-endian
// word stream words.
func readSigned(words []uint32, bitPos, bitSize int) int64 {
	if bitSize == 0 {
		return 0
	}
	var buf [12]byte
	for i, w := range words {
		if i*4+4 > len(buf) {
			break
		}
		buf[i*4] = byte(w)
		buf[i*4+1] = byte(w >> 8)
		buf[i*4+2] = byte(w >> 16)
		buf[i*4+3] = byte(w >> 24)
	}

	var uv uint64
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
		chunk := (buf[byteOff] >> bitOff) & chunkMask
		uv |= uint64(chunk) << shift
		remaining -= bitsHere
		shift += uint(bitsHere)
		byteOff++
		bitOff = 0
	}
	if bitSize < 64 && uv&(1<<uint(bitSize-1)) != 0 {
		uv |= ^uint64(0) << uint(bitSize)
	}
	return int64(uv)
}
