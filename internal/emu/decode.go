package emu

import "github.com/ForwardCom/bintools/internal/format"

// RegisterFile is the minimal register set a decoded Instruction reads
// its operand values from. The emulator is explicitly light-weight
// (spec.md §1): full ALU execution of every instruction is an external
// collaborator's concern, so RegisterFile holds whatever state a test
// or a CLI driver has pre-loaded rather than being advanced by a
// general instruction interpreter. Grounded on the teacher's
// vm.RegisterSnapshot array-of-registers shape, widened from ARM's 16
// 32-bit GPRs to ForwardCom's 32 64-bit general and 32 float registers.
type RegisterFile struct {
	Int   [32]int64
	Float [32]float64
}

// Get returns the integer value of register r, or 0 if r is out of range.
func (f *RegisterFile) Get(r int) int64 {
	if r < 0 || r >= len(f.Int) {
		return 0
	}
	return f.Int[r]
}

// GetFloat returns the float value of register r, or 0 if r is out of range.
func (f *RegisterFile) GetFloat(r int) float64 {
	if r < 0 || r >= len(f.Float) {
		return 0
	}
	return f.Float[r]
}

// Set stores v into register r, ignoring an out-of-range index.
func (f *RegisterFile) Set(r int, v int64) {
	if r >= 0 && r < len(f.Int) {
		f.Int[r] = v
	}
}

// familyNames mirrors dispatch's opcode grouping (spec.md §4.10) so a
// disassembler can name a jump instruction without duplicating the
// grouping logic kept in this package's init().
var familyNames [64]string

func init() {
	set := func(lo, hi int, name string) {
		for op := lo; op <= hi; op++ {
			familyNames[op] = name
		}
	}
	set(0, 7, "sub_jump_generic")
	set(10, 15, "bitwise_jump_zero")
	set(16, 25, "add_jump_generic")
	set(26, 27, "test_bit_jump_true")
	set(28, 29, "test_bits_and")
	set(30, 31, "test_bits_or")
	set(32, 41, "compare_jump_generic")
	set(48, 51, "increment_compare_jump")
	set(52, 53, "sub_maxlen_jump_pos")
	familyNames[58] = "jump_call"
	familyNames[59] = "multiway_and_indirect"
	familyNames[62] = "return"
	familyNames[63] = "syscall"
}

// FamilyName returns the dispatch handler family's name for opcode, or
// "" if the opcode has no registered handler (spec.md §4.10).
func FamilyName(opcode uint8) string {
	return familyNames[opcode&0x3F]
}

// Decode extracts a jump Instruction from the leading word(s) of a
// format.CatJump catalog entry (spec.md §4.10 / §4.6). Register slots
// sit where internal/emit.encodeHeader places them: rt at bits 0-4,
// rs at bits 5-9. Jump entries carry no RU slot (format.AvailRU is
// never set for format.CatJump rows), so this reuses that bit range,
// 10-15, as the dispatch opcode the original C++ emulator's decode()
// also keyed its funcTab on. The branch displacement is the signed
// field at e.JumpPos/e.JumpSize, already measured in instruction
// words, the same field internal/emit writes via writeSigned.
//
// The catalog has no bit position recorded for a jump's operand-type
// field (format.Entry carries OT as a policy, not a location; see
// DESIGN.md), so Decode always reports Int64. Test-bit families
// read their mask out of the rs register rather than an encoded
// immediate, since jump entries have no immediate field either.
func Decode(words []uint32, e *format.Entry, regs *RegisterFile) (Instruction, error) {
	if e == nil || e.Category != format.CatJump {
		return Instruction{}, &ErrWrongParameters{Detail: "Decode requires a jump-format catalog entry"}
	}
	if len(words) == 0 {
		return Instruction{}, &ErrWrongParameters{Detail: "no instruction words to decode"}
	}
	if regs == nil {
		regs = &RegisterFile{}
	}

	w := words[0]
	rt := int(w) & 0x1F
	rs := int(w>>5) & 0x1F
	opcode := uint8(w>>10) & 0x3F

	in := Instruction{
		Opcode:      opcode,
		Type:        Int64,
		A:           regs.Get(rt),
		B:           regs.Get(rs),
		AddrOperand: int32(readSigned(words, e.JumpPos, e.JumpSize)),
	}
	if opcode >= 26 && opcode <= 31 {
		in.Mask = uint64(regs.Get(rs))
	}
	return in, nil
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
