package format

// FormatIndex bit positions used by idTable's multiFormats bitmaps. These
// correspond one-to-one with the FormatIndex field of the Entry each
// constant names below.
const (
	fiRegRegA = iota
	fiRegRegB
	fiRegRegC
	fiRegImm8
	fiRegImm8Sh
	fiRegImm16
	fiRegImm32
	fiRegMem
	fiRegMemD
)

// Format2 keys for the category-1 (single-format) entries.
const (
	fmtNop    uint16 = 0x000
	fmtRegRegC uint16 = 0x150
	fmtRegMemD uint16 = 0x2A0
)

func e(format2 uint16, cat Category, tmpl Template, avail OperandAvail, ot OperandTypePolicy,
	immSize, immPos int, imm2 Imm2Layout, mem MemAvail, scale ScalePolicy, vect VectorPolicy,
	formatIndex, words int) Entry {
	return Entry{
		Format2: format2, Category: cat, Template: tmpl, OpAvail: avail, OT: ot,
		ImmSize: immSize, ImmPos: immPos, Imm2: imm2, Mem: mem, Scale: scale, Vect: vect,
		FormatIndex: formatIndex, Words: words,
	}
}

// buildCatalog constructs the read-only table described in spec.md §3.4 /
// §4.2. Single-format entries (category 1) and multi-format entries
// (category 3, one row per admissible width) appear first, jump-format
// entries (category 4) form the contiguous tail that FormatsForJump slices.
func buildCatalog() []Entry {
	var c []Entry

	// Category 1: fixed one-format instructions.
	c = append(c, e(fmtNop, CatSingle, TemplateE, 0, OTFixed, 0, 0, Imm2None, 0, ScaleNone, VectNone, -1, 1))
	c = append(c, e(fmtRegRegC, CatSingle, TemplateC, AvailRT|AvailRS, OTField, 0, 0, Imm2None, 0, ScaleNone, VectFixed, -1, 1))
	c = append(c, e(fmtRegMemD, CatSingle, TemplateD, AvailMemory|AvailRT, OTField, 0, 0, Imm2None, MemBase|MemOffset, ScaleFixed, VectNone, -1, 1))

	// Category 3: register-register form, smallest, 1 word.
	c = append(c, e(0x300, CatMulti, TemplateA, AvailRT|AvailRS|AvailRU, OTField, 0, 0, Imm2None, 0, ScaleNone, VectFixed, fiRegRegA, 1))
	// Three-source fused forms (MulAdd, MulAdd2, AddAdd): 1 word, template B.
	c = append(c, e(0x310, CatMulti, TemplateB, AvailRT|AvailRS|AvailRU|AvailRD, OTField, 0, 0, Imm2None, 0, ScaleNone, VectFixed, fiRegRegB, 1))
	// Register/register, template C (used by some unary forms needing no RU).
	c = append(c, e(0x320, CatMulti, TemplateC, AvailRT|AvailRS, OTField, 0, 0, Imm2None, 0, ScaleNone, VectFixed, fiRegRegC, 1))

	// Register + 8-bit immediate, 1 word.
	c = append(c, e(0x340, CatMulti, TemplateA, AvailRT|AvailRS|AvailImmediate, OTField, 8, 16, Imm2None, 0, ScaleNone, VectFixed, fiRegImm8, 1))
	// Register + 8-bit shifted immediate (INT8SH), 1 word.
	c = append(c, e(0x348, CatMulti, TemplateA, AvailRT|AvailRS|AvailImmediate, OTField, 8, 16, Imm2Shift8, 0, ScaleNone, VectFixed, fiRegImm8Sh, 1))
	// Register + 16-bit immediate, 2 words.
	c = append(c, e(0x350, CatMulti, TemplateA, AvailRT|AvailRS|AvailImmediate, OTField, 16, 32, Imm2None, 0, ScaleNone, VectFixed, fiRegImm16, 2))
	// Register + 32-bit immediate, 3 words.
	c = append(c, e(0x360, CatMulti, TemplateA, AvailRT|AvailRS|AvailImmediate, OTField, 32, 32, Imm2None, 0, ScaleNone, VectFixed, fiRegImm32, 3))
	// Register + memory operand (base, optional index/scale), 1 word; AddrSize is 0, so only a zero offset fits.
	c = append(c, e(0x380, CatMulti, TemplateD, AvailRT|AvailMemory, OTField, 0, 0, Imm2None, MemBase|MemIndex|MemOffset, ScaleField, VectNone, fiRegMem, 1))

	// Category 4: jump family (spec.md §4.10 opcode ranges). One entry
	// per size class; the fitter picks the smallest whose JumpSize covers
	// the branch displacement.
	jumpSizes := []struct {
		bits  int
		words int
	}{{8, 1}, {16, 1}, {24, 2}, {32, 2}}
	for i, js := range jumpSizes {
		c = append(c, e(uint16(0x400+i), CatJump, TemplateE, AvailRT|AvailRS, OTField, 0, 0, Imm2None, 0, ScaleNone, VectFixed, -1, js.words))
		c[len(c)-1].JumpSize = js.bits
		c[len(c)-1].JumpPos = 16
	}

	return c
}
