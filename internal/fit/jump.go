package fit

import "github.com/ForwardCom/bintools/internal/format"

// jumpInstructionFits checks a jump/branch Code against a jump-format
// entry: the branch displacement (in words) must fit entry.JumpSize bits
// (spec.md §4.4 "jump_instruction_fits").
func jumpInstructionFits(code *Code, entry *format.Entry) bool {
	if entry.JumpSize == 0 {
		return false
	}
	disp := code.OffsetJump
	if disp%4 != 0 {
		return false // JumpTargetMisalign, reported by the caller via CheckCodeE
	}
	words := disp / 4
	if !fitsSigned(words, uint(entry.JumpSize)) {
		return false
	}
	return true
}
