package fit

// addressKind distinguishes the three displacement families spec.md §4.4
// "fit_address" scales differently: jump offsets (by 4), memory offsets
// (by operand size for narrow forms), and inter-symbol differences (by
// an explicit symscale).
type addressKind int

const (
	addressKindJump addressKind = iota
	addressKindMemory
	addressKindSymDiff
)

// FitAddress computes the admissible width bitset for a displacement of
// addrKind (spec.md §4.4). It returns only that bitset: it does not
// report whether the fit is still uncertain and does not set sizeUnknown.
func FitAddress(disp int64, kind addressKind, operandSize int, symScale int64) FitSet {
	scaled := disp
	switch kind {
	case addressKindJump:
		scaled = disp / 4
	case addressKindMemory:
		if operandSize > 1 {
			scaled = disp / int64(operandSize)
		}
	case addressKindSymDiff:
		if symScale != 0 {
			scaled = disp / symScale
		}
	}
	var fs FitSet
	if fitsSigned(scaled, 8) {
		fs |= FitI8
	}
	if fitsSigned(scaled, 16) {
		fs |= FitI16
	}
	if fitsSigned(scaled, 32) {
		fs |= FitI32
	}
	return fs
}
