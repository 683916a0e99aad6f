package fit

import "math/bits"

// FitConstant scans v's bit pattern to determine which encodings it can
// take (spec.md §4.4 "fit_constant"). A J-suffix bit means v equals
// 1<<n and so fits with sign inversion (a shifted/negated encoding).
func FitConstant(v int64, dt DType) FitSet {
	var fs FitSet
	u := uint64(v)

	if fitsSigned(v, 4) {
		fs |= FitI4
	}
	if fitsSigned(v, 8) {
		fs |= FitI8
	}
	if fitsUnsigned(u, 8) {
		fs |= FitU8
	}
	if isPow2(u) && bits.Len64(u) <= 8 {
		fs |= FitJ8
	}
	if fitsShifted(v, 8) {
		fs |= FitI8Shift
	}

	if fitsSigned(v, 16) {
		fs |= FitI16
	}
	if fitsUnsigned(u, 16) {
		fs |= FitU16
	}
	if isPow2(u) && bits.Len64(u) <= 16 {
		fs |= FitJ16
	}
	if fitsShifted(v, 16) {
		fs |= FitI16Shift
	}
	if fitsShiftedHi(v, 16) {
		fs |= FitI16Sh16
	}

	if fitsSigned(v, 32) {
		fs |= FitI32
	}
	if fitsUnsigned(u, 32) {
		fs |= FitU32
	}
	if isPow2(u) && bits.Len64(u) <= 32 {
		fs |= FitJ32
	}
	if fitsShifted(v, 32) {
		fs |= FitI32Shift
	}
	if fitsShiftedHi(v, 32) {
		fs |= FitI32Sh32
	}

	if dt.Base == TFloat16 || dt.Base == TFloat32 || dt.Base == TFloat64 {
		fs |= floatFit(v, dt.Base)
	}
	return fs
}

func fitsSigned(v int64, bitsWidth uint) bool {
	lo := -(int64(1) << (bitsWidth - 1))
	hi := (int64(1) << (bitsWidth - 1)) - 1
	return v >= lo && v <= hi
}

func fitsUnsigned(u uint64, bitsWidth uint) bool {
	return u <= (uint64(1)<<bitsWidth)-1
}

func isPow2(u uint64) bool { return u != 0 && u&(u-1) == 0 }

// fitsShifted reports whether v's value is exactly representable as a
// width-bit signed quantity left-shifted by some trailing-zero count (the
// INT8SH/INT16SH16/... "shifted immediate" variants of spec.md §4.4).
func fitsShifted(v int64, width uint) bool {
	if v == 0 {
		return true
	}
	u := uint64(v)
	neg := v < 0
	if neg {
		u = uint64(-v)
	}
	tz := bits.TrailingZeros64(u)
	mantissa := int64(u >> uint(tz))
	if neg {
		mantissa = -mantissa
	}
	return fitsSigned(mantissa, width)
}

// fitsShiftedHi additionally requires the shift amount be exactly the
// field's width (the INT32SH32 form: mantissa occupies the low half,
// shift is fixed rather than encoded).
func fitsShiftedHi(v int64, width uint) bool {
	if v == 0 {
		return false
	}
	u := uint64(v)
	if v < 0 {
		u = uint64(-v)
	}
	tz := bits.TrailingZeros64(u)
	return uint(tz) == width && fitsShifted(v, width)
}

// floatFit returns the float-fit flag for the given width (FitFFit16,
// FitFFit32, or FitFFit64 for any other base type). It does not check
// whether the bit pattern round-trips at that width.
func floatFit(bitsVal int64, base BaseType) FitSet {
	switch base {
	case TFloat16:
		return FitFFit16
	case TFloat32:
		return FitFFit32
	default:
		return FitFFit64
	}
}
