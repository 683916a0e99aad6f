package fit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFitConstantSmallSigned(t *testing.T) {
	fs := FitConstant(-5, DType{Base: TInt32})
	require.NotZero(t, fs&FitI4)
	require.NotZero(t, fs&FitI8)
}

func TestFitConstantShifted(t *testing.T) {
	// 0x80 == 128 requires shift to fit an 8-bit mantissa at width 8? It is
	// itself representable directly at 16 bits but also as a shifted 8-bit
	// form (1 << 7), exercising the shifted-immediate fit path.
	fs := FitConstant(0x80, DType{Base: TInt32})
	require.NotZero(t, fs&FitI8Shift)
}

func TestFitAddressJumpScalesByFour(t *testing.T) {
	// 1020/4 == 255: too large for signed 8 bits, fits signed 16.
	fs := FitAddress(1020, addressKindJump, 4, 1)
	require.Zero(t, fs&FitI8)
	require.NotZero(t, fs&FitI16)
}
