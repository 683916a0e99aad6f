package expr

import (
	"testing"

	"github.com/ForwardCom/bintools/internal/lexer"
	"github.com/ForwardCom/bintools/internal/token"
	"github.com/stretchr/testify/require"
)

// fakeResolver is a minimal Resolver for tests: r0-r31 are general
// registers, everything else is an unresolved external symbol.
type fakeResolver struct{}

func (fakeResolver) LookupRegister(name string) (RegRef, bool) {
	if len(name) >= 2 && name[0] == 'r' {
		n := 0
		for _, c := range name[1:] {
			if c < '0' || c > '9' {
				return RegRef{}, false
			}
			n = n*10 + int(c-'0')
		}
		if n >= 0 && n <= 31 {
			return RegRef{Index: uint8(n), Class: RegGP}, true
		}
	}
	return RegRef{}, false
}

func (fakeResolver) LookupType(name string) bool { return false }

func (fakeResolver) LookupSymbol(name string) (uint32, bool, Expression, bool) {
	return 0, false, Expression{}, false
}

func toks(src string) []token.Token {
	return lexer.Tokenize(src, "test.asm")
}

func TestOperatorPrecedence(t *testing.T) {
	// Scenario 1 (spec.md §8.2): "1 + 2 * 3" -> single Int node, value 7.
	ts := toks("1 + 2 * 3")
	ex := Evaluate(ts, 0, Normal, fakeResolver{})
	require.False(t, ex.IsError(), "unexpected error: %v", ex.ErrorCode)
	require.True(t, ex.EType.Has(Int))
	require.Equal(t, uint64(7), ex.Value.I)
}

func TestMemoryOperandIndexScale(t *testing.T) {
	// Scenario 2 (spec.md §8.2): "[r1 + r2*4 + 16]" -> Mem|Base|Index|Offset,
	// base=R1, index=R2, scale=4, offset_mem=16.
	ts := toks("[r1 + r2*4 + 16]")
	ex := Evaluate(ts, 0, Normal, fakeResolver{})
	require.False(t, ex.IsError(), "unexpected error: %v", ex.ErrorCode)
	require.True(t, ex.EType.Has(Mem|Base|Index|Offset), "etype=%v", ex.EType)
	require.Equal(t, uint8(1), ex.BaseReg.Index)
	require.Equal(t, uint8(2), ex.IndexReg.Index)
	require.Equal(t, int64(4), ex.Scale)
	require.Equal(t, int64(16), ex.OffsetMem)
}

func TestLimitAndOffsetConflict(t *testing.T) {
	ex := Expression{EType: Offset | Limit}
	require.Equal(t, ErrLimitAndOffset, ex.checkInvariants())
}

func TestScalarLengthBroadcastConflict(t *testing.T) {
	ex := Expression{EType: Scalar | Length}
	require.Equal(t, ErrConflictOptions, ex.checkInvariants())
}
