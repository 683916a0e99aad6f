package asmsize

import (
	"testing"

	"github.com/ForwardCom/bintools/internal/elf2"
	"github.com/ForwardCom/bintools/internal/fit"
	"github.com/stretchr/testify/require"
)

// TestConvergesWhenSizesStabilize models an instruction whose size never
// changes and is never uncertain, so the first pass already converges.
func TestConvergesWhenSizesStabilize(t *testing.T) {
	code := &fit.Code{Size: 1}
	sec := Section{Header: &elf2.SectionHeader{}, Codes: []*fit.Code{code}}

	refit := func(c *fit.Code, addr uint32, forceLarge bool) (bool, bool) {
		return false, false
	}

	res := Run([]Section{sec}, refit)
	require.True(t, res.Converged)
	require.Equal(t, 1, res.Passes)
	require.Equal(t, uint32(4), sec.Header.Size)
}

func TestForcesLargeNearPassLimit(t *testing.T) {
	code := &fit.Code{Size: 1, SizeUnknown: 1}
	sec := Section{Header: &elf2.SectionHeader{}, Codes: []*fit.Code{code}}

	sawForce := false
	refit := func(c *fit.Code, addr uint32, forceLarge bool) (bool, bool) {
		if forceLarge {
			sawForce = true
			return false, false
		}
		// Keeps changing size every pass, so only the forced-large pass
		// at MaxPasses-1 settles it.
		return true, true
	}

	res := Run([]Section{sec}, refit)
	require.True(t, res.Converged)
	require.True(t, sawForce)
	require.True(t, res.ForcedLarge)
}

func TestNeverConvergesHitsMaxPasses(t *testing.T) {
	code := &fit.Code{Size: 1}
	sec := Section{Header: &elf2.SectionHeader{}, Codes: []*fit.Code{code}}

	refit := func(c *fit.Code, addr uint32, forceLarge bool) (bool, bool) {
		return true, false // always reports a change: pathological, never settles
	}

	res := Run([]Section{sec}, refit)
	require.Equal(t, MaxPasses, res.Passes)
	require.False(t, res.Converged)
}
