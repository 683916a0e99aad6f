package asm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssembleSimpleMoveProducesCode(t *testing.T) {
	a := New()
	c, diags := a.Assemble("start: MOV r1 = r2\n", "test.fwc")
	for _, d := range diags {
		t.Logf("diag: %s", d.Error())
	}
	require.NotNil(t, c)

	idx, ok := a.sections[".text"]
	require.True(t, ok)
	require.Equal(t, ".text", c.SecName(c.Sections[idx].Name))
	require.Len(t, c.Symbols, 1)
}

func TestAssembleUnknownMnemonicReportsDiagnostic(t *testing.T) {
	a := New()
	_, diags := a.Assemble("BOGUS r1, r2\n", "test.fwc")
	require.NotEmpty(t, diags)
}

func TestAssembleSectionDirectiveSwitchesSection(t *testing.T) {
	a := New()
	_, _ = a.Assemble(".section data\nfoo: MOV r1 = r2\n", "test.fwc")
	_, ok := a.sections["data"]
	require.True(t, ok)
}
