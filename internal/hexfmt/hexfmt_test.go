package hexfmt

import (
	"strings"
	"testing"

	"github.com/ForwardCom/bintools/internal/elf2"
	"github.com/stretchr/testify/require"
)

func TestDumpSeparatesSectionsAndWrapsLines(t *testing.T) {
	c := elf2.New()
	nameOff := c.AddSecName(".text")
	c.AddSection(elf2.SectionHeader{Name: nameOff, Type: 1, Flags: elf2.SHFAlloc, AddrAlign: 4},
		[]byte{0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0, 3})

	out := Dump(c, 2)
	require.True(t, strings.HasPrefix(out, "// Section 0, size 12\n"))
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Equal(t, "00000001 00000002", lines[1])
	require.Equal(t, "00000003", lines[2])
}

func TestDumpSkipsNonAllocatedSections(t *testing.T) {
	c := elf2.New()
	c.AddSection(elf2.SectionHeader{Type: 2, Flags: 0}, []byte{1, 2, 3, 4})
	out := Dump(c, 4)
	require.Equal(t, "", out)
}
