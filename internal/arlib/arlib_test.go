package arlib

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildParseRoundTrip(t *testing.T) {
	members := []Member{
		{Name: "a.fco", Data: []byte{1, 2, 3}},
		{Name: "b.fco", Data: []byte{4, 5}},
	}
	raw := Build(members)

	lib, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, lib.Members, 2)
	require.Equal(t, "a.fco", lib.Members[0].Name)
	require.Equal(t, []byte{1, 2, 3}, lib.Members[0].Data)
	require.Equal(t, "b.fco", lib.Members[1].Name)
}

func TestBuildParseRoundTripLongNames(t *testing.T) {
	longName := "a_module_name_longer_than_sixteen_bytes.fco"
	members := []Member{
		{Name: longName, Data: []byte{9, 9, 9}},
	}
	raw := Build(members)

	lib, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, lib.Members, 1)
	require.Equal(t, longName, lib.Members[0].Name)
}

func TestFindMember(t *testing.T) {
	lib := &Library{Members: []Member{{Name: "x.fco", Data: []byte{1}}}}
	m, ok := lib.FindMember("x.fco")
	require.True(t, ok)
	require.Equal(t, []byte{1}, m.Data)

	_, ok = lib.FindMember("missing")
	require.False(t, ok)
}

func TestParseRejectsBadMagic(t *testing.T) {
	_, err := Parse([]byte("not an archive"))
	require.Error(t, err)
}
