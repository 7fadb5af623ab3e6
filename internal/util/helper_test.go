package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCloneSlice(t *testing.T) {
	require := require.New(t)

	src := []uint16{1, 2, 3}
	clone := CloneSlice(src, 0)
	clone[0] = 9
	require.Equal([]uint16{1, 2, 3}, src)
	require.Len(CloneSlice(src, 5), 5)
}

func TestDivCeil(t *testing.T) {
	require := require.New(t)

	require.Equal(0, DivCeil(0, 16))
	require.Equal(1, DivCeil(1, 16))
	require.Equal(1, DivCeil(16, 16))
	require.Equal(2, DivCeil(17, 16))
	require.Equal(uint16(3), DivCeil(uint16(5), uint16(2)))
}

func TestSumBy(t *testing.T) {
	require.Equal(t, 6, SumBy([]string{"a", "bb", "ccc"}, func(s string) int { return len(s) }))
}
