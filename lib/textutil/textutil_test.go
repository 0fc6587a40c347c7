package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCollapseWhitespace(t *testing.T) {
	require.Equal(t, "a b c", CollapseWhitespace("  a\t b \n c "))
	require.Equal(t, "", CollapseWhitespace(" \n\t "))
}

func TestLines(t *testing.T) {
	require.Equal(t, []string{"one", "two"}, Lines(" one \n\n two \n"))
	require.Empty(t, Lines("\n \n"))
}

func TestLine(t *testing.T) {
	s := "first\nsecond"
	require.Equal(t, "first", Line(s, 0))
	require.Equal(t, "second", Line(s, 1))
	require.Equal(t, "", Line(s, 2))
}
