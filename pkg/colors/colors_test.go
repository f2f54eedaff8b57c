package colors

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReferenceOrder(t *testing.T) {
	require.Len(t, References, Count)

	cases := []struct {
		ref   Reference
		name  string
		angle float64
	}{
		{Red, "Red", 23},
		{Orange, "Orange", 46},
		{Yellow, "Yellow", 69},
		{Green, "Green", 92},
		{LightBlue, "Light Blue", 115},
		{Blue, "Blue", 138},
		{Purple, "Purple", 161},
	}

	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.ref, References[i])
			require.Equal(t, i, tc.ref.Position())
			require.Equal(t, tc.name, tc.ref.String())
			require.Equal(t, tc.angle, tc.ref.Angle())
			require.True(t, tc.ref.Valid())

			parsed, ok := Parse(tc.name)
			require.True(t, ok)
			require.Equal(t, tc.ref, parsed)
		})
	}
}

func TestNext(t *testing.T) {
	var visited []Reference

	r := Red
	for {
		visited = append(visited, r)
		next, ok := r.Next()
		if !ok {
			break
		}
		r = next
	}

	require.Equal(t, References, visited)

	last, ok := Purple.Next()
	require.False(t, ok)
	require.Equal(t, Purple, last)
}

func TestParseUnknown(t *testing.T) {
	for _, name := range []string{"", "LightBlue", "red", "Magenta"} {
		_, ok := Parse(name)
		require.False(t, ok, name)
	}

	require.False(t, Reference(42).Valid())
	require.Equal(t, "unknown", Reference(42).String())
	require.Equal(t, -1, Reference(42).Position())
}
