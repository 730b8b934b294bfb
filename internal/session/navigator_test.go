package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNavigatorClamps(t *testing.T) {
	n := NewNavigator(3)
	require.Equal(t, 0, n.Index())

	require.Equal(t, 0, n.Prev())
	require.Equal(t, 1, n.Next())
	require.Equal(t, 2, n.Next())
	require.Equal(t, 2, n.Next())
	require.Equal(t, 2, n.Goto(10))
	require.Equal(t, 0, n.Goto(-4))
	require.Equal(t, 1, n.Goto(1))
}

func TestNavigatorShrinkReclamps(t *testing.T) {
	n := NewNavigator(10)
	n.Goto(8)

	require.Equal(t, 3, n.Resize(4))
	require.Equal(t, 4, n.Total())

	require.Equal(t, 0, n.Resize(0))
	require.Equal(t, 0, n.Next())
	require.Equal(t, 0, n.Prev())
}

func TestNavigatorEmpty(t *testing.T) {
	n := NewNavigator(0)
	require.Equal(t, 0, n.Goto(5))
	require.Equal(t, 0, n.Total())
}
