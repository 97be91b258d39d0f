package generator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiscreteGeneratorPick(t *testing.T) {
	g := NewDiscreteGenerator(NewRandom(1))
	g.AddValue(45, "NEW_ORDER")
	g.AddValue(43, "PAYMENT")
	g.AddValue(0, "NEVER")
	g.AddValue(4, "ORDER_STATUS")
	g.AddValue(4, "DELIVERY")
	g.AddValue(4, "STOCK_LEVEL")
	require.Equal(t, 100, g.Total())

	cases := map[int]string{
		1:   "NEW_ORDER",
		45:  "NEW_ORDER",
		46:  "PAYMENT",
		88:  "PAYMENT",
		89:  "ORDER_STATUS",
		92:  "ORDER_STATUS",
		93:  "DELIVERY",
		96:  "DELIVERY",
		97:  "STOCK_LEVEL",
		100: "STOCK_LEVEL",
	}
	for x, expected := range cases {
		v, err := g.Pick(x)
		require.NoError(t, err)
		require.Equal(t, expected, v, "draw %d", x)
	}
	_, err := g.Pick(0)
	require.Error(t, err)
	_, err = g.Pick(101)
	require.Error(t, err)
}

func TestDiscreteGeneratorNextString(t *testing.T) {
	g := NewDiscreteGenerator(NewRandom(1))
	g.AddValue(1, "a")
	g.AddValue(3, "b")
	for i := 0; i < 10; i++ {
		n := g.NextString()
		require.Contains(t, []string{"a", "b"}, n)
		require.Equal(t, n, g.LastString())
	}
}
