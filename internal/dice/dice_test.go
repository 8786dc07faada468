package dice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/passthepresent/internal/catalog"
	"github.com/lox/passthepresent/internal/deck"
	"github.com/lox/passthepresent/internal/randutil"
)

func TestRollCoversAllFaces(t *testing.T) {
	t.Parallel()

	rng := randutil.New(1)
	counts := make(map[Value]int)
	const trials = 6000
	for range trials {
		v := Roll(rng)
		require.GreaterOrEqual(t, int(v), 1)
		require.LessOrEqual(t, int(v), 6)
		counts[v]++
	}
	assert.Len(t, counts, 6)
	for v, n := range counts {
		assert.InDelta(t, trials/6, n, 200, "face %d", v)
	}
}

func TestRollFor(t *testing.T) {
	t.Parallel()

	c, err := catalog.Default()
	require.NoError(t, err)

	res, err := RollFor(randutil.New(3), c, deck.Traditional, 2)
	require.NoError(t, err)
	want, err := Rule(c, deck.Traditional, 2, res.Value)
	require.NoError(t, err)
	assert.Equal(t, want, res.Rule)

	_, err = RollFor(randutil.New(3), c, deck.Traditional, 0)
	assert.Error(t, err)
}
