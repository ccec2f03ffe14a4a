package chirp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccumulator_RejectsNonPositiveCeiling(t *testing.T) {
	assert.Panics(t, func() { NewAccumulator(0) })
	assert.Panics(t, func() { NewAccumulator(-1) })
	assert.Panics(t, func() { NewParser(WithBufferCeiling(-5)) })
}

func TestAccumulator_CompactsToLastMagic(t *testing.T) {
	a := NewAccumulator(64)
	assert.False(t, a.Feed(noise(50, 1)))

	tail := concat(noise(10, 2), MagicWord[:], []byte{1, 2, 3, 4})
	assert.True(t, a.Feed(tail))

	require.Equal(t, 12, a.Len())
	assert.Equal(t, MagicWord[:], a.Bytes()[:MagicLen])
	assert.Equal(t, uint64(60), a.Discarded())
	assert.Equal(t, uint64(1), a.Compactions())
}

func TestAccumulator_CompactsWithoutMagic(t *testing.T) {
	a := NewAccumulator(100)
	a.Feed(noise(80, 1))
	a.Feed(noise(80, 2))

	require.Equal(t, 100, a.Len())
	assert.Equal(t, noise(80, 2), a.Bytes()[20:])
	assert.Equal(t, uint64(60), a.Discarded())
}

func TestAccumulator_MarkerTailLongerThanCeiling(t *testing.T) {
	a := NewAccumulator(32)
	a.Feed(concat(MagicWord[:], noise(40, 3)))

	assert.LessOrEqual(t, a.Len(), 32)
	assert.Equal(t, -1, FindMagic(a.Bytes()))
}

func TestAccumulator_StaysBoundedOnMarkerFreeStream(t *testing.T) {
	const ceiling = 4096
	a := NewAccumulator(ceiling)
	for i := 0; i < 500; i++ {
		a.Feed(noise(1000, i))
		require.LessOrEqual(t, a.Len(), ceiling, "after feed %d", i)
		a.Sync()
		require.LessOrEqual(t, a.Len(), ceiling, "after sync %d", i)
	}
	assert.Positive(t, a.Compactions())
}

func TestAccumulator_SyncDiscardsPrefix(t *testing.T) {
	a := NewAccumulator(1024)
	a.Feed(noise(30, 1))
	assert.False(t, a.Sync())
	assert.Equal(t, 30, a.Len(), "sync must not consume input when no marker is buffered")

	// Split the marker across feeds.
	a.Feed(MagicWord[:3])
	assert.False(t, a.Sync())
	a.Feed(MagicWord[3:])
	require.True(t, a.Sync())
	assert.Equal(t, MagicLen, a.Len())
	assert.Equal(t, uint64(30), a.Discarded())
}

func TestAccumulator_DiscardAndConsume(t *testing.T) {
	a := NewAccumulator(1024)
	a.Feed([]byte{1, 2, 3, 4, 5, 6})
	a.Discard(2)
	a.Consume(2)
	assert.Equal(t, []byte{5, 6}, a.Bytes())
	assert.Equal(t, uint64(2), a.Discarded())

	a.Feed([]byte{7})
	assert.Equal(t, []byte{5, 6, 7}, a.Bytes())

	a.Discard(100)
	assert.Zero(t, a.Len())

	a.Feed([]byte{8})
	a.Reset()
	assert.Zero(t, a.Len())
}
