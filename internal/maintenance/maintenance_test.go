package maintenance

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	count atomic.Int32
}

func (c *countingSweeper) Sweep() { c.count.Add(1) }

type countingFlusher struct {
	closed atomic.Bool
}

func (c *countingFlusher) Close() error {
	c.closed.Store(true)
	return nil
}

func TestSweepRunsPeriodically(t *testing.T) {
	sweeper := &countingSweeper{}
	m, err := Start(sweeper, 20*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(90 * time.Millisecond)
	require.NoError(t, m.Shutdown(nil))

	assert.GreaterOrEqual(t, sweeper.count.Load(), int32(2))
}

func TestShutdownFlushesDatabaseOverlay(t *testing.T) {
	sweeper := &countingSweeper{}
	m, err := Start(sweeper, time.Hour)
	require.NoError(t, err)

	flusher := &countingFlusher{}
	require.NoError(t, m.Shutdown(flusher))
	assert.True(t, flusher.closed.Load())
}
