package fake

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAdvanceFiresDueTickers(t *testing.T) {
	t.Parallel()

	start := time.Unix(100, 0)
	clk := New(start)
	tk := clk.NewTicker(time.Second)

	clk.Advance(500 * time.Millisecond)
	require.Empty(t, tk.C())

	clk.Advance(500 * time.Millisecond)
	require.Equal(t, start.Add(time.Second), <-tk.C())
	require.Equal(t, start.Add(time.Second), clk.Now())
}

// TestAdvanceDropsUnconsumedTicks mirrors time.Ticker's one-slot buffer.
func TestAdvanceDropsUnconsumedTicks(t *testing.T) {
	t.Parallel()

	clk := New(time.Unix(0, 0))
	tk := clk.NewTicker(time.Second)
	clk.Advance(5 * time.Second)
	require.Len(t, tk.C(), 1)
}

func TestStopRemovesTicker(t *testing.T) {
	t.Parallel()

	clk := New(time.Unix(0, 0))
	a := clk.NewTicker(time.Second)
	clk.NewTicker(time.Second)
	require.Equal(t, 2, clk.Active())

	a.Stop()
	a.Stop()
	require.Equal(t, 1, clk.Active())
	clk.Advance(time.Second)
	require.Empty(t, a.C())
}
