package fetch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostGate_OneInFlightPerHost(t *testing.T) {
	gate := NewHostGate(0, testLogger())

	var inFlight, maxSeen atomic.Int32
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, gate.Acquire(context.Background(), "Example.com"))
			n := inFlight.Add(1)
			for {
				m := maxSeen.Load()
				if n <= m || maxSeen.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			inFlight.Add(-1)
			gate.Release("example.com")
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load(), "host names are case-insensitive")
}

func TestHostGate_HostsAreIndependent(t *testing.T) {
	gate := NewHostGate(0, testLogger())
	require.NoError(t, gate.Acquire(context.Background(), "a.example"))
	defer gate.Release("a.example")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, gate.Acquire(ctx, "b.example"))
	gate.Release("b.example")
}

func TestHostGate_AcquireRespectsContext(t *testing.T) {
	gate := NewHostGate(0, testLogger())
	require.NoError(t, gate.Acquire(context.Background(), "busy.example"))
	defer gate.Release("busy.example")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := gate.Acquire(ctx, "busy.example")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHostGate_FailedWaiterHoldsNoPermit(t *testing.T) {
	gate := NewHostGate(0, testLogger())
	require.NoError(t, gate.Acquire(context.Background(), "busy.example"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, gate.Acquire(ctx, "busy.example"))
	gate.Release("busy.example")

	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	require.NoError(t, gate.Acquire(ctx2, "busy.example"), "permit must be free after the holder releases")
	gate.Release("busy.example")
}

func TestHostGate_MinimumInterval(t *testing.T) {
	interval := 40 * time.Millisecond
	gate := NewHostGate(interval, testLogger())

	start := time.Now()
	for range 3 {
		require.NoError(t, gate.Acquire(context.Background(), "slow.example"))
		gate.Release("slow.example")
	}

	// First request passes immediately, the next two wait one interval each
	assert.GreaterOrEqual(t, time.Since(start), 2*interval-5*time.Millisecond)
}

func TestHostGate_ReleaseUnknownHost(t *testing.T) {
	gate := NewHostGate(0, testLogger())
	assert.NotPanics(t, func() { gate.Release("never-acquired.example") })
}
