package debounce

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTriggerCoalescesRapidCalls(t *testing.T) {
	s := NewScheduler()
	defer s.Close()

	var calls atomic.Int32
	for i := 0; i < 5; i++ {
		s.Trigger("refresh", 30*time.Millisecond, func() {
			calls.Add(1)
		})
	}

	require.Eventually(t, func() bool {
		return calls.Load() == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(60 * time.Millisecond)
	require.Equal(t, int32(1), calls.Load())
	require.False(t, s.Pending("refresh"))
}

func TestTriggerLastFunctionWins(t *testing.T) {
	s := NewScheduler()
	defer s.Close()

	var got atomic.Int32
	s.Trigger("key", 20*time.Millisecond, func() { got.Store(1) })
	s.Trigger("key", 20*time.Millisecond, func() { got.Store(2) })

	require.Eventually(t, func() bool {
		return got.Load() == 2
	}, time.Second, 5*time.Millisecond)
}

func TestTriggerZeroDelayRunsImmediately(t *testing.T) {
	s := NewScheduler()
	defer s.Close()

	ran := false
	s.Trigger("now", 0, func() { ran = true })
	require.True(t, ran)
	require.False(t, s.Pending("now"))
}

func TestCancelDropsPendingInvocation(t *testing.T) {
	s := NewScheduler()
	defer s.Close()

	var calls atomic.Int32
	s.Trigger("key", 20*time.Millisecond, func() { calls.Add(1) })
	require.True(t, s.Pending("key"))

	s.Cancel("key")
	require.False(t, s.Pending("key"))

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(0), calls.Load())

	s.Cancel("unknown")
}

func TestFlushRunsPendingImmediately(t *testing.T) {
	s := NewScheduler()
	defer s.Close()

	var calls atomic.Int32
	s.Trigger("key", time.Hour, func() { calls.Add(1) })

	s.Flush("key")
	require.Equal(t, int32(1), calls.Load())
	require.False(t, s.Pending("key"))

	s.Flush("key")
	require.Equal(t, int32(1), calls.Load())
}

func TestCloseRejectsFurtherTriggers(t *testing.T) {
	s := NewScheduler()

	var calls atomic.Int32
	s.Trigger("key", time.Hour, func() { calls.Add(1) })
	s.Close()
	require.False(t, s.Pending("key"))

	s.Trigger("key", time.Millisecond, func() { calls.Add(1) })
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int32(0), calls.Load())
}

func TestIndependentKeysFireIndependently(t *testing.T) {
	s := NewScheduler()
	defer s.Close()

	var a, b atomic.Int32
	s.Trigger("a", 10*time.Millisecond, func() { a.Add(1) })
	s.Trigger("b", 10*time.Millisecond, func() { b.Add(1) })

	require.Eventually(t, func() bool {
		return a.Load() == 1 && b.Load() == 1
	}, time.Second, 5*time.Millisecond)
}
