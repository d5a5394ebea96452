package pool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetTimer_Fires(t *testing.T) {
	require := require.New(t)

	begin := time.Now()
	timer := GetTimer(20 * time.Millisecond)
	<-timer.C
	require.GreaterOrEqual(time.Since(begin), 20*time.Millisecond)
	PutTimer(timer)

	// a recycled timer must not carry a stale tick
	begin = time.Now()
	timer = GetTimer(30 * time.Millisecond)
	<-timer.C
	require.GreaterOrEqual(time.Since(begin), 30*time.Millisecond)
	PutTimer(timer)
}

func TestPutTimer_Active(t *testing.T) {
	require := require.New(t)

	timer := GetTimer(time.Hour)
	PutTimer(timer)
	PutTimer(nil)

	begin := time.Now()
	timer = GetTimer(20 * time.Millisecond)
	select {
	case <-timer.C:
		require.GreaterOrEqual(time.Since(begin), 20*time.Millisecond)
	case <-time.After(time.Second):
		require.Fail("timer did not fire")
	}
	PutTimer(timer)
}

func TestSleep(t *testing.T) {
	require := require.New(t)

	require.NoError(Sleep(context.Background(), 0))

	begin := time.Now()
	require.NoError(Sleep(context.Background(), 20*time.Millisecond))
	require.GreaterOrEqual(time.Since(begin), 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	begin = time.Now()
	require.ErrorIs(Sleep(ctx, time.Hour), context.DeadlineExceeded)
	require.Less(time.Since(begin), time.Second)

	cancelled, cancel2 := context.WithCancel(context.Background())
	cancel2()
	require.ErrorIs(Sleep(cancelled, 0), context.Canceled)
}

func TestGetTimer_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				timer := GetTimer(time.Millisecond)
				<-timer.C
				PutTimer(timer)
			}
		}()
	}
	wg.Wait()
}
