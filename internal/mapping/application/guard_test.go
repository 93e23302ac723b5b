package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRequestGuard_OneRequestPerDataset(t *testing.T) {
	var g requestGuard
	require.True(t, g.TryLock(5))
	require.False(t, g.TryLock(5))
	require.True(t, g.TryLock(6))
	require.True(t, g.Busy(5))

	g.Unlock(5)
	require.False(t, g.Busy(5))
	require.True(t, g.TryLock(5))
}

func TestRequestGuard_WaitAllReturnsWhenIdle(t *testing.T) {
	var g requestGuard
	g.WaitAll(context.Background())

	require.True(t, g.TryLock(1))
	require.True(t, g.TryLock(2))
	done := make(chan struct{})
	go func() {
		defer close(done)
		g.WaitAll(context.Background())
	}()

	g.Unlock(1)
	select {
	case <-done:
		t.Fatal("WaitAll returned with a request still running")
	case <-time.After(30 * time.Millisecond):
	}
	g.Unlock(2)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WaitAll did not return")
	}
}
