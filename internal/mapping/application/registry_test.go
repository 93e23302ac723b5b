package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubClock struct {
	now time.Time
}

func (c *stubClock) Now() time.Time {
	return c.now
}

func TestSessionRegistry_CreateGetRemove(t *testing.T) {
	f := newFixture(t, fakeColumns{3: {"cust"}})
	registry, err := NewSessionRegistry(func() (*Session, error) {
		return f.session, nil
	}, time.Minute)
	require.NoError(t, err)

	session, active, err := registry.Create()
	require.NoError(t, err)
	require.Equal(t, 1, registry.Len())

	got, gotActive, err := registry.Get(session.ID())
	require.NoError(t, err)
	require.Same(t, session, got)
	require.Same(t, active, gotActive)

	active.Set(context.Background(), id(3))
	view := session.View()
	require.Equal(t, int64(3), *view.DatasetID)
	require.Equal(t, StateMerged, view.State)

	require.True(t, registry.Remove(session.ID()))
	require.False(t, registry.Remove(session.ID()))
	_, _, err = registry.Get(session.ID())
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionRegistry_SweepEvictsIdleSessions(t *testing.T) {
	clock := &stubClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	registry, err := NewSessionRegistry(func() (*Session, error) {
		return NewSession(fakeCatalog{fields: testFields()}, fakeColumns{}, newFakeStore(), newFakeSource())
	}, 30*time.Minute, WithRegistryClock(clock))
	require.NoError(t, err)

	idle, _, err := registry.Create()
	require.NoError(t, err)
	clock.now = clock.now.Add(20 * time.Minute)
	busy, _, err := registry.Create()
	require.NoError(t, err)

	clock.now = clock.now.Add(15 * time.Minute)
	_, _, err = registry.Get(busy.ID())
	require.NoError(t, err)

	require.Equal(t, 1, registry.Sweep(clock.now))
	_, _, err = registry.Get(idle.ID())
	require.ErrorIs(t, err, ErrSessionNotFound)
	_, _, err = registry.Get(busy.ID())
	require.NoError(t, err)
}

func TestSessionRegistry_Sweeper(t *testing.T) {
	registry, err := NewSessionRegistry(func() (*Session, error) {
		return NewSession(fakeCatalog{}, fakeColumns{}, newFakeStore(), newFakeSource())
	}, 0)
	require.NoError(t, err)
	require.Error(t, registry.StartSweeper("not a schedule"))
	require.NoError(t, registry.StartSweeper("@every 1h"))
	require.Error(t, registry.StartSweeper("@every 1h"))
	registry.Stop(context.Background())
}

func TestSessionRegistry_StopWaitsForInFlightSuggestions(t *testing.T) {
	f := newFixture(t, fakeColumns{3: {"cust"}})
	gate := make(chan struct{})
	f.source.gates[3] = gate
	registry, err := NewSessionRegistry(func() (*Session, error) {
		return f.session, nil
	}, time.Minute)
	require.NoError(t, err)
	_, active, err := registry.Create()
	require.NoError(t, err)

	opened := make(chan struct{})
	go func() {
		defer close(opened)
		active.Set(context.Background(), id(3))
	}()
	select {
	case <-f.source.started:
	case <-time.After(2 * time.Second):
		t.Fatal("suggestion request was not issued")
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		registry.Stop(context.Background())
	}()
	select {
	case <-stopped:
		t.Fatal("stop returned while a suggestion request was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return after the request finished")
	}
	<-opened
}

func TestSessionRegistry_StopHonoursContext(t *testing.T) {
	f := newFixture(t, fakeColumns{3: {"cust"}})
	gate := make(chan struct{})
	defer close(gate)
	f.source.gates[3] = gate
	registry, err := NewSessionRegistry(func() (*Session, error) {
		return f.session, nil
	}, time.Minute)
	require.NoError(t, err)
	_, active, err := registry.Create()
	require.NoError(t, err)

	go active.Set(context.Background(), id(3))
	<-f.source.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	registry.Stop(ctx)
	require.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
}

func TestActiveDataset_NotifiesOnChange(t *testing.T) {
	active := NewActiveDataset()
	var seen []*int64
	unsubscribe := active.Subscribe(func(_ context.Context, datasetID *int64) {
		seen = append(seen, datasetID)
	})

	require.True(t, active.Set(context.Background(), nil))
	require.False(t, active.Set(context.Background(), nil))
	require.True(t, active.Set(context.Background(), id(4)))
	require.False(t, active.Set(context.Background(), id(4)))
	require.Equal(t, uint64(2), active.Version())
	require.Equal(t, int64(4), *active.Current())

	unsubscribe()
	require.True(t, active.Set(context.Background(), id(5)))
	require.Len(t, seen, 2)
	require.Nil(t, seen[0])
	require.Equal(t, int64(4), *seen[1])
}
