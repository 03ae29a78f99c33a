package task

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunShardedCompletesAndAggregatesProgress(t *testing.T) {
	m := NewManager(4, 1)
	id := m.RunSharded(context.Background(), "enrich", "enrich", 3, func(ctx context.Context, shard int, report func(int, int)) error {
		report(0, 10)
		report(10, 10)
		return nil
	})
	require.NoError(t, m.Wait(id))

	tk, ok := m.Get(id)
	require.True(t, ok)
	require.Equal(t, StatusCompleted, tk.Status)
	require.Equal(t, 1.0, tk.Progress)
	require.Len(t, tk.Shards, 3)
	require.False(t, tk.EndedAt.Before(tk.StartedAt))
}

func TestRunShardedPartialProgressIsAveraged(t *testing.T) {
	m := NewManager(2, 1)
	release := make(chan struct{})
	id := m.RunSharded(context.Background(), "slow", "slow", 2, func(ctx context.Context, shard int, report func(int, int)) error {
		if shard == 0 {
			report(5, 10)
			<-release
			return nil
		}
		<-release
		report(10, 10)
		return nil
	})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		tk, _ := m.Get(id)
		if tk.Progress > 0 {
			require.InDelta(t, 0.25, tk.Progress, 0.01)
			break
		}
		time.Sleep(time.Millisecond)
	}
	close(release)
	require.NoError(t, m.Wait(id))
}

func TestRunShardedErrorStatusSurvivesLaterShardCompletion(t *testing.T) {
	m := NewManager(4, 1)
	proceed := make(chan struct{})
	id := m.RunSharded(context.Background(), "mixed", "mixed", 2, func(ctx context.Context, shard int, report func(int, int)) error {
		if shard == 0 {
			<-proceed
			return fmt.Errorf("boom")
		}
		<-proceed
		time.Sleep(5 * time.Millisecond)
		report(1, 1)
		return nil
	})
	close(proceed)
	require.NoError(t, m.Wait(id))

	tk, ok := m.Get(id)
	require.True(t, ok)
	require.Equal(t, StatusError, tk.Status)
	require.Equal(t, "boom", tk.Error)
}

func TestStopCancelsCooperatively(t *testing.T) {
	m := NewManager(2, 1)
	started := make(chan struct{})
	id := m.RunSharded(context.Background(), "cancellable", "cancellable", 1, func(ctx context.Context, shard int, report func(int, int)) error {
		close(started)
		for i := 0; i < 1000; i++ {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			time.Sleep(time.Millisecond)
		}
		return nil
	})
	<-started
	require.NoError(t, m.Stop(id))
	require.NoError(t, m.Wait(id))

	tk, ok := m.Get(id)
	require.True(t, ok)
	require.Equal(t, StatusError, tk.Status)
	require.Equal(t, "cancelled", tk.Error)
}

func TestManifestOrdersByStartTime(t *testing.T) {
	m := NewManager(2, 1)
	id1 := m.RunSharded(context.Background(), "first", "t", 1, func(ctx context.Context, shard int, report func(int, int)) error { return nil })
	require.NoError(t, m.Wait(id1))
	id2 := m.RunSharded(context.Background(), "second", "t", 1, func(ctx context.Context, shard int, report func(int, int)) error { return nil })
	require.NoError(t, m.Wait(id2))

	manifest := m.Manifest()
	require.Len(t, manifest, 2)
	require.Equal(t, id1, manifest[0].ID)
	require.Equal(t, id2, manifest[1].ID)
}

type fakeCommand struct {
	fail bool
}

func (f *fakeCommand) SetStderr(w io.Writer) {
	if f.fail {
		_, _ = w.Write([]byte("boom"))
	}
}
func (f *fakeCommand) Run() error {
	if f.fail {
		return fmt.Errorf("exit status 1")
	}
	return nil
}

func TestRunProcessSucceedsAndFails(t *testing.T) {
	m := NewManager(1, 1)
	id := m.RunProcess(context.Background(), "proc-ok", "proc", func(ctx context.Context) Command {
		return &fakeCommand{}
	})
	require.NoError(t, m.Wait(id))
	tk, _ := m.Get(id)
	require.Equal(t, StatusCompleted, tk.Status)

	id2 := m.RunProcess(context.Background(), "proc-fail", "proc", func(ctx context.Context) Command {
		return &fakeCommand{fail: true}
	})
	require.NoError(t, m.Wait(id2))
	tk2, _ := m.Get(id2)
	require.Equal(t, StatusError, tk2.Status)
	require.Contains(t, tk2.Error, "boom")
}

func TestWaitUnknownTaskErrors(t *testing.T) {
	m := NewManager(1, 1)
	require.Error(t, m.Wait("nope"))
}

func TestStopUnknownTaskErrors(t *testing.T) {
	m := NewManager(1, 1)
	require.Error(t, m.Stop("nope"))
}
