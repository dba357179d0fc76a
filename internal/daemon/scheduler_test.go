package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	serrors "git.home.luguber.info/inful/spark/internal/errors"
)

func TestScheduler_ScheduleCron(t *testing.T) {
	t.Run("returns job id for valid cron", func(t *testing.T) {
		s, err := NewScheduler(nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Stop() })

		id, err := s.ScheduleCron("test", "0 */4 * * *", func() {})
		require.NoError(t, err)
		require.NotEmpty(t, id)
	})

	t.Run("rejects invalid cron", func(t *testing.T) {
		s, err := NewScheduler(nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Stop() })

		_, err = s.ScheduleCron("test", "this is not a cron", func() {})
		require.True(t, serrors.HasCategory(err, serrors.CategoryConfig))
	})
}

func TestScheduler_ScheduleEvery(t *testing.T) {
	s, err := NewScheduler(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })

	_, err = s.ScheduleEvery("test", 0, func() {})
	require.Error(t, err)

	ran := make(chan struct{}, 1)
	_, err = s.ScheduleEvery("tick", 20*time.Millisecond, func() {
		select {
		case ran <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)
	s.Start()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestScheduler_ScheduleRenderSkipsAfterCancel(t *testing.T) {
	s, err := NewScheduler(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	id, err := s.ScheduleRender(ctx, "* * * * *", func(context.Context) error {
		t.Error("render must not run after cancel")
		return nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)
}

func TestScheduler_ScheduleRenderInterval(t *testing.T) {
	s, err := NewScheduler(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })

	_, err = s.ScheduleRender(context.Background(), "@every never", func(context.Context) error { return nil })
	require.True(t, serrors.HasCategory(err, serrors.CategoryConfig))

	ran := make(chan struct{}, 1)
	_, err = s.ScheduleRender(context.Background(), "@every 20ms", func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})
	require.NoError(t, err)
	s.Start()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("render did not run")
	}
}
