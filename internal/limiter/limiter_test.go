package limiter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewClampsMax(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{-3, 1},
		{0, 1},
		{1, 1},
		{24, 24},
	}
	for _, tt := range tests {
		if got := New(tt.in).Max(); got != tt.want {
			t.Errorf("New(%d).Max() = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNeverExceedsMax(t *testing.T) {
	const max = 4
	l := New(max)

	var peak, current atomic.Int64
	for i := 0; i < 50; i++ {
		l.Go(context.Background(), func(ctx context.Context) error {
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			current.Add(-1)
			return nil
		}, nil)
	}
	l.Wait()

	if got := peak.Load(); got > max {
		t.Errorf("peak in-flight = %d, want <= %d", got, max)
	}
	if got := l.InFlight(); got != 0 {
		t.Errorf("InFlight() after Wait = %d, want 0", got)
	}
}

func TestRunReleasesSlotOnError(t *testing.T) {
	l := New(1)
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		if err := l.Run(context.Background(), func(ctx context.Context) error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("Run() error = %v, want %v", err, boom)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.Run(ctx, func(ctx context.Context) error { return nil }); err != nil {
		t.Errorf("Run() after failures error = %v, want nil", err)
	}
}

func TestRunCanceledWhileWaiting(t *testing.T) {
	l := New(1)
	release := make(chan struct{})
	started := make(chan struct{})

	l.Go(context.Background(), func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}, nil)
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran bool
	err := l.Run(ctx, func(ctx context.Context) error {
		ran = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if ran {
		t.Error("task ran despite canceled context")
	}

	close(release)
	l.Wait()
}

func TestGoReportsResults(t *testing.T) {
	l := New(3)
	var mu sync.Mutex
	var failures int

	for i := 0; i < 10; i++ {
		i := i
		l.Go(context.Background(), func(ctx context.Context) error {
			if i%2 == 0 {
				return errors.New("even")
			}
			return nil
		}, func(err error) {
			if err != nil {
				mu.Lock()
				failures++
				mu.Unlock()
			}
		})
	}
	l.Wait()

	if failures != 5 {
		t.Errorf("failures = %d, want 5", failures)
	}
}
