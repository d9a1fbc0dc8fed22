package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunOnceSingleFlight(t *testing.T) {
	var running int32
	var calls int32

	block := make(chan struct{})
	tick := func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		if !atomic.CompareAndSwapInt32(&running, 0, 1) {
			t.Fatal("tick entered while another tick was still running")
		}
		<-block
		atomic.StoreInt32(&running, 0)
		return nil
	}

	s := New(tick, Config{ScanInterval: time.Hour, TickTimeout: time.Minute}, nil)

	done := make(chan struct{})
	go func() {
		s.RunOnce(context.Background())
		close(done)
	}()

	// Give the first tick a chance to enter before firing the second.
	time.Sleep(20 * time.Millisecond)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("second RunOnce returned error: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected tick to run once while busy, got %d calls", got)
	}

	close(block)
	<-done
}

func TestRunOnceReportsTickError(t *testing.T) {
	wantErr := errors.New("boom")
	s := New(func(ctx context.Context) error { return wantErr }, DefaultConfig(), nil)

	if err := s.RunOnce(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
	if s.IsRunning() {
		t.Fatal("expected running flag to clear after tick completes")
	}
}

func TestStartFiresImmediateTick(t *testing.T) {
	fired := make(chan struct{}, 1)
	s := New(func(ctx context.Context) error {
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	}, Config{ScanInterval: time.Hour, TickTimeout: time.Second}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("expected an immediate first tick")
	}

	cancel()
	s.Stop()
}

func TestStopIsIdempotent(t *testing.T) {
	s := New(func(ctx context.Context) error { return nil }, DefaultConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()
	s.Stop()
	s.Stop()
}

func TestStopCancelsInFlightTickPromptly(t *testing.T) {
	entered := make(chan struct{})
	tick := func(ctx context.Context) error {
		close(entered)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Hour):
			return nil
		}
	}

	// A TickTimeout this long models an hourly scan_interval's soft
	// deadline: Stop must not wait anywhere near it out.
	s := New(tick, Config{ScanInterval: time.Hour, TickTimeout: time.Hour}, nil)
	s.Start(context.Background())

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("tick never started")
	}

	start := time.Now()
	s.Stop()
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Stop took %s; expected it to cancel the in-flight tick promptly", elapsed)
	}
}

func TestStopWithoutStartDoesNotBlock(t *testing.T) {
	s := New(func(ctx context.Context) error { return nil }, DefaultConfig(), nil)
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked when scheduler was never started")
	}
}
