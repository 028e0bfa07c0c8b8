//go:build !integration

package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_Do(t *testing.T) {
	p := NewPool(2, 4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	var ran atomic.Int32
	err := p.Do(context.Background(), func(ctx context.Context) error {
		ran.Add(1)
		return nil
	})
	if err != nil || ran.Load() != 1 {
		t.Fatalf("expected task to run once, err=%v ran=%d", err, ran.Load())
	}

	boom := errors.New("boom")
	if err := p.Do(context.Background(), func(ctx context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("expected task error to propagate, got %v", err)
	}
}

func TestPool_SaturatedQueueRejects(t *testing.T) {
	p := NewPool(1, 1, nil) // not started: nothing drains the queue
	if err := p.Submit(func(context.Context) error { return nil }); err != nil {
		t.Fatalf("first submit should fit the queue: %v", err)
	}
	if err := p.Submit(func(context.Context) error { return nil }); !errors.Is(err, ErrPoolSaturated) {
		t.Errorf("expected ErrPoolSaturated, got %v", err)
	}
	if err := p.Do(context.Background(), func(context.Context) error { return nil }); !errors.Is(err, ErrPoolSaturated) {
		t.Errorf("expected Do to report saturation, got %v", err)
	}
}

func TestPool_DoHonoursCallerContext(t *testing.T) {
	p := NewPool(1, 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	release := make(chan struct{})
	go func() {
		_ = p.Do(context.Background(), func(context.Context) error { <-release; return nil })
	}()
	time.Sleep(20 * time.Millisecond) // let the worker pick up the blocking task

	rctx, rcancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer rcancel()
	err := p.Do(rctx, func(context.Context) error { return nil })
	close(release)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestPool_RecoversPanics(t *testing.T) {
	p := NewPool(1, 2, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	_ = p.Submit(func(context.Context) error { panic("bad task") })
	if err := p.Do(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Errorf("pool should survive a panicking task: %v", err)
	}
}

func TestPool_SubmitAfterStop(t *testing.T) {
	p := NewPool(1, 1, nil)
	p.Start(context.Background())
	p.Stop()
	p.Stop()
	if err := p.Submit(func(context.Context) error { return nil }); !errors.Is(err, ErrPoolStopped) {
		t.Errorf("expected ErrPoolStopped, got %v", err)
	}
}
