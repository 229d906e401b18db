package voximplant

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoader_LoadOnce(t *testing.T) {
	var calls atomic.Int32
	l := NewLoader(func(ctx context.Context) (Client, error) {
		calls.Add(1)
		return NewGatewayClient(), nil
	})

	for i := 0; i < 3; i++ {
		if err := l.Load(context.Background()); err != nil {
			t.Fatalf("load %d: %v", i, err)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("expected one load attempt, got %d", n)
	}
	if l.State() != StateReady {
		t.Fatalf("expected ready state, got %s", l.State())
	}
	if _, err := l.Client(); err != nil {
		t.Fatalf("client after load: %v", err)
	}
}

func TestLoader_ConcurrentCallsCoalesce(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	l := NewLoader(func(ctx context.Context) (Client, error) {
		calls.Add(1)
		<-release
		return NewGatewayClient(), nil
	})

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = l.Load(context.Background())
		}(i)
	}

	// Let every goroutine reach the loader before releasing the attempt.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected one load attempt, got %d", got)
	}
}

func TestLoader_FailureLatches(t *testing.T) {
	boom := errors.New("network down")
	var calls atomic.Int32
	l := NewLoader(func(ctx context.Context) (Client, error) {
		calls.Add(1)
		return nil, boom
	})

	err1 := l.Load(context.Background())
	if err1 == nil || !errors.Is(err1, boom) {
		t.Fatalf("expected wrapped load error, got %v", err1)
	}
	// No retry: the same error comes back without a second attempt.
	err2 := l.Load(context.Background())
	if !errors.Is(err2, boom) {
		t.Fatalf("expected latched error, got %v", err2)
	}
	if calls.Load() != 1 {
		t.Fatalf("failed load must not retry")
	}
	if l.State() != StateError {
		t.Fatalf("expected error state, got %s", l.State())
	}
	if _, err := l.Client(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestLoader_ClientBeforeLoad(t *testing.T) {
	l := NewLoader(func(ctx context.Context) (Client, error) {
		return NewGatewayClient(), nil
	})
	if _, err := l.Client(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if l.State() != StateUninitialized {
		t.Fatalf("expected uninitialized state, got %s", l.State())
	}
}

func TestLoader_CanceledWaiter(t *testing.T) {
	release := make(chan struct{})
	l := NewLoader(func(ctx context.Context) (Client, error) {
		<-release
		return NewGatewayClient(), nil
	})

	go l.Load(context.Background())
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Load(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	close(release)
}
