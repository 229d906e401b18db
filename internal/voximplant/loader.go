package voximplant

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Loader lazy-loads the vendor SDK exactly once per process and hands out
// the singleton client. A load failure latches the error state; there is no
// automatic retry (the operator restarts the process, matching the
// reload-the-page recovery model).
//
// Concurrent Load calls coalesce onto the single in-flight attempt. A plain
// status check before starting would race two back-to-back callers, so the
// first caller publishes a done channel that every later caller waits on.

var ErrNotInitialized = errors.New("voximplant: SDK not loaded")

type LoadState string

const (
	StateUninitialized LoadState = "uninitialized"
	StateLoading       LoadState = "loading"
	StateReady         LoadState = "ready"
	StateError         LoadState = "error"
)

// LoadFunc performs the actual SDK acquisition: script fetch, library init,
// whatever the deployment needs. It runs at most once.
type LoadFunc func(ctx context.Context) (Client, error)

type Loader struct {
	mu      sync.Mutex
	state   LoadState
	client  Client
	loadErr error
	done    chan struct{}

	load LoadFunc
}

func NewLoader(load LoadFunc) *Loader {
	return &Loader{state: StateUninitialized, load: load}
}

// Load resolves once the SDK is ready. If a load is already in flight the
// caller joins it; if a previous load failed, the same error is returned to
// every caller from then on.
func (l *Loader) Load(ctx context.Context) error {
	l.mu.Lock()
	switch l.state {
	case StateReady:
		l.mu.Unlock()
		return nil
	case StateError:
		err := l.loadErr
		l.mu.Unlock()
		return err
	case StateLoading:
		done := l.done
		l.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		l.mu.Lock()
		err := l.loadErr
		l.mu.Unlock()
		return err
	}

	// First caller; start the single attempt.
	l.state = StateLoading
	l.done = make(chan struct{})
	done := l.done
	l.mu.Unlock()

	client, err := l.load(ctx)

	l.mu.Lock()
	if err != nil {
		l.state = StateError
		l.loadErr = fmt.Errorf("voximplant: SDK load failed: %w", err)
	} else {
		l.state = StateReady
		l.client = client
	}
	err = l.loadErr
	l.mu.Unlock()

	close(done)
	return err
}

// Client returns the singleton handle. Fails until Load has completed.
func (l *Loader) Client() (Client, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateReady {
		return nil, ErrNotInitialized
	}
	return l.client, nil
}

// State reports the current lifecycle phase.
func (l *Loader) State() LoadState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}
