package main

import (
	"context"
	"errors"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/o-litvinchuk-dev/lab3/internal/logging"
)

type countingRotator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *countingRotator) Rotate() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.err
}

func (r *countingRotator) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestRotateOnSignal(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"rotates", nil},
		{"keeps_running_after_failure", errors.New("disk full")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			sig := make(chan os.Signal)
			r := &countingRotator{err: tt.err}

			done := make(chan struct{})
			go func() {
				rotateOnSignal(ctx, sig, r, logging.Noop())
				close(done)
			}()

			sig <- syscall.SIGHUP
			sig <- syscall.SIGHUP
			cancel()

			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("rotateOnSignal did not return after cancel")
			}
			if got := r.count(); got != 2 {
				t.Errorf("Rotate() called %d times, want 2", got)
			}
		})
	}
}
