package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type flakyDevice struct {
	failures int32
	calls    atomic.Int32
}

func (f *flakyDevice) Connect() error {
	if f.calls.Add(1) <= f.failures {
		return errors.New("port busy")
	}
	return nil
}

func (f *flakyDevice) Close() error { return nil }

func TestConnectWithRetryEventuallyConnects(t *testing.T) {
	dev := &flakyDevice{failures: 1}
	done := make(chan struct{})
	go func() {
		connectWithRetry(context.Background(), "test", dev, 3)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("connectWithRetry did not return")
	}
	assert.Equal(t, int32(2), dev.calls.Load())
}

func TestConnectWithRetryStopsOnCancel(t *testing.T) {
	dev := &flakyDevice{failures: 1 << 30}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		connectWithRetry(ctx, "test", dev, 3)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("connectWithRetry ignored cancellation")
	}
	assert.GreaterOrEqual(t, dev.calls.Load(), int32(1))
}
