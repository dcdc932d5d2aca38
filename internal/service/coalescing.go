package service

import (
	"context"
	"sync"
	"time"
)

// inFlightRequest tracks a single upstream fetch that multiple callers may
// wait on.
type inFlightRequest struct {
	mu      sync.Mutex
	payload []byte
	err     error
	done    bool
	waiters []chan struct{}
}

// requestCoalescer collapses concurrent fetches of the same key into one
// upstream call. All callers get the same payload or error.
type requestCoalescer struct {
	mu       sync.Mutex
	inFlight map[string]*inFlightRequest
	timeout  time.Duration
}

func newRequestCoalescer(timeout time.Duration) *requestCoalescer {
	return &requestCoalescer{
		inFlight: make(map[string]*inFlightRequest),
		timeout:  timeout,
	}
}

// GetOrDo joins an in-flight fetch for key if one exists, otherwise starts fn
// and registers it. The bool reports whether the caller joined an existing
// fetch. Respects context cancellation and the coalesce timeout.
func (rc *requestCoalescer) GetOrDo(ctx context.Context, key string, fn func() ([]byte, error)) ([]byte, bool, error) {
	rc.mu.Lock()
	req, exists := rc.inFlight[key]
	if exists {
		rc.mu.Unlock()
		payload, err := rc.wait(ctx, req)
		return payload, true, err
	}

	req = &inFlightRequest{}
	rc.inFlight[key] = req
	rc.mu.Unlock()

	go func() {
		payload, err := fn()

		req.mu.Lock()
		req.payload = payload
		req.err = err
		req.done = true
		waiters := req.waiters
		req.waiters = nil
		req.mu.Unlock()

		for _, notify := range waiters {
			close(notify)
		}

		rc.mu.Lock()
		delete(rc.inFlight, key)
		rc.mu.Unlock()
	}()

	payload, err := rc.wait(ctx, req)
	return payload, false, err
}

// wait blocks until the request completes, the context ends, or the coalesce
// timeout elapses.
func (rc *requestCoalescer) wait(ctx context.Context, req *inFlightRequest) ([]byte, error) {
	req.mu.Lock()
	if req.done {
		payload, err := req.payload, req.err
		req.mu.Unlock()
		return payload, err
	}
	notify := make(chan struct{})
	req.waiters = append(req.waiters, notify)
	req.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, rc.timeout)
	defer cancel()
	select {
	case <-notify:
		req.mu.Lock()
		payload, err := req.payload, req.err
		req.mu.Unlock()
		return payload, err
	case <-waitCtx.Done():
		return nil, waitCtx.Err()
	}
}
