package twofa

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// sequentialIDs yields m1, m2, ...
func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("m%d", n.Add(1))
	}
}

// recordingHandler captures the tokens it is asked to deliver
type recordingHandler struct {
	mu     sync.Mutex
	tokens []string
	result bool
	err    error
}

func (h *recordingHandler) handle(_ context.Context, _ User, token string, _ MethodData) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tokens = append(h.tokens, token)
	return h.result, h.err
}

func (h *recordingHandler) last() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.tokens) == 0 {
		return ""
	}
	return h.tokens[len(h.tokens)-1]
}
