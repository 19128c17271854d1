package inlinecompletion

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	"github.com/ghostline-dev/ghostline/src/ghostline/internal/clock"
	"github.com/gofrs/uuid"
	"github.com/patrickmn/go-cache"
	"go.lsp.dev/protocol"
	"golang.org/x/sync/singleflight"
)

// outcome explains how a coordinated request was resolved.
type outcome int

const (
	outcomeCalled outcome = iota
	outcomeCached
	outcomeJoined
	outcomeSuperseded
	outcomeCanceled
	outcomeRateLimited
)

// fetchFunc performs the network call for a request that survived debouncing and rate limiting.
type fetchFunc func(ctx context.Context) ([]entity.InlineCompletionItem, error)

// coordinator owns the completion cache, the in-flight calls and the per-document debounce timers of a daemon.
type coordinator struct {
	clock       clock.Clock
	cache       *cache.Cache
	cacheTTL    time.Duration
	inflight    singleflight.Group
	minInterval time.Duration

	debounceMu sync.Mutex
	debounce   map[string]chan struct{}

	lastCallMu sync.Mutex
	lastCall   time.Time
}

func newCoordinator(clk clock.Clock, cacheTTL, minInterval time.Duration) *coordinator {
	// Expired entries are only dropped when looked up or when their session ends.
	return &coordinator{
		clock:       clk,
		cache:       cache.New(cacheTTL, cache.NoExpiration),
		cacheTTL:    cacheTTL,
		minInterval: minInterval,
		debounce:    make(map[string]chan struct{}),
	}
}

// requestKey identifies a completion by session, document and cursor position.
func requestKey(id uuid.UUID, uri protocol.DocumentURI, pos protocol.Position) string {
	return fmt.Sprintf("%s|%s|%d:%d", id, uri, pos.Line, pos.Character)
}

func documentKey(id uuid.UUID, uri protocol.DocumentURI) string {
	return fmt.Sprintf("%s|%s", id, uri)
}

// complete returns cached items for key, joins an identical call in flight, or waits out the debounce delay
// and calls fetch. Superseded, canceled and rate limited requests resolve to no items.
func (c *coordinator) complete(ctx context.Context, key, docKey string, delay time.Duration, fetch fetchFunc) ([]entity.InlineCompletionItem, outcome, error) {
	if cached, ok := c.cache.Get(key); ok {
		return cached.([]entity.InlineCompletionItem), outcomeCached, nil
	}

	leader := false
	v, err, _ := c.inflight.Do(key, func() (interface{}, error) {
		leader = true
		return c.run(ctx, key, docKey, delay, fetch)
	})
	if err != nil {
		return nil, outcomeCalled, err
	}

	res := v.(runResult)
	if !leader {
		return res.items, outcomeJoined, nil
	}
	return res.items, res.outcome, nil
}

type runResult struct {
	items   []entity.InlineCompletionItem
	outcome outcome
}

func (c *coordinator) run(ctx context.Context, key, docKey string, delay time.Duration, fetch fetchFunc) (runResult, error) {
	if !c.wait(ctx, docKey, delay) {
		if ctx.Err() != nil {
			return runResult{outcome: outcomeCanceled}, nil
		}
		return runResult{outcome: outcomeSuperseded}, nil
	}

	if ctx.Err() != nil {
		return runResult{outcome: outcomeCanceled}, nil
	}
	if !c.reserveCall() {
		return runResult{outcome: outcomeRateLimited}, nil
	}

	// An issued call runs to completion even if the editor cancels the request.
	items, err := fetch(context.WithoutCancel(ctx))
	c.markCall()
	if err != nil {
		return runResult{}, err
	}

	if len(items) > 0 {
		c.cache.Set(key, items, c.cacheTTL)
	}
	return runResult{items: items, outcome: outcomeCalled}, nil
}

// wait blocks for delay unless a newer request for the same document arrives first or ctx ends.
func (c *coordinator) wait(ctx context.Context, docKey string, delay time.Duration) bool {
	c.debounceMu.Lock()
	if previous, ok := c.debounce[docKey]; ok {
		close(previous)
	}
	superseded := make(chan struct{})
	c.debounce[docKey] = superseded
	c.debounceMu.Unlock()

	defer func() {
		c.debounceMu.Lock()
		if c.debounce[docKey] == superseded {
			delete(c.debounce, docKey)
		}
		c.debounceMu.Unlock()
	}()

	if delay <= 0 {
		return true
	}

	timer := c.clock.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C():
		return true
	case <-superseded:
		return false
	case <-ctx.Done():
		return false
	}
}

// reserveCall claims the next network slot, so calls issued together or during a slow call are spaced out.
func (c *coordinator) reserveCall() bool {
	c.lastCallMu.Lock()
	defer c.lastCallMu.Unlock()
	now := c.clock.Now()
	if !c.lastCall.IsZero() && now.Sub(c.lastCall) < c.minInterval {
		return false
	}
	c.lastCall = now
	return true
}

// markCall restarts the interval once a call completes.
func (c *coordinator) markCall() {
	c.lastCallMu.Lock()
	defer c.lastCallMu.Unlock()
	c.lastCall = c.clock.Now()
}

// forgetSession drops the cached completions of a session.
func (c *coordinator) forgetSession(id uuid.UUID) {
	prefix := id.String() + "|"
	for key := range c.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Delete(key)
		}
	}
}
