package telemetry

import (
	"fmt"
	"strings"

	"github.com/ghostline-dev/ghostline/src/ghostline/entity"
	"github.com/uber-go/tally/v4"
	"go.uber.org/atomic"
	"go.uber.org/fx"
)

// Module provides the process wide Telemetry.
var Module = fx.Provide(New)

// Metric names a process local counter.
type Metric string

const (
	MetricRequests         Metric = "requests"
	MetricCacheHits        Metric = "cache_hits"
	MetricDedupJoins       Metric = "dedup_joins"
	MetricRateLimited      Metric = "rate_limited"
	MetricSkipped          Metric = "skipped"
	MetricErrors           Metric = "errors"
	MetricChatTurns        Metric = "chat_turns"
	MetricActions          Metric = "actions"
	MetricPromptTokens     Metric = "prompt_tokens"
	MetricCompletionTokens Metric = "completion_tokens"
)

// Metrics lists every counter in display order.
var Metrics = []Metric{
	MetricRequests,
	MetricCacheHits,
	MetricDedupJoins,
	MetricRateLimited,
	MetricSkipped,
	MetricErrors,
	MetricChatTurns,
	MetricActions,
	MetricPromptTokens,
	MetricCompletionTokens,
}

// Telemetry keeps counters for the lifetime of the process. Nothing is persisted or sent off the machine.
type Telemetry interface {
	Inc(m Metric)
	Add(m Metric, delta int64)
	// RecordUsage adds the token counters reported by a provider. A nil usage is ignored.
	RecordUsage(usage *entity.Usage)
	Snapshot() Snapshot
}

// Snapshot is a point in time copy of the counters.
type Snapshot map[Metric]int64

// String renders the snapshot one counter per line.
func (s Snapshot) String() string {
	var b strings.Builder
	for _, m := range Metrics {
		fmt.Fprintf(&b, "%s: %d\n", m, s[m])
	}
	return b.String()
}

// Params are inbound parameters to initialize Telemetry.
type Params struct {
	fx.In

	Stats tally.Scope
}

type telemetry struct {
	counters map[Metric]*atomic.Int64
	scope    tally.Scope
}

// New creates Telemetry mirrored to the "telemetry" sub scope.
func New(p Params) Telemetry {
	t := &telemetry{
		counters: make(map[Metric]*atomic.Int64, len(Metrics)),
		scope:    p.Stats.SubScope("telemetry"),
	}
	for _, m := range Metrics {
		t.counters[m] = atomic.NewInt64(0)
	}
	return t
}

func (t *telemetry) Inc(m Metric) {
	t.Add(m, 1)
}

func (t *telemetry) Add(m Metric, delta int64) {
	counter, ok := t.counters[m]
	if !ok || delta == 0 {
		return
	}
	counter.Add(delta)
	t.scope.Counter(string(m)).Inc(delta)
}

func (t *telemetry) RecordUsage(usage *entity.Usage) {
	if usage == nil {
		return
	}
	t.Add(MetricPromptTokens, int64(usage.PromptTokens))
	t.Add(MetricCompletionTokens, int64(usage.CompletionTokens))
}

func (t *telemetry) Snapshot() Snapshot {
	result := make(Snapshot, len(t.counters))
	for m, counter := range t.counters {
		result[m] = counter.Load()
	}
	return result
}
