// Package metrics maintains the cumulative counters, token sums, and
// bounded latency window the scheduler reports through SnapshotMetrics.
package metrics

import "sort"

// latencyWindowCap bounds the ring buffer to the most recent 1,000
// observations per spec §3/§9.
const latencyWindowCap = 1000

// LatencySummary is derived from the latency window at snapshot time.
type LatencySummary struct {
	Min int64
	Avg int64
	Max int64
	P95 int64
}

// Snapshot is an immutable, internally-consistent point-in-time view of
// every counter, gauge, and derived latency figure.
type Snapshot struct {
	Total         int64
	Completed     int64
	Failed        int64
	TimedOut      int64
	QueueRejected int64

	Active int64
	Queued int64

	TokensInput  int64
	TokensOutput int64

	Latency LatencySummary
}

// Collector accumulates metrics for the life of the process. It holds no
// lock of its own: per spec §5, the queue, active count, counters, and
// latency window form one compound state, so the scheduler's single
// mutex is the only thing that may guard it. Every method here must be
// called with that mutex held — a Collector used outside a Scheduler
// (as in this package's own tests) is safe only because nothing else
// touches it concurrently.
type Collector struct {
	total         int64
	completed     int64
	failed        int64
	timedOut      int64
	queueRejected int64

	tokensInput  int64
	tokensOutput int64

	latency []int64 // ring buffer, oldest evicted from the front
}

// New creates an empty Collector.
func New() *Collector {
	return &Collector{}
}

// IncTotal records a new submission.
func (c *Collector) IncTotal() {
	c.total++
}

// RecordCompletion records a successful completion: appends elapsedMs to
// the latency window (evicting the oldest sample past the cap), increments
// completed, and adds token counts when non-zero.
func (c *Collector) RecordCompletion(elapsedMs int64, inputTokens, outputTokens int) {
	c.completed++
	c.appendLatency(elapsedMs)
	if inputTokens != 0 {
		c.tokensInput += int64(inputTokens)
	}
	if outputTokens != 0 {
		c.tokensOutput += int64(outputTokens)
	}
}

// IncFailed records a process-failure or max-turns-exhausted outcome.
func (c *Collector) IncFailed() {
	c.failed++
}

// IncTimedOut records an execution-timeout or queue-timeout outcome.
func (c *Collector) IncTimedOut() {
	c.timedOut++
}

// IncQueueRejected records a queue-full rejection.
func (c *Collector) IncQueueRejected() {
	c.queueRejected++
}

func (c *Collector) appendLatency(elapsedMs int64) {
	c.latency = append(c.latency, elapsedMs)
	if len(c.latency) > latencyWindowCap {
		c.latency = c.latency[len(c.latency)-latencyWindowCap:]
	}
}

// Snapshot returns an internally-consistent view of every counter plus
// the supplied gauges. active and queued are passed in by the scheduler,
// which already holds the mutex guarding both them and this Collector's
// own state, so the compound result is consistent per spec §5.
func (c *Collector) Snapshot(active, queued int64) Snapshot {
	return Snapshot{
		Total:         c.total,
		Completed:     c.completed,
		Failed:        c.failed,
		TimedOut:      c.timedOut,
		QueueRejected: c.queueRejected,
		Active:        active,
		Queued:        queued,
		TokensInput:   c.tokensInput,
		TokensOutput:  c.tokensOutput,
		Latency:       summarize(c.latency),
	}
}

// summarize sorts a copy of the latency window and derives min/avg/max/p95
// per spec §4.3. An empty window reports all zeros.
func summarize(window []int64) LatencySummary {
	n := len(window)
	if n == 0 {
		return LatencySummary{}
	}

	sorted := make([]int64, n)
	copy(sorted, window)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum int64
	for _, v := range sorted {
		sum += v
	}
	avg := int64((float64(sum) / float64(n)) + 0.5)

	idx := int(float64(n) * 0.95)
	if idx >= n {
		idx = n - 1
	}

	return LatencySummary{
		Min: sorted[0],
		Max: sorted[n-1],
		Avg: avg,
		P95: sorted[idx],
	}
}
