// Package scheduler owns the bounded priority queue, the concurrency
// limiter, and the per-request dispatch lifecycle described in spec §4.4
// and §5: a single mutex covers the queue, active count, counters, and
// latency window; the mutex is released before any call that blocks on
// child-process I/O.
package scheduler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/dazedpro/claude-cli-proxy/executor"
	"github.com/dazedpro/claude-cli-proxy/log"
	"github.com/dazedpro/claude-cli-proxy/metrics"
	"github.com/dazedpro/claude-cli-proxy/parser"
	"github.com/dazedpro/claude-cli-proxy/types"
)

// CompletionHook is invoked after every dispatched item resolves, outside
// the scheduler's mutex, letting optional collaborators (archive, notify)
// observe outcomes without slowing down dispatch. Items resolved without
// being dispatched (queue-full and queue-timeout) do not reach it.
type CompletionHook func(reqID string, req types.Request, resp types.Response, elapsedMs int64)

// Scheduler implements spec §4.4's submit(request) -> future<response>.
// mu is the single lock spec §5 requires: it guards the queue, the active
// count, and collector, which itself holds no lock of its own.
type Scheduler struct {
	mu sync.Mutex

	cfg       types.Config
	exec      executor.Executor
	collector *metrics.Collector
	logger    *log.Logger

	q      queue
	active int

	onComplete CompletionHook
}

// New builds a Scheduler. exec, collector, and logger are required
// collaborators; onComplete may be nil.
func New(cfg types.Config, exec executor.Executor, collector *metrics.Collector, logger *log.Logger, onComplete CompletionHook) *Scheduler {
	return &Scheduler{
		cfg:        cfg,
		exec:       exec,
		collector:  collector,
		logger:     logger,
		onComplete: onComplete,
	}
}

// Submit is the core's single operation: classify admission, wait for the
// item's resolver to fire, and return the final response. Callers that
// want async behaviour should invoke Submit from their own goroutine —
// the core itself has no notion of the HTTP request/response cycle.
func (s *Scheduler) Submit(req types.Request) types.Response {
	req.ApplyDefaults(s.cfg.DefaultMaxTurns, s.cfg.DefaultTimeoutMs)

	resolver := newChannelResolver()
	item := &types.QueueItem{
		ReqID:      genReqID(),
		Request:    req,
		Priority:   req.Priority,
		EnqueuedAt: time.Now(),
		Resolver:   resolver,
	}

	s.mu.Lock()
	s.collector.IncTotal()

	switch {
	case s.active < s.cfg.MaxConcurrent:
		s.active++
		s.mu.Unlock()
		go s.runItem(item)

	case s.q.len() < s.cfg.MaxQueueDepth:
		s.q.insert(item)
		s.mu.Unlock()

	default:
		depth := s.q.len()
		maxDepth := s.cfg.MaxQueueDepth
		s.collector.IncQueueRejected()
		s.mu.Unlock()
		resolver.Resolve(types.Response{
			Kind:  types.KindQueueFull,
			ReqID: item.ReqID,
			Error: fmt.Sprintf("Queue full (%d/%d)", depth, maxDepth),
		})
	}

	return resolver.wait()
}

// Active returns the current number of running child processes.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Queued returns the current queue depth.
func (s *Scheduler) Queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.len()
}

// SnapshotMetrics returns a consistent point-in-time metrics view. The
// active/queued gauges and the collector's counters and latency window
// are all read inside the same critical section, so a concurrent Submit
// or runItem completion can never mutate one half of the snapshot while
// the other half is being captured, per spec §5.
func (s *Scheduler) SnapshotMetrics() metrics.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collector.Snapshot(int64(s.active), int64(s.q.len()))
}

// runItem executes one dispatched item end to end: build the argument
// vector, call the Executor (outside the mutex, since it blocks on child
// I/O), classify the outcome, then reacquire the mutex once to record the
// outcome's metrics, free the active slot, and drive the dispatch loop —
// one critical section per spec §5, rather than one lock for the gauge
// and a second for the counters it was captured alongside.
func (s *Scheduler) runItem(item *types.QueueItem) {
	start := time.Now()
	args := buildArgs(item.Request, s.cfg)

	result, err := s.exec.Run(context.Background(), args, item.Request.TimeoutMs)
	elapsedMs := time.Since(start).Milliseconds()

	resp := s.classify(item.ReqID, err, result, elapsedMs)
	resp.ReqID = item.ReqID

	s.mu.Lock()
	s.recordOutcomeLocked(resp, elapsedMs)
	s.active--
	s.dispatchLoopLocked()
	s.mu.Unlock()

	item.Resolver.Resolve(resp)

	if s.onComplete != nil {
		s.onComplete(item.ReqID, item.Request, resp, elapsedMs)
	}
}

// classify implements spec §4.4's outcome mapping table. It touches only
// its arguments and the logger, so it can safely run outside the mutex —
// recordOutcomeLocked is what turns its result into metrics.
func (s *Scheduler) classify(reqID string, runErr error, result types.ExecutionResult, elapsedMs int64) types.Response {
	if runErr != nil {
		if s.logger != nil {
			s.logger.WithRequest(reqID).Error("dispatch failed", map[string]any{"error": runErr.Error()})
		}
		return types.Response{Kind: types.KindInternalError, Error: runErr.Error()}
	}

	if result.Killed {
		return types.Response{
			Kind:  types.KindExecTimeout,
			Error: fmt.Sprintf("Request timed out after %ds", elapsedMs/1000),
		}
	}

	if result.ExitCode != 0 {
		msg := truncate(result.Stderr, 500)
		if msg == "" {
			msg = fmt.Sprintf("exit code %d", result.ExitCode)
		}
		return types.Response{Kind: types.KindProcessFailed, Error: msg}
	}

	parsed := parser.Parse(result.Stdout)
	if parsed.MaxTurnsExhausted {
		return types.Response{
			Kind:  types.KindMaxTurns,
			Error: "Reached max turns. Increase maxTurns for complex requests.",
		}
	}

	return types.Response{
		Kind:         types.KindSuccess,
		Text:         parsed.Text,
		Model:        parsed.Model,
		InputTokens:  parsed.InputTokens,
		OutputTokens: parsed.OutputTokens,
	}
}

// recordOutcomeLocked maps a classified response onto the collector.
// Callers must hold s.mu.
func (s *Scheduler) recordOutcomeLocked(resp types.Response, elapsedMs int64) {
	switch resp.Kind {
	case types.KindSuccess:
		s.collector.RecordCompletion(elapsedMs, resp.InputTokens, resp.OutputTokens)
	case types.KindExecTimeout:
		s.collector.IncTimedOut()
	case types.KindInternalError, types.KindProcessFailed, types.KindMaxTurns:
		s.collector.IncFailed()
	}
}

// dispatchLoopLocked runs with the mutex held: it first drains any queued
// items whose queue-wait deadline has lazily expired (scanning from the
// tail so indices stay valid), then promotes queued items into running
// slots while capacity and items both remain, re-checking each popped
// item's deadline as a race guard per spec §4.4.
func (s *Scheduler) dispatchLoopLocked() {
	now := time.Now()

	for i := s.q.len() - 1; i >= 0; i-- {
		it := s.q.items[i]
		if now.Sub(it.EnqueuedAt).Milliseconds() > int64(s.cfg.QueueTimeoutMs) {
			s.q.removeAt(i)
			s.collector.IncTimedOut()
			it.Resolver.Resolve(types.Response{
				Kind:  types.KindQueueTimeout,
				ReqID: it.ReqID,
				Error: fmt.Sprintf("Queued for too long (>%dms)", s.cfg.QueueTimeoutMs),
			})
		}
	}

	for s.active < s.cfg.MaxConcurrent && s.q.len() > 0 {
		it := s.q.popFront()
		if time.Since(it.EnqueuedAt).Milliseconds() > int64(s.cfg.QueueTimeoutMs) {
			s.collector.IncTimedOut()
			it.Resolver.Resolve(types.Response{
				Kind:  types.KindQueueTimeout,
				ReqID: it.ReqID,
				Error: fmt.Sprintf("Queued for too long (>%dms)", s.cfg.QueueTimeoutMs),
			})
			continue
		}
		s.active++
		go s.runItem(it)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// genReqID generates the 8-hex-character correlation token per spec §3.
func genReqID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "00000000"
	}
	return hex.EncodeToString(b)
}
