package scheduler

import (
	"sync"

	"github.com/dazedpro/claude-cli-proxy/types"
)

// channelResolver is the single-shot completion handle backing a
// QueueItem's future. A boolean latch under its own mutex guards against
// double-resolution per spec §9; the channel is buffered so Resolve never
// blocks regardless of whether the submitter is still waiting.
type channelResolver struct {
	mu       sync.Mutex
	resolved bool
	ch       chan types.Response
}

func newChannelResolver() *channelResolver {
	return &channelResolver{ch: make(chan types.Response, 1)}
}

// Resolve implements types.Resolver. Calls after the first are no-ops.
func (r *channelResolver) Resolve(resp types.Response) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolved {
		return
	}
	r.resolved = true
	r.ch <- resp
}

func (r *channelResolver) wait() types.Response {
	return <-r.ch
}

var _ types.Resolver = (*channelResolver)(nil)
