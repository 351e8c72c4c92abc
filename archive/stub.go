package archive

import (
	"context"
	"sync"
)

// StubClient is an in-memory Client used in tests, grounded in the
// teacher's lode.StubClient test double. It persists nothing.
type StubClient struct {
	mu      sync.Mutex
	Records []StubRecord
	Closed  bool
}

// StubRecord is one recorded write.
type StubRecord struct {
	Dataset string
	Day     string
	RunID   string
	Record  Record
}

// NewStubClient creates an empty StubClient.
func NewStubClient() *StubClient {
	return &StubClient{}
}

// WriteRecord appends the write to Records without persisting anywhere.
func (c *StubClient) WriteRecord(ctx context.Context, dataset, day, runID string, record Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Records = append(c.Records, StubRecord{Dataset: dataset, Day: day, RunID: runID, Record: record})
	return nil
}

// Close marks the stub closed.
func (c *StubClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closed = true
	return nil
}

// Len returns the number of recorded writes.
func (c *StubClient) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Records)
}

var _ Client = (*StubClient)(nil)
