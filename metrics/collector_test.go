package metrics

import "testing"

func TestCollector_IncrementMethods(t *testing.T) {
	c := New()

	c.IncTotal()
	c.IncTotal()
	c.IncFailed()
	c.IncTimedOut()
	c.IncQueueRejected()
	c.RecordCompletion(120, 10, 20)

	s := c.Snapshot(1, 2)

	if s.Total != 2 {
		t.Errorf("Total = %d, want 2", s.Total)
	}
	if s.Completed != 1 {
		t.Errorf("Completed = %d, want 1", s.Completed)
	}
	if s.Failed != 1 {
		t.Errorf("Failed = %d, want 1", s.Failed)
	}
	if s.TimedOut != 1 {
		t.Errorf("TimedOut = %d, want 1", s.TimedOut)
	}
	if s.QueueRejected != 1 {
		t.Errorf("QueueRejected = %d, want 1", s.QueueRejected)
	}
	if s.Active != 1 || s.Queued != 2 {
		t.Errorf("Active/Queued = %d/%d, want 1/2", s.Active, s.Queued)
	}
	if s.TokensInput != 10 || s.TokensOutput != 20 {
		t.Errorf("tokens = %d/%d, want 10/20", s.TokensInput, s.TokensOutput)
	}
}

func TestCollector_LatencySummary(t *testing.T) {
	c := New()
	for _, ms := range []int64{10, 20, 30, 40, 100} {
		c.RecordCompletion(ms, 0, 0)
	}

	s := c.Snapshot(0, 0)
	if s.Latency.Min != 10 {
		t.Errorf("Min = %d, want 10", s.Latency.Min)
	}
	if s.Latency.Max != 100 {
		t.Errorf("Max = %d, want 100", s.Latency.Max)
	}
	if s.Latency.Avg != 40 {
		t.Errorf("Avg = %d, want 40", s.Latency.Avg)
	}
}

func TestCollector_LatencyWindowCap(t *testing.T) {
	c := New()
	for i := int64(0); i < latencyWindowCap+10; i++ {
		c.RecordCompletion(i, 0, 0)
	}

	s := c.Snapshot(0, 0)
	if s.Completed != latencyWindowCap+10 {
		t.Errorf("Completed = %d, want %d", s.Completed, latencyWindowCap+10)
	}
	// Oldest samples (0..9) should have been evicted; min should be 10.
	if s.Latency.Min != 10 {
		t.Errorf("Latency.Min = %d, want 10 (oldest samples evicted)", s.Latency.Min)
	}
}

func TestCollector_EmptyLatencySnapshot(t *testing.T) {
	c := New()
	s := c.Snapshot(0, 0)
	if s.Latency != (LatencySummary{}) {
		t.Errorf("Latency = %+v, want zero value", s.Latency)
	}
}

func TestCollector_SnapshotIsolatedFromFutureWrites(t *testing.T) {
	c := New()
	c.RecordCompletion(50, 0, 0)
	s1 := c.Snapshot(0, 0)

	c.RecordCompletion(999, 0, 0)

	if s1.Latency.Max != 50 {
		t.Errorf("s1.Latency.Max = %d, want 50 (snapshot should be frozen)", s1.Latency.Max)
	}
}
