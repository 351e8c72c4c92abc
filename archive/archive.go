// Package archive provides the optional post-hoc audit archiver described
// in SPEC_FULL.md §3: every completed request is written as an audit
// record to a Lode dataset, Hive-partitioned by source/category/day/run
// id. Archival never blocks dispatch and never surfaces failure to the
// caller — it is strictly asynchronous and best-effort.
package archive

import (
	"context"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/dazedpro/claude-cli-proxy/types"
)

// Record is the audit record written for one completed (non-errored)
// request.
type Record struct {
	ReqID        string    `msgpack:"reqId"`
	Prompt       string    `msgpack:"prompt"`
	Model        string    `msgpack:"model,omitempty"`
	Priority     int       `msgpack:"priority"`
	Outcome      string    `msgpack:"outcome"`
	ElapsedMs    int64     `msgpack:"elapsedMs"`
	InputTokens  int       `msgpack:"inputTokens,omitempty"`
	OutputTokens int       `msgpack:"outputTokens,omitempty"`
	CompletedAt  time.Time `msgpack:"completedAt"`
}

// DeriveDay computes the Hive partition day from a timestamp.
// Format: YYYY-MM-DD in UTC.
func DeriveDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// DefaultDataset is the default Lode dataset name.
const DefaultDataset = "claude-cli-proxy"

// Config holds archive sink configuration. Source and category are Hive
// partition keys too, but they're fixed per archiver instance and passed
// directly to NewS3Client rather than threaded through here; day and run
// id are derived per write in Archive.
type Config struct {
	Dataset string
}

// Client abstracts the Lode storage client so the real S3-backed client
// and the in-memory StubClient satisfy the same contract.
type Client interface {
	WriteRecord(ctx context.Context, dataset, day, runID string, record Record) error
	Close() error
}

// Archiver writes completed-request audit records through a Client.
type Archiver struct {
	config Config
	client Client
}

// NewArchiver builds an Archiver around any Client implementation.
func NewArchiver(config Config, client Client) *Archiver {
	if config.Dataset == "" {
		config.Dataset = DefaultDataset
	}
	return &Archiver{config: config, client: client}
}

// Archive encodes and writes one record. Errors are the caller's
// responsibility to log; per SPEC_FULL.md §3 this must never propagate
// back to the request path.
func (a *Archiver) Archive(ctx context.Context, record Record) error {
	day := DeriveDay(record.CompletedAt)
	runID := record.ReqID
	return a.client.WriteRecord(ctx, a.config.Dataset, day, runID, record)
}

// Close releases the underlying client.
func (a *Archiver) Close() error {
	return a.client.Close()
}

// recordToMap round-trips a Record through msgpack into a map[string]any,
// matching the teacher's toEventRecordMap convention of flattening
// structured records before handing them to a Lode dataset, which
// requires map[string]any for its Hive partition layout. msgpack is used
// for the intermediate encoding (rather than JSON) to keep int64/time.Time
// fields exact across the round trip.
func recordToMap(record Record) (map[string]any, error) {
	raw, err := msgpack.Marshal(record)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := msgpack.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
