package metrics

import (
	"sync"
	"time"
)

// Source identifies which side of the pipeline produced a record.
type Source string

const (
	SourceTrain Source = "train"
	SourceEval  Source = "eval"
)

// Record is one append-only, time-ordered scalar entry. Episode carries
// the episode index for worker records and the iteration index for
// trainer records; Trial counts attempts within an index. Records are
// never mutated after being appended.
type Record struct {
	Source               Source    `json:"source"`
	Episode              int64     `json:"episode"`
	Trial                int64     `json:"trial"`
	RewardScore          float64   `json:"reward_score"`
	CompletionPercentage float64   `json:"completion_percentage"`
	ElapsedTime          float64   `json:"elapsed_time"`
	RecordedAt           time.Time `json:"recorded_at"`
}

// Recorder accepts metric records. The Aggregator implements it locally;
// MQTTRecorder forwards records across process boundaries.
type Recorder interface {
	Record(r Record)
}

// Aggregator collects records from the trainer and all workers into a
// single arrival-ordered sequence. It is safe for concurrent use; no
// ordering is enforced between sources, only within a single source's
// own append order.
type Aggregator struct {
	mu      sync.Mutex
	records []Record
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Record appends an entry. A zero RecordedAt is stamped on arrival.
func (a *Aggregator) Record(r Record) {
	if r.RecordedAt.IsZero() {
		r.RecordedAt = time.Now()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.records = append(a.records, r)
}

// Snapshot returns a copy of the full ordered sequence as of the call.
// Repeated snapshots may grow but never shrink or reorder existing
// entries.
func (a *Aggregator) Snapshot() []Record {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Record, len(a.records))
	copy(out, a.records)

	return out
}

// Len returns the number of records appended so far.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.records)
}
