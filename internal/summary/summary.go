// Package summary accumulates what a run did and records each stage outcome
// in the append-only summary log as soon as it is known.
package summary

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Outcome of one download task.
type Outcome int

const (
	Downloaded Outcome = iota
	Skipped
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Downloaded:
		return "downloaded"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Stats are the per-group counters.
type Stats struct {
	Total      int
	Downloaded int
	Skipped    int
	Failed     int
	Malformed  int   // manifest rows that could not be parsed
	Err        error // set when the group was aborted
}

func (s Stats) String() string {
	return fmt.Sprintf("total=%d downloaded=%d skipped=%d failed=%d",
		s.Total, s.Downloaded, s.Skipped, s.Failed)
}

// ConcatResult describes the concatenation stage.
type ConcatResult struct {
	Path    string
	Files   int
	Records int
	Err     error
}

// IndexResult describes the indexing stage.
type IndexResult struct {
	Prefix string
	At     time.Time
	Err    error
}

// Run is the summary of one invocation. It is created at run start, passed
// explicitly to every stage and safe for concurrent use by download workers.
type Run struct {
	ID      string
	Started time.Time

	mu     sync.Mutex
	log    *Log
	groups map[string]*Stats
	order  []string
	concat *ConcatResult
	index  *IndexResult
}

// New starts a run summary that appends to log (nil disables persistence).
func New(log *Log) *Run {
	return &Run{
		ID:      uuid.NewString(),
		Started: time.Now(),
		log:     log,
		groups:  make(map[string]*Stats),
	}
}

// ShortID is the prefix of ID printed on every log line.
func (r *Run) ShortID() string {
	if len(r.ID) >= 8 {
		return r.ID[:8]
	}
	return r.ID
}

func (r *Run) appendf(format string, a ...any) error {
	return r.log.Append("run=%s "+format, append([]any{r.ShortID()}, a...)...)
}

func (r *Run) stats(group string) *Stats {
	s, ok := r.groups[group]
	if !ok {
		s = &Stats{}
		r.groups[group] = s
		r.order = append(r.order, group)
	}
	return s
}

// Start records the run's requested stages.
func (r *Run) Start(stages []string) error {
	return r.appendf("started stages=%s", strings.Join(stages, ","))
}

// BeginGroup sets the candidate total for a group after filtering.
func (r *Run) BeginGroup(group string, total, malformed int) error {
	r.mu.Lock()
	s := r.stats(group)
	s.Total, s.Malformed = total, malformed
	r.mu.Unlock()
	if malformed > 0 {
		return r.appendf("group=%s candidates=%d malformed_rows=%d", group, total, malformed)
	}
	return r.appendf("group=%s candidates=%d", group, total)
}

// Record counts one task outcome. Failed tasks are also written to the log
// with their accession and cause.
func (r *Run) Record(group, accession string, o Outcome, cause error) error {
	r.mu.Lock()
	s := r.stats(group)
	switch o {
	case Downloaded:
		s.Downloaded++
	case Skipped:
		s.Skipped++
	case Failed:
		s.Failed++
	}
	r.mu.Unlock()
	if o == Failed {
		return r.appendf("group=%s accession=%s failed: %v", group, accession, cause)
	}
	return nil
}

// BatchDone checkpoints progress after a batch.
func (r *Run) BatchDone(group string, batch, batches int) error {
	s := r.Group(group)
	return r.appendf("group=%s batch=%d/%d %s", group, batch, batches, s)
}

// GroupFailed marks a group as aborted.
func (r *Run) GroupFailed(group string, err error) error {
	r.mu.Lock()
	r.stats(group).Err = err
	r.mu.Unlock()
	return r.appendf("group=%s aborted: %v", group, err)
}

// EndGroup writes the group's final counters.
func (r *Run) EndGroup(group string) error {
	return r.appendf("group=%s done %s", group, r.Group(group))
}

// Concatenated records the concatenation outcome.
func (r *Run) Concatenated(c ConcatResult) error {
	r.mu.Lock()
	r.concat = &c
	r.mu.Unlock()
	if c.Err != nil {
		return r.appendf("concat failed: %v", c.Err)
	}
	return r.appendf("concatenated files=%d records=%d into %s", c.Files, c.Records, c.Path)
}

// Indexed records the indexing outcome.
func (r *Run) Indexed(ix IndexResult) error {
	if ix.At.IsZero() {
		ix.At = time.Now()
	}
	r.mu.Lock()
	r.index = &ix
	r.mu.Unlock()
	if ix.Err != nil {
		return r.appendf("index failed prefix=%s: %v", ix.Prefix, ix.Err)
	}
	return r.appendf("index built prefix=%s at=%s", ix.Prefix, ix.At.Format(time.RFC3339))
}

// Finish writes the closing line.
func (r *Run) Finish(err error) error {
	if err != nil {
		return r.appendf("finished with error after %s: %v", time.Since(r.Started).Round(time.Second), err)
	}
	return r.appendf("finished ok after %s", time.Since(r.Started).Round(time.Second))
}

// Group returns a copy of a group's counters.
func (r *Run) Group(group string) Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.groups[group]; ok {
		return *s
	}
	return Stats{}
}

// Groups lists group names in the order they were first seen.
func (r *Run) Groups() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// FailedGroups lists aborted groups, sorted.
func (r *Run) FailedGroups() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for name, s := range r.groups {
		if s.Err != nil {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Concat returns the concatenation result, if the stage ran.
func (r *Run) Concat() (ConcatResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.concat == nil {
		return ConcatResult{}, false
	}
	return *r.concat, true
}

// Index returns the indexing result, if the stage ran.
func (r *Run) Index() (IndexResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index == nil {
		return IndexResult{}, false
	}
	return *r.index, true
}
