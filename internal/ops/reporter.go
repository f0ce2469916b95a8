package ops

import (
	"log/slog"
	"sync"
)

type Category string

const (
	CategoryMove   Category = "move"
	CategoryDelete Category = "delete"
	CategoryUpload Category = "upload"
)

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeArchived  Outcome = "archived"
	OutcomePlanned   Outcome = "planned"
)

// Event describes one executed (or, in a dry run, planned) action. Source
// is only set for moves; Bytes only for uploads.
type Event struct {
	Category Category
	Key      string
	Source   string
	Outcome  Outcome
	Bytes    int64
	Err      error
}

// Reporter receives an Event per action. Implementations must be safe for
// use from several workers at once.
type Reporter interface {
	Report(ev Event)
}

type ReporterFunc func(ev Event)

func (f ReporterFunc) Report(ev Event) {
	f(ev)
}

// Reporters fans each event out to all of rs.
func Reporters(rs ...Reporter) Reporter {
	return ReporterFunc(func(ev Event) {
		for _, r := range rs {
			r.Report(ev)
		}
	})
}

// LogReporter writes every event to a structured logger: failures at
// error level, archived moves at warn, the rest at info.
type LogReporter struct {
	Logger *slog.Logger
}

func (lr *LogReporter) Report(ev Event) {
	attrs := []any{"action", ev.Category, "key", ev.Key, "outcome", ev.Outcome}
	if ev.Source != "" {
		attrs = append(attrs, "from", ev.Source)
	}
	if ev.Bytes > 0 {
		attrs = append(attrs, "bytes", ev.Bytes)
	}
	if ev.Err != nil {
		attrs = append(attrs, "error", ev.Err)
	}

	switch ev.Outcome {
	case OutcomeFailed:
		lr.Logger.Error("sync action", attrs...)
	case OutcomeArchived:
		lr.Logger.Warn("sync action", attrs...)
	default:
		lr.Logger.Info("sync action", attrs...)
	}
}

// Tally counts events by category and outcome.
type Tally struct {
	mu     sync.Mutex
	counts map[Category]map[Outcome]int
	bytes  int64
}

func NewTally() *Tally {
	return &Tally{counts: make(map[Category]map[Outcome]int)}
}

func (t *Tally) Report(ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	byOutcome, ok := t.counts[ev.Category]
	if !ok {
		byOutcome = make(map[Outcome]int)
		t.counts[ev.Category] = byOutcome
	}
	byOutcome[ev.Outcome]++

	if ev.Outcome == OutcomeSucceeded {
		t.bytes += ev.Bytes
	}
}

func (t *Tally) Count(c Category, o Outcome) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[c][o]
}

// Total counts every event with outcome o across all categories.
func (t *Tally) Total(o Outcome) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	total := 0
	for _, byOutcome := range t.counts {
		total += byOutcome[o]
	}
	return total
}

// Bytes is the number of bytes sent by successful uploads.
func (t *Tally) Bytes() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bytes
}
