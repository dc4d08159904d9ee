package indexer

import (
	"fmt"
	"sync/atomic"

	"github.com/dusk-indust/archscan/internal/graph"
)

// ProgressStatus is the state reported by a ProgressEvent.
type ProgressStatus string

const (
	ProgressStarted  ProgressStatus = "started"
	ProgressFile     ProgressStatus = "file"
	ProgressComplete ProgressStatus = "complete"
	ProgressFailed   ProgressStatus = "failed"
)

// ProgressEvent is emitted while a run executes.
type ProgressEvent struct {
	RunID     string
	Layer     graph.RunLayer
	Status    ProgressStatus
	Path      string // set for ProgressFile
	Processed int
	Total     int
	Message   string
}

// progressBuffer bounds the events a slow consumer can lag behind.
const progressBuffer = 64

// ProgressReporter decouples the indexing goroutines from a progress
// consumer. Its Emit method fits Options.OnProgress.
type ProgressReporter struct {
	ch      chan ProgressEvent
	dropped atomic.Int64
}

// NewProgressReporter returns a reporter with room for progressBuffer
// pending events.
func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{ch: make(chan ProgressEvent, progressBuffer)}
}

// Emit queues event without blocking. Per-file events are dropped when the
// buffer is full; layer transitions always get through.
func (pr *ProgressReporter) Emit(event ProgressEvent) {
	if event.Status != ProgressFile {
		pr.ch <- event
		return
	}
	select {
	case pr.ch <- event:
	default:
		pr.dropped.Add(1)
	}
}

// Events returns the channel the consumer reads from. It is closed by Close.
func (pr *ProgressReporter) Events() <-chan ProgressEvent {
	return pr.ch
}

// Dropped reports how many per-file events were discarded.
func (pr *ProgressReporter) Dropped() int64 {
	return pr.dropped.Load()
}

// Close ends the event stream. Emit must not be called afterwards.
func (pr *ProgressReporter) Close() {
	close(pr.ch)
}

// FormatProgress renders event as one status line.
func FormatProgress(event ProgressEvent) string {
	switch event.Status {
	case ProgressStarted:
		return fmt.Sprintf("%s: run %s started", event.Layer, event.RunID)
	case ProgressFile:
		return fmt.Sprintf("%s: [%d/%d] %s", event.Layer, event.Processed, event.Total, event.Path)
	case ProgressComplete:
		return fmt.Sprintf("%s: done, %d/%d files", event.Layer, event.Processed, event.Total)
	case ProgressFailed:
		return fmt.Sprintf("%s: failed: %s", event.Layer, event.Message)
	}
	return fmt.Sprintf("%s: %s", event.Layer, event.Status)
}
