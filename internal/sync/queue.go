// Package sync queues read and dismiss mutations made while the remote
// store is unreachable and replays them when connectivity returns.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/runalert/internal/diag"
	"github.com/nhle/runalert/internal/model"
	"github.com/nhle/runalert/internal/remote"
	"github.com/nhle/runalert/internal/store"
)

// SyncState represents the current state of the queue.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncRunning:
		return "syncing"
	case SyncError:
		return "error"
	default:
		return "idle"
	}
}

// SyncStatus is a point-in-time view of the queue.
type SyncStatus struct {
	State    SyncState
	Pending  int
	Failed   int
	LastSync time.Time
	Error    error
}

// SkipReason explains why a flush did not run.
type SkipReason string

const (
	SkipNone    SkipReason = ""
	SkipBusy    SkipReason = "already flushing"
	SkipOffline SkipReason = "not connected"
	SkipEmpty   SkipReason = "nothing queued"
)

// FlushResult summarizes one flush pass. It doubles as a tea.Msg.
type FlushResult struct {
	Skipped  SkipReason
	Applied  int
	Requeued int
	Dropped  int
}

// Writer applies a single operation to the remote store.
type Writer interface {
	Apply(ctx context.Context, op model.PendingOperation) error
}

// Connectivity is the part of the connectivity monitor the queue needs.
type Connectivity interface {
	Connected() bool
	Check(ctx context.Context) bool
}

// Config tunes a Queue.
type Config struct {
	// MaxAttempts is how many failed replays an operation survives before
	// it is moved to the failed list.
	MaxAttempts int

	Metrics *diag.Metrics
}

// DefaultMaxAttempts applies when Config.MaxAttempts is unset.
const DefaultMaxAttempts = 10

// Queue is a persisted FIFO of pending operations. Only one flush runs at
// a time; a flush requested while another is running is dropped.
type Queue struct {
	cache  store.Cache
	writer Writer
	conn   Connectivity
	cfg    Config

	mu       gosync.Mutex
	ops      []model.PendingOperation
	inflight []model.PendingOperation
	retry    []model.PendingOperation
	failed   []model.PendingOperation
	flushing bool
	status   SyncStatus
	resultCh chan FlushResult
}

// New creates a queue, restoring any operations persisted by a previous
// run.
func New(cache store.Cache, writer Writer, conn Connectivity, cfg Config) *Queue {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}

	q := &Queue{
		cache:    cache,
		writer:   writer,
		conn:     conn,
		cfg:      cfg,
		resultCh: make(chan FlushResult, 16),
	}

	store.LoadJSON(cache, store.KeyPendingOperations, &q.ops)
	store.LoadJSON(cache, store.KeyFailedOperations, &q.failed)
	if len(q.ops) > 0 {
		log.Printf("sync: restored %d pending operations", len(q.ops))
	}
	q.cfg.Metrics.QueueDepth(len(q.ops), len(q.failed))

	return q
}

// Enqueue appends op and persists the whole queue before returning.
func (q *Queue) Enqueue(op model.PendingOperation) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.ops = append(q.ops, op)
	if err := q.persistLocked(); err != nil {
		return fmt.Errorf("persisting queued %s for %s: %w", op.Kind, op.MessageID, err)
	}
	return nil
}

// Flush replays a snapshot of the queue. Operations enqueued while the
// flush runs wait for the next one. A failed operation is re-queued on its
// own without blocking the rest, and any failure triggers a connectivity
// re-check.
func (q *Queue) Flush(ctx context.Context) FlushResult {
	q.mu.Lock()
	switch {
	case q.flushing:
		q.mu.Unlock()
		return FlushResult{Skipped: SkipBusy}
	case !q.conn.Connected():
		q.mu.Unlock()
		return FlushResult{Skipped: SkipOffline}
	case len(q.ops) == 0:
		q.mu.Unlock()
		return FlushResult{Skipped: SkipEmpty}
	}

	q.flushing = true
	q.inflight = q.ops
	q.ops = nil
	q.status.State = SyncRunning
	q.status.Error = nil
	snapshot := append([]model.PendingOperation(nil), q.inflight...)
	q.mu.Unlock()

	log.Printf("sync: flushing %d pending operations", len(snapshot))

	var result FlushResult
	var lastErr error
	for _, op := range snapshot {
		err := q.writer.Apply(ctx, op)

		q.mu.Lock()
		q.inflight = q.inflight[1:]
		switch {
		case err == nil:
			result.Applied++
			q.cfg.Metrics.Replay(string(op.Kind), "ok")
		default:
			lastErr = err
			op.Attempts++
			op.LastError = err.Error()
			if permanent(err) || op.Attempts >= q.cfg.MaxAttempts {
				result.Dropped++
				q.failed = append(q.failed, op)
				q.cfg.Metrics.Replay(string(op.Kind), "dropped")
				log.Printf("sync: giving up on %s %s after %d attempts: %v", op.Kind, op.MessageID, op.Attempts, err)
			} else {
				result.Requeued++
				q.retry = append(q.retry, op)
				q.cfg.Metrics.Replay(string(op.Kind), "requeued")
				log.Printf("sync: %s %s failed, requeued: %v", op.Kind, op.MessageID, err)
			}
		}
		if perr := q.persistLocked(); perr != nil {
			log.Printf("sync: persisting queue: %v", perr)
		}
		q.mu.Unlock()
	}

	q.mu.Lock()
	q.ops = append(q.retry, q.ops...)
	q.retry = nil
	q.flushing = false
	if lastErr != nil {
		q.status.State = SyncError
		q.status.Error = lastErr
	} else {
		q.status.State = SyncIdle
		q.status.LastSync = time.Now()
	}
	if err := q.persistLocked(); err != nil {
		log.Printf("sync: persisting queue: %v", err)
	}
	q.mu.Unlock()

	log.Printf("sync: flush complete: %d applied, %d requeued, %d dropped",
		result.Applied, result.Requeued, result.Dropped)

	if lastErr != nil {
		q.cfg.Metrics.Flush("partial")
		q.conn.Check(ctx)
	} else {
		q.cfg.Metrics.Flush("ok")
	}

	q.sendResult(result)
	return result
}

func permanent(err error) bool {
	return remote.IsPermanent(err) || errors.Is(err, ErrUnknownOperation)
}

// persistLocked writes every unconfirmed operation, or removes the key
// when there are none. The caller must hold q.mu.
func (q *Queue) persistLocked() error {
	pending := make([]model.PendingOperation, 0, len(q.inflight)+len(q.retry)+len(q.ops))
	pending = append(pending, q.inflight...)
	pending = append(pending, q.retry...)
	pending = append(pending, q.ops...)

	q.cfg.Metrics.QueueDepth(len(pending), len(q.failed))

	var err error
	if len(pending) == 0 {
		err = q.cache.Remove(store.KeyPendingOperations)
	} else {
		err = store.SaveJSON(q.cache, store.KeyPendingOperations, pending)
	}
	if err != nil {
		return err
	}

	if len(q.failed) == 0 {
		return q.cache.Remove(store.KeyFailedOperations)
	}
	return store.SaveJSON(q.cache, store.KeyFailedOperations, q.failed)
}

// Pending returns the number of operations not yet confirmed remotely.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops) + len(q.inflight) + len(q.retry)
}

// Holds reports whether an unconfirmed operation for the user's message is
// still queued or being replayed.
func (q *Queue) Holds(userID, messageID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, list := range [][]model.PendingOperation{q.inflight, q.retry, q.ops} {
		for _, op := range list {
			if op.UserID == userID && op.MessageID == messageID {
				return true
			}
		}
	}
	return false
}

// Failed returns the operations that were given up on.
func (q *Queue) Failed() []model.PendingOperation {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]model.PendingOperation(nil), q.failed...)
}

// RetryFailed moves every failed operation back into the queue with a
// fresh attempt budget.
func (q *Queue) RetryFailed() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.failed)
	for _, op := range q.failed {
		op.Attempts = 0
		op.LastError = ""
		q.ops = append(q.ops, op)
	}
	q.failed = nil
	return n, q.persistLocked()
}

// Syncing reports whether a flush is running.
func (q *Queue) Syncing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.flushing
}

// Status returns the current queue status.
func (q *Queue) Status() SyncStatus {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := q.status
	s.Pending = len(q.ops) + len(q.inflight) + len(q.retry)
	s.Failed = len(q.failed)
	return s
}

// sendResult publishes a flush result without blocking.
func (q *Queue) sendResult(r FlushResult) {
	select {
	case q.resultCh <- r:
	default:
		// Drop if nobody is listening.
	}
}

// WaitForResult returns a tea.Cmd that waits for the next flush result.
// Call it again after handling each FlushResult to keep listening.
func (q *Queue) WaitForResult() tea.Cmd {
	return func() tea.Msg {
		r, ok := <-q.resultCh
		if !ok {
			return nil
		}
		return r
	}
}
