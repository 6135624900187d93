// Package feed is the application service behind the message feed: it
// joins the live subscription, read and dismissal state, the offline
// queue, and the sound engine.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log"
	gosync "sync"
	"time"

	"github.com/nhle/runalert/internal/connectivity"
	"github.com/nhle/runalert/internal/identity"
	"github.com/nhle/runalert/internal/model"
	"github.com/nhle/runalert/internal/reconciler"
	"github.com/nhle/runalert/internal/remote"
	"github.com/nhle/runalert/internal/sound"
	"github.com/nhle/runalert/internal/store"
	"github.com/nhle/runalert/internal/sync"
)

// ErrNotSignedIn is returned by operations that need a user.
var ErrNotSignedIn = errors.New("not signed in")

// Deps are the collaborators a Service is composed from.
type Deps struct {
	Remote     remote.Store
	Cache      store.Cache
	Session    *identity.Session
	Monitor    *connectivity.Monitor
	Queue      *sync.Queue
	Writer     sync.Writer
	Engine     *sound.Engine
	Reconciler *reconciler.Reconciler
}

// Status is the connectivity and sync summary shown in the banner.
type Status struct {
	Connected bool
	State     connectivity.State
	Syncing   bool
	Pending   int
	Failed    int
	LastSync  time.Time
	LastError error
}

// Label is the short banner text for s.
func (s Status) Label() string {
	switch {
	case s.Syncing:
		return "Syncing"
	case !s.Connected && s.Pending > 0:
		return fmt.Sprintf("Offline (%d pending)", s.Pending)
	case !s.Connected:
		return "Offline"
	case s.Pending > 0:
		return fmt.Sprintf("Online (%d pending)", s.Pending)
	default:
		return "Online"
	}
}

// Service exposes the feed operations to the UI layer.
type Service struct {
	d           Deps
	collections model.CollectionsConfig
	now         func() time.Time

	// resubscribeDelay paces resubscription after a stream error while
	// the store is still reachable.
	resubscribeDelay time.Duration

	mu             gosync.Mutex
	read           map[string]bool
	reconnects     int
	reconnectFlush sync.FlushResult
}

// New creates a service and loads the locally cached read set.
func New(d Deps, collections model.CollectionsConfig) *Service {
	s := &Service{
		d:           d,
		collections: collections,
		now:         time.Now,
		read:        make(map[string]bool),

		resubscribeDelay: defaultResubscribeDelay,
	}

	var ids []string
	store.LoadJSON(d.Cache, store.KeyReadMessages, &ids)
	for _, id := range ids {
		s.read[id] = true
	}
	return s
}

// Start flushes the queue and refreshes remote state on every reconnect,
// then performs the initial connectivity check.
func (s *Service) Start(ctx context.Context) bool {
	s.d.Monitor.OnConnected(func(ctx context.Context) {
		res := s.d.Queue.Flush(ctx)
		s.mu.Lock()
		s.reconnects++
		s.reconnectFlush = res
		s.mu.Unlock()

		if err := s.LoadReadState(ctx); err != nil {
			log.Printf("feed: %v", err)
		}
		s.d.Session.RefreshProfile(ctx)
	})
	return s.d.Monitor.Check(ctx)
}

const defaultResubscribeDelay = 10 * time.Second

// messageSub tracks one live message subscription across stream errors.
type messageSub struct {
	mu     gosync.Mutex
	cancel func()
	timer  *time.Timer
	broken bool
	closed bool
}

// attach stores the cancel func of a fresh stream, releasing the old one.
func (m *messageSub) attach(cancel func()) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel()
		return
	}
	old := m.cancel
	m.cancel = cancel
	m.mu.Unlock()

	if old != nil {
		old()
	}
}

func (m *messageSub) markBroken() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broken = true
}

// claim reports whether the caller should resubscribe, and clears the
// broken flag so concurrent callers do not both resubscribe.
func (m *messageSub) claim() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || !m.broken {
		return false
	}
	m.broken = false
	return true
}

func (m *messageSub) retryAfter(d time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(d, fn)
}

func (m *messageSub) close() {
	m.mu.Lock()
	m.closed = true
	cancel := m.cancel
	m.cancel = nil
	if m.timer != nil {
		m.timer.Stop()
	}
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// SubscribeToMessages delivers the decorated feed on every change. The
// first delivery establishes the alert baseline. Alerting failures never
// prevent onUpdate from being called. A stream that ends with an error is
// reopened on the next reconnect, or after a short delay if the store is
// still reachable; messages that arrived in between alert as usual.
func (s *Service) SubscribeToMessages(ctx context.Context, onUpdate func([]model.FeedItem)) (func(), error) {
	s.d.Reconciler.Reset()

	sub := &messageSub{}
	if err := s.openMessages(ctx, sub, onUpdate); err != nil {
		return nil, fmt.Errorf("subscribing to messages: %w", err)
	}
	s.d.Monitor.OnConnected(func(context.Context) {
		s.resubscribe(ctx, sub, onUpdate)
	})

	return func() {
		sub.close()
		if err := s.d.Reconciler.Persist(); err != nil {
			log.Printf("feed: %v", err)
		}
	}, nil
}

func (s *Service) openMessages(ctx context.Context, sub *messageSub, onUpdate func([]model.FeedItem)) error {
	q := remote.Query{Collection: s.collections.Messages, OrderBy: "createdAt", Desc: true}
	cancel, err := s.d.Remote.Subscribe(ctx, q, func(docs []remote.Document, err error) {
		if err != nil {
			log.Printf("feed: message subscription ended: %v", err)
			sub.markBroken()
			if s.d.Monitor.Hint(ctx, false) && !remote.IsPermanent(err) {
				sub.retryAfter(s.resubscribeDelay, func() { s.resubscribe(ctx, sub, onUpdate) })
			}
			return
		}

		msgs := decodeMessages(docs)
		s.d.Reconciler.OnSnapshot(ctx, msgs)
		onUpdate(s.decorate(msgs))
	})
	if err != nil {
		return err
	}
	sub.attach(cancel)
	return nil
}

// resubscribe reopens a broken message stream.
func (s *Service) resubscribe(ctx context.Context, sub *messageSub, onUpdate func([]model.FeedItem)) {
	if ctx.Err() != nil || !sub.claim() {
		return
	}
	if err := s.openMessages(ctx, sub, onUpdate); err != nil {
		log.Printf("feed: reopening message subscription: %v", err)
		sub.markBroken()
		return
	}
	log.Printf("feed: message subscription reopened")
}

func decodeMessages(docs []remote.Document) []model.Message {
	msgs := make([]model.Message, 0, len(docs))
	for _, doc := range docs {
		m, err := model.MessageFromFields(doc.ID, doc.Fields)
		if err != nil {
			log.Printf("feed: skipping message: %v", err)
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs
}

func (s *Service) decorate(msgs []model.Message) []model.FeedItem {
	user := s.d.Session.CurrentUser()

	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]model.FeedItem, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, model.FeedItem{
			Message:   m,
			Read:      s.read[m.ID],
			Dismissed: user.HasDismissed(m.ID),
		})
	}
	return items
}

// Decorate recomputes read and dismissed flags for items.
func (s *Service) Decorate(items []model.FeedItem) []model.FeedItem {
	msgs := make([]model.Message, len(items))
	for i, it := range items {
		msgs[i] = it.Message
	}
	return s.decorate(msgs)
}

// IsRead reports whether messageID is in the local read set.
func (s *Service) IsRead(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read[messageID]
}

// MarkRead records messageID as read locally, then remotely when
// connected. A write that cannot reach the store is queued.
func (s *Service) MarkRead(ctx context.Context, messageID string) error {
	s.markLocalRead(messageID)

	user := s.d.Session.CurrentUser()
	if user == nil {
		return ErrNotSignedIn
	}
	return s.submit(ctx, model.NewPendingOperation(model.OpMarkRead, user.UID, messageID, s.now()))
}

func (s *Service) markLocalRead(messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.read[messageID] {
		return
	}
	s.read[messageID] = true
	s.saveReadLocked()
}

func (s *Service) saveReadLocked() {
	ids := make([]string, 0, len(s.read))
	for id := range s.read {
		ids = append(ids, id)
	}
	if err := store.SaveJSON(s.d.Cache, store.KeyReadMessages, ids); err != nil {
		log.Printf("feed: saving read messages: %v", err)
	}
}

// ToggleDismissed flips the dismissal of messageID and returns the new
// state.
func (s *Service) ToggleDismissed(ctx context.Context, messageID string) (bool, error) {
	user := s.d.Session.CurrentUser()
	if user == nil {
		return false, ErrNotSignedIn
	}

	dismissed := !user.HasDismissed(messageID)
	s.d.Session.SetDismissed(messageID, dismissed)

	kind := model.OpDismiss
	if !dismissed {
		kind = model.OpUndismiss
	}
	return dismissed, s.submit(ctx, model.NewPendingOperation(kind, user.UID, messageID, s.now()))
}

// submit writes op directly when connected and queues it otherwise. A
// failed direct write is queued too and triggers a connectivity check.
// While an earlier operation on the same message is still queued, op goes
// behind it so the remote applies them in order.
func (s *Service) submit(ctx context.Context, op model.PendingOperation) error {
	if s.d.Monitor.Connected() && s.d.Queue.Holds(op.UserID, op.MessageID) {
		if err := s.d.Queue.Enqueue(op); err != nil {
			return err
		}
		s.d.Queue.Flush(ctx)
		return nil
	}
	if s.d.Monitor.Connected() {
		err := s.d.Writer.Apply(ctx, op)
		if err == nil {
			return nil
		}
		if remote.IsPermanent(err) {
			return fmt.Errorf("%s %s: %w", op.Kind, op.MessageID, err)
		}
		log.Printf("feed: %s %s failed, queueing: %v", op.Kind, op.MessageID, err)
		defer s.d.Monitor.Check(ctx)
	}
	return s.d.Queue.Enqueue(op)
}

// LoadReadState merges the user's remote read statuses into the local
// read set. It is a no-op while offline or signed out.
func (s *Service) LoadReadState(ctx context.Context) error {
	user := s.d.Session.CurrentUser()
	if user == nil || !s.d.Monitor.Connected() {
		return nil
	}

	docs, err := s.d.Remote.Query(ctx, remote.Query{Collection: s.collections.ReadStatus}.Where("userId", user.UID))
	if err != nil {
		return fmt.Errorf("loading read state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for _, doc := range docs {
		id, _ := doc.Fields["messageId"].(string)
		if id != "" && !s.read[id] {
			s.read[id] = true
			changed = true
		}
	}
	if changed {
		s.saveReadLocked()
	}
	return nil
}

// ToggleMute flips the global mute.
func (s *Service) ToggleMute() bool {
	return s.d.Engine.ToggleMute()
}

// ToggleAlwaysPlayImportant flips whether important alerts bypass mute.
func (s *Service) ToggleAlwaysPlayImportant() bool {
	return s.d.Engine.ToggleAlwaysPlayImportant()
}

// PlaySound alerts for priority p.
func (s *Service) PlaySound(ctx context.Context, p model.Priority) sound.Outcome {
	return s.d.Engine.PlaySound(ctx, p)
}

// Status returns the banner summary.
func (s *Service) Status() Status {
	qs := s.d.Queue.Status()
	return Status{
		Connected: s.d.Monitor.Connected(),
		State:     s.d.Monitor.State(),
		Syncing:   s.d.Queue.Syncing(),
		Pending:   qs.Pending,
		Failed:    qs.Failed,
		LastSync:  qs.LastSync,
		LastError: qs.Error,
	}
}

// Sync requests an immediate flush, probing first if currently offline.
// When the probe reconnects, the flush run by the reconnect listener is
// the result.
func (s *Service) Sync(ctx context.Context) sync.FlushResult {
	if !s.d.Monitor.Connected() {
		s.mu.Lock()
		before := s.reconnects
		s.mu.Unlock()

		if !s.d.Monitor.Check(ctx) {
			return sync.FlushResult{Skipped: sync.SkipOffline}
		}

		s.mu.Lock()
		ran, res := s.reconnects != before, s.reconnectFlush
		s.mu.Unlock()
		if ran {
			return res
		}
	}
	return s.d.Queue.Flush(ctx)
}
