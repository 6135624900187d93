package remote

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memDoc struct {
	fields map[string]any
	seq    int
}

type memSub struct {
	id  int
	q   Query
	fn  SnapshotFunc
	end func()
}

// Memory is an in-process Store. Subscribers receive a snapshot
// synchronously on Subscribe and after every change to their collection.
type Memory struct {
	mu          sync.Mutex
	collections map[string]map[string]*memDoc
	subs        map[int]*memSub
	nextSub     int
	seq         int
	probe       string

	offline   bool
	denied    map[string]bool
	writeHook func(collection, key string)
	writes    map[string]int
	probes    int
}

// NewMemory creates an empty in-memory store. probeCollection is read by
// Probe.
func NewMemory(probeCollection string) *Memory {
	return &Memory{
		collections: make(map[string]map[string]*memDoc),
		subs:        make(map[int]*memSub),
		probe:       probeCollection,
		denied:      make(map[string]bool),
		writes:      make(map[string]int),
	}
}

// SetOffline makes every call fail with ErrUnavailable until cleared.
func (m *Memory) SetOffline(offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = offline
}

// Deny makes writes to collection/key fail with ErrPermissionDenied.
func (m *Memory) Deny(collection, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.denied[collection+"/"+key] = true
}

// SetWriteHook installs fn to run before every write, outside the lock.
func (m *Memory) SetWriteHook(fn func(collection, key string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeHook = fn
}

// Writes returns how many writes reached collection/key.
func (m *Memory) Writes(collection, key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes[collection+"/"+key]
}

// TotalWrites returns the number of successful writes.
func (m *Memory) TotalWrites() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.writes {
		n += c
	}
	return n
}

// Probes returns the number of Probe calls.
func (m *Memory) Probes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.probes
}

// Subscribe registers fn and delivers the current result immediately.
func (m *Memory) Subscribe(ctx context.Context, q Query, fn SnapshotFunc) (func(), error) {
	m.mu.Lock()
	if m.offline {
		m.mu.Unlock()
		return nil, wrap("subscribe", q.Collection, "", ErrUnavailable)
	}
	m.nextSub++
	sub := &memSub{id: m.nextSub, q: q, fn: fn}
	m.subs[sub.id] = sub
	docs := m.queryLocked(q)
	m.mu.Unlock()

	fn(docs, nil)

	var once sync.Once
	stop := make(chan struct{})
	unsubscribe := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, sub.id)
			m.mu.Unlock()
			close(stop)
		})
	}

	m.mu.Lock()
	sub.end = unsubscribe
	m.mu.Unlock()

	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				unsubscribe()
			case <-stop:
			}
		}()
	}

	return unsubscribe, nil
}

// FailSubscriptions ends every live subscription by delivering err, the
// way a listener stream dies on the hosted store.
func (m *Memory) FailSubscriptions(err error) {
	m.mu.Lock()
	subs := make([]memSub, 0, len(m.subs))
	for _, id := range m.sortedSubIDs() {
		subs = append(subs, *m.subs[id])
	}
	m.mu.Unlock()

	for _, sub := range subs {
		if sub.end != nil {
			sub.end()
		}
		sub.fn(nil, err)
	}
}

// Query performs a one-shot read.
func (m *Memory) Query(_ context.Context, q Query) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return nil, wrap("query", q.Collection, "", ErrUnavailable)
	}
	return m.queryLocked(q), nil
}

// Get reads a single document.
func (m *Memory) Get(_ context.Context, collection, key string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return Document{}, wrap("get", collection, key, ErrUnavailable)
	}
	d, ok := m.collections[collection][key]
	if !ok {
		return Document{}, wrap("get", collection, key, ErrNotFound)
	}
	return Document{ID: key, Fields: copyFields(d.fields)}, nil
}

// Set merges fields into the document at key.
func (m *Memory) Set(_ context.Context, collection, key string, fields map[string]any) error {
	return m.write("set", collection, key, func(d *memDoc) {
		for k, v := range fields {
			d.fields[k] = copyValue(v)
		}
	})
}

// Add creates a document with a generated key and returns the key.
func (m *Memory) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	key := uuid.New().String()
	if err := m.Set(ctx, collection, key, fields); err != nil {
		return "", err
	}
	return key, nil
}

// UpdateSetField adds or removes value in an array field.
func (m *Memory) UpdateSetField(_ context.Context, collection, key, field string, op SetOp, value any) error {
	return m.write("update "+field+" "+op.String(), collection, key, func(d *memDoc) {
		current, _ := d.fields[field].([]any)
		out := make([]any, 0, len(current)+1)
		found := false
		for _, v := range current {
			if reflect.DeepEqual(v, value) {
				found = true
				if op == SetRemove {
					continue
				}
			}
			out = append(out, v)
		}
		if op == SetAdd && !found {
			out = append(out, value)
		}
		d.fields[field] = out
	})
}

// Probe reads at most one document from the probe collection.
func (m *Memory) Probe(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes++
	if m.offline {
		return wrap("probe", m.probe, "", ErrUnavailable)
	}
	return nil
}

func (m *Memory) write(op, collection, key string, apply func(d *memDoc)) error {
	m.mu.Lock()
	hook := m.writeHook
	m.mu.Unlock()
	if hook != nil {
		hook(collection, key)
	}

	m.mu.Lock()
	if m.offline {
		m.mu.Unlock()
		return wrap(op, collection, key, ErrUnavailable)
	}
	if m.denied[collection+"/"+key] {
		m.mu.Unlock()
		return wrap(op, collection, key, ErrPermissionDenied)
	}

	coll, ok := m.collections[collection]
	if !ok {
		coll = make(map[string]*memDoc)
		m.collections[collection] = coll
	}
	d, ok := coll[key]
	if !ok {
		m.seq++
		d = &memDoc{fields: make(map[string]any), seq: m.seq}
		coll[key] = d
	}
	apply(d)
	m.writes[collection+"/"+key]++

	type delivery struct {
		fn   SnapshotFunc
		docs []Document
	}
	var deliveries []delivery
	for _, id := range m.sortedSubIDs() {
		sub := m.subs[id]
		if sub.q.Collection == collection {
			deliveries = append(deliveries, delivery{fn: sub.fn, docs: m.queryLocked(sub.q)})
		}
	}
	m.mu.Unlock()

	for _, d := range deliveries {
		d.fn(d.docs, nil)
	}
	return nil
}

func (m *Memory) sortedSubIDs() []int {
	ids := make([]int, 0, len(m.subs))
	for id := range m.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (m *Memory) queryLocked(q Query) []Document {
	type entry struct {
		key string
		doc *memDoc
	}

	var entries []entry
	for key, d := range m.collections[q.Collection] {
		if matches(d.fields, q.Filters) {
			entries = append(entries, entry{key: key, doc: d})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if q.OrderBy != "" {
			c := compareValues(entries[i].doc.fields[q.OrderBy], entries[j].doc.fields[q.OrderBy])
			if c != 0 {
				if q.Desc {
					return c > 0
				}
				return c < 0
			}
		}
		return entries[i].doc.seq < entries[j].doc.seq
	})

	if q.Limit > 0 && len(entries) > q.Limit {
		entries = entries[:q.Limit]
	}

	docs := make([]Document, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, Document{ID: e.key, Fields: copyFields(e.doc.fields)})
	}
	return docs
}

func matches(fields map[string]any, filters []Filter) bool {
	for _, f := range filters {
		if !reflect.DeepEqual(fields[f.Field], f.Value) {
			return false
		}
	}
	return true
}

// compareValues orders timestamps, numbers, and strings. Missing values
// sort first.
func compareValues(a, b any) int {
	switch av := a.(type) {
	case nil:
		if b == nil {
			return 0
		}
		return -1
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	}
	if b == nil {
		return 1
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch s := v.(type) {
	case []any:
		return append([]any(nil), s...)
	case []string:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out
	}
	return v
}
