package server

import (
	"context"
	"sort"
	"sync"
	"time"

	"summary_review_workflow/workflow"
)

const (
	defaultRunTTL  = 30 * time.Minute
	defaultMaxRuns = 256
)

// runHandle 保存一次运行的事件日志，供轮询和 WebSocket 重放。
type runHandle struct {
	id     string
	cancel context.CancelFunc

	mu         sync.Mutex
	events     []workflow.Event
	latest     workflow.State
	done       bool
	finishedAt time.Time
	notify     chan struct{}
}

func newRunHandle(st *workflow.State, cancel context.CancelFunc) *runHandle {
	return &runHandle{
		id:     st.RunID,
		cancel: cancel,
		latest: st.Snapshot(),
		notify: make(chan struct{}),
	}
}

// append records ev and wakes every waiting subscriber. Once the END event
// arrives only it keeps a snapshot; earlier events are kept for replay without one.
func (h *runHandle) append(ev workflow.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	h.latest = ev.Snapshot
	if ev.Final() {
		h.done = true
		h.finishedAt = ev.Time
		if h.finishedAt.IsZero() {
			h.finishedAt = time.Now()
		}
		for i := range h.events[:len(h.events)-1] {
			h.events[i].Snapshot = workflow.State{}
		}
	}
	close(h.notify)
	h.notify = make(chan struct{})
}

// since returns events from index i on, whether the run has ended, and a channel
// closed on the next append.
func (h *runHandle) since(i int) ([]workflow.Event, bool, <-chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []workflow.Event
	if i < len(h.events) {
		out = append(out, h.events[i:]...)
	}
	return out, h.done, h.notify
}

func (h *runHandle) snapshot() (workflow.State, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest, h.done
}

func (h *runHandle) finished() (time.Time, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.finishedAt, h.done
}

// runStore keeps runs by ID. Finished runs are dropped once they are older than
// ttl, or oldest first when the store holds max runs. Running runs are never dropped.
type runStore struct {
	mu   sync.Mutex
	runs map[string]*runHandle
	ttl  time.Duration
	max  int
	now  func() time.Time
}

func newStore(ttl time.Duration, max int) *runStore {
	if ttl <= 0 {
		ttl = defaultRunTTL
	}
	if max <= 0 {
		max = defaultMaxRuns
	}
	return &runStore{
		runs: make(map[string]*runHandle),
		ttl:  ttl,
		max:  max,
		now:  time.Now,
	}
}

func (s *runStore) set(h *runHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked(1)
	s.runs[h.id] = h
}

func (s *runStore) get(id string) (*runHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked(0)
	h, ok := s.runs[id]
	return h, ok
}

func (s *runStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}

// evictLocked drops expired runs, then the oldest finished ones until room more
// runs fit under max.
func (s *runStore) evictLocked(room int) {
	now := s.now()
	var finished []*runHandle
	for id, h := range s.runs {
		at, done := h.finished()
		if !done {
			continue
		}
		if now.Sub(at) >= s.ttl {
			delete(s.runs, id)
			continue
		}
		finished = append(finished, h)
	}
	if len(s.runs)+room <= s.max {
		return
	}
	sort.Slice(finished, func(i, j int) bool {
		ai, _ := finished[i].finished()
		aj, _ := finished[j].finished()
		return ai.Before(aj)
	})
	for _, h := range finished {
		if len(s.runs)+room <= s.max {
			break
		}
		delete(s.runs, h.id)
	}
}
