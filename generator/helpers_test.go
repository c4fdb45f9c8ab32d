package generator

import (
	"context"
	"sync"
)

// scriptedLLM replies per task from a queue and records every prompt.
type scriptedLLM struct {
	mu      sync.Mutex
	replies map[string][]string
	errs    map[string]error
	calls   []Prompt
}

func newScripted() *scriptedLLM {
	return &scriptedLLM{replies: map[string][]string{}, errs: map[string]error{}}
}

func (s *scriptedLLM) on(task string, replies ...string) *scriptedLLM {
	s.replies[task] = append(s.replies[task], replies...)
	return s
}

func (s *scriptedLLM) fail(task string, err error) *scriptedLLM {
	s.errs[task] = err
	return s
}

func (s *scriptedLLM) Complete(_ context.Context, p Prompt) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, p)
	if err := s.errs[p.Task]; err != nil {
		return "", err
	}
	q := s.replies[p.Task]
	if len(q) == 0 {
		return "", nil
	}
	out := q[0]
	if len(q) > 1 {
		s.replies[p.Task] = q[1:]
	}
	return out, nil
}

func (s *scriptedLLM) count(task string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.calls {
		if p.Task == task {
			n++
		}
	}
	return n
}
