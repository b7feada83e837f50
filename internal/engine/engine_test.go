package engine

import (
	"context"
	"sync"

	"calnorm/internal/model"
	"calnorm/internal/prompt"
	"calnorm/internal/rules"
)

// scriptedPrompter answers requests from a fixed list and records what it
// was asked. A nil entry abandons the request.
type scriptedPrompter struct {
	mu        sync.Mutex
	answers   []*[2]string
	requests  []prompt.Request
	inFlight  int
	maxFlight int
}

func answers(vals ...*[2]string) *scriptedPrompter {
	return &scriptedPrompter{answers: vals}
}

func ans(a, b string) *[2]string {
	return &[2]string{a, b}
}

func (s *scriptedPrompter) Ask(_ context.Context, req prompt.Request) (prompt.Response, error) {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.maxFlight {
		s.maxFlight = s.inFlight
	}
	s.requests = append(s.requests, req)
	idx := len(s.requests) - 1
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if idx >= len(s.answers) || s.answers[idx] == nil {
		return prompt.Response{}, prompt.ErrAbandoned
	}
	return prompt.Response{Values: *s.answers[idx]}, nil
}

func (s *scriptedPrompter) contexts() []string {
	out := make([]string, len(s.requests))
	for i, r := range s.requests {
		out[i] = r.Context
	}
	return out
}

// memRepo is an in-memory Repository that counts saves.
type memRepo struct {
	store *rules.Store
	saves int
}

func (m *memRepo) Load() (*rules.Store, error) {
	if m.store == nil {
		return rules.New(), nil
	}
	return m.store.Clone(), nil
}

func (m *memRepo) Save(s *rules.Store) error {
	m.saves++
	m.store = s.Clone()
	return nil
}

func ev(uid, title, desc, loc string) model.Event {
	return model.Event{UID: uid, Title: title, Description: desc, Location: loc}
}

func cal(events ...model.Event) model.Calendar {
	for i := range events {
		events[i].Seq = i
	}
	return model.Calendar{Events: events}
}

func titles(c model.Calendar) []string {
	out := make([]string, len(c.Events))
	for i, e := range c.Events {
		out[i] = e.Title
	}
	return out
}
