package catalog

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryStore is the default catalog backend when no database is configured.
type InMemoryStore struct {
	mu      sync.RWMutex
	courses map[string]Course
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{courses: make(map[string]Course)}
}

func (s *InMemoryStore) List(_ context.Context) ([]Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Course, 0, len(s.courses))
	for _, c := range s.courses {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (s *InMemoryStore) Get(_ context.Context, id string) (Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.courses[id]
	if !ok {
		return Course{}, ErrCourseNotFound
	}
	return c, nil
}

func (s *InMemoryStore) Put(_ context.Context, course Course) error {
	if course.CreatedAt.IsZero() {
		course.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses[course.ID] = course
	return nil
}

func (s *InMemoryStore) Close() error { return nil }
