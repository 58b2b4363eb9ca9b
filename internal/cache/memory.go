package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Memory is a process-local PriorityCache bounded to size projects.
type Memory struct {
	entries *lru.Cache[int64, Entry]
}

func NewMemory(size int) (*Memory, error) {
	c, err := lru.New[int64, Entry](size)
	if err != nil {
		return nil, fmt.Errorf("creating lru cache: %w", err)
	}
	return &Memory{entries: c}, nil
}

func (m *Memory) Get(_ context.Context, projectID int64) (Entry, bool, error) {
	e, ok := m.entries.Get(projectID)
	return e, ok, nil
}

func (m *Memory) Put(_ context.Context, projectID int64, e Entry) error {
	m.entries.Add(projectID, e)
	return nil
}

func (m *Memory) Invalidate(_ context.Context, projectID int64) error {
	m.entries.Remove(projectID)
	return nil
}
