package interview

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kalambet/elicit/internal/cache"
	"github.com/kalambet/elicit/internal/storage"
)

// fakeOracle answers each prompt with a scripted response. A prompt without
// a script behaves like an oracle that exhausted its retries.
type fakeOracle struct {
	mu        sync.Mutex
	responses map[string]string
	vectors   map[string][]float32
	calls     map[string]int
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{
		responses: make(map[string]string),
		vectors:   make(map[string][]float32),
		calls:     make(map[string]int),
	}
}

func (f *fakeOracle) script(prompt, response string) *fakeOracle {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[prompt] = response
	return f
}

func (f *fakeOracle) Call(_ context.Context, prompt, _ string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[prompt]++
	r, ok := f.responses[prompt]
	return r, ok
}

func (f *fakeOracle) Embed(_ context.Context, text string) ([]float32, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vectors[text]
	return v, ok
}

func (f *fakeOracle) count(prompt string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[prompt]
}

func openStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newMemoryCache(t *testing.T) cache.PriorityCache {
	t.Helper()
	c, err := cache.NewMemory(16)
	require.NoError(t, err)
	return c
}

type topicSeed struct {
	section string
	number  string
	status  storage.TopicStatus
	slots   []string
}

// seed creates a project holding the given topics. Sections are created on
// first use, in the order they appear.
func seed(t *testing.T, s *storage.Store, topics ...topicSeed) (storage.Project, map[string]storage.Topic) {
	t.Helper()
	ctx := context.Background()
	p, err := s.CreateProject(ctx, "test", "requirements")
	require.NoError(t, err)

	sections := map[string]int64{}
	out := map[string]storage.Topic{}
	for _, ts := range topics {
		secID, ok := sections[ts.section]
		if !ok {
			sec, err := s.InsertSection(ctx, storage.Section{ProjectID: p.ID, Number: ts.section, Content: "about " + ts.section})
			require.NoError(t, err)
			secID = sec.ID
			sections[ts.section] = secID
		}
		status := ts.status
		if status == "" {
			status = storage.TopicPending
		}
		tp, err := s.InsertTopic(ctx, storage.Topic{ProjectID: p.ID, SectionID: secID, Number: ts.number, Content: "content of " + ts.number, Status: status, Necessity: true})
		require.NoError(t, err)
		for k, key := range ts.slots {
			_, err := s.InsertSlot(ctx, storage.Slot{TopicID: tp.ID, Number: slotNumber(ts.number, k+1), Key: key, Necessity: true})
			require.NoError(t, err)
		}
		out[ts.number] = tp
	}
	return p, out
}

func statuses(t *testing.T, s *storage.Store, projectID int64) map[string]storage.TopicStatus {
	t.Helper()
	topics, err := s.ListTopics(context.Background(), projectID)
	require.NoError(t, err)
	out := make(map[string]storage.TopicStatus, len(topics))
	for _, tp := range topics {
		out[tp.Number] = tp.Status
	}
	return out
}
