package api

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/kalambet/elicit/internal/cache"
	"github.com/kalambet/elicit/internal/pipeline"
	"github.com/kalambet/elicit/internal/storage"
)

const testToken = "test-token"

const (
	onFramework = "design the plan of a requirements interview"
	onOperation = "scheduler of a semi-structured interview"
)

const plan = `[
  {"section_content": "Scope", "topics": [
    {"topic_content": "Project goals", "slots": [{"slot_key": "goal"}]},
    {"topic_content": "Target users", "slots": [{"slot_key": "persona"}]}
  ]}
]`

// scriptedOracle answers prompts containing a registered phrase and is
// unavailable for everything else.
type scriptedOracle struct {
	mu      sync.Mutex
	scripts map[string]string
}

func (o *scriptedOracle) set(phrase, response string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scripts[phrase] = response
}

func (o *scriptedOracle) Call(_ context.Context, prompt, _ string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for phrase, resp := range o.scripts {
		if strings.Contains(prompt, phrase) {
			return resp, true
		}
	}
	return "", false
}

func (o *scriptedOracle) Embed(context.Context, string) ([]float32, bool) { return nil, false }

type testEnv struct {
	store  *storage.Store
	oracle *scriptedOracle
	iv     *pipeline.Interviewer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	c, err := cache.NewMemory(8)
	if err != nil {
		t.Fatalf("creating cache: %v", err)
	}
	o := &scriptedOracle{scripts: map[string]string{onFramework: plan}}
	iv := pipeline.New(store, o, c, pipeline.Options{ConfidenceThreshold: 0.6, CompletionThreshold: 0.5})
	return &testEnv{store: store, oracle: o, iv: iv}
}

// project creates a project with a generated framework.
func (e *testEnv) project(t *testing.T) storage.Project {
	t.Helper()
	ctx := context.Background()
	p, err := e.store.CreateProject(ctx, "crm", "A CRM for a small sales team.")
	if err != nil {
		t.Fatalf("creating project: %v", err)
	}
	if _, err := e.iv.GenerateFramework(ctx, p.ID); err != nil {
		t.Fatalf("generating framework: %v", err)
	}
	return p
}
