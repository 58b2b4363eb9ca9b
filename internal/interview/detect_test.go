package interview

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kalambet/elicit/internal/storage"
)

func detectTopics() []storage.Topic {
	return []storage.Topic{
		{ID: 1, Number: "topic-1-1", Content: "goals"},
		{ID: 2, Number: "topic-1-2", Content: "users"},
		{ID: 3, Number: "topic-2-1", Content: "budget"},
	}
}

func affectedNumbers(topics []storage.Topic) []string {
	var out []string
	for _, t := range topics {
		out = append(out, t.Number)
	}
	return out
}

func TestAffectedFromOracle(t *testing.T) {
	topics := detectTopics()
	o := newFakeOracle().script(affectedTopicsPrompt, `["topic-2-1", "topic-9-9", "topic-1-2"]`)

	got := NewDetector(o, nil).Affected(context.Background(), topics[0], nil, topics)
	assert.Equal(t, []string{"topic-1-1", "topic-1-2", "topic-2-1"}, affectedNumbers(got))
}

func TestAffectedFallsBackToSimilarity(t *testing.T) {
	topics := detectTopics()
	o := newFakeOracle().script(affectedTopicsPrompt, "budget, I think")
	o.vectors["we have 10k to spend"] = []float32{1, 0.1, 0}
	o.vectors["goals"] = []float32{0, 1, 0}
	o.vectors["users"] = []float32{0, 0, 1}
	o.vectors["budget"] = []float32{1, 0, 0}
	tr := Transcript{{Index: 1, Interviewer: "Anything else?", Interviewee: "we have 10k to spend"}}

	d := NewDetector(o, nil)
	got := d.Affected(context.Background(), topics[1], tr, topics)
	assert.Equal(t, []string{"topic-1-2", "topic-2-1"}, affectedNumbers(got))
	assert.Len(t, d.embeddings, 3)
}

func TestAffectedDefaultsToCurrent(t *testing.T) {
	topics := detectTopics()
	tr := Transcript{{Index: 1, Interviewee: "hm"}}

	got := NewDetector(newFakeOracle(), nil).Affected(context.Background(), topics[2], tr, topics)
	assert.Equal(t, []string{"topic-2-1"}, affectedNumbers(got))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 2}, []float32{2, 4}), 1e-6)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.Zero(t, cosine([]float32{1}, []float32{1, 2}))
	assert.Zero(t, cosine([]float32{0, 0}, []float32{1, 1}))
}
