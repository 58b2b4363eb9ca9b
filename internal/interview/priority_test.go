package interview

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/elicit/internal/storage"
)

func numbersOf(ranking []storage.PriorityEntry) []string {
	out := make([]string, 0, len(ranking))
	for _, e := range ranking {
		out = append(out, e.TopicNumber)
	}
	return out
}

func TestRankSectionOrderWithoutEdges(t *testing.T) {
	topics := []storage.Topic{
		{Number: "topic-1-1", SectionNumber: "section-1"},
		{Number: "topic-1-2", SectionNumber: "section-1"},
		{Number: "topic-2-1", SectionNumber: "section-2"},
	}

	ranking := Rank(topics, nil)

	require.Len(t, ranking, 3)
	assert.Equal(t, []string{"topic-1-1", "topic-1-2", "topic-2-1"}, numbersOf(ranking))
	assert.InDelta(t, 1.0, ranking[0].Core, 1e-9)
	assert.InDelta(t, ranking[0].Core, ranking[1].Core, 1e-9)
	assert.InDelta(t, 0.5, ranking[2].Core, 1e-9)
}

func TestRankDependencies(t *testing.T) {
	topics := []storage.Topic{
		{Number: "topic-1-1", SectionNumber: "section-1", Content: "Goals"},
		{Number: "topic-1-2", SectionNumber: "section-1", Content: "Users"},
		{Number: "topic-1-3", SectionNumber: "section-1", Content: "Budget"},
	}
	edges := []Edge{
		{Source: "topic-1-1", Target: "topic-1-3"},
		{Source: "topic-1-2", Target: "topic-1-3: Budget"},
		{Source: "topic-1-2", Target: "topic-1-3"}, // duplicate of the previous edge
		{Source: "Budget", Target: "Users"},
		{Source: "topic-1-1", Target: "topic-9-9"}, // unresolvable
	}

	ranking := Rank(topics, edges)

	// in-degree: 1-3 -> 2, 1-2 -> 1, 1-1 -> 0
	assert.Equal(t, []string{"topic-1-1", "topic-1-2", "topic-1-3"}, numbersOf(ranking))
	assert.InDelta(t, 1.0, ranking[0].Core, 1e-9)
	assert.InDelta(t, 0.75, ranking[1].Core, 1e-9)
	assert.InDelta(t, 0.5, ranking[2].Core, 1e-9)
}

func TestRankNaturalSectionOrder(t *testing.T) {
	topics := []storage.Topic{
		{Number: "topic-10-1", SectionNumber: "section-10"},
		{Number: "topic-2-1", SectionNumber: "section-2"},
		{Number: "topic-1-1", SectionNumber: "section-1"},
	}
	ranking := Rank(topics, nil)
	assert.Equal(t, []string{"topic-1-1", "topic-2-1", "topic-10-1"}, numbersOf(ranking))
}

func TestRankEmpty(t *testing.T) {
	assert.Empty(t, Rank(nil, nil))
}

func TestBuildCachesUntilSnapshotChanges(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	p, topics := seed(t, s,
		topicSeed{section: "section-1", number: "topic-1-1"},
		topicSeed{section: "section-1", number: "topic-1-2"},
		topicSeed{section: "section-2", number: "topic-2-1"},
	)
	o := newFakeOracle().script(dependencyPrompt, `[{"source": "topic-1-1", "target": "topic-1-2"}]`)
	b := NewBuilder(s, o, newMemoryCache(t), nil)

	first, err := b.Build(ctx, p.ID)
	require.NoError(t, err)
	second, err := b.Build(ctx, p.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, o.count(dependencyPrompt), "second build must be served from cache")

	stored, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, first, stored.PrioritySequence)

	require.NoError(t, s.UpdateTopicStatus(ctx, topics["topic-1-1"].ID, storage.TopicOngoing))
	third, err := b.Build(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, o.count(dependencyPrompt), "status change must invalidate the cache")
	assert.Equal(t, storage.TopicOngoing, third[0].Status)
}

func TestBuildMalformedDependenciesFallsBackToSectionOrder(t *testing.T) {
	s := openStore(t)
	p, _ := seed(t, s,
		topicSeed{section: "section-2", number: "topic-2-1"},
		topicSeed{section: "section-1", number: "topic-1-1"},
		topicSeed{section: "section-1", number: "topic-1-2"},
	)
	o := newFakeOracle().script(dependencyPrompt, `the graph is [{"source": topic-1-1`)
	b := NewBuilder(s, o, newMemoryCache(t), nil)

	ranking, err := b.Build(context.Background(), p.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{"topic-1-1", "topic-1-2", "topic-2-1"}, numbersOf(ranking))
	assert.InDelta(t, 1.0, ranking[0].Core, 1e-9)
	assert.InDelta(t, 1.0, ranking[1].Core, 1e-9)
	assert.InDelta(t, 0.5, ranking[2].Core, 1e-9)
}

func TestBuildWithoutOracleAnswer(t *testing.T) {
	s := openStore(t)
	p, _ := seed(t, s, topicSeed{section: "section-1", number: "topic-1-1"})
	b := NewBuilder(s, newFakeOracle(), nil, nil)

	ranking, err := b.Build(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, ranking, 1)
	assert.InDelta(t, 1.0, ranking[0].Core, 1e-9)
}

func TestDigestIgnoresEnumerationOrder(t *testing.T) {
	a := storage.Topic{Number: "topic-1-1", SectionNumber: "section-1", Content: "x", Status: storage.TopicPending}
	b := storage.Topic{Number: "topic-1-2", SectionNumber: "section-1", Content: "y", Status: storage.TopicPending}

	assert.Equal(t, Digest([]storage.Topic{a, b}), Digest([]storage.Topic{b, a}))

	changed := b
	changed.Content = "z"
	assert.NotEqual(t, Digest([]storage.Topic{a, b}), Digest([]storage.Topic{a, changed}))
}

func TestCompareNumbers(t *testing.T) {
	assert.Negative(t, compareNumbers("topic-1-2", "topic-1-10"))
	assert.Positive(t, compareNumbers("section-10", "section-9"))
	assert.Zero(t, compareNumbers("topic-3-1", "topic-3-1"))
	assert.Negative(t, compareNumbers("topic-1", "topic-1-1"))
}

func TestResolver(t *testing.T) {
	r := newResolver([]storage.Topic{
		{Number: "topic-1-1", Content: "Project goals"},
		{Number: "topic-1-2", Content: "Users"},
	})

	for token, want := range map[string]string{
		"topic-1-1":                "topic-1-1",
		`"topic-1-2"`:              "topic-1-2",
		"topic-1-1: Project goals": "topic-1-1",
		"Users":                    "topic-1-2",
	} {
		got, ok := r.resolve(token)
		assert.True(t, ok, token)
		assert.Equal(t, want, got, token)
	}
	_, ok := r.resolve("topic-4-4")
	assert.False(t, ok)
	_, ok = r.resolve("  ")
	assert.False(t, ok)
}
