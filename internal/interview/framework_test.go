package interview

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/elicit/internal/storage"
)

const frameworkResponse = `Here is the plan:
[
  {"section_number": "s-a", "section_content": "Scope", "topics": [
    {"topic_number": "t-x", "topic_content": "Project goals", "slots": [{"slot_key": "goal"}, {"slot_key": "deadline"}]},
    {"topic_number": "t-y", "topic_content": "Target users", "slots": [{"slot_key": "persona"}]}
  ]},
  {"section_number": "s-b", "section_content": "Empty", "topics": []},
  {"section_number": "s-c", "section_content": "Operations", "topics": [
    {"topic_content": "Hosting", "slots": []}
  ]}
]`

func TestGenerateFramework(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	p, err := s.CreateProject(ctx, "crm", "A CRM for a small sales team.")
	require.NoError(t, err)

	o := newFakeOracle().script(frameworkPrompt, frameworkResponse)
	fw, err := NewGenerator(s, o, nil).Generate(ctx, p.ID)
	require.NoError(t, err)

	require.Len(t, fw.Sections, 2)
	assert.Equal(t, "section-1", fw.Sections[0].Number)
	assert.Equal(t, "section-3", fw.Sections[1].Number)

	require.Len(t, fw.Topics, 3)
	assert.Equal(t, []string{"topic-1-1", "topic-1-2", "topic-3-1"}, affectedNumbers(fw.Topics))
	for _, tp := range fw.Topics {
		assert.Equal(t, storage.TopicPending, tp.Status)
		assert.True(t, tp.Necessity)
	}
	goals := fw.Slots[fw.Topics[0].ID]
	require.Len(t, goals, 2)
	assert.Equal(t, "slot-1-1-2", goals[1].Number)
	assert.Equal(t, "deadline", goals[1].Key)
	assert.True(t, goals[1].Necessity)

	// Regenerating replaces the previous plan.
	fw, err = NewGenerator(s, o, nil).Generate(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, fw.Topics, 3)
}

func TestGenerateFrameworkFailures(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	p, err := s.CreateProject(ctx, "crm", "A CRM.")
	require.NoError(t, err)

	_, err = NewGenerator(s, newFakeOracle(), nil).Generate(ctx, p.ID)
	assert.ErrorIs(t, err, ErrOracleUnavailable)

	_, err = NewGenerator(s, newFakeOracle().script(frameworkPrompt, "[]"), nil).Generate(ctx, p.ID)
	assert.ErrorIs(t, err, ErrMalformedOracleOutput)

	_, err = NewGenerator(s, newFakeOracle().script(frameworkPrompt, "sections: scope"), nil).Generate(ctx, p.ID)
	assert.ErrorIs(t, err, ErrMalformedOracleOutput)

	topics, err := s.ListTopics(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, topics)

	require.NoError(t, s.SetProjectStatus(ctx, p.ID, storage.ProjectOngoing))
	_, err = NewGenerator(s, newFakeOracle().script(frameworkPrompt, frameworkResponse), nil).Generate(ctx, p.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = NewGenerator(s, newFakeOracle(), nil).Generate(ctx, p.ID+100)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
