package interview

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/elicit/internal/storage"
)

func TestPrefillUpdatesExistingSlotsOnly(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	p, topics := seed(t, s,
		topicSeed{section: "section-1", number: "topic-1-1", slots: []string{"goal", "deadline"}},
		topicSeed{section: "section-2", number: "topic-2-1", slots: []string{"amount"}},
	)

	o := newFakeOracle().script(prefillPrompt, "```json\n"+`[
		{"topic_number": "topic-1-1", "slot_number": "slot-1-1-1", "slot_value": "cut churn"},
		{"topic_number": "topic-1-1", "slot_number": "slot-1-1-7", "slot_value": "invented"},
		{"topic_number": "topic-1-1", "slot_number": "", "slot_key": "team", "slot_value": "40"},
		{"topic_number": "topic-2-1", "slot_number": "slot-2-1-1", "slot_value": 12000},
		{"topic_number": "topic-9-9", "slot_number": "slot-9-9-1", "slot_value": "ghost"},
		{"topic_number": "topic-1-1", "slot_number": "slot-1-1-2", "slot_value": "None"}
	]`+"\n```")
	pre := NewPrefiller(s, o, NewFiller(s, o, nil), nil)

	res, err := pre.Prefill(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, FillResult{Updated: 2}, res)

	first := slotsByKey(t, s, topics["topic-1-1"].ID)
	require.Len(t, first, 2)
	assert.Equal(t, "cut churn", *first["goal"].Value)
	assert.Empty(t, first["goal"].Evidence)
	assert.False(t, first["deadline"].Filled())

	second := slotsByKey(t, s, topics["topic-2-1"].ID)
	assert.Equal(t, "12000", *second["amount"].Value)

	res, err = pre.Prefill(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, FillResult{}, res, "prefilling twice must not write")
}

func TestPrefillWithoutAnswerIsNoop(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	p, topics := seed(t, s, topicSeed{section: "section-1", number: "topic-1-1", slots: []string{"goal"}})

	for name, o := range map[string]*fakeOracle{
		"absent":    newFakeOracle(),
		"malformed": newFakeOracle().script(prefillPrompt, "the goal is less churn"),
	} {
		res, err := NewPrefiller(s, o, NewFiller(s, o, nil), nil).Prefill(ctx, p.ID)
		require.NoError(t, err, name)
		assert.Equal(t, FillResult{}, res, name)
	}
	assert.False(t, slotsByKey(t, s, topics["topic-1-1"].ID)["goal"].Filled())

	_, err := NewPrefiller(s, newFakeOracle(), nil, nil).Prefill(ctx, p.ID+1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPrefillSkipsBlankRequirements(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	p, err := s.CreateProject(ctx, "blank", "  ")
	require.NoError(t, err)

	o := newFakeOracle().script(prefillPrompt, `[]`)
	res, err := NewPrefiller(s, o, NewFiller(s, o, nil), nil).Prefill(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, FillResult{}, res)
	assert.Zero(t, o.count(prefillPrompt))
}
