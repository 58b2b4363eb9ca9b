package interview

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kalambet/elicit/internal/storage"
)

func TestSchedulingNote(t *testing.T) {
	prev := storage.Topic{Number: "topic-1-1", Content: "Project goals."}
	next := storage.Topic{Number: "topic-1-2", Content: "Target users"}

	assert.Empty(t, SchedulingNote(OpMaintain, true, prev, next))
	assert.Equal(t, `We have covered "Project goals". Let's move on to "Target users".`, SchedulingNote(OpEnd, true, prev, next))
	assert.Contains(t, SchedulingNote(OpSwitch, false, prev, prev), `stay on "Project goals"`)
	assert.Contains(t, SchedulingNote(OpEnd, true, prev, storage.Topic{Number: "topic-2-1"}), "topic-2-1")
	for _, op := range Operations[1:] {
		assert.NotEmpty(t, SchedulingNote(op, false, prev, prev), op)
		assert.NotEmpty(t, SchedulingNote(op, true, prev, next), op)
	}
}

func TestAskUsesOracle(t *testing.T) {
	o := newFakeOracle().script(questionPrompt, "  \"Who will use the system day to day?\" ")
	q := NewQuestioner(o, nil).Ask(context.Background(), Prompt{Topic: storage.Topic{Number: "topic-1-2", Content: "Users"}})
	assert.Equal(t, "Who will use the system day to day?", q)
}

func TestAskFallback(t *testing.T) {
	v := "churn"
	p := Prompt{
		Topic:    storage.Topic{Number: "topic-1-1", Content: "Project goals."},
		Slots:    []storage.Slot{{Key: "goal", Value: &v}, {Key: "success_metric"}},
		Strategy: StrategyDeepen,
		Note:     "Let's move on.",
	}
	q := NewQuestioner(newFakeOracle(), nil).Ask(context.Background(), p)
	assert.Equal(t, "Let's move on. Regarding Project goals, could you tell me about the success metric?", q)

	p.Slots = p.Slots[:1]
	p.Note = ""
	p.Strategy = StrategyWrapUp
	q = NewQuestioner(nil, nil).Ask(context.Background(), p)
	assert.Equal(t, "Is there anything else you would like to add about Project goals?", q)
}
