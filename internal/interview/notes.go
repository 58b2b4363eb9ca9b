package interview

import (
	"strings"

	"github.com/kalambet/elicit/internal/storage"
)

type noteTemplates struct {
	high, low string
}

// noteText holds the scheduling notes per operation. {prev} is the topic
// the interview leaves, {next} the one it continues with.
var noteText = map[Operation]noteTemplates{
	OpEnd: {
		high: "We have covered {prev}. Let's move on to {next}.",
		low:  "Before we leave {prev}, is there anything else you would like to add?",
	},
	OpSwitch: {
		high: "Picking up on what you said, let's talk about {next}.",
		low:  "It sounded like you may want to discuss something else; shall we stay on {prev} for now?",
	},
	OpCreate: {
		high: "That sounds important, so let's look at it more closely: {next}.",
		low:  "You mentioned something new. Should we explore it, or continue with {prev}?",
	},
	OpRefuse: {
		high: "No problem, we can skip {prev}. Let's continue with {next}.",
		low:  "If you would rather not go into {prev}, just let me know and we can skip it.",
	},
	OpRefuseAndSwitch: {
		high: "Understood, let's leave {prev} and talk about {next} instead.",
		low:  "Would you prefer to leave {prev} and talk about something else?",
	},
	OpRefuseAndCreate: {
		high: "Understood, let's set {prev} aside and look at {next}.",
		low:  "Would you prefer to set {prev} aside and talk about the new point you raised?",
	},
}

// SchedulingNote renders the transition note attached to the next question.
// Applied selects the high-confidence template. maintain_current_topic has no note.
func SchedulingNote(op Operation, applied bool, prev, next storage.Topic) string {
	t, ok := noteText[op]
	if !ok {
		return ""
	}
	text := t.low
	if applied {
		text = t.high
	}
	return strings.NewReplacer("{prev}", describe(prev), "{next}", describe(next)).Replace(text)
}

func describe(t storage.Topic) string {
	c := strings.TrimRight(strings.TrimSpace(t.Content), ".?!")
	if c == "" {
		return t.Number
	}
	return `"` + c + `"`
}
