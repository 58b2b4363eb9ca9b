package interview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/elicit/internal/storage"
)

// ClosingMessage is stored as the last interviewer message of a completed interview.
const ClosingMessage = "Thank you, we have covered every topic. The interview is complete."

// Prompt describes the next question to ask.
type Prompt struct {
	Topic      storage.Topic
	Slots      []storage.Slot
	Strategy   Strategy
	Note       string
	Transcript Transcript
}

// Questioner writes interviewer messages.
type Questioner struct {
	oracle Oracle
	logger *slog.Logger
}

func NewQuestioner(o Oracle, logger *slog.Logger) *Questioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Questioner{oracle: o, logger: logger}
}

// Ask returns the next interviewer message. Without an oracle it falls back
// to a plain question about the first missing slot.
func (q *Questioner) Ask(ctx context.Context, p Prompt) string {
	if q.oracle != nil {
		if text, ok := q.oracle.Call(ctx, questionPrompt, questionQuery(p)); ok {
			if text = strings.Trim(strings.TrimSpace(text), `"`); text != "" {
				return text
			}
		}
		q.logger.Warn("question generation unavailable, using fallback", "topic", p.Topic.Number)
	}
	return fallbackQuestion(p)
}

func fallbackQuestion(p Prompt) string {
	var sb strings.Builder
	if p.Note != "" {
		sb.WriteString(p.Note)
		sb.WriteString(" ")
	}
	content := strings.TrimRight(strings.TrimSpace(p.Topic.Content), ".?!")
	switch missing := firstMissing(p.Slots); {
	case p.Strategy == StrategyWrapUp || missing == nil:
		fmt.Fprintf(&sb, "Is there anything else you would like to add about %s?", content)
	default:
		fmt.Fprintf(&sb, "Regarding %s, could you tell me about the %s?", content, strings.ReplaceAll(missing.Key, "_", " "))
	}
	return sb.String()
}

func firstMissing(slots []storage.Slot) *storage.Slot {
	for i := range slots {
		if !slots[i].Filled() {
			return &slots[i]
		}
	}
	return nil
}

func questionQuery(p Prompt) string {
	var missing []string
	for _, s := range p.Slots {
		if !s.Filled() {
			missing = append(missing, s.Key)
		}
	}
	note := p.Note
	if note == "" {
		note = "(none)"
	}
	return fmt.Sprintf("[Topic]\n%s\n\n[Slots]\n%s\n[Missing slots]\n%s\n\n[Strategy]\n%s\n\n[Scheduling note]\n%s\n\n[Conversation]\n%s",
		topicLine(p.Topic), slotList(p.Slots), strings.Join(missing, ", "), p.Strategy.Instruction(), note, p.Transcript.render())
}
