package interview

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/kalambet/elicit/internal/oracle"
	"github.com/kalambet/elicit/internal/storage"
)

// Operation is one of the seven scheduling actions available after a reply.
type Operation string

const (
	OpMaintain        Operation = "maintain_current_topic"
	OpEnd             Operation = "end_current_topic"
	OpSwitch          Operation = "switch_another_topic"
	OpCreate          Operation = "create_new_topic"
	OpRefuse          Operation = "refuse_current_topic"
	OpRefuseAndSwitch Operation = "refuse_current_topic_and_switch_another_topic"
	OpRefuseAndCreate Operation = "refuse_current_topic_and_create_new_topic"
)

// Operations lists every operation, most preferred first when the situation is ambiguous.
var Operations = []Operation{
	OpMaintain, OpEnd, OpSwitch, OpCreate, OpRefuse, OpRefuseAndSwitch, OpRefuseAndCreate,
}

// ParseOperation matches a label against the closed set of operations.
func ParseOperation(s string) (Operation, bool) {
	s = strings.TrimSpace(s)
	for _, op := range Operations {
		if string(op) == s {
			return op, true
		}
	}
	return "", false
}

// Selection is the scored decision for one reply.
type Selection struct {
	// Label is the best operation as asserted by the oracle, possibly outside the known set.
	Label string
	// Best is Label when it names a known operation, OpMaintain otherwise.
	Best   Operation
	Score  float64
	Scores map[Operation]float64
	Parsed bool
}

// Selector asks the oracle which operation fits the latest reply.
type Selector struct {
	oracle Oracle
	logger *slog.Logger
}

func NewSelector(o Oracle, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{oracle: o, logger: logger}
}

// Select scores all operations for the current topic. It never fails: an
// absent oracle yields maintain_current_topic with score 0, which no
// confidence threshold above zero lets through.
func (s *Selector) Select(ctx context.Context, current storage.Topic, transcript Transcript, topics []storage.Topic) Selection {
	raw, ok := s.oracle.Call(ctx, operationSelectionPrompt, operationQuery(current, transcript, topics))
	if !ok {
		s.logger.Warn("operation selection unavailable, keeping current topic", "topic", current.Number)
		return newSelection(string(OpMaintain), map[Operation]float64{}, false)
	}
	sel := parseSelection(raw)
	if !sel.Parsed {
		s.logger.Warn("operation selection not structured, using raw label", "topic", current.Number, "label", sel.Label)
	}
	return sel
}

type selectionPayload struct {
	BestOperation    string `json:"best_operation"`
	ConfidenceScores []struct {
		Operation string      `json:"operation"`
		Score     oracle.Flex `json:"score"`
	} `json:"confidence_scores"`
}

// parseSelection decodes the oracle answer. Text that is not a valid payload
// is taken as a bare operation label with full confidence.
func parseSelection(raw string) Selection {
	body := oracle.StripFences(raw)

	var p selectionPayload
	if err := json.Unmarshal([]byte(body), &p); err == nil && strings.TrimSpace(p.BestOperation) != "" {
		scores := make(map[Operation]float64, len(Operations))
		labelScore := 0.0
		label := strings.TrimSpace(p.BestOperation)
		for _, cs := range p.ConfidenceScores {
			v, err := strconv.ParseFloat(cs.Score.String(), 64)
			if err != nil {
				continue
			}
			v = clamp01(v)
			name := strings.TrimSpace(cs.Operation)
			if op, ok := ParseOperation(name); ok {
				scores[op] = v
			}
			if name == label {
				labelScore = v
			}
		}
		sel := newSelection(label, scores, true)
		sel.Score = labelScore
		return sel
	}

	label := strings.Trim(strings.TrimSpace(body), `"'`)
	if label == "" {
		label = string(OpMaintain)
	}
	scores := map[Operation]float64{}
	if op, ok := ParseOperation(label); ok {
		scores[op] = 1
	}
	sel := newSelection(label, scores, false)
	sel.Score = 1
	return sel
}

func newSelection(label string, scores map[Operation]float64, parsed bool) Selection {
	for _, op := range Operations {
		if _, ok := scores[op]; !ok {
			scores[op] = 0
		}
	}
	best, ok := ParseOperation(label)
	if !ok {
		best = OpMaintain
	}
	return Selection{Label: label, Best: best, Score: scores[best], Scores: scores, Parsed: parsed}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
