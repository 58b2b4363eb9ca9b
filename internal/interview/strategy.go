package interview

import "github.com/kalambet/elicit/internal/storage"

// Strategy is a question-strategy hint derived from slot completion.
type Strategy string

const (
	StrategyExplore Strategy = "S1" // nothing known yet
	StrategyDeepen  Strategy = "S2" // some slots filled, below the completion threshold
	StrategyConfirm Strategy = "S3" // most slots filled
	StrategyWrapUp  Strategy = "S4" // every slot filled
)

var strategyInstructions = map[Strategy]string{
	StrategyExplore: "Nothing is known about this topic yet. Ask one open, inviting question that lets the interviewee describe it in their own words.",
	StrategyDeepen:  "Some information is known. Ask a focused follow-up about the most important missing slot, building on what was just said.",
	StrategyConfirm: "Most information is known. Briefly confirm what was gathered and ask about the remaining gaps.",
	StrategyWrapUp:  "All slots are filled. Summarise the topic in one sentence and ask whether anything is missing before moving on.",
}

// Instruction is the guidance handed to question generation.
func (s Strategy) Instruction() string {
	if inst, ok := strategyInstructions[s]; ok {
		return inst
	}
	return strategyInstructions[StrategyDeepen]
}

// Completion is the share of slots holding a non-blank value, 0 when there are none.
func Completion(slots []storage.Slot) float64 {
	if len(slots) == 0 {
		return 0
	}
	filled := 0
	for _, s := range slots {
		if s.Filled() {
			filled++
		}
	}
	return float64(filled) / float64(len(slots))
}

// StrategyFor maps a completion ratio c onto a strategy using threshold t.
func StrategyFor(c, t float64) Strategy {
	switch {
	case c <= 0:
		return StrategyExplore
	case c >= 1:
		return StrategyWrapUp
	case c < t:
		return StrategyDeepen
	default:
		return StrategyConfirm
	}
}

// SelectStrategy picks the strategy for a topic from its slots.
func SelectStrategy(slots []storage.Slot, threshold float64) Strategy {
	return StrategyFor(Completion(slots), threshold)
}
