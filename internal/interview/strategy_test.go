package interview

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kalambet/elicit/internal/storage"
)

func TestStrategyBounds(t *testing.T) {
	const threshold = 0.5
	tests := []struct {
		c    float64
		want Strategy
	}{
		{0, StrategyExplore},
		{0.01, StrategyDeepen},
		{threshold - 1e-9, StrategyDeepen},
		{threshold, StrategyConfirm},
		{0.99, StrategyConfirm},
		{1, StrategyWrapUp},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StrategyFor(tt.c, threshold), "c=%v", tt.c)
	}
}

func TestSelectStrategyFromSlots(t *testing.T) {
	v := "x"
	blank := "  "
	slots := []storage.Slot{{Value: &v}, {Value: &blank}, {}, {}}

	assert.InDelta(t, 0.25, Completion(slots), 1e-9)
	assert.Equal(t, StrategyDeepen, SelectStrategy(slots, 0.5))
	assert.Equal(t, StrategyConfirm, SelectStrategy(slots, 0.25))
	assert.Equal(t, StrategyExplore, SelectStrategy(nil, 0.5))
	assert.NotEmpty(t, StrategyWrapUp.Instruction())
}
