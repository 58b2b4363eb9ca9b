package interview

import (
	"context"
	"fmt"

	"github.com/kalambet/elicit/internal/storage"
)

// statusNone stands for a topic that does not exist yet.
const statusNone storage.TopicStatus = ""

type transition struct {
	from, to storage.TopicStatus
}

// transitions is the complete topic lifecycle. Failed is terminal and never
// produced by the scheduler.
var transitions = map[transition]bool{
	{statusNone, storage.TopicPending}: true, // framework generation
	{statusNone, storage.TopicOngoing}: true, // topic created mid-interview

	{storage.TopicPending, storage.TopicOngoing}:           true,
	{storage.TopicSystemInterrupted, storage.TopicOngoing}: true,
	{storage.TopicUserInterrupted, storage.TopicOngoing}:   true,
	{storage.TopicCompleted, storage.TopicOngoing}:         true,

	{storage.TopicOngoing, storage.TopicSystemInterrupted}: true,
	{storage.TopicOngoing, storage.TopicUserInterrupted}:   true,
	{storage.TopicOngoing, storage.TopicCompleted}:         true,
}

// CanTransition reports whether a topic may move from one status to another.
func CanTransition(from, to storage.TopicStatus) bool {
	return transitions[transition{from, to}]
}

func checkTransition(number string, from, to storage.TopicStatus) error {
	if !CanTransition(from, to) {
		if from == statusNone {
			from = "(new)"
		}
		return fmt.Errorf("%w: topic %s %s -> %s", ErrInvalidTransition, number, from, to)
	}
	return nil
}

// moveTopic validates and persists a status change of an existing topic.
func moveTopic(ctx context.Context, tx *storage.Store, t storage.Topic, to storage.TopicStatus) (storage.Topic, error) {
	if err := checkTransition(t.Number, t.Status, to); err != nil {
		return storage.Topic{}, err
	}
	if err := tx.UpdateTopicStatus(ctx, t.ID, to); err != nil {
		return storage.Topic{}, fmt.Errorf("moving topic %s to %s: %w", t.Number, to, err)
	}
	t.Status = to
	return t, nil
}
