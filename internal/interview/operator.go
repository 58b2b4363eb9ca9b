package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/elicit/internal/oracle"
	"github.com/kalambet/elicit/internal/storage"
)

// Request carries everything an operation needs about the turn.
type Request struct {
	ProjectID  int64
	Operation  Operation
	Current    storage.Topic
	Transcript Transcript
	// Topics is the project's topic list shown to the oracle when it picks
	// or invents a target.
	Topics []storage.Topic
}

// Outcome is the topic the interview continues with. Found is false only
// for a terminal end or refuse, when the project has been marked Completed.
type Outcome struct {
	Topic   storage.Topic
	Found   bool
	Created bool
}

// Operator applies operations as topic status transitions. Every mutating
// operation commits all of its writes in a single transaction.
type Operator struct {
	store    *storage.Store
	oracle   Oracle
	priority *Builder
	logger   *slog.Logger
}

func NewOperator(store *storage.Store, o Oracle, priority *Builder, logger *slog.Logger) *Operator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Operator{store: store, oracle: o, priority: priority, logger: logger}
}

func (op *Operator) Apply(ctx context.Context, req Request) (Outcome, error) {
	switch req.Operation {
	case OpMaintain:
		return Outcome{Topic: req.Current, Found: true}, nil
	case OpEnd:
		return op.advance(ctx, req, storage.TopicCompleted)
	case OpRefuse:
		return op.advance(ctx, req, storage.TopicUserInterrupted)
	case OpSwitch:
		return op.switchTo(ctx, req, storage.TopicSystemInterrupted)
	case OpRefuseAndSwitch:
		return op.switchTo(ctx, req, storage.TopicUserInterrupted)
	case OpCreate:
		return op.create(ctx, req, storage.TopicSystemInterrupted)
	case OpRefuseAndCreate:
		return op.create(ctx, req, storage.TopicUserInterrupted)
	}
	return Outcome{}, fmt.Errorf("unknown operation %q", req.Operation)
}

// leaveCurrent re-reads the current topic inside tx and moves it to status.
func leaveCurrent(ctx context.Context, tx *storage.Store, current storage.Topic, status storage.TopicStatus) error {
	live, err := tx.GetTopic(ctx, current.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: current topic %s", ErrReferenceNotFound, current.Number)
	}
	if err != nil {
		return err
	}
	if live.Status != storage.TopicOngoing {
		return fmt.Errorf("%w: current topic %s is %s, not Ongoing", ErrInvariantViolation, live.Number, live.Status)
	}
	_, err = moveTopic(ctx, tx, live, status)
	return err
}

// advance closes the current topic and opens the best ranked topic still
// waiting. Without one the interview is over and the project is completed.
func (op *Operator) advance(ctx context.Context, req Request, leave storage.TopicStatus) (Outcome, error) {
	ranking, err := op.priority.Build(ctx, req.ProjectID)
	if err != nil {
		return Outcome{}, fmt.Errorf("building priority: %w", err)
	}

	var out Outcome
	err = op.store.InTx(ctx, func(tx *storage.Store) error {
		if err := leaveCurrent(ctx, tx, req.Current, leave); err != nil {
			return err
		}
		for _, entry := range ranking {
			if entry.TopicNumber == req.Current.Number {
				continue
			}
			next, err := tx.GetTopicByNumber(ctx, req.ProjectID, entry.TopicNumber)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if next.Status != storage.TopicPending && next.Status != storage.TopicSystemInterrupted {
				continue
			}
			if out.Topic, err = moveTopic(ctx, tx, next, storage.TopicOngoing); err != nil {
				return err
			}
			out.Found = true
			return nil
		}
		return tx.SetProjectStatus(ctx, req.ProjectID, storage.ProjectCompleted)
	})
	if err != nil {
		return Outcome{}, err
	}
	if !out.Found {
		op.logger.Info("interview complete", "project", req.ProjectID, "last_topic", req.Current.Number)
	}
	return out, nil
}

type topicChoice struct {
	TopicNumber oracle.Flex `json:"topic_number"`
}

// switchTo moves the interview to the topic the oracle picks from the list.
func (op *Operator) switchTo(ctx context.Context, req Request, leave storage.TopicStatus) (Outcome, error) {
	if op.oracle == nil {
		return Outcome{}, fmt.Errorf("%w: %w", ErrReferenceNotFound, ErrOracleUnavailable)
	}
	raw, ok := op.oracle.Call(ctx, topicSelectionPrompt, topicSelectionQuery(req.Current, req.Transcript, req.Topics))
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %w", ErrReferenceNotFound, ErrOracleUnavailable)
	}
	token := raw
	var choice topicChoice
	if err := oracle.Decode(raw, &choice); err == nil {
		token = choice.TopicNumber.String()
	}
	number, ok := newResolver(req.Topics).resolve(oracle.StripFences(token))
	if !ok {
		return Outcome{}, fmt.Errorf("%w: target topic %q", ErrReferenceNotFound, strings.TrimSpace(token))
	}

	var out Outcome
	err := op.store.InTx(ctx, func(tx *storage.Store) error {
		target, err := tx.GetTopicByNumber(ctx, req.ProjectID, number)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: target topic %s", ErrReferenceNotFound, number)
		}
		if err != nil {
			return err
		}
		if target.ID == req.Current.ID {
			return fmt.Errorf("%w: topic %s is already current", ErrInvalidTransition, number)
		}
		if err := checkTransition(target.Number, target.Status, storage.TopicOngoing); err != nil {
			return err
		}
		if err := leaveCurrent(ctx, tx, req.Current, leave); err != nil {
			return err
		}
		out.Topic, err = moveTopic(ctx, tx, target, storage.TopicOngoing)
		return err
	})
	if err != nil {
		return Outcome{}, err
	}
	out.Found = true
	return out, nil
}

type generatedTopic struct {
	Content string `json:"topic_content"`
	Slots   []struct {
		Key string `json:"slot_key"`
	} `json:"slots"`
}

// create inserts an oracle-designed topic in the current section and makes it current.
func (op *Operator) create(ctx context.Context, req Request, leave storage.TopicStatus) (Outcome, error) {
	if op.oracle == nil {
		return Outcome{}, ErrOracleUnavailable
	}
	section, err := op.store.GetSection(ctx, req.Current.SectionID)
	if errors.Is(err, storage.ErrNotFound) {
		return Outcome{}, fmt.Errorf("%w: section of topic %s", ErrReferenceNotFound, req.Current.Number)
	}
	if err != nil {
		return Outcome{}, err
	}

	raw, ok := op.oracle.Call(ctx, topicGenerationPrompt, topicGenerationQuery(req.Current, section, req.Transcript, req.Topics))
	if !ok {
		return Outcome{}, fmt.Errorf("generating topic: %w", ErrOracleUnavailable)
	}
	var gen generatedTopic
	if err := oracle.Decode(raw, &gen); err != nil || strings.TrimSpace(gen.Content) == "" {
		op.logger.Warn("malformed generated topic", "error", err, "raw", raw)
		return Outcome{}, fmt.Errorf("generating topic: %w", ErrMalformedOracleOutput)
	}

	var out Outcome
	err = op.store.InTx(ctx, func(tx *storage.Store) error {
		if err := leaveCurrent(ctx, tx, req.Current, leave); err != nil {
			return err
		}
		existing, err := tx.ListTopics(ctx, req.ProjectID)
		if err != nil {
			return err
		}
		number := nextTopicNumber(req.Current, existing)
		if err := checkTransition(number, statusNone, storage.TopicOngoing); err != nil {
			return err
		}
		topic, err := tx.InsertTopic(ctx, storage.Topic{
			ProjectID: req.ProjectID,
			SectionID: section.ID,
			Number:    number,
			Content:   strings.TrimSpace(gen.Content),
			Status:    storage.TopicOngoing,
		})
		if err != nil {
			return err
		}
		k := 0
		for _, s := range gen.Slots {
			key := strings.TrimSpace(s.Key)
			if key == "" {
				continue
			}
			k++
			if _, err := tx.InsertSlot(ctx, storage.Slot{TopicID: topic.ID, Number: slotNumber(number, k), Key: key}); err != nil {
				return err
			}
		}
		out.Topic = topic
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	out.Found, out.Created = true, true
	op.logger.Info("topic created", "project", req.ProjectID, "topic", out.Topic.Number, "slots", len(gen.Slots))
	return out, nil
}

// Reseed makes the best ranked waiting topic Ongoing when no topic is. It
// is the recovery path for ErrInvariantViolation. An already Ongoing topic
// is returned unchanged.
func (op *Operator) Reseed(ctx context.Context, projectID int64) (Outcome, error) {
	ranking, err := op.priority.Build(ctx, projectID)
	if err != nil {
		return Outcome{}, fmt.Errorf("building priority: %w", err)
	}
	var out Outcome
	err = op.store.InTx(ctx, func(tx *storage.Store) error {
		ongoing, err := tx.TopicsWithStatus(ctx, projectID, storage.TopicOngoing)
		if err != nil {
			return err
		}
		if len(ongoing) > 0 {
			out = Outcome{Topic: ongoing[0], Found: true}
			return nil
		}
		for _, entry := range ranking {
			t, err := tx.GetTopicByNumber(ctx, projectID, entry.TopicNumber)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if t.Status != storage.TopicPending && t.Status != storage.TopicSystemInterrupted {
				continue
			}
			if out.Topic, err = moveTopic(ctx, tx, t, storage.TopicOngoing); err != nil {
				return err
			}
			out.Found = true
			return nil
		}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	if out.Found {
		op.logger.Info("topic seeded", "project", projectID, "topic", out.Topic.Number)
	}
	return out, nil
}
