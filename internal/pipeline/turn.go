// Package pipeline drives interviews turn by turn. All work on a project,
// including ranking rebuilds from background jobs, runs under that
// project's lock.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/elicit/internal/cache"
	"github.com/kalambet/elicit/internal/interview"
	"github.com/kalambet/elicit/internal/storage"
)

// Job types queued by the Interviewer.
const (
	// JobBuildPriority rebuilds a project's ranking.
	JobBuildPriority = "build_priority"
	// JobPrefillSlots fills slots from the project's written requirements.
	JobPrefillSlots = "prefill_slots"
)

var (
	// ErrNotStarted means a reply arrived before the interview was started.
	ErrNotStarted = errors.New("interview not started")
	// ErrNoFramework means the project has no topics to interview on.
	ErrNoFramework = errors.New("project has no framework")
)

// Options tunes an Interviewer.
type Options struct {
	ConfidenceThreshold float64
	CompletionThreshold float64
	Logger              *slog.Logger
}

// TurnResult is what the interviewee sees after a turn, plus the scheduling
// decision behind it.
type TurnResult struct {
	Topic     storage.Topic       `json:"topic"`
	Question  string              `json:"question"`
	Operation interview.Operation `json:"operation"`
	Label     string              `json:"label,omitempty"`
	Score     float64             `json:"score"`
	Applied   bool                `json:"applied"`
	Strategy  interview.Strategy  `json:"strategy"`
	Note      string              `json:"note,omitempty"`
	Complete  bool                `json:"complete"`
}

// Interviewer runs the scheduling engine against the store.
type Interviewer struct {
	store      *storage.Store
	priority   *interview.Builder
	selector   *interview.Selector
	operator   *interview.Operator
	filler     *interview.Filler
	detector   *interview.Detector
	questioner *interview.Questioner
	generator  *interview.Generator
	prefiller  *interview.Prefiller
	locks      *Locker
	logger     *slog.Logger

	mu         sync.RWMutex
	confidence float64
	completion float64
}

func New(store *storage.Store, o interview.Oracle, c cache.PriorityCache, opts Options) *Interviewer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	builder := interview.NewBuilder(store, o, c, logger)
	filler := interview.NewFiller(store, o, logger)
	return &Interviewer{
		store:      store,
		priority:   builder,
		selector:   interview.NewSelector(o, logger),
		operator:   interview.NewOperator(store, o, builder, logger),
		filler:     filler,
		detector:   interview.NewDetector(o, logger),
		questioner: interview.NewQuestioner(o, logger),
		generator:  interview.NewGenerator(store, o, logger),
		prefiller:  interview.NewPrefiller(store, o, filler, logger),
		locks:      NewLocker(),
		logger:     logger,
		confidence: opts.ConfidenceThreshold,
		completion: opts.CompletionThreshold,
	}
}

// SetThresholds replaces the scheduling thresholds for subsequent turns.
func (iv *Interviewer) SetThresholds(confidence, completion float64) {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	if confidence != iv.confidence || completion != iv.completion {
		iv.logger.Info("scheduling thresholds updated", "confidence", confidence, "completion", completion)
	}
	iv.confidence, iv.completion = confidence, completion
}

func (iv *Interviewer) Thresholds() (confidence, completion float64) {
	iv.mu.RLock()
	defer iv.mu.RUnlock()
	return iv.confidence, iv.completion
}

// GenerateFramework creates the interview plan of a pending project and
// queues a slot prefill and a ranking rebuild for it.
func (iv *Interviewer) GenerateFramework(ctx context.Context, projectID int64) (interview.Framework, error) {
	unlock := iv.locks.Lock(projectID)
	defer unlock()

	fw, err := iv.generator.Generate(ctx, projectID)
	if err != nil {
		return interview.Framework{}, err
	}
	iv.priority.Invalidate(ctx, projectID)
	for _, jobType := range []string{JobPrefillSlots, JobBuildPriority} {
		if err := iv.enqueue(ctx, jobType, projectID); err != nil {
			iv.logger.Warn("queueing job failed", "project", projectID, "type", jobType, "error", err)
		}
	}
	return fw, nil
}

func (iv *Interviewer) enqueue(ctx context.Context, jobType string, projectID int64) error {
	payload, err := json.Marshal(projectPayload{ProjectID: projectID})
	if err != nil {
		return err
	}
	return iv.store.EnqueueJob(ctx, storage.Job{
		ID:          uuid.New().String(),
		Type:        jobType,
		PayloadJSON: string(payload),
	})
}

type projectPayload struct {
	ProjectID int64 `json:"project_id"`
}

func parsePayload(payload string) (projectPayload, error) {
	var p projectPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return p, fmt.Errorf("parsing payload: %w", err)
	}
	return p, nil
}

// DeleteProject removes a project with everything it owns and drops its
// cached ranking.
func (iv *Interviewer) DeleteProject(ctx context.Context, projectID int64) error {
	unlock := iv.locks.Lock(projectID)
	defer unlock()
	if err := iv.store.DeleteProject(ctx, projectID); err != nil {
		return err
	}
	iv.priority.Invalidate(ctx, projectID)
	iv.logger.Info("project deleted", "project", projectID)
	return nil
}

// Priority returns the current topic ranking of a project.
func (iv *Interviewer) Priority(ctx context.Context, projectID int64) ([]storage.PriorityEntry, error) {
	unlock := iv.locks.Lock(projectID)
	defer unlock()
	if _, err := iv.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return iv.priority.Build(ctx, projectID)
}

// RunPriorityJob rebuilds the ranking named by a build_priority job payload.
func (iv *Interviewer) RunPriorityJob(ctx context.Context, payload string) error {
	p, err := parsePayload(payload)
	if err != nil {
		return err
	}
	_, err = iv.Priority(ctx, p.ProjectID)
	if errors.Is(err, storage.ErrNotFound) {
		iv.logger.Info("project gone, dropping priority job", "project", p.ProjectID)
		return nil
	}
	return err
}

// RunPrefillJob fills slots from the requirements of the project named by a
// prefill_slots job payload. Once the interview has started, replies are the
// better source and the job is dropped.
func (iv *Interviewer) RunPrefillJob(ctx context.Context, payload string) error {
	p, err := parsePayload(payload)
	if err != nil {
		return err
	}
	unlock := iv.locks.Lock(p.ProjectID)
	defer unlock()

	project, err := iv.store.GetProject(ctx, p.ProjectID)
	if errors.Is(err, storage.ErrNotFound) {
		iv.logger.Info("project gone, dropping prefill job", "project", p.ProjectID)
		return nil
	}
	if err != nil {
		return err
	}
	if project.Status != storage.ProjectPending {
		iv.logger.Info("interview already started, dropping prefill job", "project", p.ProjectID)
		return nil
	}
	_, err = iv.prefiller.Prefill(ctx, p.ProjectID)
	return err
}

// EditTopic rewrites the content of a topic. The next ranking request sees
// the new content.
func (iv *Interviewer) EditTopic(ctx context.Context, projectID int64, number, content string) (storage.Topic, error) {
	unlock := iv.locks.Lock(projectID)
	defer unlock()
	if err := iv.editable(ctx, projectID); err != nil {
		return storage.Topic{}, err
	}
	return interview.EditTopicContent(ctx, iv.store, projectID, number, content)
}

// AddSlot appends a slot to a topic of the project.
func (iv *Interviewer) AddSlot(ctx context.Context, projectID int64, topicNumber, key string, value *string, necessity bool) (storage.Slot, error) {
	unlock := iv.locks.Lock(projectID)
	defer unlock()
	if err := iv.editable(ctx, projectID); err != nil {
		return storage.Slot{}, err
	}
	return interview.AddSlot(ctx, iv.store, projectID, topicNumber, key, value, necessity)
}

// EditSlot changes the key, value or necessity of a slot.
func (iv *Interviewer) EditSlot(ctx context.Context, projectID int64, topicNumber, slotNumber string, e interview.SlotEdit) (storage.Slot, error) {
	unlock := iv.locks.Lock(projectID)
	defer unlock()
	if err := iv.editable(ctx, projectID); err != nil {
		return storage.Slot{}, err
	}
	return interview.EditSlot(ctx, iv.store, projectID, topicNumber, slotNumber, e)
}

// editable rejects plan edits on a finished interview.
func (iv *Interviewer) editable(ctx context.Context, projectID int64) error {
	project, err := iv.store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if project.Status == storage.ProjectCompleted {
		return interview.ErrInterviewComplete
	}
	return nil
}

// Start opens the interview of a project and returns the first question.
// Starting an interview that is already running returns the last question
// asked.
func (iv *Interviewer) Start(ctx context.Context, projectID int64) (TurnResult, error) {
	unlock := iv.locks.Lock(projectID)
	defer unlock()

	project, err := iv.store.GetProject(ctx, projectID)
	if err != nil {
		return TurnResult{}, err
	}
	if project.Status == storage.ProjectCompleted {
		return TurnResult{}, interview.ErrInterviewComplete
	}
	topics, err := iv.store.ListTopics(ctx, projectID)
	if err != nil {
		return TurnResult{}, err
	}
	if len(topics) == 0 {
		return TurnResult{}, ErrNoFramework
	}

	out, err := iv.operator.Reseed(ctx, projectID)
	if err != nil {
		return TurnResult{}, err
	}
	if !out.Found {
		if err := iv.store.SetProjectStatus(ctx, projectID, storage.ProjectCompleted); err != nil {
			return TurnResult{}, err
		}
		return TurnResult{}, interview.ErrInterviewComplete
	}
	current := out.Topic
	_, completion := iv.Thresholds()
	slots, err := iv.store.ListSlots(ctx, current.ID)
	if err != nil {
		return TurnResult{}, err
	}
	result := TurnResult{
		Topic:     current,
		Operation: interview.OpMaintain,
		Strategy:  interview.SelectStrategy(slots, completion),
	}

	if project.Status == storage.ProjectOngoing {
		last, err := iv.store.LastMessage(ctx, projectID, storage.RoleInterviewer)
		if err == nil && last.TopicID == current.ID {
			result.Question = last.Content
			return result, nil
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return TurnResult{}, err
		}
	} else if err := iv.store.SetProjectStatus(ctx, projectID, storage.ProjectOngoing); err != nil {
		return TurnResult{}, err
	}

	transcript, err := iv.transcript(ctx, current.ID)
	if err != nil {
		return TurnResult{}, err
	}
	result.Question = iv.questioner.Ask(ctx, interview.Prompt{
		Topic:      current,
		Slots:      slots,
		Strategy:   result.Strategy,
		Transcript: transcript,
	})
	if err := iv.say(ctx, current, result.Question); err != nil {
		return TurnResult{}, err
	}
	iv.logger.Info("interview started", "project", projectID, "topic", current.Number)
	return result, nil
}

// Reply runs one turn: it records the reply, fills slots, decides and
// applies the next scheduling operation and asks the next question. Each
// step commits on its own; a failing step leaves earlier steps in place.
func (iv *Interviewer) Reply(ctx context.Context, projectID int64, text string) (TurnResult, error) {
	unlock := iv.locks.Lock(projectID)
	defer unlock()
	start := time.Now()

	project, err := iv.store.GetProject(ctx, projectID)
	if err != nil {
		return TurnResult{}, err
	}
	switch project.Status {
	case storage.ProjectCompleted:
		return TurnResult{}, interview.ErrInterviewComplete
	case storage.ProjectPending:
		return TurnResult{}, ErrNotStarted
	}

	current, err := iv.currentTopic(ctx, projectID)
	if err != nil {
		return TurnResult{}, err
	}
	if _, err := iv.store.AppendMessage(ctx, storage.Message{
		ProjectID: projectID,
		TopicID:   current.ID,
		Role:      storage.RoleInterviewee,
		Content:   text,
	}); err != nil {
		return TurnResult{}, fmt.Errorf("storing reply: %w", err)
	}

	transcript, err := iv.transcript(ctx, current.ID)
	if err != nil {
		return TurnResult{}, err
	}
	topics, err := iv.store.ListTopics(ctx, projectID)
	if err != nil {
		return TurnResult{}, err
	}

	for _, t := range iv.detector.Affected(ctx, current, transcript, topics) {
		if _, err := iv.filler.Fill(ctx, t, transcript); err != nil {
			return TurnResult{}, fmt.Errorf("filling slots of %s: %w", t.Number, err)
		}
	}

	sel := iv.selector.Select(ctx, current, transcript, topics)
	confidence, completion := iv.Thresholds()
	result := TurnResult{
		Topic:     current,
		Operation: sel.Best,
		Label:     sel.Label,
		Score:     sel.Score,
		Applied:   sel.Score >= confidence,
	}

	next := current
	if result.Applied {
		out, err := iv.operator.Apply(ctx, interview.Request{
			ProjectID:  projectID,
			Operation:  sel.Best,
			Current:    current,
			Transcript: transcript,
			Topics:     topics,
		})
		if err != nil {
			return TurnResult{}, fmt.Errorf("applying %s: %w", sel.Best, err)
		}
		if !out.Found {
			result.Complete = true
			result.Question = interview.ClosingMessage
			if err := iv.say(ctx, current, result.Question); err != nil {
				return TurnResult{}, err
			}
			iv.logTurn(projectID, result, start)
			return result, nil
		}
		next = out.Topic
		result.Note = interview.SchedulingNote(sel.Best, true, current, next)
	} else {
		result.Note = interview.SchedulingNote(sel.Best, false, current, current)
	}
	result.Topic = next

	slots, err := iv.store.ListSlots(ctx, next.ID)
	if err != nil {
		return TurnResult{}, err
	}
	result.Strategy = interview.SelectStrategy(slots, completion)
	if next.ID != current.ID {
		if transcript, err = iv.transcript(ctx, next.ID); err != nil {
			return TurnResult{}, err
		}
	}
	result.Question = iv.questioner.Ask(ctx, interview.Prompt{
		Topic:      next,
		Slots:      slots,
		Strategy:   result.Strategy,
		Note:       result.Note,
		Transcript: transcript,
	})
	if err := iv.say(ctx, next, result.Question); err != nil {
		return TurnResult{}, err
	}
	iv.logTurn(projectID, result, start)
	return result, nil
}

func (iv *Interviewer) logTurn(projectID int64, r TurnResult, start time.Time) {
	iv.logger.Info("turn complete",
		"project", projectID,
		"operation", r.Operation,
		"score", r.Score,
		"applied", r.Applied,
		"topic", r.Topic.Number,
		"complete", r.Complete,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (iv *Interviewer) currentTopic(ctx context.Context, projectID int64) (storage.Topic, error) {
	ongoing, err := iv.store.TopicsWithStatus(ctx, projectID, storage.TopicOngoing)
	if err != nil {
		return storage.Topic{}, err
	}
	switch len(ongoing) {
	case 0:
		return storage.Topic{}, fmt.Errorf("%w: project %d has no ongoing topic", interview.ErrInvariantViolation, projectID)
	case 1:
		return ongoing[0], nil
	}
	return storage.Topic{}, fmt.Errorf("%w: project %d has %d ongoing topics", interview.ErrInvariantViolation, projectID, len(ongoing))
}

func (iv *Interviewer) transcript(ctx context.Context, topicID int64) (interview.Transcript, error) {
	msgs, err := iv.store.ListTopicMessages(ctx, topicID)
	if err != nil {
		return nil, fmt.Errorf("loading transcript: %w", err)
	}
	return interview.BuildTranscript(msgs), nil
}

func (iv *Interviewer) say(ctx context.Context, topic storage.Topic, text string) error {
	_, err := iv.store.AppendMessage(ctx, storage.Message{
		ProjectID: topic.ProjectID,
		TopicID:   topic.ID,
		Role:      storage.RoleInterviewer,
		Content:   text,
	})
	if err != nil {
		return fmt.Errorf("storing question: %w", err)
	}
	return nil
}
