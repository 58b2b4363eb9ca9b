package interview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/elicit/internal/oracle"
	"github.com/kalambet/elicit/internal/storage"
)

// Prefiller seeds slot values from the requirements a project was created
// with, before the first question is asked.
type Prefiller struct {
	store  *storage.Store
	oracle Oracle
	filler *Filler
	logger *slog.Logger
}

func NewPrefiller(store *storage.Store, o Oracle, filler *Filler, logger *slog.Logger) *Prefiller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prefiller{store: store, oracle: o, filler: filler, logger: logger}
}

type prefillProposal struct {
	TopicNumber oracle.Flex `json:"topic_number"`
	Proposal
}

// Prefill fills existing slots the requirements answer. It never creates
// slots, and proposals naming unknown topics or slots are dropped. Like
// Fill, an unavailable or unintelligible oracle leaves the slots untouched.
func (p *Prefiller) Prefill(ctx context.Context, projectID int64) (FillResult, error) {
	project, err := p.store.GetProject(ctx, projectID)
	if err != nil {
		return FillResult{}, err
	}
	if strings.TrimSpace(project.Requirements) == "" || p.oracle == nil {
		return FillResult{}, nil
	}
	topics, err := p.store.ListTopics(ctx, projectID)
	if err != nil {
		return FillResult{}, fmt.Errorf("listing topics: %w", err)
	}
	if len(topics) == 0 {
		return FillResult{}, nil
	}
	slots, err := p.store.ListProjectSlots(ctx, projectID)
	if err != nil {
		return FillResult{}, fmt.Errorf("listing slots: %w", err)
	}

	raw, ok := p.oracle.Call(ctx, prefillPrompt, prefillQuery(project.Requirements, topics, slots))
	if !ok {
		p.logger.Warn("prefill unavailable", "project", projectID)
		return FillResult{}, nil
	}
	var proposals []prefillProposal
	if err := oracle.Decode(raw, &proposals); err != nil {
		p.logger.Warn("malformed prefill proposals", "project", projectID, "error", err, "raw", raw)
		return FillResult{}, nil
	}

	byTopic := make(map[string][]Proposal)
	for _, pp := range proposals {
		number := strings.TrimSpace(pp.TopicNumber.String())
		byTopic[number] = append(byTopic[number], pp.Proposal)
	}

	var total FillResult
	for _, t := range topics {
		var known []Proposal
		for _, prop := range byTopic[t.Number] {
			if n := strings.TrimSpace(prop.Number); n != "" && findSlot(slots[t.ID], n, "") >= 0 {
				known = append(known, prop)
			}
		}
		if len(known) == 0 {
			continue
		}
		res, err := p.filler.Merge(ctx, t, known, nil)
		if err != nil {
			return total, fmt.Errorf("prefilling %s: %w", t.Number, err)
		}
		total.Updated += res.Updated
		total.Created += res.Created
	}
	p.logger.Info("slots prefilled", "project", projectID, "updated", total.Updated)
	return total, nil
}
