package interview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/elicit/internal/oracle"
	"github.com/kalambet/elicit/internal/storage"
)

const frameworkPrompt = `You design the plan of a requirements interview. From the project requirements, derive sections that group related concerns, topics within each section that the interviewer must cover, and slots per topic naming the facts to collect. Order sections and topics the way the interview should proceed.

Output ONLY a JSON array, no prose or markdown:
[{"section_number": "section-1", "section_content": "<section title>", "topics": [{"topic_number": "topic-1-1", "topic_content": "<one sentence>", "slots": [{"slot_number": "slot-1-1-1", "slot_key": "<attribute name>"}]}]}]`

type frameworkSection struct {
	Content string `json:"section_content"`
	Topics  []struct {
		Content string `json:"topic_content"`
		Slots   []struct {
			Key string `json:"slot_key"`
		} `json:"slots"`
	} `json:"topics"`
}

// Framework is the plan of an interview: sections, their topics and each topic's slots.
type Framework struct {
	Sections []storage.Section
	Topics   []storage.Topic
	Slots    map[int64][]storage.Slot
}

// LoadFramework reads the current framework of a project.
func LoadFramework(ctx context.Context, store *storage.Store, projectID int64) (Framework, error) {
	var fw Framework
	var err error
	if fw.Sections, err = store.ListSections(ctx, projectID); err != nil {
		return Framework{}, err
	}
	if fw.Topics, err = store.ListTopics(ctx, projectID); err != nil {
		return Framework{}, err
	}
	if fw.Slots, err = store.ListProjectSlots(ctx, projectID); err != nil {
		return Framework{}, err
	}
	return fw, nil
}

// Generator asks the oracle for an interview plan and stores it.
type Generator struct {
	store  *storage.Store
	oracle Oracle
	logger *slog.Logger
}

func NewGenerator(store *storage.Store, o Oracle, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{store: store, oracle: o, logger: logger}
}

// Generate replaces the framework of a pending project with a freshly
// generated one. Numbers are derived from list positions; the ones the
// oracle proposes are ignored.
func (g *Generator) Generate(ctx context.Context, projectID int64) (Framework, error) {
	project, err := g.store.GetProject(ctx, projectID)
	if err != nil {
		return Framework{}, err
	}
	if project.Status != storage.ProjectPending {
		return Framework{}, fmt.Errorf("%w: project %d is %s, framework can only change before the interview starts",
			ErrInvalidTransition, projectID, project.Status)
	}
	if g.oracle == nil {
		return Framework{}, ErrOracleUnavailable
	}

	raw, ok := g.oracle.Call(ctx, frameworkPrompt, "[Requirements]\n"+project.Requirements)
	if !ok {
		return Framework{}, fmt.Errorf("generating framework: %w", ErrOracleUnavailable)
	}
	var sections []frameworkSection
	if err := oracle.Decode(raw, &sections); err != nil {
		g.logger.Warn("malformed framework", "project", projectID, "error", err, "raw", raw)
		return Framework{}, fmt.Errorf("generating framework: %w", ErrMalformedOracleOutput)
	}
	if countTopics(sections) == 0 {
		return Framework{}, fmt.Errorf("generating framework: %w: no topics", ErrMalformedOracleOutput)
	}

	err = g.store.InTx(ctx, func(tx *storage.Store) error {
		if err := tx.DeleteFramework(ctx, projectID); err != nil {
			return err
		}
		return insertFramework(ctx, tx, projectID, sections)
	})
	if err != nil {
		return Framework{}, fmt.Errorf("storing framework: %w", err)
	}

	fw, err := LoadFramework(ctx, g.store, projectID)
	if err != nil {
		return Framework{}, err
	}
	g.logger.Info("framework generated", "project", projectID, "sections", len(fw.Sections), "topics", len(fw.Topics))
	return fw, nil
}

func countTopics(sections []frameworkSection) int {
	n := 0
	for _, s := range sections {
		n += len(s.Topics)
	}
	return n
}

func insertFramework(ctx context.Context, tx *storage.Store, projectID int64, sections []frameworkSection) error {
	for i, s := range sections {
		if len(s.Topics) == 0 {
			continue
		}
		sec, err := tx.InsertSection(ctx, storage.Section{
			ProjectID: projectID,
			Number:    fmt.Sprintf("section-%d", i+1),
			Content:   strings.TrimSpace(s.Content),
		})
		if err != nil {
			return err
		}
		for j, t := range s.Topics {
			number := fmt.Sprintf("topic-%d-%d", i+1, j+1)
			if err := checkTransition(number, statusNone, storage.TopicPending); err != nil {
				return err
			}
			topic, err := tx.InsertTopic(ctx, storage.Topic{
				ProjectID: projectID,
				SectionID: sec.ID,
				Number:    number,
				Content:   strings.TrimSpace(t.Content),
				Status:    storage.TopicPending,
				Necessity: true,
			})
			if err != nil {
				return err
			}
			for k, sl := range t.Slots {
				_, err := tx.InsertSlot(ctx, storage.Slot{
					TopicID:   topic.ID,
					Number:    slotNumber(number, k+1),
					Key:       strings.TrimSpace(sl.Key),
					Necessity: true,
				})
				if err != nil {
					return err
				}
			}
		}
	}
	return nil
}
