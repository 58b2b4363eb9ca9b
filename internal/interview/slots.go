package interview

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/elicit/internal/oracle"
	"github.com/kalambet/elicit/internal/storage"
)

// FillResult counts the slot writes of one Fill.
type FillResult struct {
	Updated int
	Created int
}

// Filler merges oracle-extracted slot values into a topic.
type Filler struct {
	store  *storage.Store
	oracle Oracle
	logger *slog.Logger
}

func NewFiller(store *storage.Store, o Oracle, logger *slog.Logger) *Filler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Filler{store: store, oracle: o, logger: logger}
}

// Proposal is one slot update suggested by the oracle.
type Proposal struct {
	Number string          `json:"slot_number"`
	Key    string          `json:"slot_key"`
	Value  json.RawMessage `json:"slot_value"`
}

// value returns the proposed value as text. ok is false for the "no value"
// sentinels: null, "None" and blank strings.
func (p Proposal) value() (string, bool) {
	raw := bytes.TrimSpace(p.Value)
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" || strings.EqualFold(s, "none") {
			return "", false
		}
		return s, true
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return "", false
	}
	return compact.String(), true
}

// Fill extracts slot values for topic from the latest round of transcript
// and merges them. An unavailable or unintelligible oracle leaves the slots
// untouched.
func (f *Filler) Fill(ctx context.Context, topic storage.Topic, transcript Transcript) (FillResult, error) {
	slots, err := f.store.ListSlots(ctx, topic.ID)
	if err != nil {
		return FillResult{}, fmt.Errorf("listing slots of %s: %w", topic.Number, err)
	}
	if f.oracle == nil {
		return FillResult{}, nil
	}
	raw, ok := f.oracle.Call(ctx, slotFillingPrompt, slotFillingQuery(topic, slots, transcript))
	if !ok {
		f.logger.Warn("slot filling unavailable", "topic", topic.Number)
		return FillResult{}, nil
	}
	var proposals []Proposal
	if err := oracle.Decode(raw, &proposals); err != nil {
		f.logger.Warn("malformed slot proposals", "topic", topic.Number, "error", err, "raw", raw)
		return FillResult{}, nil
	}
	return f.Merge(ctx, topic, proposals, transcript.LatestTurnIDs())
}

// Merge applies proposals to the slots of topic in one transaction. A slot
// is written only when its value changes, so merging the same proposals
// twice is a no-op the second time.
func (f *Filler) Merge(ctx context.Context, topic storage.Topic, proposals []Proposal, turnIDs []int64) (FillResult, error) {
	var res FillResult
	err := f.store.InTx(ctx, func(tx *storage.Store) error {
		res = FillResult{}
		slots, err := tx.ListSlots(ctx, topic.ID)
		if err != nil {
			return err
		}
		for _, p := range proposals {
			value, ok := p.value()
			if !ok {
				continue
			}
			idx := findSlot(slots, strings.TrimSpace(p.Number), strings.TrimSpace(p.Key))
			if idx >= 0 {
				sl := &slots[idx]
				if sl.Value != nil && *sl.Value == value {
					continue
				}
				evidence := MergeEvidence(sl.Evidence, turnIDs)
				if err := tx.UpdateSlot(ctx, sl.ID, &value, evidence); err != nil {
					return fmt.Errorf("updating slot %s: %w", sl.Number, err)
				}
				sl.Value, sl.Evidence = &value, evidence
				res.Updated++
				continue
			}

			key := strings.TrimSpace(p.Key)
			if key == "" {
				continue
			}
			number := strings.TrimSpace(p.Number)
			if number == "" {
				number = nextSlotNumber(topic.Number, slots)
			}
			created, err := tx.InsertSlot(ctx, storage.Slot{
				TopicID:  topic.ID,
				Number:   number,
				Key:      key,
				Value:    &value,
				Evidence: MergeEvidence(nil, turnIDs),
			})
			if err != nil {
				return fmt.Errorf("creating slot %s: %w", number, err)
			}
			slots = append(slots, created)
			res.Created++
		}
		return nil
	})
	if err != nil {
		return FillResult{}, err
	}
	if res.Updated+res.Created > 0 {
		f.logger.Debug("slots merged", "topic", topic.Number, "updated", res.Updated, "created", res.Created)
	}
	return res, nil
}

// findSlot locates a slot by number. Only a proposal without a number is
// matched by key.
func findSlot(slots []storage.Slot, number, key string) int {
	if number != "" {
		for i, s := range slots {
			if s.Number == number {
				return i
			}
		}
		return -1
	}
	if key != "" {
		for i, s := range slots {
			if strings.EqualFold(s.Key, key) {
				return i
			}
		}
	}
	return -1
}

func nextSlotNumber(topicNumber string, slots []storage.Slot) string {
	for k := len(slots) + 1; ; k++ {
		n := slotNumber(topicNumber, k)
		if findSlot(slots, n, "") < 0 {
			return n
		}
	}
}

// MergeEvidence appends ids to existing, skipping zero ids and any id
// already present. Existing entries keep their order.
func MergeEvidence(existing, ids []int64) []int64 {
	out := make([]int64, 0, len(existing)+len(ids))
	seen := make(map[int64]bool, len(existing)+len(ids))
	for _, group := range [][]int64{existing, ids} {
		for _, id := range group {
			if id == 0 || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
