package interview

import (
	"context"
	"fmt"
	"strings"

	"github.com/kalambet/elicit/internal/storage"
)

// SlotEdit is a manual change to a slot. Nil fields are left unchanged; an
// empty Value clears the slot.
type SlotEdit struct {
	Key       *string `json:"key,omitempty"`
	Value     *string `json:"value,omitempty"`
	Necessity *bool   `json:"necessity,omitempty"`
}

// EditTopicContent rewrites the description of a topic. Status and number
// only change through scheduling operations.
func EditTopicContent(ctx context.Context, store *storage.Store, projectID int64, number, content string) (storage.Topic, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return storage.Topic{}, fmt.Errorf("%w: topic content is required", ErrInvalidEdit)
	}
	var out storage.Topic
	err := store.InTx(ctx, func(tx *storage.Store) error {
		t, err := tx.GetTopicByNumber(ctx, projectID, number)
		if err != nil {
			return err
		}
		if err := tx.UpdateTopicContent(ctx, t.ID, content); err != nil {
			return err
		}
		out, err = tx.GetTopic(ctx, t.ID)
		return err
	})
	return out, err
}

// AddSlot appends a slot to a topic under the next free slot number.
func AddSlot(ctx context.Context, store *storage.Store, projectID int64, topicNumber string, key string, value *string, necessity bool) (storage.Slot, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return storage.Slot{}, fmt.Errorf("%w: slot key is required", ErrInvalidEdit)
	}
	var out storage.Slot
	err := store.InTx(ctx, func(tx *storage.Store) error {
		t, err := tx.GetTopicByNumber(ctx, projectID, topicNumber)
		if err != nil {
			return err
		}
		slots, err := tx.ListSlots(ctx, t.ID)
		if err != nil {
			return err
		}
		out, err = tx.InsertSlot(ctx, storage.Slot{
			TopicID:   t.ID,
			Number:    nextSlotNumber(t.Number, slots),
			Key:       key,
			Value:     cleanValue(value),
			Necessity: necessity,
		})
		return err
	})
	return out, err
}

// EditSlot applies e to the slot numbered slotNumber of a topic. Evidence
// is kept as is; a manual value cites no messages.
func EditSlot(ctx context.Context, store *storage.Store, projectID int64, topicNumber, slotNumber string, e SlotEdit) (storage.Slot, error) {
	if e.Key != nil && strings.TrimSpace(*e.Key) == "" {
		return storage.Slot{}, fmt.Errorf("%w: slot key must not be blank", ErrInvalidEdit)
	}
	var out storage.Slot
	err := store.InTx(ctx, func(tx *storage.Store) error {
		t, err := tx.GetTopicByNumber(ctx, projectID, topicNumber)
		if err != nil {
			return err
		}
		slots, err := tx.ListSlots(ctx, t.ID)
		if err != nil {
			return err
		}
		idx := findSlot(slots, slotNumber, "")
		if idx < 0 {
			return fmt.Errorf("slot %s of %s: %w", slotNumber, topicNumber, storage.ErrNotFound)
		}
		sl := slots[idx]
		if e.Key != nil || e.Necessity != nil {
			if e.Key != nil {
				sl.Key = strings.TrimSpace(*e.Key)
			}
			if e.Necessity != nil {
				sl.Necessity = *e.Necessity
			}
			if err := tx.UpdateSlotDefinition(ctx, sl.ID, sl.Key, sl.Necessity); err != nil {
				return err
			}
		}
		if e.Value != nil {
			sl.Value = cleanValue(e.Value)
			if err := tx.UpdateSlot(ctx, sl.ID, sl.Value, sl.Evidence); err != nil {
				return err
			}
		}
		out = sl
		return nil
	})
	return out, err
}

func cleanValue(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}
