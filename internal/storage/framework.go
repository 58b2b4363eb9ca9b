package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// --- Sections ---

func (s *Store) InsertSection(ctx context.Context, sec Section) (Section, error) {
	res, err := s.exec(ctx, sq.Insert("sections").
		Columns("project_id", "section_number", "content").
		Values(sec.ProjectID, sec.Number, sec.Content))
	if err != nil {
		return Section{}, fmt.Errorf("inserting section %s: %w", sec.Number, err)
	}
	if sec.ID, err = res.LastInsertId(); err != nil {
		return Section{}, err
	}
	return sec, nil
}

func (s *Store) ListSections(ctx context.Context, projectID int64) ([]Section, error) {
	rows, err := s.query(ctx, sq.Select("id", "project_id", "section_number", "content").
		From("sections").
		Where(sq.Eq{"project_id": projectID}).
		OrderBy("id ASC"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sections []Section
	for rows.Next() {
		var sec Section
		if err := rows.Scan(&sec.ID, &sec.ProjectID, &sec.Number, &sec.Content); err != nil {
			return nil, err
		}
		sections = append(sections, sec)
	}
	return sections, rows.Err()
}

func (s *Store) GetSection(ctx context.Context, id int64) (Section, error) {
	row, err := s.queryRow(ctx, sq.Select("id", "project_id", "section_number", "content").
		From("sections").
		Where(sq.Eq{"id": id}))
	if err != nil {
		return Section{}, err
	}
	var sec Section
	err = row.Scan(&sec.ID, &sec.ProjectID, &sec.Number, &sec.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return Section{}, ErrNotFound
	}
	return sec, err
}

// DeleteFramework removes every section, topic, slot and topic-bound message of a project.
func (s *Store) DeleteFramework(ctx context.Context, projectID int64) error {
	return s.InTx(ctx, func(tx *Store) error {
		inProject := sq.Expr("topic_id IN (SELECT id FROM topics WHERE project_id = ?)", projectID)
		steps := []struct {
			name string
			b    sq.Sqlizer
		}{
			{"slots", sq.Delete("slots").Where(inProject)},
			{"messages", sq.Delete("messages").Where(inProject)},
			{"topics", sq.Delete("topics").Where(sq.Eq{"project_id": projectID})},
			{"sections", sq.Delete("sections").Where(sq.Eq{"project_id": projectID})},
		}
		for _, st := range steps {
			if _, err := tx.exec(ctx, st.b); err != nil {
				return fmt.Errorf("deleting %s: %w", st.name, err)
			}
		}
		return nil
	})
}

// --- Topics ---

func topicSelect() sq.SelectBuilder {
	return sq.Select("t.id", "t.project_id", "t.section_id", "s.section_number",
		"t.topic_number", "t.content", "t.status", "t.necessity").
		From("topics t").
		Join("sections s ON s.id = t.section_id")
}

func (s *Store) InsertTopic(ctx context.Context, t Topic) (Topic, error) {
	if !t.Status.Valid() {
		return Topic{}, fmt.Errorf("inserting topic %s: invalid status %q", t.Number, t.Status)
	}
	res, err := s.exec(ctx, sq.Insert("topics").
		Columns("project_id", "section_id", "topic_number", "content", "status", "necessity").
		Values(t.ProjectID, t.SectionID, t.Number, t.Content, string(t.Status), boolToInt(t.Necessity)))
	if err != nil {
		return Topic{}, fmt.Errorf("inserting topic %s: %w", t.Number, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Topic{}, err
	}
	return s.GetTopic(ctx, id)
}

func (s *Store) GetTopic(ctx context.Context, id int64) (Topic, error) {
	row, err := s.queryRow(ctx, topicSelect().Where(sq.Eq{"t.id": id}))
	if err != nil {
		return Topic{}, err
	}
	return scanTopic(row)
}

func (s *Store) GetTopicByNumber(ctx context.Context, projectID int64, number string) (Topic, error) {
	row, err := s.queryRow(ctx, topicSelect().Where(sq.Eq{"t.project_id": projectID, "t.topic_number": number}))
	if err != nil {
		return Topic{}, err
	}
	return scanTopic(row)
}

// ListTopics returns the topics of a project in creation order.
func (s *Store) ListTopics(ctx context.Context, projectID int64) ([]Topic, error) {
	return s.listTopics(ctx, topicSelect().Where(sq.Eq{"t.project_id": projectID}).OrderBy("t.id ASC"))
}

// TopicsWithStatus returns the topics of a project currently in status, in creation order.
func (s *Store) TopicsWithStatus(ctx context.Context, projectID int64, status TopicStatus) ([]Topic, error) {
	return s.listTopics(ctx, topicSelect().
		Where(sq.Eq{"t.project_id": projectID, "t.status": string(status)}).
		OrderBy("t.id ASC"))
}

func (s *Store) listTopics(ctx context.Context, b sq.SelectBuilder) ([]Topic, error) {
	rows, err := s.query(ctx, b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var topics []Topic
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

func (s *Store) UpdateTopicStatus(ctx context.Context, id int64, status TopicStatus) error {
	if !status.Valid() {
		return fmt.Errorf("updating topic %d: invalid status %q", id, status)
	}
	res, err := s.exec(ctx, sq.Update("topics").Set("status", string(status)).Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("updating topic status: %w", err)
	}
	return expectOne(res)
}

func (s *Store) UpdateTopicContent(ctx context.Context, id int64, content string) error {
	res, err := s.exec(ctx, sq.Update("topics").Set("content", content).Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("updating topic content: %w", err)
	}
	return expectOne(res)
}

func scanTopic(r rowScanner) (Topic, error) {
	var t Topic
	var status string
	var necessity int
	err := r.Scan(&t.ID, &t.ProjectID, &t.SectionID, &t.SectionNumber, &t.Number, &t.Content, &status, &necessity)
	if errors.Is(err, sql.ErrNoRows) {
		return Topic{}, ErrNotFound
	}
	if err != nil {
		return Topic{}, err
	}
	t.Status = TopicStatus(status)
	t.Necessity = necessity != 0
	return t, nil
}

// --- Slots ---

var slotColumns = []string{"id", "topic_id", "slot_number", "slot_key", "slot_value", "necessity", "evidence"}

func (s *Store) InsertSlot(ctx context.Context, sl Slot) (Slot, error) {
	evidence, err := encodeEvidence(sl.Evidence)
	if err != nil {
		return Slot{}, err
	}
	res, err := s.exec(ctx, sq.Insert("slots").
		Columns("topic_id", "slot_number", "slot_key", "slot_value", "necessity", "evidence").
		Values(sl.TopicID, sl.Number, sl.Key, nullString(sl.Value), boolToInt(sl.Necessity), evidence))
	if err != nil {
		return Slot{}, fmt.Errorf("inserting slot %s: %w", sl.Number, err)
	}
	if sl.ID, err = res.LastInsertId(); err != nil {
		return Slot{}, err
	}
	return sl, nil
}

// ListSlots returns the slots of a topic in creation order.
func (s *Store) ListSlots(ctx context.Context, topicID int64) ([]Slot, error) {
	return s.listSlots(ctx, sq.Select(slotColumns...).From("slots").
		Where(sq.Eq{"topic_id": topicID}).
		OrderBy("id ASC"))
}

// ListProjectSlots returns every slot of a project grouped by topic id.
func (s *Store) ListProjectSlots(ctx context.Context, projectID int64) (map[int64][]Slot, error) {
	slots, err := s.listSlots(ctx, sq.Select(slotColumns...).From("slots").
		Where(sq.Expr("topic_id IN (SELECT id FROM topics WHERE project_id = ?)", projectID)).
		OrderBy("id ASC"))
	if err != nil {
		return nil, err
	}
	byTopic := make(map[int64][]Slot)
	for _, sl := range slots {
		byTopic[sl.TopicID] = append(byTopic[sl.TopicID], sl)
	}
	return byTopic, nil
}

func (s *Store) listSlots(ctx context.Context, b sq.SelectBuilder) ([]Slot, error) {
	rows, err := s.query(ctx, b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []Slot
	for rows.Next() {
		var sl Slot
		var value sql.NullString
		var necessity int
		var evidence string
		if err := rows.Scan(&sl.ID, &sl.TopicID, &sl.Number, &sl.Key, &value, &necessity, &evidence); err != nil {
			return nil, err
		}
		if value.Valid {
			v := value.String
			sl.Value = &v
		}
		sl.Necessity = necessity != 0
		if err := json.Unmarshal([]byte(evidence), &sl.Evidence); err != nil {
			return nil, fmt.Errorf("decoding evidence of slot %d: %w", sl.ID, err)
		}
		slots = append(slots, sl)
	}
	return slots, rows.Err()
}

// UpdateSlot overwrites the value and evidence of a slot.
func (s *Store) UpdateSlot(ctx context.Context, id int64, value *string, evidence []int64) error {
	enc, err := encodeEvidence(evidence)
	if err != nil {
		return err
	}
	res, err := s.exec(ctx, sq.Update("slots").
		Set("slot_value", nullString(value)).
		Set("evidence", enc).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("updating slot: %w", err)
	}
	return expectOne(res)
}

// UpdateSlotDefinition changes the key and necessity of a slot, leaving its value alone.
func (s *Store) UpdateSlotDefinition(ctx context.Context, id int64, key string, necessity bool) error {
	res, err := s.exec(ctx, sq.Update("slots").
		Set("slot_key", key).
		Set("necessity", boolToInt(necessity)).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("updating slot definition: %w", err)
	}
	return expectOne(res)
}

func encodeEvidence(ids []int64) (string, error) {
	if ids == nil {
		ids = []int64{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("encoding evidence: %w", err)
	}
	return string(data), nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
