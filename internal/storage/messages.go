package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

func messageSelect() sq.SelectBuilder {
	return sq.Select("m.id", "m.project_id", "COALESCE(m.topic_id, 0)", "COALESCE(t.topic_number, '')",
		"m.role", "m.content", "m.created_at").
		From("messages m").
		LeftJoin("topics t ON t.id = m.topic_id")
}

// AppendMessage stores a new transcript message and returns it with its id.
func (s *Store) AppendMessage(ctx context.Context, m Message) (Message, error) {
	var topicID any
	if m.TopicID != 0 {
		topicID = m.TopicID
	}
	res, err := s.exec(ctx, sq.Insert("messages").
		Columns("project_id", "topic_id", "role", "content", "created_at").
		Values(m.ProjectID, topicID, string(m.Role), m.Content, now()))
	if err != nil {
		return Message{}, fmt.Errorf("inserting message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Message{}, err
	}
	row, err := s.queryRow(ctx, messageSelect().Where(sq.Eq{"m.id": id}))
	if err != nil {
		return Message{}, err
	}
	return scanMessage(row)
}

// ListMessages returns the whole transcript of a project in id order.
func (s *Store) ListMessages(ctx context.Context, projectID int64) ([]Message, error) {
	return s.listMessages(ctx, messageSelect().Where(sq.Eq{"m.project_id": projectID}).OrderBy("m.id ASC"))
}

// ListTopicMessages returns the messages bound to one topic in id order.
func (s *Store) ListTopicMessages(ctx context.Context, topicID int64) ([]Message, error) {
	return s.listMessages(ctx, messageSelect().Where(sq.Eq{"m.topic_id": topicID}).OrderBy("m.id ASC"))
}

// LastMessage returns the most recent message of a project with the given role.
func (s *Store) LastMessage(ctx context.Context, projectID int64, role Role) (Message, error) {
	row, err := s.queryRow(ctx, messageSelect().
		Where(sq.Eq{"m.project_id": projectID, "m.role": string(role)}).
		OrderBy("m.id DESC").
		Limit(1))
	if err != nil {
		return Message{}, err
	}
	return scanMessage(row)
}

func (s *Store) listMessages(ctx context.Context, b sq.SelectBuilder) ([]Message, error) {
	rows, err := s.query(ctx, b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func scanMessage(r rowScanner) (Message, error) {
	var m Message
	var role, createdAt string
	err := r.Scan(&m.ID, &m.ProjectID, &m.TopicID, &m.TopicNumber, &role, &m.Content, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	if err != nil {
		return Message{}, err
	}
	m.Role = Role(role)
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return Message{}, err
	}
	return m, nil
}
