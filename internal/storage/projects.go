package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

var projectColumns = []string{"id", "name", "requirements", "status", "priority_sequence", "created_at", "updated_at"}

func (s *Store) CreateProject(ctx context.Context, name, requirements string) (Project, error) {
	ts := now()
	res, err := s.exec(ctx, sq.Insert("projects").
		Columns("name", "requirements", "status", "priority_sequence", "created_at", "updated_at").
		Values(name, requirements, string(ProjectPending), "[]", ts, ts))
	if err != nil {
		return Project{}, fmt.Errorf("inserting project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Project{}, err
	}
	return s.GetProject(ctx, id)
}

func (s *Store) GetProject(ctx context.Context, id int64) (Project, error) {
	row, err := s.queryRow(ctx, sq.Select(projectColumns...).From("projects").Where(sq.Eq{"id": id}))
	if err != nil {
		return Project{}, err
	}
	return scanProject(row)
}

// ListProjects returns all projects, newest first.
func (s *Store) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.query(ctx, sq.Select(projectColumns...).From("projects").OrderBy("id DESC"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// DeleteProject removes a project together with its framework and transcript.
func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	return s.InTx(ctx, func(tx *Store) error {
		if err := tx.DeleteFramework(ctx, id); err != nil {
			return err
		}
		if _, err := tx.exec(ctx, sq.Delete("messages").Where(sq.Eq{"project_id": id})); err != nil {
			return fmt.Errorf("deleting messages: %w", err)
		}
		res, err := tx.exec(ctx, sq.Delete("projects").Where(sq.Eq{"id": id}))
		if err != nil {
			return fmt.Errorf("deleting project: %w", err)
		}
		return expectOne(res)
	})
}

func (s *Store) SetProjectStatus(ctx context.Context, id int64, status ProjectStatus) error {
	res, err := s.exec(ctx, sq.Update("projects").
		Set("status", string(status)).
		Set("updated_at", now()).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("updating project status: %w", err)
	}
	return expectOne(res)
}

// SetPrioritySequence persists the latest ranking computed for a project.
func (s *Store) SetPrioritySequence(ctx context.Context, id int64, ranking []PriorityEntry) error {
	if ranking == nil {
		ranking = []PriorityEntry{}
	}
	data, err := json.Marshal(ranking)
	if err != nil {
		return err
	}
	res, err := s.exec(ctx, sq.Update("projects").
		Set("priority_sequence", string(data)).
		Set("updated_at", now()).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("updating priority sequence: %w", err)
	}
	return expectOne(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(r rowScanner) (Project, error) {
	var p Project
	var status, sequence, createdAt, updatedAt string
	err := r.Scan(&p.ID, &p.Name, &p.Requirements, &status, &sequence, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, ErrNotFound
	}
	if err != nil {
		return Project{}, err
	}
	p.Status = ProjectStatus(status)
	if err := json.Unmarshal([]byte(sequence), &p.PrioritySequence); err != nil {
		return Project{}, fmt.Errorf("decoding priority sequence of project %d: %w", p.ID, err)
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return Project{}, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Project{}, err
	}
	return p, nil
}
