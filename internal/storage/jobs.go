package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	sq "github.com/Masterminds/squirrel"
)

func (s *Store) EnqueueJob(ctx context.Context, job Job) error {
	ts := now()
	runAfter := ts
	if !job.RunAfter.IsZero() {
		runAfter = job.RunAfter.UTC().Format(time.RFC3339)
	}
	maxAttempts := job.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 3
	}
	_, err := s.exec(ctx, sq.Insert("jobs").
		Columns("id", "type", "payload_json", "status", "attempts", "max_attempts", "run_after", "created_at", "updated_at").
		Values(job.ID, job.Type, job.PayloadJSON, "pending", 0, maxAttempts, runAfter, ts, ts))
	return err
}

// ClaimNextJob marks the oldest runnable job of one of the given types as
// running and returns it. It returns nil when nothing is runnable.
func (s *Store) ClaimNextJob(ctx context.Context, types []string) (*Job, error) {
	if len(types) == 0 {
		return nil, nil
	}

	var claimed *Job
	err := s.InTx(ctx, func(tx *Store) error {
		ts := now()
		row, err := tx.queryRow(ctx, sq.Select("id", "type", "payload_json", "status", "attempts", "max_attempts",
			"run_after", "created_at", "updated_at", "last_error").
			From("jobs").
			Where(sq.Eq{"status": "pending", "type": types}).
			Where(sq.LtOrEq{"run_after": ts}).
			OrderBy("run_after ASC", "created_at ASC").
			Limit(1))
		if err != nil {
			return err
		}

		var j Job
		var runAfter, createdAt, updatedAt string
		var lastError sql.NullString
		err = row.Scan(&j.ID, &j.Type, &j.PayloadJSON, &j.Status, &j.Attempts, &j.MaxAttempts,
			&runAfter, &createdAt, &updatedAt, &lastError)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("selecting next job: %w", err)
		}

		res, err := tx.exec(ctx, sq.Update("jobs").
			Set("status", "running").
			Set("updated_at", ts).
			Where(sq.Eq{"id": j.ID, "status": "pending"}))
		if err != nil {
			return fmt.Errorf("updating job status: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil || n != 1 {
			return err
		}

		j.Status = "running"
		j.LastError = lastError.String
		if j.RunAfter, err = parseTime(runAfter); err != nil {
			return fmt.Errorf("parsing run_after for job %s: %w", j.ID, err)
		}
		if j.CreatedAt, err = parseTime(createdAt); err != nil {
			return fmt.Errorf("parsing created_at for job %s: %w", j.ID, err)
		}
		if j.UpdatedAt, err = parseTime(ts); err != nil {
			return fmt.Errorf("parsing updated_at for job %s: %w", j.ID, err)
		}
		claimed = &j
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (s *Store) CompleteJob(ctx context.Context, id string) error {
	res, err := s.exec(ctx, sq.Update("jobs").
		Set("status", "completed").
		Set("updated_at", now()).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return err
	}
	return expectOne(res)
}

// FailJob records a failed attempt. The job is retried with exponential
// backoff until it runs out of attempts, then it is marked failed.
func (s *Store) FailJob(ctx context.Context, id string, errMsg string) error {
	return s.InTx(ctx, func(tx *Store) error {
		row, err := tx.queryRow(ctx, sq.Select("attempts", "max_attempts").From("jobs").Where(sq.Eq{"id": id}))
		if err != nil {
			return err
		}
		var attempts, maxAttempts int
		err = row.Scan(&attempts, &maxAttempts)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		ts := time.Now().UTC()
		attempts++

		update := sq.Update("jobs").
			Set("attempts", attempts).
			Set("last_error", errMsg).
			Set("updated_at", ts.Format(time.RFC3339)).
			Where(sq.Eq{"id": id})
		if attempts >= maxAttempts {
			update = update.Set("status", "failed")
		} else {
			backoff := time.Duration(math.Pow(2, float64(attempts))) * time.Second
			update = update.Set("status", "pending").Set("run_after", ts.Add(backoff).Format(time.RFC3339))
		}
		_, err = tx.exec(ctx, update)
		return err
	})
}

// GetJob returns a job by id.
func (s *Store) GetJob(ctx context.Context, id string) (Job, error) {
	row, err := s.queryRow(ctx, sq.Select("id", "type", "payload_json", "status", "attempts", "max_attempts",
		"run_after", "created_at", "updated_at", "last_error").
		From("jobs").
		Where(sq.Eq{"id": id}))
	if err != nil {
		return Job{}, err
	}
	var j Job
	var runAfter, createdAt, updatedAt string
	var lastError sql.NullString
	err = row.Scan(&j.ID, &j.Type, &j.PayloadJSON, &j.Status, &j.Attempts, &j.MaxAttempts,
		&runAfter, &createdAt, &updatedAt, &lastError)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, err
	}
	j.LastError = lastError.String
	if j.RunAfter, err = parseTime(runAfter); err != nil {
		return Job{}, err
	}
	if j.CreatedAt, err = parseTime(createdAt); err != nil {
		return Job{}, err
	}
	if j.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Job{}, err
	}
	return j, nil
}
