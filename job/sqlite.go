package job

import (
	"database/sql"

	"github.com/dreamtide/veod/errors"
)

// sqliteStore handles durable persistence of jobs. All calls are made
// under the owning Store's lock.
type sqliteStore struct {
	db *sql.DB
}

func (s *sqliteStore) insert(j *Job) error {
	query := `
		INSERT INTO jobs (
			id, operation_id, prompt, category, status, progress,
			result_ref, failure_reason, thumbnail_path, mime_type,
			created_at, completed_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		j.ID,
		nullable(j.OperationID),
		j.Prompt,
		j.Category,
		j.Status,
		j.Progress,
		nullable(j.ResultRef),
		nullable(j.FailureReason),
		nullable(j.ThumbnailPath),
		nullable(j.MimeType),
		j.CreatedAt,
		j.CompletedAt,
		j.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to insert job")
	}

	return nil
}

func (s *sqliteStore) update(j *Job) error {
	query := `
		UPDATE jobs
		SET operation_id = ?,
		    status = ?,
		    progress = ?,
		    result_ref = ?,
		    failure_reason = ?,
		    thumbnail_path = ?,
		    mime_type = ?,
		    completed_at = ?,
		    updated_at = ?
		WHERE id = ?
	`

	res, err := s.db.Exec(query,
		nullable(j.OperationID),
		j.Status,
		j.Progress,
		nullable(j.ResultRef),
		nullable(j.FailureReason),
		nullable(j.ThumbnailPath),
		nullable(j.MimeType),
		j.CompletedAt,
		j.UpdatedAt,
		j.ID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update job")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check update result")
	}
	if affected == 0 {
		return errors.Wrapf(errors.ErrNotFound, "job %s", j.ID)
	}

	return nil
}

func (s *sqliteStore) delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM jobs WHERE id = ?`, id); err != nil {
		return errors.Wrap(err, "failed to delete job")
	}
	return nil
}

// loadAll returns every persisted job, most recent first.
func (s *sqliteStore) loadAll() ([]*Job, error) {
	query := `SELECT ` + selectColumns() + ` FROM jobs ORDER BY created_at DESC, id`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load jobs")
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		var j Job
		if err := scanJobFromRows(rows, &j); err != nil {
			return nil, errors.Wrap(err, "failed to scan job")
		}
		jobs = append(jobs, &j)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate jobs")
	}

	return jobs, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
