package job

import (
	"database/sql"
)

// scanArgs holds the nullable column targets for scanning a job row.
type scanArgs struct {
	OperationID   sql.NullString
	ResultRef     sql.NullString
	FailureReason sql.NullString
	ThumbnailPath sql.NullString
	MimeType      sql.NullString
	CompletedAt   sql.NullTime
}

func scanTargets(j *Job, args *scanArgs) []interface{} {
	return []interface{}{
		&j.ID,
		&args.OperationID,
		&j.Prompt,
		&j.Category,
		&j.Status,
		&j.Progress,
		&args.ResultRef,
		&args.FailureReason,
		&args.ThumbnailPath,
		&args.MimeType,
		&j.CreatedAt,
		&args.CompletedAt,
		&j.UpdatedAt,
	}
}

func applyScanArgs(j *Job, args *scanArgs) {
	if args.OperationID.Valid {
		j.OperationID = args.OperationID.String
	}
	if args.ResultRef.Valid {
		j.ResultRef = args.ResultRef.String
	}
	if args.FailureReason.Valid {
		j.FailureReason = args.FailureReason.String
	}
	if args.ThumbnailPath.Valid {
		j.ThumbnailPath = args.ThumbnailPath.String
	}
	if args.MimeType.Valid {
		j.MimeType = args.MimeType.String
	}
	if args.CompletedAt.Valid {
		j.CompletedAt = &args.CompletedAt.Time
	}
}

func scanJobFromRows(rows *sql.Rows, j *Job) error {
	args := &scanArgs{}
	if err := rows.Scan(scanTargets(j, args)...); err != nil {
		return err
	}
	applyScanArgs(j, args)
	return nil
}

func selectColumns() string {
	return `id, operation_id, prompt, category, status, progress,
		result_ref, failure_reason, thumbnail_path, mime_type,
		created_at, completed_at, updated_at`
}
