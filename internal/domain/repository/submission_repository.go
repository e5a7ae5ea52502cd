package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"sqlgym/internal/common"
	"sqlgym/internal/domain/model"
)

type SubmissionRepository interface {
	CreateSubmission(ctx context.Context, tx *sql.Tx, sub *model.Submission) error
	GetSubmissionByID(ctx context.Context, id string) (*model.Submission, error)
	// SetVerdict moves a pending submission to its terminal graded state.
	SetVerdict(ctx context.Context, tx *sql.Tx, submissionID string, isCorrect bool, result string, executionTimeMs int) error
	// SetError moves a pending submission to its terminal errored state.
	SetError(ctx context.Context, submissionID, message string) error
	ListForUserProblem(ctx context.Context, userID, problemID string, limit, offset int) ([]model.Submission, int, error)
}

type pgSubmissionRepository struct {
	db *sql.DB
}

func NewPgSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &pgSubmissionRepository{db: db}
}

func (r *pgSubmissionRepository) CreateSubmission(ctx context.Context, tx *sql.Tx, sub *model.Submission) error {
	query := `INSERT INTO submissions (id, user_id, problem_id, query) VALUES ($1, $2, $3, $4)`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, sub.ID, sub.UserID, sub.ProblemID, sub.Query)
	} else {
		_, err = r.db.ExecContext(ctx, query, sub.ID, sub.UserID, sub.ProblemID, sub.Query)
	}
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.CreateSubmission: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) GetSubmissionByID(ctx context.Context, id string) (*model.Submission, error) {
	query := `SELECT s.id, s.user_id, s.problem_id, s.query, s.is_correct, s.result, s.execution_time_ms,
	                 s.submitted_at, s.updated_at, p.title
	          FROM submissions s
	          LEFT JOIN problems p ON s.problem_id = p.id
	          WHERE s.id = $1`

	sub := &model.Submission{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&sub.ID, &sub.UserID, &sub.ProblemID, &sub.Query, &sub.IsCorrect, &sub.Result, &sub.ExecutionTimeMs,
		&sub.SubmittedAt, &sub.UpdatedAt, &sub.ProblemTitle,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgSubmissionRepository.GetSubmissionByID: %w", err)
	}
	return sub, nil
}

func (r *pgSubmissionRepository) SetVerdict(ctx context.Context, tx *sql.Tx, submissionID string, isCorrect bool, result string, executionTimeMs int) error {
	query := `UPDATE submissions
	          SET is_correct = $1, result = $2, execution_time_ms = $3, updated_at = CURRENT_TIMESTAMP
	          WHERE id = $4`

	var res sql.Result
	var err error
	if tx != nil {
		res, err = tx.ExecContext(ctx, query, isCorrect, result, executionTimeMs, submissionID)
	} else {
		res, err = r.db.ExecContext(ctx, query, isCorrect, result, executionTimeMs, submissionID)
	}
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.SetVerdict: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("pgSubmissionRepository.SetVerdict: submission %s: %w", submissionID, common.ErrNotFound)
	}
	return nil
}

func (r *pgSubmissionRepository) SetError(ctx context.Context, submissionID, message string) error {
	payload, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.SetError marshal: %w", err)
	}

	query := `UPDATE submissions
	          SET is_correct = FALSE, result = $1, updated_at = CURRENT_TIMESTAMP
	          WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, string(payload), submissionID)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.SetError: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("pgSubmissionRepository.SetError: submission %s: %w", submissionID, common.ErrNotFound)
	}
	return nil
}

func (r *pgSubmissionRepository) ListForUserProblem(ctx context.Context, userID, problemID string, limit, offset int) ([]model.Submission, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM submissions WHERE user_id = $1 AND problem_id = $2`
	if err := r.db.QueryRowContext(ctx, countQuery, userID, problemID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgSubmissionRepository.ListForUserProblem count: %w", err)
	}

	query := `SELECT id, user_id, problem_id, query, is_correct, result, execution_time_ms, submitted_at, updated_at
	          FROM submissions
	          WHERE user_id = $1 AND problem_id = $2
	          ORDER BY submitted_at DESC LIMIT $3 OFFSET $4`
	rows, err := r.db.QueryContext(ctx, query, userID, problemID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pgSubmissionRepository.ListForUserProblem query: %w", err)
	}
	defer rows.Close()

	submissions := []model.Submission{}
	for rows.Next() {
		var s model.Submission
		if err := rows.Scan(&s.ID, &s.UserID, &s.ProblemID, &s.Query, &s.IsCorrect, &s.Result, &s.ExecutionTimeMs, &s.SubmittedAt, &s.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("pgSubmissionRepository.ListForUserProblem scan: %w", err)
		}
		submissions = append(submissions, s)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgSubmissionRepository.ListForUserProblem rows.Err: %w", err)
	}
	return submissions, total, nil
}
