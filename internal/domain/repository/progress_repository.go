package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sqlgym/internal/common"
	"sqlgym/internal/domain/model"
)

type ProgressRepository interface {
	// Upsert records one graded submission for a (user, problem) pair:
	// attempts always increments, a pass sets SOLVED, solved_at sticks to
	// the first solve, and a later failure never downgrades SOLVED.
	Upsert(ctx context.Context, tx *sql.Tx, userID, problemID string, solved bool) error
	Get(ctx context.Context, userID, problemID string) (*model.UserProgress, error)
	ListForUser(ctx context.Context, userID string) ([]model.UserProgress, error)
	CountSolvedByUser(ctx context.Context, userID string) (int, error)
	GetLeaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
}

type pgProgressRepository struct {
	db *sql.DB
}

func NewPgProgressRepository(db *sql.DB) ProgressRepository {
	return &pgProgressRepository{db: db}
}

func (r *pgProgressRepository) Upsert(ctx context.Context, tx *sql.Tx, userID, problemID string, solved bool) error {
	status := model.ProgressAttempted
	if solved {
		status = model.ProgressSolved
	}

	query := `
        INSERT INTO user_progress (user_id, problem_id, status, attempts, solved_at)
        VALUES ($1, $2, $3, 1, CASE WHEN $4 THEN CURRENT_TIMESTAMP END)
        ON CONFLICT (user_id, problem_id) DO UPDATE SET
            attempts   = user_progress.attempts + 1,
            status     = CASE WHEN user_progress.status = 'SOLVED' THEN user_progress.status ELSE EXCLUDED.status END,
            solved_at  = COALESCE(user_progress.solved_at, EXCLUDED.solved_at),
            updated_at = CURRENT_TIMESTAMP`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, userID, problemID, status, solved)
	} else {
		_, err = r.db.ExecContext(ctx, query, userID, problemID, status, solved)
	}
	if err != nil {
		return fmt.Errorf("pgProgressRepository.Upsert: %w", err)
	}
	return nil
}

func (r *pgProgressRepository) Get(ctx context.Context, userID, problemID string) (*model.UserProgress, error) {
	query := `SELECT user_id, problem_id, status, attempts, solved_at, updated_at
	          FROM user_progress WHERE user_id = $1 AND problem_id = $2`

	progress := &model.UserProgress{}
	err := r.db.QueryRowContext(ctx, query, userID, problemID).Scan(
		&progress.UserID, &progress.ProblemID, &progress.Status, &progress.Attempts, &progress.SolvedAt, &progress.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProgressRepository.Get: %w", err)
	}
	return progress, nil
}

func (r *pgProgressRepository) ListForUser(ctx context.Context, userID string) ([]model.UserProgress, error) {
	query := `SELECT user_id, problem_id, status, attempts, solved_at, updated_at
	          FROM user_progress WHERE user_id = $1 ORDER BY updated_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("pgProgressRepository.ListForUser query: %w", err)
	}
	defer rows.Close()

	progress := []model.UserProgress{}
	for rows.Next() {
		var p model.UserProgress
		if err := rows.Scan(&p.UserID, &p.ProblemID, &p.Status, &p.Attempts, &p.SolvedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("pgProgressRepository.ListForUser scan: %w", err)
		}
		progress = append(progress, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProgressRepository.ListForUser rows.Err: %w", err)
	}
	return progress, nil
}

func (r *pgProgressRepository) CountSolvedByUser(ctx context.Context, userID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM user_progress WHERE user_id = $1 AND status = 'SOLVED'`
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("pgProgressRepository.CountSolvedByUser: %w", err)
	}
	return count, nil
}

func (r *pgProgressRepository) GetLeaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	query := `
        SELECT up.user_id, u.username, COUNT(*) AS problems_solved
        FROM user_progress up
        JOIN users u ON up.user_id = u.id
        WHERE up.status = 'SOLVED'
        GROUP BY up.user_id, u.username
        ORDER BY problems_solved DESC, MIN(up.solved_at) ASC
        LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("pgProgressRepository.GetLeaderboard query: %w", err)
	}
	defer rows.Close()

	entries := []model.LeaderboardEntry{}
	rank := 0
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.ProblemsSolved); err != nil {
			return nil, fmt.Errorf("pgProgressRepository.GetLeaderboard scan: %w", err)
		}
		rank++
		e.Rank = rank
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProgressRepository.GetLeaderboard rows.Err: %w", err)
	}
	return entries, nil
}
