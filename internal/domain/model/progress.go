package model

import "time"

type ProgressStatus string

const (
	ProgressAttempted ProgressStatus = "ATTEMPTED"
	ProgressSolved    ProgressStatus = "SOLVED"
)

// UserProgress tracks one (user, problem) pair. Attempts increments on
// every graded submission; SolvedAt is set on the first solve and never
// overwritten; status never regresses from SOLVED back to ATTEMPTED.
type UserProgress struct {
	UserID    string         `json:"user_id"`
	ProblemID string         `json:"problem_id"`
	Status    ProgressStatus `json:"status"`
	Attempts  int            `json:"attempts"`
	SolvedAt  *time.Time     `json:"solved_at,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type LeaderboardEntry struct {
	Rank           int    `json:"rank"`
	UserID         string `json:"user_id"`
	Username       string `json:"username"`
	ProblemsSolved int    `json:"problems_solved"`
}
