package model

import "time"

// Submission is created pending at intake and mutated exactly once by the
// grading pipeline. IsCorrect is nil while grading is in flight.
type Submission struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	ProblemID string `json:"problem_id"`
	Query     string `json:"query"`
	IsCorrect *bool  `json:"is_correct,omitempty"`
	// Serialized verdict summary ({passed, total_tests, passed_tests,
	// failed_tests}) or an error payload if grading itself faulted.
	Result          *string   `json:"result,omitempty"`
	ExecutionTimeMs *int      `json:"execution_time_ms,omitempty"`
	SubmittedAt     time.Time `json:"submitted_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	ProblemTitle    *string   `json:"problem_title,omitempty"` // For display
}
