package model

import (
	"time"
)

type ProblemDifficulty string

const (
	DifficultyEasy   ProblemDifficulty = "EASY"
	DifficultyMedium ProblemDifficulty = "MEDIUM"
	DifficultyHard   ProblemDifficulty = "HARD"
)

type Problem struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Slug        string            `json:"slug"`
	Description string            `json:"description"`
	Difficulty  ProblemDifficulty `json:"difficulty"`
	Category    string            `json:"category"`
	// DDL that builds the problem's tables inside a disposable schema.
	SchemaScript string `json:"schema_script,omitempty"`
	// Base seed rows shown to the user alongside the problem statement.
	SampleData string `json:"sample_data,omitempty"`
	// Canonical solution query. Admin only view.
	Solution    *string    `json:"solution,omitempty"`
	CreatedByID *string    `json:"created_by_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	TestCases   []TestCase `json:"test_cases,omitempty"`
}

type TestCase struct {
	ID        string `json:"id"`
	ProblemID string `json:"problem_id"`
	// Per-case data script layered onto the problem's base sample data.
	Input string `json:"input"`
	// Expected result set, serialized as a JSON array of row objects.
	Expected  string    `json:"expected,omitempty"`
	IsHidden  bool      `json:"is_hidden"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Sanitize strips grading material that must never reach a submitter:
// hidden test cases disappear entirely, visible ones keep their input only.
func (p *Problem) Sanitize() {
	p.Solution = nil
	visible := make([]TestCase, 0, len(p.TestCases))
	for _, tc := range p.TestCases {
		if tc.IsHidden {
			continue
		}
		tc.Expected = ""
		visible = append(visible, tc)
	}
	p.TestCases = visible
}
