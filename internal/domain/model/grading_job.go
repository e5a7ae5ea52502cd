package model

// GradingJob is the unit of work handed to the grading worker when a
// submission is accepted. It carries everything the worker needs so intake
// can return immediately.
type GradingJob struct {
	SubmissionID string `json:"submission_id"`
	UserID       string `json:"user_id"`
	ProblemID    string `json:"problem_id"`
	Query        string `json:"query"`
}
