package model

// ValidationResult is the aggregated verdict of running one submission
// against every test case of a problem. It is ephemeral: the worker
// serializes it onto the submission row, it is never persisted on its own.
// FailedTests carries identity and hidden flag only — never expected or
// actual row data, so hidden fixtures cannot leak through a verdict.
type ValidationResult struct {
	Passed          bool         `json:"passed"`
	TotalTests      int          `json:"total_tests"`
	PassedTests     int          `json:"passed_tests"`
	FailedTests     []FailedTest `json:"failed_tests"`
	ExecutionTimeMs int          `json:"execution_time_ms"`
}

type FailedTest struct {
	TestCaseID string `json:"test_case_id"`
	IsHidden   bool   `json:"is_hidden"`
}
