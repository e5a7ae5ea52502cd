package judge

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"sqlgym/internal/domain/model"
)

// SubmissionValidator grades one query against a problem's test cases.
type SubmissionValidator interface {
	Validate(ctx context.Context, query string, problem *model.Problem, testCases []model.TestCase) *model.ValidationResult
}

type Validator struct {
	executor QueryExecutor
	timeout  time.Duration
}

func NewValidator(executor QueryExecutor, timeout time.Duration) *Validator {
	return &Validator{executor: executor, timeout: timeout}
}

// Validate runs the query against every test case sequentially and returns
// a complete verdict. No per-case failure is fatal to the batch: a
// malformed fixture, an execution fault or a wrong answer records that case
// as failed and grading continues with the rest.
func (v *Validator) Validate(ctx context.Context, query string, problem *model.Problem, testCases []model.TestCase) *model.ValidationResult {
	result := &model.ValidationResult{
		TotalTests:  len(testCases),
		FailedTests: []model.FailedTest{},
	}

	if len(testCases) == 0 {
		// Accepted edge case: nothing to check means a trivial pass, but
		// the problem author should hear about it.
		log.Printf("WARN: problem %s has no test cases, submission passes trivially", problem.ID)
		result.Passed = true
		return result
	}

	for _, tc := range testCases {
		var expected []map[string]any
		if err := json.Unmarshal([]byte(tc.Expected), &expected); err != nil {
			log.Printf("ERROR: test case %s of problem %s has a malformed expected fixture: %v", tc.ID, problem.ID, err)
			result.FailedTests = append(result.FailedTests, model.FailedTest{TestCaseID: tc.ID, IsHidden: tc.IsHidden})
			continue
		}

		dataScript := joinScripts(problem.SampleData, tc.Input)
		exec := v.executor.Execute(ctx, query, problem.SchemaScript, dataScript, v.timeout)
		result.ExecutionTimeMs += exec.ExecutionTimeMs

		if !exec.Success {
			result.FailedTests = append(result.FailedTests, model.FailedTest{TestCaseID: tc.ID, IsHidden: tc.IsHidden})
			continue
		}
		if !CompareRows(exec.Rows, expected) {
			result.FailedTests = append(result.FailedTests, model.FailedTest{TestCaseID: tc.ID, IsHidden: tc.IsHidden})
			continue
		}
		result.PassedTests++
	}

	result.Passed = len(result.FailedTests) == 0
	return result
}

// joinScripts layers a test case's data variation onto the problem's base
// sample data.
func joinScripts(base, overlay string) string {
	base = strings.TrimSpace(base)
	overlay = strings.TrimSpace(overlay)
	switch {
	case base == "":
		return overlay
	case overlay == "":
		return base
	default:
		return base + "\n" + overlay
	}
}
