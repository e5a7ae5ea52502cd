package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"sqlgym/internal/common"
	"sqlgym/internal/domain/model"
	"sqlgym/internal/judge"
	"sqlgym/internal/platform/queue"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProblemRepo struct {
	problem   *model.Problem
	testCases []model.TestCase
}

func (f *fakeProblemRepo) CreateProblem(ctx context.Context, tx *sql.Tx, p *model.Problem) error {
	return nil
}

func (f *fakeProblemRepo) FindProblemByID(ctx context.Context, id string) (*model.Problem, error) {
	if f.problem == nil || f.problem.ID != id {
		return nil, common.ErrNotFound
	}
	return f.problem, nil
}

func (f *fakeProblemRepo) FindProblemBySlug(ctx context.Context, slug string) (*model.Problem, error) {
	return nil, common.ErrNotFound
}

func (f *fakeProblemRepo) ListProblems(ctx context.Context, limit, offset int, difficulty model.ProblemDifficulty, category string) ([]model.Problem, int, error) {
	return nil, 0, nil
}

func (f *fakeProblemRepo) DeleteProblem(ctx context.Context, id string) error { return nil }

func (f *fakeProblemRepo) AddTestCases(ctx context.Context, tx *sql.Tx, problemID string, testCases []model.TestCase) error {
	return nil
}

func (f *fakeProblemRepo) GetTestCasesByProblemID(ctx context.Context, problemID string) ([]model.TestCase, error) {
	return f.testCases, nil
}

type fakeSubmissionRepo struct {
	mu         sync.Mutex
	verdicts   map[string]string
	correct    map[string]bool
	errored    map[string]string
	verdictErr error
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{
		verdicts: map[string]string{},
		correct:  map[string]bool{},
		errored:  map[string]string{},
	}
}

func (f *fakeSubmissionRepo) CreateSubmission(ctx context.Context, tx *sql.Tx, sub *model.Submission) error {
	return nil
}

func (f *fakeSubmissionRepo) GetSubmissionByID(ctx context.Context, id string) (*model.Submission, error) {
	return nil, common.ErrNotFound
}

func (f *fakeSubmissionRepo) SetVerdict(ctx context.Context, tx *sql.Tx, submissionID string, isCorrect bool, result string, executionTimeMs int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.verdictErr != nil {
		return f.verdictErr
	}
	f.verdicts[submissionID] = result
	f.correct[submissionID] = isCorrect
	return nil
}

func (f *fakeSubmissionRepo) SetError(ctx context.Context, submissionID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errored[submissionID] = message
	return nil
}

func (f *fakeSubmissionRepo) verdictCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.verdicts)
}

func (f *fakeSubmissionRepo) ListForUserProblem(ctx context.Context, userID, problemID string, limit, offset int) ([]model.Submission, int, error) {
	return nil, 0, nil
}

type progressCall struct {
	userID    string
	problemID string
	solved    bool
}

type fakeProgressRepo struct {
	mu    sync.Mutex
	calls []progressCall
}

func (f *fakeProgressRepo) Upsert(ctx context.Context, tx *sql.Tx, userID, problemID string, solved bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, progressCall{userID: userID, problemID: problemID, solved: solved})
	return nil
}

func (f *fakeProgressRepo) Get(ctx context.Context, userID, problemID string) (*model.UserProgress, error) {
	return nil, common.ErrNotFound
}

func (f *fakeProgressRepo) ListForUser(ctx context.Context, userID string) ([]model.UserProgress, error) {
	return nil, nil
}

func (f *fakeProgressRepo) CountSolvedByUser(ctx context.Context, userID string) (int, error) {
	return 0, nil
}

func (f *fakeProgressRepo) GetLeaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	return nil, nil
}

// stubExecutor grades every execution with the same canned outcome.
type stubExecutor struct {
	result judge.ExecutionResult
}

func (s *stubExecutor) Execute(ctx context.Context, query, schemaScript, dataScript string, timeout time.Duration) judge.ExecutionResult {
	return s.result
}

func testWorker(problemRepo *fakeProblemRepo, subRepo *fakeSubmissionRepo, progressRepo *fakeProgressRepo, exec judge.QueryExecutor) *GradingWorker {
	validator := judge.NewValidator(exec, time.Second)
	return NewGradingWorker(nil, problemRepo, subRepo, progressRepo, validator)
}

func gradingProblem() (*fakeProblemRepo, *model.GradingJob) {
	problemRepo := &fakeProblemRepo{
		problem: &model.Problem{
			ID:           "prob-1",
			SchemaScript: "CREATE TABLE flags (id int, a text, b text)",
			SampleData:   "INSERT INTO flags VALUES (1,'Y','N'), (2,'Y','Y')",
		},
		testCases: []model.TestCase{
			{ID: "tc-1", ProblemID: "prob-1", Expected: `[{"id": 2}]`},
		},
	}
	job := &model.GradingJob{
		SubmissionID: "sub-1",
		UserID:       "user-1",
		ProblemID:    "prob-1",
		Query:        "SELECT id FROM flags WHERE a='Y' AND b='Y'",
	}
	return problemRepo, job
}

func TestProcessJobPassingSubmission(t *testing.T) {
	problemRepo, job := gradingProblem()
	subRepo := newFakeSubmissionRepo()
	progressRepo := &fakeProgressRepo{}
	exec := &stubExecutor{result: judge.ExecutionResult{
		Success: true,
		Rows:    []map[string]any{{"id": 2}},
	}}

	w := testWorker(problemRepo, subRepo, progressRepo, exec)
	w.processJob(context.Background(), job)

	assert.True(t, subRepo.correct["sub-1"])

	var verdict model.ValidationResult
	require.NoError(t, json.Unmarshal([]byte(subRepo.verdicts["sub-1"]), &verdict))
	assert.True(t, verdict.Passed)
	assert.Equal(t, 1, verdict.TotalTests)
	assert.Equal(t, 1, verdict.PassedTests)

	require.Len(t, progressRepo.calls, 1)
	assert.Equal(t, progressCall{userID: "user-1", problemID: "prob-1", solved: true}, progressRepo.calls[0])
}

func TestProcessJobFailingSubmission(t *testing.T) {
	problemRepo, job := gradingProblem()
	subRepo := newFakeSubmissionRepo()
	progressRepo := &fakeProgressRepo{}
	exec := &stubExecutor{result: judge.ExecutionResult{
		Error: `query failed: syntax error at or near "SELEC"`,
	}}

	w := testWorker(problemRepo, subRepo, progressRepo, exec)
	w.processJob(context.Background(), job)

	assert.False(t, subRepo.correct["sub-1"])

	var verdict model.ValidationResult
	require.NoError(t, json.Unmarshal([]byte(subRepo.verdicts["sub-1"]), &verdict))
	assert.False(t, verdict.Passed)
	require.Len(t, verdict.FailedTests, 1)
	assert.Equal(t, "tc-1", verdict.FailedTests[0].TestCaseID)

	// A failing submission still counts as an attempt.
	require.Len(t, progressRepo.calls, 1)
	assert.False(t, progressRepo.calls[0].solved)
}

func TestProcessJobMissingProblemFailsPermanently(t *testing.T) {
	subRepo := newFakeSubmissionRepo()
	progressRepo := &fakeProgressRepo{}
	problemRepo := &fakeProblemRepo{} // No problem at all

	w := testWorker(problemRepo, subRepo, progressRepo, &stubExecutor{})
	w.processJob(context.Background(), &model.GradingJob{
		SubmissionID: "sub-gone",
		UserID:       "user-1",
		ProblemID:    "prob-gone",
		Query:        "SELECT 1",
	})

	assert.Contains(t, subRepo.errored["sub-gone"], "not found")
	assert.Empty(t, subRepo.verdicts, "no verdict without a problem to grade against")
	assert.Empty(t, progressRepo.calls, "infrastructure faults never touch progress")
}

func TestProcessJobVerdictPersistFailureSkipsProgress(t *testing.T) {
	problemRepo, job := gradingProblem()
	subRepo := newFakeSubmissionRepo()
	subRepo.verdictErr = common.ErrNotFound // e.g. submission row vanished
	progressRepo := &fakeProgressRepo{}
	exec := &stubExecutor{result: judge.ExecutionResult{
		Success: true,
		Rows:    []map[string]any{{"id": 2}},
	}}

	w := testWorker(problemRepo, subRepo, progressRepo, exec)
	w.processJob(context.Background(), job)

	// Without a persisted verdict there is nothing to credit.
	assert.Empty(t, progressRepo.calls)
}

func TestProcessJobHiddenCaseVerdictOmitsFixtureContent(t *testing.T) {
	problemRepo, job := gradingProblem()
	problemRepo.testCases = []model.TestCase{
		{ID: "tc-1", ProblemID: "prob-1", Expected: `[{"id": 2}]`},
		{ID: "tc-2", ProblemID: "prob-1", Expected: `[{"id": 2}]`},
		{ID: "tc-hidden", ProblemID: "prob-1", IsHidden: true, Expected: `[{"id": 2, "secret": "do-not-leak"}]`},
	}
	subRepo := newFakeSubmissionRepo()
	progressRepo := &fakeProgressRepo{}
	exec := &stubExecutor{result: judge.ExecutionResult{
		Success: true,
		Rows:    []map[string]any{{"id": 2}},
	}}

	w := testWorker(problemRepo, subRepo, progressRepo, exec)
	w.processJob(context.Background(), job)

	persisted := subRepo.verdicts["sub-1"]
	assert.NotContains(t, persisted, "do-not-leak")

	var verdict model.ValidationResult
	require.NoError(t, json.Unmarshal([]byte(persisted), &verdict))
	assert.Equal(t, 3, verdict.TotalTests)
	// The hidden case fails on the extra column; only its identity and
	// hidden flag may surface.
	require.Len(t, verdict.FailedTests, 1)
	assert.Equal(t, "tc-hidden", verdict.FailedTests[0].TestCaseID)
	assert.True(t, verdict.FailedTests[0].IsHidden)
}

func TestStartDrainsQueueAndStopsOnCancel(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	q := queue.NewGradingQueue(client, "grading_jobs_test")

	problemRepo, job := gradingProblem()
	subRepo := newFakeSubmissionRepo()
	progressRepo := &fakeProgressRepo{}
	exec := &stubExecutor{result: judge.ExecutionResult{
		Success: true,
		Rows:    []map[string]any{{"id": 2}},
	}}

	validator := judge.NewValidator(exec, time.Second)
	w := NewGradingWorker(q, problemRepo, subRepo, progressRepo, validator)

	require.NoError(t, q.Enqueue(context.Background(), job))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return subRepo.verdictCount() == 1
	}, 5*time.Second, 10*time.Millisecond, "worker should grade the queued submission")

	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}
