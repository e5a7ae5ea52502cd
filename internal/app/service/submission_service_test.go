package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"sqlgym/internal/common"
	"sqlgym/internal/domain/model"
	"sqlgym/internal/platform/queue"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProblemRepo struct {
	problem *model.Problem
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
	return nil, nil
}

type fakeSubmissionRepo struct {
	mu          sync.Mutex
	created     []*model.Submission
	createdInTx []bool
	errored     map[string]string
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{errored: map[string]string{}}
}

func (f *fakeSubmissionRepo) CreateSubmission(ctx context.Context, tx *sql.Tx, sub *model.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, sub)
	f.createdInTx = append(f.createdInTx, tx != nil)
	return nil
}

func (f *fakeSubmissionRepo) GetSubmissionByID(ctx context.Context, id string) (*model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.created {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeSubmissionRepo) SetVerdict(ctx context.Context, tx *sql.Tx, submissionID string, isCorrect bool, result string, executionTimeMs int) error {
	return nil
}

func (f *fakeSubmissionRepo) SetError(ctx context.Context, submissionID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errored[submissionID] = message
	return nil
}

func (f *fakeSubmissionRepo) ListForUserProblem(ctx context.Context, userID, problemID string, limit, offset int) ([]model.Submission, int, error) {
	return nil, 0, nil
}

func submitFixture(t *testing.T) (*SubmissionService, *fakeSubmissionRepo, *queue.GradingQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	q := queue.NewGradingQueue(client, "grading_jobs_test")

	problemRepo := &fakeProblemRepo{problem: &model.Problem{ID: "prob-1", Title: "Find the flags"}}
	subRepo := newFakeSubmissionRepo()
	svc := NewSubmissionService(subRepo, problemRepo, q, nil)
	return svc, subRepo, q, mr
}

func TestSubmitPersistsThenEnqueues(t *testing.T) {
	svc, subRepo, q, _ := submitFixture(t)

	sub, err := svc.Submit(context.Background(), "user-1", SubmitRequest{
		ProblemID: "prob-1",
		Query:     "SELECT 1",
	})
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Nil(t, sub.IsCorrect, "verdict is pending until the worker grades")

	require.Len(t, subRepo.created, 1)
	assert.Equal(t, sub.ID, subRepo.created[0].ID)
	// The row has to be durable before the worker can possibly see the
	// job, so the insert must not ride an open transaction.
	assert.False(t, subRepo.createdInTx[0])

	job, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, sub.ID, job.SubmissionID)
	assert.Equal(t, "user-1", job.UserID)
	assert.Equal(t, "prob-1", job.ProblemID)
	assert.Equal(t, "SELECT 1", job.Query)
}

func TestSubmitEnqueueFailureMarksSubmissionErrored(t *testing.T) {
	svc, subRepo, _, mr := submitFixture(t)

	// Take the queue down so the push after the insert fails.
	mr.Close()

	sub, err := svc.Submit(context.Background(), "user-1", SubmitRequest{
		ProblemID: "prob-1",
		Query:     "SELECT 1",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrServiceUnavailable)
	assert.Nil(t, sub)

	// The row was already persisted; it must be closed out instead of
	// staying pending with no job behind it.
	require.Len(t, subRepo.created, 1)
	assert.Contains(t, subRepo.errored[subRepo.created[0].ID], "enqueue")
}

func TestSubmitRejectsMissingFields(t *testing.T) {
	svc, subRepo, q, _ := submitFixture(t)

	_, err := svc.Submit(context.Background(), "user-1", SubmitRequest{ProblemID: "prob-1"})
	assert.ErrorIs(t, err, common.ErrBadRequest)

	_, err = svc.Submit(context.Background(), "user-1", SubmitRequest{Query: "SELECT 1"})
	assert.ErrorIs(t, err, common.ErrBadRequest)

	assert.Empty(t, subRepo.created)
	length, err := q.Length(context.Background())
	require.NoError(t, err)
	assert.Zero(t, length)
}

func TestSubmitUnknownProblem(t *testing.T) {
	svc, subRepo, _, _ := submitFixture(t)

	_, err := svc.Submit(context.Background(), "user-1", SubmitRequest{
		ProblemID: "prob-missing",
		Query:     "SELECT 1",
	})
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Empty(t, subRepo.created)
}

func TestGetSubmissionEnforcesOwnership(t *testing.T) {
	svc, _, _, _ := submitFixture(t)

	sub, err := svc.Submit(context.Background(), "user-1", SubmitRequest{
		ProblemID: "prob-1",
		Query:     "SELECT 1",
	})
	require.NoError(t, err)

	got, err := svc.GetSubmission(context.Background(), "user-1", sub.ID)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, got.ID)

	_, err = svc.GetSubmission(context.Background(), "user-2", sub.ID)
	assert.ErrorIs(t, err, common.ErrForbidden)
}
