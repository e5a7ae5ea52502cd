package service

import (
	"context"
	"log"

	"sqlgym/internal/common"
	"sqlgym/internal/domain/model"
	"sqlgym/internal/domain/repository"
	"sqlgym/internal/judge"
	"sqlgym/internal/platform/queue"

	"github.com/google/uuid"
)

type SubmissionService struct {
	submissionRepo repository.SubmissionRepository
	problemRepo    repository.ProblemRepository
	gradingQueue   *queue.GradingQueue
	validator      judge.SubmissionValidator
}

func NewSubmissionService(
	subRepo repository.SubmissionRepository,
	probRepo repository.ProblemRepository,
	gradingQueue *queue.GradingQueue,
	validator judge.SubmissionValidator,
) *SubmissionService {
	return &SubmissionService{
		submissionRepo: subRepo,
		problemRepo:    probRepo,
		gradingQueue:   gradingQueue,
		validator:      validator,
	}
}

type SubmitRequest struct {
	ProblemID string `json:"problem_id"`
	Query     string `json:"query"`
}

// Submit persists a pending submission and hands grading off to the
// worker. It returns as soon as the job is enqueued; the verdict arrives
// out of band.
func (s *SubmissionService) Submit(ctx context.Context, userID string, req SubmitRequest) (*model.Submission, error) {
	if req.ProblemID == "" || req.Query == "" {
		return nil, common.Errorf("problem_id and query are required: %w", common.ErrBadRequest)
	}

	problem, err := s.problemRepo.FindProblemByID(ctx, req.ProblemID)
	if err != nil {
		return nil, common.Errorf("problem not found: %w", err)
	}

	submission := &model.Submission{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProblemID: problem.ID,
		Query:     req.Query,
	}

	// The row must be committed before the job is pushed: the worker can
	// pick the job up immediately, and a verdict written against a not yet
	// visible row would match nothing and be lost.
	if err := s.submissionRepo.CreateSubmission(ctx, nil, submission); err != nil {
		return nil, common.Errorf("failed to create submission: %w", err)
	}

	job := &model.GradingJob{
		SubmissionID: submission.ID,
		UserID:       userID,
		ProblemID:    problem.ID,
		Query:        req.Query,
	}
	if err := s.gradingQueue.Enqueue(ctx, job); err != nil {
		// The row exists but no job backs it, so close it out rather than
		// leave it pending forever.
		if markErr := s.submissionRepo.SetError(ctx, submission.ID, "failed to enqueue grading job"); markErr != nil {
			log.Printf("ERROR: Failed to mark submission %s as errored after enqueue failure: %v", submission.ID, markErr)
		}
		return nil, common.Errorf("failed to enqueue grading job: %v: %w", err, common.ErrServiceUnavailable)
	}

	log.Printf("Submission %s created and grading job enqueued.", submission.ID)
	return submission, nil
}

type RunRequest struct {
	ProblemID string `json:"problem_id"`
	Query     string `json:"query"`
}

// Run is the immediate-feedback path: it grades the query inline against
// the problem's visible test cases and returns the verdict synchronously.
// Nothing is persisted and no progress is recorded. Both paths funnel
// through the same validator, only the scheduling differs.
func (s *SubmissionService) Run(ctx context.Context, userID string, req RunRequest) (*model.ValidationResult, error) {
	if req.ProblemID == "" || req.Query == "" {
		return nil, common.Errorf("problem_id and query are required: %w", common.ErrBadRequest)
	}

	problem, err := s.problemRepo.FindProblemByID(ctx, req.ProblemID)
	if err != nil {
		return nil, common.Errorf("problem not found: %w", err)
	}

	testCases, err := s.problemRepo.GetTestCasesByProblemID(ctx, problem.ID)
	if err != nil {
		return nil, common.Errorf("failed to load test cases: %w", err)
	}

	visible := make([]model.TestCase, 0, len(testCases))
	for _, tc := range testCases {
		if !tc.IsHidden {
			visible = append(visible, tc)
		}
	}

	log.Printf("Running query inline for user %s against problem %s (%d visible test cases)", userID, problem.ID, len(visible))
	return s.validator.Validate(ctx, req.Query, problem, visible), nil
}

// GetSubmission returns a submission to its owner.
func (s *SubmissionService) GetSubmission(ctx context.Context, userID, submissionID string) (*model.Submission, error) {
	submission, err := s.submissionRepo.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if submission.UserID != userID {
		return nil, common.ErrForbidden
	}
	return submission, nil
}

func (s *SubmissionService) ListForProblem(ctx context.Context, userID, problemID string, limit, offset int) ([]model.Submission, int, error) {
	return s.submissionRepo.ListForUserProblem(ctx, userID, problemID, limit, offset)
}
