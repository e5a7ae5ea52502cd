package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"sqlgym/internal/domain/model"
	"sqlgym/internal/domain/repository"
	"sqlgym/internal/judge"
	"sqlgym/internal/platform/queue"
)

// GradingWorker pulls queued submissions, grades them through the
// validator and writes the terminal verdict. It runs out-of-band from the
// HTTP request that created the submission.
type GradingWorker struct {
	queue          *queue.GradingQueue
	problemRepo    repository.ProblemRepository
	submissionRepo repository.SubmissionRepository
	progressRepo   repository.ProgressRepository
	validator      judge.SubmissionValidator
}

func NewGradingWorker(
	q *queue.GradingQueue,
	problemRepo repository.ProblemRepository,
	submissionRepo repository.SubmissionRepository,
	progressRepo repository.ProgressRepository,
	validator judge.SubmissionValidator,
) *GradingWorker {
	return &GradingWorker{
		queue:          q,
		problemRepo:    problemRepo,
		submissionRepo: submissionRepo,
		progressRepo:   progressRepo,
		validator:      validator,
	}
}

func (w *GradingWorker) Start(ctx context.Context) {
	log.Println("Grading worker started")
	for {
		select {
		case <-ctx.Done():
			log.Println("Grading worker stopping...")
			return
		default:
			job, err := w.queue.Dequeue(ctx, 5*time.Second)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					continue
				}
				log.Printf("ERROR: Failed to dequeue grading job: %v", err)
				time.Sleep(5 * time.Second) // Wait before retrying on queue errors
				continue
			}
			if job == nil {
				continue // Dequeue wait timed out
			}

			log.Printf("Worker picked up submission %s (problem %s, user %s)", job.SubmissionID, job.ProblemID, job.UserID)
			w.processJob(ctx, job)
		}
	}
}

// processJob drives one submission to a terminal state. Per-test-case
// faults are absorbed by the validator; anything that escapes it is an
// infrastructure fault, which marks the submission errored without a
// progress update. A job-level panic must not take down the worker loop.
func (w *GradingWorker) processJob(ctx context.Context, job *model.GradingJob) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: Grading of submission %s panicked: %v", job.SubmissionID, r)
			w.failSubmission(ctx, job.SubmissionID, fmt.Sprintf("grading fault: %v", r))
		}
	}()

	problem, err := w.problemRepo.FindProblemByID(ctx, job.ProblemID)
	if err != nil {
		// A problem disappearing mid-flight is a data integrity issue, not
		// a transient fault. Fail permanently, no retry.
		w.failSubmission(ctx, job.SubmissionID, fmt.Sprintf("problem %s not found: %v", job.ProblemID, err))
		return
	}

	testCases, err := w.problemRepo.GetTestCasesByProblemID(ctx, job.ProblemID)
	if err != nil {
		w.failSubmission(ctx, job.SubmissionID, fmt.Sprintf("failed to load test cases for problem %s: %v", job.ProblemID, err))
		return
	}

	verdict := w.validator.Validate(ctx, job.Query, problem, testCases)

	resultJSON, err := json.Marshal(verdict)
	if err != nil {
		w.failSubmission(ctx, job.SubmissionID, fmt.Sprintf("failed to serialize verdict: %v", err))
		return
	}

	if err := w.submissionRepo.SetVerdict(ctx, nil, job.SubmissionID, verdict.Passed, string(resultJSON), verdict.ExecutionTimeMs); err != nil {
		log.Printf("ERROR: Failed to persist verdict for submission %s: %v", job.SubmissionID, err)
		return
	}

	if err := w.progressRepo.Upsert(ctx, nil, job.UserID, job.ProblemID, verdict.Passed); err != nil {
		log.Printf("ERROR: Failed to upsert progress for user %s problem %s: %v", job.UserID, job.ProblemID, err)
		return
	}

	log.Printf("Submission %s graded: passed=%t (%d/%d test cases, %dms)",
		job.SubmissionID, verdict.Passed, verdict.PassedTests, verdict.TotalTests, verdict.ExecutionTimeMs)
}

// failSubmission guarantees the row reaches a terminal state instead of
// staying pending forever. No progress is recorded on infrastructure
// faults: the user's query was never actually judged.
func (w *GradingWorker) failSubmission(ctx context.Context, submissionID, message string) {
	log.Printf("ERROR: Submission %s failed permanently: %s", submissionID, message)
	if err := w.submissionRepo.SetError(ctx, submissionID, message); err != nil {
		log.Printf("ERROR: Failed to mark submission %s as errored: %v", submissionID, err)
	}
}
