package service

import (
	"context"
	"database/sql"
	"log"

	"sqlgym/internal/common"
	"sqlgym/internal/domain/model"
	"sqlgym/internal/domain/repository"
	"sqlgym/internal/judge"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

type ProblemService struct {
	problemRepo repository.ProblemRepository
	validator   judge.SubmissionValidator
	db          *sql.DB // For transactions
}

func NewProblemService(
	problemRepo repository.ProblemRepository,
	validator judge.SubmissionValidator,
	db *sql.DB,
) *ProblemService {
	return &ProblemService{
		problemRepo: problemRepo,
		validator:   validator,
		db:          db,
	}
}

type CreateProblemRequest struct {
	Title        string                  `json:"title"`
	Description  string                  `json:"description"`
	Difficulty   model.ProblemDifficulty `json:"difficulty"`
	Category     string                  `json:"category"`
	SchemaScript string                  `json:"schema_script"`
	SampleData   string                  `json:"sample_data"`
	Solution     string                  `json:"solution"`
	TestCases    []model.TestCase        `json:"test_cases"`
}

// CreateProblem stores a new problem after sanity-grading its canonical
// solution: a solution that does not pass the problem's own test cases
// means broken fixtures, and publishing it would make the problem
// unsolvable.
func (s *ProblemService) CreateProblem(ctx context.Context, userID string, req CreateProblemRequest) (*model.Problem, error) {
	if req.Title == "" || req.Description == "" || req.Difficulty == "" || req.SchemaScript == "" || req.Solution == "" {
		return nil, common.Errorf("missing required fields for problem creation: %w", common.ErrBadRequest)
	}
	switch req.Difficulty {
	case model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard:
	default:
		return nil, common.Errorf("unknown difficulty %q: %w", req.Difficulty, common.ErrBadRequest)
	}

	problem := &model.Problem{
		ID:           uuid.NewString(),
		Title:        req.Title,
		Slug:         slug.Make(req.Title),
		Description:  req.Description,
		Difficulty:   req.Difficulty,
		Category:     req.Category,
		SchemaScript: req.SchemaScript,
		SampleData:   req.SampleData,
		Solution:     &req.Solution,
		CreatedByID:  &userID,
	}

	for i := range req.TestCases {
		if req.TestCases[i].ID == "" {
			req.TestCases[i].ID = uuid.NewString()
		}
		req.TestCases[i].ProblemID = problem.ID
	}

	if len(req.TestCases) == 0 {
		log.Printf("WARN: problem %q created without test cases; every submission will pass trivially", req.Title)
	}

	verdict := s.validator.Validate(ctx, req.Solution, problem, req.TestCases)
	if !verdict.Passed {
		return nil, common.Errorf("canonical solution fails %d of %d test cases: %w",
			len(verdict.FailedTests), verdict.TotalTests, common.ErrValidation)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, common.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.problemRepo.CreateProblem(ctx, tx, problem); err != nil {
		return nil, common.Errorf("failed to create problem in DB: %w", err)
	}
	if err := s.problemRepo.AddTestCases(ctx, tx, problem.ID, req.TestCases); err != nil {
		return nil, common.Errorf("failed to add test cases: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, common.Errorf("failed to commit transaction: %w", err)
	}

	problem.TestCases = req.TestCases
	log.Printf("Problem %s (%s) created with %d test cases.", problem.ID, problem.Slug, len(req.TestCases))
	return problem, nil
}

// GetProblemBySlug returns a problem. Unless the caller is an admin, the
// canonical solution, hidden test cases and expected fixtures are stripped.
func (s *ProblemService) GetProblemBySlug(ctx context.Context, problemSlug string, isAdmin bool) (*model.Problem, error) {
	problem, err := s.problemRepo.FindProblemBySlug(ctx, problemSlug)
	if err != nil {
		return nil, err
	}

	testCases, err := s.problemRepo.GetTestCasesByProblemID(ctx, problem.ID)
	if err != nil {
		return nil, common.Errorf("failed to load test cases: %w", err)
	}
	problem.TestCases = testCases

	if !isAdmin {
		problem.Sanitize()
	}
	return problem, nil
}

func (s *ProblemService) ListProblems(ctx context.Context, limit, offset int, difficulty model.ProblemDifficulty, category string) ([]model.Problem, int, error) {
	return s.problemRepo.ListProblems(ctx, limit, offset, difficulty, category)
}

func (s *ProblemService) DeleteProblem(ctx context.Context, id string) error {
	return s.problemRepo.DeleteProblem(ctx, id)
}
