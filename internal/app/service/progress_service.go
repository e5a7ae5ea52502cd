package service

import (
	"context"

	"sqlgym/internal/domain/model"
	"sqlgym/internal/domain/repository"
)

type ProgressService struct {
	progressRepo repository.ProgressRepository
}

func NewProgressService(progressRepo repository.ProgressRepository) *ProgressService {
	return &ProgressService{progressRepo: progressRepo}
}

func (s *ProgressService) GetMyProgress(ctx context.Context, userID string) ([]model.UserProgress, error) {
	return s.progressRepo.ListForUser(ctx, userID)
}

func (s *ProgressService) GetProgressForProblem(ctx context.Context, userID, problemID string) (*model.UserProgress, error) {
	return s.progressRepo.Get(ctx, userID, problemID)
}

func (s *ProgressService) CountSolved(ctx context.Context, userID string) (int, error) {
	return s.progressRepo.CountSolvedByUser(ctx, userID)
}

func (s *ProgressService) GetLeaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	return s.progressRepo.GetLeaderboard(ctx, limit)
}
