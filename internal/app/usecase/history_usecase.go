package usecase

import (
	"context"
	"slices"

	"github.com/fardannozami/amchegoa/internal/domain"
)

type HistoryUsecase struct {
	repo domain.ReportRepository
}

func NewHistoryUsecase(repo domain.ReportRepository) *HistoryUsecase {
	return &HistoryUsecase{repo: repo}
}

// Execute returns the namespace's reports, newest first.
func (uc *HistoryUsecase) Execute(ctx context.Context, namespace string) ([]domain.Report, error) {
	reports, err := uc.repo.LoadReports(ctx, namespace)
	if err != nil {
		return nil, err
	}
	slices.Reverse(reports)
	return reports, nil
}
