package usecase

import (
	"context"

	"github.com/fardannozami/amchegoa/internal/domain"
	"github.com/fardannozami/amchegoa/internal/rewards"
)

type RewardStatus struct {
	rewards.Reward
	Affordable bool
	Missing    int
}

type RewardsOverview struct {
	Points  int
	Rewards []RewardStatus
}

type RewardsUsecase struct {
	sessions domain.SessionRepository
	catalog  *rewards.Catalog
}

func NewRewardsUsecase(sessions domain.SessionRepository, catalog *rewards.Catalog) *RewardsUsecase {
	return &RewardsUsecase{sessions: sessions, catalog: catalog}
}

func (uc *RewardsUsecase) Execute(ctx context.Context, namespace string) (*RewardsOverview, error) {
	session, err := uc.sessions.LoadSession(ctx, namespace)
	if err != nil {
		return nil, err
	}
	if !session.SignedIn() {
		return nil, domain.ErrNotSignedIn
	}

	points := session.User.Points
	overview := &RewardsOverview{Points: points}
	for _, r := range uc.catalog.Rewards {
		overview.Rewards = append(overview.Rewards, RewardStatus{
			Reward:     r,
			Affordable: points >= r.Cost,
			Missing:    max(0, r.Cost-points),
		})
	}
	return overview, nil
}
