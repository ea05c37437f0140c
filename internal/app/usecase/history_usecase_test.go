package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fardannozami/amchegoa/internal/app/usecase"
	"github.com/fardannozami/amchegoa/internal/domain"
	"github.com/fardannozami/amchegoa/internal/rewards"
)

func TestHistory_NewestFirst(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.AppendReport(ctx, "ns", domain.Report{ID: id}))
	}

	reports, err := usecase.NewHistoryUsecase(store).Execute(ctx, "ns")
	require.NoError(t, err)

	ids := make([]string, 0, len(reports))
	for _, r := range reports {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"c", "b", "a"}, ids)

	stored, _ := store.LoadReports(ctx, "ns")
	assert.Equal(t, "a", stored[0].ID, "store order is untouched")
}

func TestRewards_Affordability(t *testing.T) {
	store := newMemStore()
	store.signIn("ns", domain.User{Email: "a@x.in", Points: 1000})
	catalog, err := rewards.Default()
	require.NoError(t, err)

	o, err := usecase.NewRewardsUsecase(store, catalog).Execute(context.Background(), "ns")
	require.NoError(t, err)

	assert.Equal(t, 1000, o.Points)
	require.Len(t, o.Rewards, 3)
	assert.True(t, o.Rewards[0].Affordable)
	assert.True(t, o.Rewards[1].Affordable)
	assert.False(t, o.Rewards[2].Affordable)
	assert.Equal(t, 500, o.Rewards[2].Missing)
}

func TestRewards_RequiresSignIn(t *testing.T) {
	catalog, err := rewards.Default()
	require.NoError(t, err)

	_, err = usecase.NewRewardsUsecase(newMemStore(), catalog).Execute(context.Background(), "ns")

	assert.ErrorIs(t, err, domain.ErrNotSignedIn)
}

func TestLeaderboard_RanksSignedInUsers(t *testing.T) {
	store := newMemStore()
	store.signIn("a", domain.User{Name: "Asha", Points: 100})
	store.signIn("b", domain.User{Name: "Bosco", Points: 300})
	store.signIn("c", domain.User{Name: "Carmen", Points: 200})
	store.signIn("d", domain.User{Name: "Dev", Points: 50})

	uc := usecase.NewGetLeaderboardUsecase(store)
	entries, err := uc.Entries(context.Background())
	require.NoError(t, err)

	require.Len(t, entries, 4)
	assert.Equal(t, "Bosco", entries[0].Name)
	assert.Equal(t, "Carmen", entries[1].Name)
	assert.Equal(t, 4, entries[3].Rank)

	text, err := uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Contains(t, text, "1. Bosco - 300 pts 🥇")
	assert.Contains(t, text, "3. Asha - 100 pts 🥉")
	assert.Contains(t, text, "4. Dev - 50 pts\n")
}

func TestLeaderboard_Empty(t *testing.T) {
	text, err := usecase.NewGetLeaderboardUsecase(newMemStore()).Execute(context.Background())
	require.NoError(t, err)
	assert.Contains(t, text, "No reporters yet")
}
