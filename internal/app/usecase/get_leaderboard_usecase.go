package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fardannozami/amchegoa/internal/domain"
)

type LeaderboardEntry struct {
	Rank      int    `json:"rank"`
	Namespace string `json:"-"`
	Name      string `json:"name"`
	Points    int    `json:"points"`
}

type GetLeaderboardUsecase struct {
	sessions domain.SessionRepository
	now      func() time.Time
}

func NewGetLeaderboardUsecase(sessions domain.SessionRepository) *GetLeaderboardUsecase {
	return &GetLeaderboardUsecase{sessions: sessions, now: time.Now}
}

// Entries ranks every signed-in session by points. Ties keep namespace order.
func (uc *GetLeaderboardUsecase) Entries(ctx context.Context) ([]LeaderboardEntry, error) {
	namespaces, err := uc.sessions.Namespaces(ctx)
	if err != nil {
		return nil, err
	}

	var entries []LeaderboardEntry
	for _, ns := range namespaces {
		session, err := uc.sessions.LoadSession(ctx, ns)
		if err != nil {
			return nil, err
		}
		if !session.SignedIn() {
			continue
		}
		entries = append(entries, LeaderboardEntry{
			Namespace: ns,
			Name:      session.User.Name,
			Points:    session.User.Points,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Points > entries[j].Points
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

func (uc *GetLeaderboardUsecase) Execute(ctx context.Context) (string, error) {
	entries, err := uc.Entries(ctx)
	if err != nil {
		return "", err
	}

	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("Amche Goa Civic Champions (%s)\n\n", uc.now().Format("02-01-2006")))
	if len(entries) == 0 {
		sb.WriteString("No reporters yet. Send a photo of a civic issue to get on the board 📸")
		return sb.String(), nil
	}

	for _, e := range entries {
		medal := ""
		switch e.Rank {
		case 1:
			medal = " 🥇"
		case 2:
			medal = " 🥈"
		case 3:
			medal = " 🥉"
		}
		sb.WriteString(fmt.Sprintf("%d. %s - %d pts%s\n", e.Rank, e.Name, e.Points, medal))
	}
	sb.WriteString("\nKeep reporting, every approved report earns 50 points 💪")
	return sb.String(), nil
}
