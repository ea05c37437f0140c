package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fardannozami/amchegoa/internal/domain"
)

type leaderboardExecutor interface {
	Execute(ctx context.Context) (string, error)
}

// LocationRecorder stores location messages shared in a chat.
type LocationRecorder interface {
	SaveFix(ctx context.Context, namespace string, c domain.Coordinate, receivedAt time.Time) error
}

const helpText = `Amche Goa civic reporting 🌴
1. #signup <email> <password> [your area]
2. Share your location 📍
3. Send a photo of the issue 📸

Other commands:
#signin <email> <password>
#signout
#profile
#history
#rewards
#leaderboard
#reset`

const (
	replySignInFirst = "Please sign in first: #signin <email> <password> (or #signup to create an account)."
	replyUsage       = "Usage: %s"
)

type HandleMessageUsecase struct {
	accounts    *AccountUsecase
	history     *HistoryUsecase
	rewards     *RewardsUsecase
	leaderboard leaderboardExecutor
	workflows   *Workflows
	locations   LocationRecorder
	now         func() time.Time
}

func NewHandleMessageUsecase(
	accounts *AccountUsecase,
	history *HistoryUsecase,
	rewards *RewardsUsecase,
	leaderboard leaderboardExecutor,
	workflows *Workflows,
	locations LocationRecorder,
) *HandleMessageUsecase {
	return &HandleMessageUsecase{
		accounts:    accounts,
		history:     history,
		rewards:     rewards,
		leaderboard: leaderboard,
		workflows:   workflows,
		locations:   locations,
		now:         time.Now,
	}
}

// Execute routes a text message. Anything that is not a known command gets no reply.
func (uc *HandleMessageUsecase) Execute(ctx context.Context, userID, name, msg string) (string, error) {
	fields := strings.Fields(msg)
	if len(fields) == 0 {
		return "", nil
	}
	args := fields[1:]

	switch strings.ToLower(fields[0]) {
	case "#help":
		return helpText, nil
	case "#signup":
		return uc.signUp(ctx, userID, name, args)
	case "#signin":
		return uc.signIn(ctx, userID, args)
	case "#signout":
		if err := uc.accounts.SignOut(ctx, userID); err != nil {
			return "", err
		}
		return "👋 Signed out.", nil
	case "#profile":
		p, err := uc.accounts.Profile(ctx, userID)
		if errors.Is(err, domain.ErrNotSignedIn) {
			return replySignInFirst, nil
		}
		if err != nil {
			return "", err
		}
		return FormatProfile(p), nil
	case "#history":
		reports, err := uc.history.Execute(ctx, userID)
		if err != nil {
			return "", err
		}
		return FormatHistory(reports), nil
	case "#rewards":
		o, err := uc.rewards.Execute(ctx, userID)
		if errors.Is(err, domain.ErrNotSignedIn) {
			return replySignInFirst, nil
		}
		if err != nil {
			return "", err
		}
		return FormatRewards(o), nil
	case "#leaderboard":
		return uc.leaderboard.Execute(ctx)
	case "#reset":
		w := uc.workflows.For(userID)
		if err := w.Reset(ctx); err != nil {
			return "", err
		}
		return fmt.Sprintf("🔄 Report cleared. Warnings: %d/%d", w.Outcome().Warnings, domain.WarningThreshold), nil
	}
	return "", nil
}

func (uc *HandleMessageUsecase) signUp(ctx context.Context, userID, name string, args []string) (string, error) {
	if len(args) < 2 {
		return fmt.Sprintf(replyUsage, "#signup <email> <password> [your area]"), nil
	}
	user, err := uc.accounts.SignUp(ctx, userID, SignUpInput{
		Name:            name,
		Email:           args[0],
		Password:        args[1],
		ConfirmPassword: args[1],
		Location:        strings.Join(args[2:], " "),
	})
	switch {
	case errors.Is(err, domain.ErrEmailTaken),
		errors.Is(err, domain.ErrPasswordTooShort),
		errors.Is(err, domain.ErrPasswordMismatch):
		return "❌ " + capitalize(err.Error()), nil
	case err != nil:
		return "", err
	}
	return fmt.Sprintf("🎉 Welcome to Amche Goa, %s! Share your location and send a photo to file your first report.", user.Name), nil
}

func (uc *HandleMessageUsecase) signIn(ctx context.Context, userID string, args []string) (string, error) {
	if len(args) < 2 {
		return fmt.Sprintf(replyUsage, "#signin <email> <password>"), nil
	}
	user, err := uc.accounts.SignIn(ctx, userID, args[0], args[1])
	if errors.Is(err, domain.ErrInvalidCredentials) {
		return "❌ Invalid email or password", nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Welcome back, %s! You have %d points.", user.Name, user.Points), nil
}

// HandleImage captures an image sent in the chat and submits it straight away.
func (uc *HandleMessageUsecase) HandleImage(ctx context.Context, userID string, image Image) (string, error) {
	outcome, err := uc.workflows.For(userID).SubmitImage(ctx, image)
	switch {
	case errors.Is(err, domain.ErrNotSignedIn):
		return replySignInFirst, nil
	case errors.Is(err, ErrStaleSubmission):
		return "", nil
	case err != nil:
		return "", err
	}
	return FormatOutcome(outcome), nil
}

// HandleLocation records a location shared in the chat for later submissions.
func (uc *HandleMessageUsecase) HandleLocation(ctx context.Context, userID string, c domain.Coordinate) (string, error) {
	if uc.locations != nil {
		if err := uc.locations.SaveFix(ctx, userID, c, uc.now()); err != nil {
			return "", err
		}
	}
	uc.workflows.For(userID).SetLocation(c)
	return fmt.Sprintf("📍 Location saved: %.5f, %.5f\nNow send a photo of the issue.", c.Lat, c.Lng), nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
