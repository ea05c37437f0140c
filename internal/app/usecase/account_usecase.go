package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/fardannozami/amchegoa/internal/domain"
)

const minPasswordLength = 6

type SignUpInput struct {
	Name            string
	Email           string
	Location        string
	Password        string
	ConfirmPassword string
}

type Profile struct {
	User         domain.User
	ReportsCount int
	Points       int
	Warnings     int
}

type AccountUsecase struct {
	store domain.LocalStore
	now   func() time.Time
}

func NewAccountUsecase(store domain.LocalStore) *AccountUsecase {
	return &AccountUsecase{store: store, now: time.Now}
}

// SignUp registers a user on the namespace and signs them in.
func (uc *AccountUsecase) SignUp(ctx context.Context, namespace string, in SignUpInput) (*domain.User, error) {
	if in.Password != in.ConfirmPassword {
		return nil, domain.ErrPasswordMismatch
	}
	if len(in.Password) < minPasswordLength {
		return nil, domain.ErrPasswordTooShort
	}

	users, err := uc.store.LoadUsers(ctx, namespace)
	if err != nil {
		return nil, err
	}
	email := strings.TrimSpace(in.Email)
	for _, u := range users {
		if u.Email == email {
			return nil, domain.ErrEmailTaken
		}
	}

	now := uc.now()
	user := domain.User{
		ID:        now.UnixMilli(),
		Name:      strings.TrimSpace(in.Name),
		Email:     email,
		Location:  strings.TrimSpace(in.Location),
		Password:  in.Password,
		CreatedAt: now.UTC(),
	}
	users = append(users, user)
	if err := uc.store.SaveUsers(ctx, namespace, users); err != nil {
		return nil, err
	}
	if err := uc.startSession(ctx, namespace, user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SignIn copies the matching registered user into the session.
func (uc *AccountUsecase) SignIn(ctx context.Context, namespace, email, password string) (*domain.User, error) {
	users, err := uc.store.LoadUsers(ctx, namespace)
	if err != nil {
		return nil, err
	}
	email = strings.TrimSpace(email)
	for _, u := range users {
		if u.Email == email && u.Password == password {
			if err := uc.startSession(ctx, namespace, u); err != nil {
				return nil, err
			}
			return &u, nil
		}
	}
	return nil, domain.ErrInvalidCredentials
}

func (uc *AccountUsecase) startSession(ctx context.Context, namespace string, user domain.User) error {
	session, err := uc.store.LoadSession(ctx, namespace)
	if err != nil {
		return err
	}
	session.User = &user
	return uc.store.SaveSession(ctx, session)
}

func (uc *AccountUsecase) SignOut(ctx context.Context, namespace string) error {
	return uc.store.ClearSession(ctx, namespace)
}

// Profile summarises the signed-in user. With no stored points the balance is
// estimated from the report count, as the profile page always did.
func (uc *AccountUsecase) Profile(ctx context.Context, namespace string) (*Profile, error) {
	session, err := uc.store.LoadSession(ctx, namespace)
	if err != nil {
		return nil, err
	}
	if !session.SignedIn() {
		return nil, domain.ErrNotSignedIn
	}
	reports, err := uc.store.LoadReports(ctx, namespace)
	if err != nil {
		return nil, err
	}

	points := session.User.Points
	if points == 0 {
		points = len(reports) * domain.ApprovalReward
	}
	return &Profile{
		User:         *session.User,
		ReportsCount: len(reports),
		Points:       points,
		Warnings:     session.Warnings,
	}, nil
}
