package domain

import (
	"context"
	"time"
)

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Password     string    `json:"password"`
	Location     string    `json:"location"`
	Points       int       `json:"points"`
	ReportsCount int       `json:"reportsCount"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Session is the signed-in state of one namespace (a device, or a chat for the bot).
// User is a copy of a registered user; changing it does not touch the users table.
type Session struct {
	Namespace string
	User      *User
	Warnings  int
}

func (s *Session) SignedIn() bool {
	return s != nil && s.User != nil
}

type UserRepository interface {
	LoadUsers(ctx context.Context, namespace string) ([]User, error)
	SaveUsers(ctx context.Context, namespace string, users []User) error
}

type SessionRepository interface {
	LoadSession(ctx context.Context, namespace string) (*Session, error)
	SaveSession(ctx context.Context, session *Session) error
	ClearSession(ctx context.Context, namespace string) error
	Namespaces(ctx context.Context) ([]string, error)
}

// LocalStore bundles everything a namespace keeps on the device.
type LocalStore interface {
	UserRepository
	SessionRepository
	ReportRepository
}
