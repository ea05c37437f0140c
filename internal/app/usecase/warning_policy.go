package usecase

import (
	"context"

	"github.com/fardannozami/amchegoa/internal/domain"
	"github.com/fardannozami/amchegoa/internal/metrics"
)

type WarningOutcome struct {
	Warnings       int
	PointsDeducted bool
}

// WarningPolicy is the three-strike counter shared by every rejection path.
type WarningPolicy struct {
	sessions domain.SessionRepository
}

func NewWarningPolicy(sessions domain.SessionRepository) *WarningPolicy {
	return &WarningPolicy{sessions: sessions}
}

// Apply adds count warnings to the session. Reaching the threshold deducts the
// penalty from the session user (never below zero) and resets the counter.
// The session is saved in both cases.
func (p *WarningPolicy) Apply(ctx context.Context, session *domain.Session, count int) (WarningOutcome, error) {
	session.Warnings += count

	if session.Warnings < domain.WarningThreshold {
		if err := p.sessions.SaveSession(ctx, session); err != nil {
			return WarningOutcome{}, err
		}
		return WarningOutcome{Warnings: session.Warnings}, nil
	}

	if session.User != nil {
		session.User.Points = max(0, session.User.Points-domain.WarningPenalty)
	}
	session.Warnings = 0
	if err := p.sessions.SaveSession(ctx, session); err != nil {
		return WarningOutcome{}, err
	}
	metrics.WarningPenaltiesTotal.Inc()
	return WarningOutcome{Warnings: 0, PointsDeducted: true}, nil
}
