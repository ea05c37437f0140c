package domain

import (
	"context"
	"fmt"
)

type LocationProvider interface {
	CurrentLocation(ctx context.Context, namespace string) (Coordinate, error)
}

// FixedLocation always answers with the same coordinate. The zero value has no fix.
type FixedLocation struct {
	Coordinate *Coordinate
}

func (f FixedLocation) CurrentLocation(ctx context.Context, namespace string) (Coordinate, error) {
	if f.Coordinate == nil {
		return Coordinate{}, fmt.Errorf("no coordinate configured: %w", ErrLocationUnavailable)
	}
	return *f.Coordinate, nil
}
