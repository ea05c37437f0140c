package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Category string

const (
	CategoryPWD         Category = "PWD"
	CategoryElectricity Category = "Electricity"
	CategoryHealth      Category = "Health"
	CategoryPolice      Category = "Police"
	CategoryFire        Category = "Fire"
	CategoryMunicipal   Category = "Municipal"
	CategoryInvalid     Category = "Invalid"
	CategoryAIImage     Category = "AI Image"

	// CategoryAccident is treated as an emergency but the classifier prompt never offers it.
	CategoryAccident Category = "Accident"
	// CategoryError only appears on a failed classification and is never stored.
	CategoryError Category = "Error"
	// CategoryUnknown is the fallback for classifier text outside the closed set.
	CategoryUnknown Category = "Unknown"
)

var knownCategories = []Category{
	CategoryPWD,
	CategoryElectricity,
	CategoryHealth,
	CategoryPolice,
	CategoryFire,
	CategoryMunicipal,
	CategoryInvalid,
	CategoryAIImage,
	CategoryAccident,
	CategoryError,
}

// ParseCategory maps free text (usually model output) onto the closed category set.
func ParseCategory(s string) Category {
	s = strings.TrimSpace(s)
	for _, c := range knownCategories {
		if strings.EqualFold(s, string(c)) {
			return c
		}
	}
	return CategoryUnknown
}

func (c Category) String() string {
	return string(c)
}

// IsEmergency reports whether a valid report of this category skips authority routing.
func (c Category) IsEmergency() bool {
	switch c {
	case CategoryFire, CategoryPolice, CategoryAccident:
		return true
	}
	return false
}

type Status string

const (
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusEmergency Status = "emergency"
)

const (
	AuthorityRejected  = "Rejected"
	AuthorityEmergency = "Emergency Services"
)

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Report struct {
	ID           string    `json:"id"`
	Category     Category  `json:"category"`
	Description  string    `json:"description"`
	Authority    string    `json:"authority"`
	Status       Status    `json:"status"`
	Lat          float64   `json:"lat"`
	Lng          float64   `json:"lng"`
	Timestamp    time.Time `json:"timestamp"`
	PointsEarned int       `json:"pointsEarned,omitempty"`
}

// UnmarshalJSON also accepts a numeric id, as written by older clients that
// used the creation time in milliseconds.
func (r *Report) UnmarshalJSON(data []byte) error {
	type plain Report
	aux := struct {
		*plain
		ID json.RawMessage `json:"id"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	r.ID = ""
	id := bytes.TrimSpace(aux.ID)
	switch {
	case len(id) == 0 || bytes.Equal(id, []byte("null")):
	case id[0] == '"':
		return json.Unmarshal(id, &r.ID)
	default:
		var n json.Number
		if err := json.Unmarshal(id, &n); err != nil {
			return fmt.Errorf("report id: %w", err)
		}
		r.ID = n.String()
	}
	return nil
}

func (r Report) Coordinate() Coordinate {
	return Coordinate{Lat: r.Lat, Lng: r.Lng}
}

// ReportRepository is the append-only report history of one namespace.
type ReportRepository interface {
	LoadReports(ctx context.Context, namespace string) ([]Report, error)
	AppendReport(ctx context.Context, namespace string, report Report) error
}
