package domain

import "math"

const (
	vascoLatitude   = 15.39
	margaoLatitude  = 15.27
	municipalRadius = 0.05
)

// DetermineAuthority returns the body responsible for a report. State-level
// categories route to themselves; Municipal routes by latitude band only.
func DetermineAuthority(lat, lng float64, category Category) string {
	switch category {
	case CategoryPolice, CategoryFire, CategoryElectricity, CategoryPWD, CategoryHealth:
		return string(category)
	case CategoryMunicipal:
		switch {
		case math.Abs(lat-vascoLatitude) < municipalRadius:
			return "MMC"
		case math.Abs(lat-margaoLatitude) < municipalRadius:
			return "Margao MC"
		default:
			return "Local Panchayat"
		}
	}
	return "Unknown Authority"
}
