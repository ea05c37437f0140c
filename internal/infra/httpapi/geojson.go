package httpapi

import (
	geojson "github.com/paulmach/go.geojson"

	"github.com/fardannozami/amchegoa/internal/domain"
)

// ReportsFeatureCollection renders reports as GeoJSON points ([lng, lat]).
func ReportsFeatureCollection(reports []domain.Report) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range reports {
		f := geojson.NewPointFeature([]float64{r.Lng, r.Lat})
		f.ID = r.ID
		f.SetProperty("category", r.Category.String())
		f.SetProperty("description", r.Description)
		f.SetProperty("authority", r.Authority)
		f.SetProperty("status", string(r.Status))
		f.SetProperty("timestamp", r.Timestamp)
		if r.PointsEarned > 0 {
			f.SetProperty("pointsEarned", r.PointsEarned)
		}
		fc.AddFeature(f)
	}
	return fc
}
