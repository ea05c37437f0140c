package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fardannozami/amchegoa/internal/domain"
)

func TestReport_UnmarshalID(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{"string", `{"id":"0190a1b2-c3d4","category":"PWD"}`, "0190a1b2-c3d4"},
		{"milliseconds", `{"id":1718000000123,"category":"PWD"}`, "1718000000123"},
		{"missing", `{"category":"PWD"}`, ""},
		{"null", `{"id":null,"category":"PWD"}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r domain.Report
			require.NoError(t, json.Unmarshal([]byte(tt.json), &r))
			assert.Equal(t, tt.want, r.ID)
			assert.Equal(t, domain.CategoryPWD, r.Category)
		})
	}
}

func TestReport_UnmarshalKeepsFields(t *testing.T) {
	var r domain.Report
	err := json.Unmarshal([]byte(`{"id":1718000000123,"category":"Municipal","description":"Garbage","authority":"MMC","status":"approved","lat":15.39,"lng":73.81,"timestamp":"2024-06-10T06:13:20Z","pointsEarned":50}`), &r)
	require.NoError(t, err)

	assert.Equal(t, domain.Report{
		ID:           "1718000000123",
		Category:     domain.CategoryMunicipal,
		Description:  "Garbage",
		Authority:    "MMC",
		Status:       domain.StatusApproved,
		Lat:          15.39,
		Lng:          73.81,
		Timestamp:    time.Date(2024, 6, 10, 6, 13, 20, 0, time.UTC),
		PointsEarned: 50,
	}, r)
}

func TestReport_UnmarshalRejectsObjectID(t *testing.T) {
	var r domain.Report
	assert.Error(t, json.Unmarshal([]byte(`{"id":{"x":1}}`), &r))
}
