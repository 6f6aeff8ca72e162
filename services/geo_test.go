package services

import (
	"math"
	"testing"
)

func TestHaversineKm(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lng1, lat2, lng2 float64
		wantKm                 float64
		tolerance              float64
	}{
		{"same point", 5.6037, -0.1870, 5.6037, -0.1870, 0, 0.001},
		{"accra to kumasi", 5.6037, -0.1870, 6.6885, -1.6244, 199, 5},
		{"accra to tema", 5.6037, -0.1870, 5.6698, -0.0167, 20, 2},
		{"across the equator", 1.0, 10.0, -1.0, 10.0, 222.4, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKm(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Fatalf("expected ~%.1f km, got %.2f km", tt.wantKm, got)
			}
		})
	}
}

func TestHaversineSymmetry(t *testing.T) {
	a := HaversineKm(5.6, -0.2, 6.7, -1.6)
	b := HaversineKm(6.7, -1.6, 5.6, -0.2)
	if math.Abs(a-b) > 1e-9 {
		t.Fatalf("distance not symmetric: %f vs %f", a, b)
	}
}
