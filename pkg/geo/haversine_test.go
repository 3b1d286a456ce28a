package geo

import (
	"math"
	"testing"
)

func TestDistanceKm(t *testing.T) {
	valladolid := Point{Lat: 41.6523, Lon: -4.7245}
	salamanca := Point{Lat: 40.9701, Lon: -5.6635}

	tests := []struct {
		name string
		a, b Point
		want float64
		tol  float64
	}{
		{"same point", valladolid, valladolid, 0, 1e-9},
		{"valladolid to salamanca", valladolid, salamanca, 109.1, 0.5},
		{"one degree of latitude", Point{0, 0}, Point{1, 0}, 111.19, 0.05},
		{"antipodes", Point{0, 0}, Point{0, 180}, math.Pi * EarthRadiusKm, 1e-6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceKm(tt.a, tt.b)
			if math.Abs(got-tt.want) > tt.tol {
				t.Errorf("DistanceKm() = %.3f, want %.3f ± %.3f", got, tt.want, tt.tol)
			}
		})
	}
}

func TestDistanceKm_Symmetric(t *testing.T) {
	a := Point{Lat: 42.3439, Lon: -3.6969}
	b := Point{Lat: 40.6566, Lon: -4.6818}
	if math.Abs(DistanceKm(a, b)-DistanceKm(b, a)) > 1e-9 {
		t.Error("distance should be symmetric")
	}
}

func TestPoint_Validate(t *testing.T) {
	tests := []struct {
		p       Point
		wantErr bool
	}{
		{Point{41.65, -4.72}, false},
		{Point{90, 180}, false},
		{Point{-90.1, 0}, true},
		{Point{0, 180.5}, true},
		{Point{math.NaN(), 0}, true},
	}

	for _, tt := range tests {
		if err := tt.p.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("Validate(%v) error = %v, wantErr %v", tt.p, err, tt.wantErr)
		}
	}
}
