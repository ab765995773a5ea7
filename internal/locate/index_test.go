package locate

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/campus-buildings/internal/core/model"
)

func f64p(f float64) *float64 { return &f }

func b(code string, lat, lon float64) model.Building {
	return model.Building{Campus: "SGW", Code: code, ShortName: code, Latitude: f64p(lat), Longitude: f64p(lon)}
}

func campus() []model.Building {
	return []model.Building{
		b("H", 45.497256, -73.578915),
		b("LB", 45.49705, -73.5779),
		b("EV", 45.495587, -73.577855),
		{Campus: "SGW", Code: "NOCOORD", ShortName: "No coordinates"},
		b("VL", 45.459026, -73.638606),
	}
}

func TestNewIndex_SkipsBuildingsWithoutCoordinates(t *testing.T) {
	bs := campus()
	bs = append(bs, model.Building{Code: "HALF", Latitude: f64p(45.5)})
	bs = append(bs, b("BAD", 123, 0))
	ix, err := NewIndex(bs, 11)
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	if ix.Len() != 4 {
		t.Fatalf("indexed=%d want 4", ix.Len())
	}
}

func TestNewIndex_RejectsBadResolution(t *testing.T) {
	for _, res := range []int{-1, 16} {
		if _, err := NewIndex(campus(), res); err == nil {
			t.Fatalf("res=%d: expected error", res)
		}
	}
}

func TestNearest(t *testing.T) {
	ix, err := NewIndex(campus(), 11)
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}

	cases := []struct {
		name     string
		lat, lon float64
		radius   float64
		want     string
	}{
		{"on the building", 45.497256, -73.578915, 100, "H"},
		{"just north of hall", 45.4977, -73.578915, 100, "H"},
		{"between lb and ev", 45.4962, -73.57786, 100, "EV"},
		{"nothing close", 45.4977, -73.578915, 10, ""},
		{"loyola", 45.4591, -73.6386, 100, "VL"},
		{"wide radius scans all", 45.485, -73.59, 5000, "EV"},
		{"far away", 48.8566, 2.3522, 100, ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m, ok, err := ix.Nearest(c.lat, c.lon, c.radius)
			if err != nil {
				t.Fatalf("Nearest: %v", err)
			}
			if c.want == "" {
				if ok {
					t.Fatalf("got %s at %.1fm want none", m.Building.Code, m.DistanceM)
				}
				return
			}
			if !ok || m.Building.Code != c.want {
				t.Fatalf("got %q ok=%v want %s", m.Building.Code, ok, c.want)
			}
			if m.DistanceM < 0 || m.DistanceM > c.radius {
				t.Fatalf("distance=%.2f outside radius %.0f", m.DistanceM, c.radius)
			}
		})
	}
}

func TestNearest_InvalidInput(t *testing.T) {
	ix, _ := NewIndex(campus(), 11)
	if _, _, err := ix.Nearest(91, 0, 100); !errors.Is(err, ErrInvalidPoint) {
		t.Fatalf("err=%v want ErrInvalidPoint", err)
	}
	if _, _, err := ix.Nearest(math.NaN(), 0, 100); !errors.Is(err, ErrInvalidPoint) {
		t.Fatalf("err=%v want ErrInvalidPoint", err)
	}
	for _, r := range []float64{0, -5, math.Inf(1)} {
		if _, _, err := ix.Nearest(45.5, -73.5, r); err == nil {
			t.Fatalf("radius=%v: expected error", r)
		}
	}
}

func TestNearest_EmptyIndex(t *testing.T) {
	ix, err := NewIndex(nil, 11)
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	if _, ok, err := ix.Nearest(45.5, -73.5, 100); ok || err != nil {
		t.Fatalf("ok=%v err=%v want false,nil", ok, err)
	}
}

// the grid disk must never miss a building a full scan would find
func TestNearest_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var bs []model.Building
	for i := 0; i < 200; i++ {
		bs = append(bs, b(string(rune('A'+i%26))+string(rune('a'+i/26)),
			45.49+rng.Float64()*0.02, -73.59+rng.Float64()*0.02))
	}
	for _, res := range []int{9, 11, 13} {
		ix, err := NewIndex(bs, res)
		if err != nil {
			t.Fatalf("NewIndex res=%d: %v", res, err)
		}
		for q := 0; q < 300; q++ {
			lat, lon := 45.49+rng.Float64()*0.02, -73.59+rng.Float64()*0.02
			radius := 20 + rng.Float64()*300

			got, ok, err := ix.Nearest(lat, lon, radius)
			if err != nil {
				t.Fatalf("Nearest: %v", err)
			}
			wantIdx, wantD := -1, math.Inf(1)
			for i := range bs {
				d := h3.GreatCircleDistanceM(h3.LatLng{Lat: lat, Lng: lon}, h3.LatLng{Lat: *bs[i].Latitude, Lng: *bs[i].Longitude})
				if d <= radius && d < wantD {
					wantIdx, wantD = i, d
				}
			}
			if (wantIdx >= 0) != ok {
				t.Fatalf("res=%d q=%d: ok=%v want %v", res, q, ok, wantIdx >= 0)
			}
			if ok && got.Building.Code != bs[wantIdx].Code {
				t.Fatalf("res=%d q=%d: got %s (%.2fm) want %s (%.2fm)",
					res, q, got.Building.Code, got.DistanceM, bs[wantIdx].Code, wantD)
			}
		}
	}
}

func TestRingsFor(t *testing.T) {
	if k := ringsFor(100, 25); k < 4 {
		t.Fatalf("k=%d too small for 100m at 25m edges", k)
	}
	if k := ringsFor(100, 0); k <= maxRing {
		t.Fatalf("zero edge must force a full scan, k=%d", k)
	}
}
