package main

import (
	"math"
	"math/rand"
	"net/url"
	"strings"
	"testing"

	"github.com/mohammed-shakir/campus-buildings/internal/core/model"
)

func f64p(v float64) *float64 { return &v }

func TestPercentile(t *testing.T) {
	vals := []float64{10, 20, 30, 40, 50}
	cases := []struct {
		p, want float64
	}{
		{0, 10}, {50, 30}, {100, 50}, {25, 20}, {90, 46},
	}
	for _, c := range cases {
		if got := percentile(vals, c.p); math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("p%.0f=%v want %v", c.p, got, c.want)
		}
	}
	if !math.IsNaN(percentile(nil, 50)) {
		t.Fatalf("empty input should be NaN")
	}
}

func TestPointsFromBuildings_SkipsMissingAndInvalid(t *testing.T) {
	buildings := []model.Building{
		{Code: "H", Latitude: f64p(45.497), Longitude: f64p(-73.579)},
		{Code: "X", Latitude: f64p(45.497)},
		{Code: "BAD", Latitude: f64p(123), Longitude: f64p(-73.579)},
		{Code: "VL", Latitude: f64p(45.459), Longitude: f64p(-73.638)},
	}
	r := rand.New(rand.NewSource(1))
	pts := pointsFromBuildings(buildings, 40, r)
	if len(pts) != 2 || pts[0].Code != "H" || pts[1].Code != "VL" {
		t.Fatalf("points=%+v", pts)
	}
	// 40m is well under 0.001 degrees at this latitude
	if math.Abs(pts[0].Lat-45.497) > 0.001 || math.Abs(pts[0].Lon+73.579) > 0.001 {
		t.Fatalf("jitter too large: %+v", pts[0])
	}
}

func TestSyntheticPoints_StayNearCampuses(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	pts := syntheticPoints(20, r)
	if len(pts) != 20 {
		t.Fatalf("len=%d want 20", len(pts))
	}
	for _, p := range pts {
		if p.Lat < 45.43 || p.Lat > 45.52 || p.Lon < -73.68 || p.Lon > -73.55 {
			t.Fatalf("point off campus: %+v", p)
		}
	}
}

func TestURLs(t *testing.T) {
	base, _ := url.Parse("http://localhost:9090")
	if got := listURL(base); got != "http://localhost:9090/api/facilities/buildinglist" {
		t.Fatalf("listURL=%s", got)
	}
	got := locateURL(base, Point{Lat: 45.4973, Lon: -73.579}, 75)
	if !strings.HasPrefix(got, "http://localhost:9090/api/facilities/buildinglist/locate?") ||
		!strings.Contains(got, "lat=45.497300") || !strings.Contains(got, "lon=-73.579000") ||
		!strings.Contains(got, "radius=75") {
		t.Fatalf("locateURL=%s", got)
	}
	if strings.Contains(locateURL(base, Point{}, 0), "radius") {
		t.Fatalf("zero radius should be omitted")
	}
}
