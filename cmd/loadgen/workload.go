package main

import (
	"fmt"
	"math"
	"math/rand"
	"net/url"
	"strconv"

	"github.com/mohammed-shakir/campus-buildings/internal/core/model"
	"github.com/mohammed-shakir/campus-buildings/internal/core/router"
)

type Point struct {
	Code string
	Lat  float64
	Lon  float64
}

var campuses = []Point{
	{Code: "SGW", Lat: 45.4973, Lon: -73.5790},
	{Code: "LOY", Lat: 45.4582, Lon: -73.6405},
}

// pointsFromBuildings keeps buildings with usable coordinates, jittered by up
// to jitterM meters so locate queries do not all land on the exact centroid.
func pointsFromBuildings(buildings []model.Building, jitterM float64, r *rand.Rand) []Point {
	out := make([]Point, 0, len(buildings))
	for _, b := range buildings {
		if !b.HasCoordinates() {
			continue
		}
		lat, lon := *b.Latitude, *b.Longitude
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			continue
		}
		dLat, dLon := jitter(lat, jitterM, r)
		out = append(out, Point{Code: b.Code, Lat: lat + dLat, Lon: lon + dLon})
	}
	return out
}

// syntheticPoints scatters count points around both campuses, hot ones close
// to the center and the rest up to ~1.5km out.
func syntheticPoints(count int, r *rand.Rand) []Point {
	out := make([]Point, 0, count)
	hot := max(4, count/4)
	for i := range count {
		c := campuses[i%len(campuses)]
		spread := 1500.0
		if i < hot {
			spread = 150
		}
		dLat, dLon := jitter(c.Lat, spread, r)
		out = append(out, Point{Code: fmt.Sprintf("%s-%d", c.Code, i), Lat: c.Lat + dLat, Lon: c.Lon + dLon})
	}
	return out
}

func jitter(lat, meters float64, r *rand.Rand) (float64, float64) {
	if meters <= 0 {
		return 0, 0
	}
	const mPerDegLat = 111_320.0
	dy := (r.Float64()*2 - 1) * meters
	dx := (r.Float64()*2 - 1) * meters
	return dy / mPerDegLat, dx / (mPerDegLat * math.Cos(lat*math.Pi/180))
}

func locateURL(base *url.URL, p Point, radiusM float64) string {
	u := *base
	u.Path = router.RouteLocate
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(p.Lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(p.Lon, 'f', 6, 64))
	if radiusM > 0 {
		q.Set("radius", strconv.FormatFloat(radiusM, 'f', -1, 64))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func listURL(base *url.URL) string {
	u := *base
	u.Path = router.RouteBuildingList
	u.RawQuery = ""
	return u.String()
}

func percentile(sortedValues []float64, p float64) float64 {
	if len(sortedValues) == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sortedValues[0]
	}
	if p >= 100 {
		return sortedValues[len(sortedValues)-1]
	}
	k := (p / 100.0) * float64(len(sortedValues)-1)
	f := math.Floor(k)
	i := int(f)
	if i >= len(sortedValues)-1 {
		return sortedValues[len(sortedValues)-1]
	}
	d := k - f
	return sortedValues[i]*(1-d) + sortedValues[i+1]*d
}
