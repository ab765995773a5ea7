// Package locate finds the building nearest to a point using an H3 cell
// index over building coordinates.
package locate

import (
	"errors"
	"fmt"
	"math"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/campus-buildings/internal/core/model"
)

// searches wider than this scan every building instead of the grid disk
const maxRing = 32

var ErrInvalidPoint = errors.New("latitude must be in [-90,90] and longitude in [-180,180]")

type Match struct {
	Building  model.Building
	DistanceM float64
}

type entry struct {
	idx int
	ll  h3.LatLng
}

// Index is immutable once built and safe for concurrent use.
type Index struct {
	res       int
	edgeM     float64
	buildings []model.Building
	cells     map[h3.Cell][]entry
	all       []entry
}

// NewIndex indexes every building with valid coordinates at resolution res.
// Buildings without coordinates are ignored.
func NewIndex(buildings []model.Building, res int) (*Index, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	edge, err := h3.HexagonEdgeLengthAvgM(res)
	if err != nil {
		return nil, fmt.Errorf("h3 edge length: %w", err)
	}
	ix := &Index{
		res:       res,
		edgeM:     edge,
		buildings: buildings,
		cells:     make(map[h3.Cell][]entry),
	}
	for i := range buildings {
		b := buildings[i]
		if !b.HasCoordinates() || ValidPoint(*b.Latitude, *b.Longitude) != nil {
			continue
		}
		ll := h3.LatLng{Lat: *b.Latitude, Lng: *b.Longitude}
		cell, err := h3.LatLngToCell(ll, res)
		if err != nil {
			return nil, fmt.Errorf("index building %q: %w", b.Code, err)
		}
		e := entry{idx: i, ll: ll}
		ix.cells[cell] = append(ix.cells[cell], e)
		ix.all = append(ix.all, e)
	}
	return ix, nil
}

// Len is the number of indexed buildings.
func (ix *Index) Len() int { return len(ix.all) }

// Nearest returns the closest indexed building within radiusM metres of
// (lat, lon) by great-circle distance. Ties go to the earlier building.
func (ix *Index) Nearest(lat, lon, radiusM float64) (Match, bool, error) {
	if err := ValidPoint(lat, lon); err != nil {
		return Match{}, false, err
	}
	if radiusM <= 0 || math.IsNaN(radiusM) || math.IsInf(radiusM, 0) {
		return Match{}, false, fmt.Errorf("radius must be a positive number of metres, got %v", radiusM)
	}
	if len(ix.all) == 0 {
		return Match{}, false, nil
	}

	origin := h3.LatLng{Lat: lat, Lng: lon}
	candidates, err := ix.candidates(origin, radiusM)
	if err != nil {
		return Match{}, false, err
	}

	best, bestD := -1, math.Inf(1)
	for _, e := range candidates {
		d := h3.GreatCircleDistanceM(origin, e.ll)
		if d > radiusM {
			continue
		}
		if d < bestD || (d == bestD && e.idx < best) {
			best, bestD = e.idx, d
		}
	}
	if best < 0 {
		return Match{}, false, nil
	}
	return Match{Building: ix.buildings[best], DistanceM: bestD}, true, nil
}

// candidates collects entries from the grid disk that covers radiusM around
// origin, or every entry when that disk would be too large.
func (ix *Index) candidates(origin h3.LatLng, radiusM float64) ([]entry, error) {
	k := ringsFor(radiusM, ix.edgeM)
	if k > maxRing {
		return ix.all, nil
	}
	cell, err := h3.LatLngToCell(origin, ix.res)
	if err != nil {
		return nil, fmt.Errorf("h3 cell for point: %w", err)
	}
	disk, err := h3.GridDisk(cell, k)
	if err != nil {
		return nil, fmt.Errorf("h3 grid disk: %w", err)
	}
	var out []entry
	for _, c := range disk {
		out = append(out, ix.cells[c]...)
	}
	return out, nil
}

// ringsFor is the disk radius, in cells, that contains every point within
// radiusM of the origin cell. Neighbouring centres are at least 1.5 edge
// lengths apart, and the origin may sit anywhere inside its own cell.
func ringsFor(radiusM, edgeM float64) int {
	if edgeM <= 0 {
		return maxRing + 1
	}
	return int(math.Ceil((radiusM+edgeM)/(1.5*edgeM))) + 1
}

func ValidPoint(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return ErrInvalidPoint
	}
	return nil
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}
