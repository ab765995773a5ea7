// Package model defines core domain types shared across the service.
package model

import "encoding/json"

// Building is one campus facility as listed by the directory. The same shape
// is used for the directory payload, the cache document and the public API.
type Building struct {
	Campus      string            `json:"Campus"`
	Code        string            `json:"Building"`
	ShortName   string            `json:"Building_Name"`
	LongName    *string           `json:"Building_Long_Name"`
	Address     *string           `json:"Address"`
	Latitude    *float64          `json:"Latitude"`
	Longitude   *float64          `json:"Longitude"`
	GeocodeInfo *GeocodeCandidate `json:"Google_Place_Info,omitempty"`
}

// TargetName is the name used to pick a geocode candidate.
func (b Building) TargetName() *string {
	if b.LongName != nil {
		return b.LongName
	}
	name := b.ShortName
	return &name
}

// HasCoordinates reports whether both latitude and longitude are set.
func (b Building) HasCoordinates() bool {
	return b.Latitude != nil && b.Longitude != nil
}

// GeocodeResponse mirrors the geocoding provider's destinations payload.
type GeocodeResponse struct {
	Destinations []Destination `json:"destinations"`
}

type Destination struct {
	Primary *GeocodeCandidate `json:"primary"`
}

// Candidates flattens destinations into their primary places, keeping order.
// A destination without a primary place yields a nil entry.
func (r *GeocodeResponse) Candidates() []*GeocodeCandidate {
	if r == nil || len(r.Destinations) == 0 {
		return nil
	}
	out := make([]*GeocodeCandidate, len(r.Destinations))
	for i := range r.Destinations {
		out[i] = r.Destinations[i].Primary
	}
	return out
}

// GeocodeCandidate is one place proposed by the provider. Only PlaceID and
// DisplayName take part in matching; the rest is passed through untouched.
type GeocodeCandidate struct {
	PlaceID          *string         `json:"place,omitempty"`
	DisplayName      *DisplayName    `json:"displayName,omitempty"`
	PrimaryType      *string         `json:"primaryType,omitempty"`
	Types            []string        `json:"types,omitempty"`
	FormattedAddress *string         `json:"formattedAddress,omitempty"`
	StructureType    *string         `json:"structureType,omitempty"`
	Location         *LatLng         `json:"location,omitempty"`
	DisplayPolygon   *DisplayPolygon `json:"displayPolygon,omitempty"`
	Entrances        []Entrance      `json:"entrances,omitempty"`
}

// Name returns the display name text, or nil when the provider sent none.
func (c *GeocodeCandidate) Name() *string {
	if c == nil || c.DisplayName == nil || c.DisplayName.Text == nil {
		return nil
	}
	return c.DisplayName.Text
}

type DisplayName struct {
	Text         *string `json:"text,omitempty"`
	LanguageCode *string `json:"languageCode,omitempty"`
}

type LatLng struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

type Entrance struct {
	Location *LatLng  `json:"location,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Place    *string  `json:"place,omitempty"`
}

// DisplayPolygon keeps GeoJSON coordinates raw; nesting depth depends on type.
type DisplayPolygon struct {
	Type        string          `json:"type,omitempty"`
	Coordinates json.RawMessage `json:"coordinates,omitempty"`
}
