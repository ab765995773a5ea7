// Package invalidation defines the directory change notifications that drop
// or rebuild the cached building list.
package invalidation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	OpPurge   = "purge"   // drop the cached list; the next request rebuilds it
	OpRefresh = "refresh" // drop and rebuild immediately
)

type Event struct {
	Version   int       `json:"version"`
	Op        string    `json:"op"`
	TS        time.Time `json:"ts"`
	Source    string    `json:"source,omitempty"`
	Buildings []string  `json:"buildings,omitempty"` // changed building codes, informational
}

func Decode(b []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(b, &ev); err != nil {
		return Event{}, fmt.Errorf("json decode: %w", err)
	}
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	switch e.Op {
	case OpPurge, OpRefresh:
	default:
		return fmt.Errorf("op must be purge|refresh")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	for i, code := range e.Buildings {
		if strings.TrimSpace(code) == "" {
			return fmt.Errorf("buildings[%d] is empty", i)
		}
	}
	return nil
}
