package kafkaconsumer

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/campus-buildings/internal/invalidation"
)

// replayFilter remembers recently applied events so a redelivery after a
// rebalance does not purge or rebuild a second time.
type replayFilter struct {
	lru *lru.Cache[string, struct{}]
}

func newReplayFilter(size int) *replayFilter {
	if size <= 0 {
		size = 4096
	}
	c, _ := lru.New[string, struct{}](size)
	return &replayFilter{lru: c}
}

func eventKey(ev invalidation.Event) string {
	return ev.Source + "|" + ev.Op + "|" + ev.TS.UTC().Format(time.RFC3339Nano)
}

func (f *replayFilter) applied(ev invalidation.Event) bool {
	return f.lru.Contains(eventKey(ev))
}

// record is called only after the event took effect.
func (f *replayFilter) record(ev invalidation.Event) {
	f.lru.Add(eventKey(ev), struct{}{})
}
