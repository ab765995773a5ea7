package geocode

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/campus-buildings/internal/core/model"
)

// memo maps a query key to a successful provider response for the lifetime
// of the process.
type memo interface {
	Get(key string) (*model.GeocodeResponse, bool)
	Add(key string, resp *model.GeocodeResponse)
	Len() int
}

// newMemo returns an LRU bounded to size entries, or an unbounded map when
// size is 0.
func newMemo(size int) memo {
	if size <= 0 {
		return &mapMemo{m: make(map[string]*model.GeocodeResponse)}
	}
	c, err := lru.New[string, *model.GeocodeResponse](size)
	if err != nil {
		// only returned for size <= 0
		panic(err)
	}
	return lruMemo{c: c}
}

type lruMemo struct {
	c *lru.Cache[string, *model.GeocodeResponse]
}

func (l lruMemo) Get(key string) (*model.GeocodeResponse, bool) { return l.c.Get(key) }
func (l lruMemo) Add(key string, resp *model.GeocodeResponse)    { l.c.Add(key, resp) }
func (l lruMemo) Len() int                                       { return l.c.Len() }

type mapMemo struct {
	mu sync.RWMutex
	m  map[string]*model.GeocodeResponse
}

func (m *mapMemo) Get(key string) (*model.GeocodeResponse, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.m[key]
	return v, ok
}

func (m *mapMemo) Add(key string, resp *model.GeocodeResponse) {
	m.mu.Lock()
	m.m[key] = resp
	m.mu.Unlock()
}

func (m *mapMemo) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.m)
}
