package state

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"google.golang.org/adk/session"
)

// DefaultAccumulatorSize bounds the number of (invocation, field) lists kept.
const DefaultAccumulatorSize = 1024

type accumulatorKey struct {
	scope string
	field string
}

// Accumulator serializes appends that share a scope, normally an invocation
// id. Parallel function calls in one model response each write their own
// state delta and the deltas are merged later-wins, so every call must start
// from the list the previous call in the same scope produced.
type Accumulator struct {
	mu      sync.Mutex
	pending *lru.Cache[accumulatorKey, []string]
}

// NewAccumulator creates an accumulator remembering up to size lists. A
// non-positive size uses DefaultAccumulatorSize.
func NewAccumulator(size int) *Accumulator {
	if size <= 0 {
		size = DefaultAccumulatorSize
	}
	cache, _ := lru.New[accumulatorKey, []string](size)
	return &Accumulator{pending: cache}
}

// Append behaves like the package-level Append, except that the base list is
// the one last written under the same scope and field when there is one. An
// empty scope falls back to Append.
func (a *Accumulator) Append(st session.State, scope, field, response string) ([]string, error) {
	if scope == "" {
		return Append(st, field, response)
	}
	if field == "" {
		return nil, ErrEmptyField
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	key := accumulatorKey{scope: scope, field: field}
	base, ok := a.pending.Get(key)
	if !ok {
		var err error
		if base, err = Values(st, field); err != nil {
			return nil, err
		}
	}

	next := make([]string, 0, len(base)+1)
	next = append(next, base...)
	next = append(next, response)
	if err := st.Set(field, next); err != nil {
		return nil, err
	}
	a.pending.Add(key, next)
	return next, nil
}
