package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Registry maps strategy ids to the implementation a vault dispatches to.
type Registry struct {
	mu         sync.RWMutex
	strategies map[ID]Strategy
}

func NewRegistry(strategies ...Strategy) (*Registry, error) {
	r := &Registry{strategies: make(map[ID]Strategy)}
	for _, s := range strategies {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register binds s under its id. A second implementation for the same id is
// rejected.
func (r *Registry) Register(s Strategy) error {
	if s == nil {
		return fmt.Errorf("strategy: nil strategy")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.strategies[s.ID()]; ok && existing != s {
		return fmt.Errorf("strategy: %s already registered at %s", s.ID(), existing.Address().Hex())
	}
	r.strategies[s.ID()] = s
	return nil
}

func (r *Registry) Get(id ID) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[id]
	if !ok {
		return nil, ErrUnknownStrategy
	}
	return s, nil
}

// ByAddress finds the strategy deployed at addr.
func (r *Registry) ByAddress(addr common.Address) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.strategies {
		if s.Address() == addr {
			return s, true
		}
	}
	return nil, false
}

// IDs lists the registered ids in ascending order.
func (r *Registry) IDs() []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]ID, 0, len(r.strategies))
	for id := range r.strategies {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
