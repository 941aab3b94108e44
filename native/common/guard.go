package common

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
)

var (
	ErrModulePaused = errors.New("module paused")
	ErrReentrant    = NewRevert(ErrValidation, "reentrant call")
)

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// Pauses is an in-memory PauseView toggled by operators.
type Pauses struct {
	mu      sync.RWMutex
	modules map[string]bool
}

func NewPauses() *Pauses {
	return &Pauses{modules: make(map[string]bool)}
}

func (p *Pauses) IsPaused(module string) bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.modules[strings.TrimSpace(module)]
}

func (p *Pauses) Set(module string, paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.modules[strings.TrimSpace(module)] = paused
}

// ReentrancyGuard rejects nested entry into a component while one of its
// mutating entry points is still running.
type ReentrancyGuard struct {
	entered atomic.Bool
}

// Enter marks the component busy. The returned release func must be deferred.
func (g *ReentrancyGuard) Enter() (func(), error) {
	if !g.entered.CompareAndSwap(false, true) {
		return nil, ErrReentrant
	}
	return func() { g.entered.Store(false) }, nil
}
