// Package strategy defines the Strategy interface for signal generation and
// a Registry mapping strategy names to parameter-validating factories.
package strategy

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cktong/crypto-backtest-engine/internal/domain"
)

// ErrUnknown is returned when a strategy name is not registered.
var ErrUnknown = errors.New("unknown strategy")

// Strategy decides one action per bar. Implementations precompute their
// indicator series in Init and keep no other state: Decide is a pure
// function of the bar index and the current position side, so a run is
// fully deterministic.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// Init precomputes indicator series over the full bar slice. It must be
	// called exactly once before Decide.
	Init(bars []domain.Bar) error

	// WarmUp returns the first bar index at which every indicator the
	// strategy references is defined. Decide must return Hold for earlier
	// indices.
	WarmUp() int

	// Decide returns the action for bar i given the current position side.
	// It never mutates ledger state.
	Decide(i int, side domain.Side) domain.Action
}

// Factory builds a strategy from caller-supplied parameters, rejecting
// unknown parameter names and invalid combinations.
type Factory func(p Params) (Strategy, error)

// Registry holds a named collection of strategy factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory under the given name, replacing any previous
// registration.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Create builds the named strategy with the given parameters. An
// unregistered name yields ErrUnknown; parameter problems are reported by
// the factory.
func (r *Registry) Create(name string, p Params) (Strategy, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %v)", ErrUnknown, name, r.List())
	}
	return f(p)
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
