// =============================
// File: internal/dex/factory.go
// =============================
package dex

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/rovshanmuradov/swap-router/internal/types"
	"go.uber.org/zap"
)

// Deps are the shared collaborators handed to every venue constructor.
type Deps struct {
	Accounts   AccountReader
	Tokens     TokenDirectory
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Constructor builds one venue adapter.
type Constructor func(deps Deps) (Adapter, error)

// Factory maps venue names to constructors.
type Factory struct {
	ctors map[types.Venue]Constructor
}

func NewFactory() *Factory {
	return &Factory{ctors: make(map[types.Venue]Constructor)}
}

// Register adds a constructor; registering a venue twice is an error.
func (f *Factory) Register(venue types.Venue, ctor Constructor) error {
	if ctor == nil {
		return fmt.Errorf("nil constructor for venue %s", venue)
	}
	if _, exists := f.ctors[venue]; exists {
		return fmt.Errorf("venue %s already registered", venue)
	}
	f.ctors[venue] = ctor
	return nil
}

// Build constructs the enabled venues in the given order.
func (f *Factory) Build(enabled []string, deps Deps) (*Registry, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if deps.Accounts == nil {
		return nil, fmt.Errorf("account reader cannot be nil")
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = NewHTTPTransport(0)
	}
	if deps.Tokens == nil {
		deps.Tokens = NewStaticTokens()
	}

	adapters := make([]Adapter, 0, len(enabled))
	for _, name := range enabled {
		venue := types.Venue(strings.ToLower(strings.TrimSpace(name)))
		ctor, ok := f.ctors[venue]
		if !ok {
			return nil, fmt.Errorf("venue %s is not supported", name)
		}
		adapter, err := ctor(deps)
		if err != nil {
			return nil, fmt.Errorf("init venue %s: %w", venue, err)
		}
		adapters = append(adapters, adapter)
	}
	return NewRegistry(adapters...)
}

// Registry is the ordered venue list. Read-only after construction, safe for
// concurrent use without locking.
type Registry struct {
	adapters []Adapter
	byVenue  map[types.Venue]Adapter
	index    map[types.Venue]int
}

// NewRegistry builds a registry; order is the tie-break order for equal quotes.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{
		adapters: make([]Adapter, 0, len(adapters)),
		byVenue:  make(map[types.Venue]Adapter, len(adapters)),
		index:    make(map[types.Venue]int, len(adapters)),
	}
	for _, a := range adapters {
		if a == nil {
			return nil, fmt.Errorf("nil adapter")
		}
		v := a.Venue()
		if _, exists := r.byVenue[v]; exists {
			return nil, fmt.Errorf("venue %s registered twice", v)
		}
		r.index[v] = len(r.adapters)
		r.byVenue[v] = a
		r.adapters = append(r.adapters, a)
	}
	return r, nil
}

// Adapters returns the adapters in registration order.
func (r *Registry) Adapters() []Adapter {
	out := make([]Adapter, len(r.adapters))
	copy(out, r.adapters)
	return out
}

// Get returns the adapter for a venue.
func (r *Registry) Get(venue types.Venue) (Adapter, bool) {
	a, ok := r.byVenue[venue]
	return a, ok
}

// Index returns the registration position of a venue, or len(adapters) if unknown.
func (r *Registry) Index(venue types.Venue) int {
	if i, ok := r.index[venue]; ok {
		return i
	}
	return len(r.adapters)
}

// Venues returns the registered venue names in order.
func (r *Registry) Venues() []types.Venue {
	out := make([]types.Venue, len(r.adapters))
	for i, a := range r.adapters {
		out[i] = a.Venue()
	}
	return out
}

// OrderBookProviders returns the adapters that expose an order book.
func (r *Registry) OrderBookProviders() []OrderBookProvider {
	var out []OrderBookProvider
	for _, a := range r.adapters {
		if p, ok := a.(OrderBookProvider); ok {
			out = append(out, p)
		}
	}
	return out
}

// OrderVenues returns the adapters that accept limit orders.
func (r *Registry) OrderVenues() []OrderVenue {
	var out []OrderVenue
	for _, a := range r.adapters {
		if v, ok := a.(OrderVenue); ok {
			out = append(out, v)
		}
	}
	return out
}

// OrderVenue returns the order-capable adapter for a venue.
func (r *Registry) OrderVenue(venue types.Venue) (OrderVenue, bool) {
	a, ok := r.byVenue[venue]
	if !ok {
		return nil, false
	}
	v, ok := a.(OrderVenue)
	return v, ok
}
