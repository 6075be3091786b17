// internal/bot/venues.go
package bot

import (
	"github.com/rovshanmuradov/swap-router/internal/config"
	"github.com/rovshanmuradov/swap-router/internal/dex"
	"github.com/rovshanmuradov/swap-router/internal/dex/jupiter"
	"github.com/rovshanmuradov/swap-router/internal/dex/meteora"
	"github.com/rovshanmuradov/swap-router/internal/dex/orca"
	"github.com/rovshanmuradov/swap-router/internal/dex/raydium"
	"github.com/rovshanmuradov/swap-router/internal/types"
)

// newFactory registers every supported venue with its section of the config.
func newFactory(cfg config.VenuesConfig) (*dex.Factory, error) {
	f := dex.NewFactory()
	ctors := map[types.Venue]dex.Constructor{
		types.VenueJupiter: func(deps dex.Deps) (dex.Adapter, error) {
			return jupiter.New(cfg.Jupiter, deps), nil
		},
		types.VenueRaydium: func(deps dex.Deps) (dex.Adapter, error) {
			a, err := raydium.New(cfg.Raydium, deps)
			if err != nil {
				return nil, err
			}
			return a, nil
		},
		types.VenueOrca: func(deps dex.Deps) (dex.Adapter, error) {
			a, err := orca.New(cfg.Orca, deps)
			if err != nil {
				return nil, err
			}
			return a, nil
		},
		types.VenueMeteora: func(deps dex.Deps) (dex.Adapter, error) {
			a, err := meteora.New(cfg.Meteora, deps)
			if err != nil {
				return nil, err
			}
			return a, nil
		},
	}
	for venue, ctor := range ctors {
		if err := f.Register(venue, ctor); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// priceSource picks the registered Jupiter adapter, or a standalone one, for
// converting token amounts to SOL.
func priceSource(registry *dex.Registry, cfg jupiter.Config, deps dex.Deps) *jupiter.Adapter {
	if a, ok := registry.Get(types.VenueJupiter); ok {
		if j, ok := a.(*jupiter.Adapter); ok {
			return j
		}
	}
	return jupiter.New(cfg, deps)
}
