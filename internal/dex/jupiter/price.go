// internal/dex/jupiter/price.go
package jupiter

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rovshanmuradov/swap-router/internal/types"
)

// PriceInSOL returns the price of one display unit of token denominated in SOL.
func (a *Adapter) PriceInSOL(ctx context.Context, token types.Token) (float64, error) {
	const op = "PriceInSOL"
	if token.IsSOL() {
		return 1, nil
	}

	q := url.Values{}
	q.Set("ids", token.Mint.String())
	q.Set("vsToken", types.NativeSOL.Mint.String())

	var resp priceResponse
	if err := a.price.GetJSON(ctx, op, "", q, &resp); err != nil {
		return 0, err
	}
	info, ok := resp.Data[token.Mint.String()]
	if !ok || info == nil {
		return 0, types.NewVenueError(types.VenueJupiter, types.KindNoRoute, op, fmt.Errorf("no price for %s", token))
	}
	price, err := strconv.ParseFloat(info.Price, 64)
	if err != nil || price <= 0 {
		return 0, types.NewVenueError(types.VenueJupiter, types.KindUnavailable, op, fmt.Errorf("invalid price %q for %s", info.Price, token))
	}
	return price, nil
}
