// internal/dex/raydium/order_book.go
package raydium

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/swap-router/internal/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// marketState - статическая часть OpenBook маркета.
type marketState struct {
	BaseMint     solana.PublicKey
	QuoteMint    solana.PublicKey
	Bids         solana.PublicKey
	Asks         solana.PublicKey
	BaseLotSize  uint64
	QuoteLotSize uint64
}

// slabLeaf - лист слэба, т.е. одна заявка.
type slabLeaf struct {
	Key       *big.Int
	Owner     solana.PublicKey
	Quantity  uint64 // в base лотах
	PriceLots uint64
}

// GetOrderBook читает биды и аски OpenBook маркета пары с чейна.
func (a *Adapter) GetOrderBook(ctx context.Context, inputToken, outputToken types.Token) (types.OrderBook, error) {
	const op = "GetOrderBook"
	logger := a.logger.With(
		zap.String("input", inputToken.String()),
		zap.String("output", outputToken.String()),
	)

	market, err := a.marketForPair(ctx, inputToken, outputToken)
	if err != nil {
		return types.OrderBook{}, err
	}
	state, err := a.layouts.GetOrLoad(market.String(), func() (*marketState, error) {
		data, err := a.accounts.GetAccountData(ctx, market)
		if err != nil {
			return nil, types.NewVenueError(types.VenueRaydium, types.KindUnavailable, op, fmt.Errorf("load market %s: %w", market, err))
		}
		st, err := decodeMarketData(data)
		if err != nil {
			return nil, types.NewVenueError(types.VenueRaydium, types.KindUnavailable, op, err)
		}
		return st, nil
	})
	if err != nil {
		return types.OrderBook{}, err
	}

	var base, quote types.Token
	switch {
	case state.BaseMint.Equals(inputToken.Mint) && state.QuoteMint.Equals(outputToken.Mint):
		base, quote = inputToken, outputToken
	case state.BaseMint.Equals(outputToken.Mint) && state.QuoteMint.Equals(inputToken.Mint):
		base, quote = outputToken, inputToken
	default:
		return types.OrderBook{}, types.NewVenueError(types.VenueRaydium, types.KindInvalidParams, op,
			fmt.Errorf("market %s does not trade the pair", market))
	}

	slabs, err := a.accounts.GetMultipleAccountData(ctx, []solana.PublicKey{state.Bids, state.Asks})
	if err != nil {
		return types.OrderBook{}, types.NewVenueError(types.VenueRaydium, types.KindUnavailable, op, fmt.Errorf("load slabs: %w", err))
	}
	if len(slabs) != 2 {
		return types.OrderBook{}, types.NewVenueError(types.VenueRaydium, types.KindUnavailable, op, fmt.Errorf("expected 2 slabs, got %d", len(slabs)))
	}

	bidLeaves, err := decodeSlab(slabs[0])
	if err != nil {
		return types.OrderBook{}, types.NewVenueError(types.VenueRaydium, types.KindUnavailable, op, fmt.Errorf("bids: %w", err))
	}
	askLeaves, err := decodeSlab(slabs[1])
	if err != nil {
		return types.OrderBook{}, types.NewVenueError(types.VenueRaydium, types.KindUnavailable, op, fmt.Errorf("asks: %w", err))
	}

	book := types.OrderBook{
		Bids: make([]types.Order, 0, len(bidLeaves)),
		Asks: make([]types.Order, 0, len(askLeaves)),
	}
	for _, l := range bidLeaves {
		if o, ok := leafToOrder(l, types.SideBid, state, base, quote); ok {
			book.Bids = append(book.Bids, o)
		}
	}
	for _, l := range askLeaves {
		if o, ok := leafToOrder(l, types.SideAsk, state, base, quote); ok {
			book.Asks = append(book.Asks, o)
		}
	}

	logger.Debug("order book loaded",
		zap.String("market", market.String()),
		zap.Int("bids", len(book.Bids)),
		zap.Int("asks", len(book.Asks)))
	return book, nil
}

// decodeMarketData декодирует MarketStateV3.
func decodeMarketData(data []byte) (*marketState, error) {
	if len(data) < marketLayoutSize {
		return nil, fmt.Errorf("invalid market data length %d", len(data))
	}
	st := &marketState{
		BaseMint:     solana.PublicKeyFromBytes(data[marketBaseMintOffset : marketBaseMintOffset+32]),
		QuoteMint:    solana.PublicKeyFromBytes(data[marketQuoteMintOffset : marketQuoteMintOffset+32]),
		Bids:         solana.PublicKeyFromBytes(data[marketBidsOffset : marketBidsOffset+32]),
		Asks:         solana.PublicKeyFromBytes(data[marketAsksOffset : marketAsksOffset+32]),
		BaseLotSize:  binary.LittleEndian.Uint64(data[marketBaseLotSizeOffset : marketBaseLotSizeOffset+8]),
		QuoteLotSize: binary.LittleEndian.Uint64(data[marketQuoteLotSizeOffset : marketQuoteLotSizeOffset+8]),
	}
	if st.BaseLotSize == 0 || st.QuoteLotSize == 0 {
		return nil, fmt.Errorf("market has zero lot size")
	}
	return st, nil
}

// decodeSlab собирает все листья слэба. Порядок не важен, книгу сортирует агрегатор.
func decodeSlab(data []byte) ([]slabLeaf, error) {
	if len(data) < slabNodesOffset {
		return nil, fmt.Errorf("invalid slab data length %d", len(data))
	}
	bumpIndex := int(binary.LittleEndian.Uint32(data[slabBumpIndexOffset : slabBumpIndexOffset+4]))
	maxNodes := (len(data) - slabNodesOffset) / slabNodeSize
	if bumpIndex > maxNodes {
		bumpIndex = maxNodes
	}

	var leaves []slabLeaf
	for i := 0; i < bumpIndex; i++ {
		node := data[slabNodesOffset+i*slabNodeSize : slabNodesOffset+(i+1)*slabNodeSize]
		if binary.LittleEndian.Uint32(node[0:4]) != slabLeafTag {
			continue
		}
		// key: u128 little-endian, старшие 64 бита - цена в лотах
		keyBE := make([]byte, 16)
		for j := 0; j < 16; j++ {
			keyBE[j] = node[8+15-j]
		}
		leaves = append(leaves, slabLeaf{
			Key:       new(big.Int).SetBytes(keyBE),
			Owner:     solana.PublicKeyFromBytes(node[24:56]),
			Quantity:  binary.LittleEndian.Uint64(node[56:64]),
			PriceLots: binary.LittleEndian.Uint64(node[16:24]),
		})
	}
	return leaves, nil
}

// leafToOrder переводит лоты в базовые единицы токенов. Цена всегда quote за base.
func leafToOrder(l slabLeaf, side types.Side, st *marketState, base, quote types.Token) (types.Order, bool) {
	baseAmount := new(big.Int).Mul(u64(l.Quantity), u64(st.BaseLotSize))
	quoteAmount := new(big.Int).Mul(u64(l.Quantity), u64(l.PriceLots))
	quoteAmount.Mul(quoteAmount, u64(st.QuoteLotSize))
	if !baseAmount.IsUint64() || !quoteAmount.IsUint64() || baseAmount.Sign() == 0 {
		return types.Order{}, false
	}

	price := decimal.NewFromBigInt(u64(l.PriceLots), 0).
		Mul(decimal.NewFromBigInt(u64(st.QuoteLotSize), 0)).
		Div(decimal.NewFromBigInt(u64(st.BaseLotSize), 0)).
		Shift(int32(base.Decimals) - int32(quote.Decimals))

	o := types.Order{
		ID:      l.Key.String(),
		Owner:   l.Owner,
		Price:   price,
		Side:    side,
		Status:  types.OrderOpen,
		Venue:   types.VenueRaydium,
		Account: l.Owner,
	}
	if side == types.SideAsk {
		o.InputToken, o.OutputToken = base, quote
		o.InputAmount, o.OutputAmount = baseAmount.Uint64(), quoteAmount.Uint64()
	} else {
		o.InputToken, o.OutputToken = quote, base
		o.InputAmount, o.OutputAmount = quoteAmount.Uint64(), baseAmount.Uint64()
	}
	return o, true
}

func u64(v uint64) *big.Int { return new(big.Int).SetUint64(v) }
