package marketapi

import (
	"context"
	"fmt"
	"math/big"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/domino14/fpmm/pkg/fixed"
	"github.com/domino14/fpmm/pkg/fpmm"
	"github.com/domino14/fpmm/pkg/lmsr"
	"github.com/domino14/fpmm/pkg/scalar"
)

// longOutcome is the outcome of a scalar market that pays out at the upper
// bound.
const longOutcome = 1

// Store is the persistence MarketService needs.
type Store interface {
	CreateMarket(ctx context.Context, nm NewMarket) (string, error)
	GetMarket(ctx context.Context, id string) (*Market, error)
	GetOpenMarkets(ctx context.Context) ([]*Market, error)
	CloseMarket(ctx context.Context, id string) error
	ApplyTrade(ctx context.Context, id string, fn TradeFunc) (*Trade, error)
	GetTrades(ctx context.Context, id string, limit int) ([]*Trade, error)
}

// SellQuoter computes the collateral returned by a sale. *fpmm.SellSolver
// implements it.
type SellQuoter interface {
	CalcSellAmountInCollateral(sharesToSell, holdings *big.Int, otherHoldings []*big.Int, fee float64) *big.Int
}

type MarketService struct {
	store  Store
	seller SellQuoter
}

func NewMarketService(store Store) *MarketService {
	return &MarketService{store: store, seller: fpmm.NewSellSolver()}
}

// WithSellQuoter replaces the solver used to quote sales.
func (ms *MarketService) WithSellQuoter(q SellQuoter) *MarketService {
	ms.seller = q
	return ms
}

func (ms *MarketService) CreateMarket(ctx context.Context, nm NewMarket) (*Market, error) {
	id, err := ms.store.CreateMarket(ctx, nm)
	if err != nil {
		return nil, err
	}
	return ms.store.GetMarket(ctx, id)
}

func (ms *MarketService) GetMarket(ctx context.Context, id string) (*Market, error) {
	return ms.store.GetMarket(ctx, id)
}

func (ms *MarketService) GetOpenMarkets(ctx context.Context) ([]*Market, error) {
	return ms.store.GetOpenMarkets(ctx)
}

func (ms *MarketService) CloseMarket(ctx context.Context, id string) error {
	if err := ms.store.CloseMarket(ctx, id); err != nil {
		return err
	}
	log.Info().Str("market", id).Msg("market-closed")
	return nil
}

func (ms *MarketService) GetTrades(ctx context.Context, id string, limit int) ([]*Trade, error) {
	return ms.store.GetTrades(ctx, id, limit)
}

func checkTrade(m *Market, outcomeIndex int, amount *big.Int) error {
	if err := fpmm.ValidateOutcomeIndex(outcomeIndex, len(m.Balances)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTrade, err)
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidTrade)
	}
	if fixed.IsDust(amount, fixed.Decimals) {
		return fmt.Errorf("%w: amount %s is dust", ErrInvalidTrade, amount)
	}
	return nil
}

func buyQuote(m *Market, outcomeIndex int, investment *big.Int) (*Quote, error) {
	if err := checkTrade(m, outcomeIndex, investment); err != nil {
		return nil, err
	}
	shares := fpmm.CalcBuyAmountInShares(investment, outcomeIndex, m.Balances, m.Fee)
	balances, err := fpmm.ComputeBalanceAfterSharePurchase(m.Balances, outcomeIndex, investment, shares, m.Fee)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoQuote, err)
	}
	return &Quote{
		Kind:         Buy,
		OutcomeIndex: outcomeIndex,
		Collateral:   new(big.Int).Set(investment),
		Shares:       shares,
		Balances:     balances,
		Prices:       fpmm.CalcPrice(balances),
	}, nil
}

func (ms *MarketService) sellQuote(m *Market, outcomeIndex int, shares *big.Int) (*Quote, error) {
	if err := checkTrade(m, outcomeIndex, shares); err != nil {
		return nil, err
	}
	holdings, others := fpmm.SplitHoldings(m.Balances, outcomeIndex)
	collateral := ms.seller.CalcSellAmountInCollateral(shares, holdings, others, m.Fee)
	if collateral == nil {
		return nil, ErrNoQuote
	}
	balances, err := fpmm.ComputeBalanceAfterShareSale(m.Balances, outcomeIndex, collateral, shares, m.Fee)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoQuote, err)
	}
	return &Quote{
		Kind:         Sell,
		OutcomeIndex: outcomeIndex,
		Collateral:   collateral,
		Shares:       new(big.Int).Set(shares),
		Balances:     balances,
		Prices:       fpmm.CalcPrice(balances),
	}, nil
}

// QuoteBuy returns the shares of outcomeIndex received for investment,
// without trading.
func (ms *MarketService) QuoteBuy(ctx context.Context, id string, outcomeIndex int, investment *big.Int) (*Quote, error) {
	m, err := ms.store.GetMarket(ctx, id)
	if err != nil {
		return nil, err
	}
	return buyQuote(m, outcomeIndex, investment)
}

// QuoteSell returns the collateral received for selling shares of
// outcomeIndex, without trading. It fails with ErrNoQuote when no amount
// can be computed.
func (ms *MarketService) QuoteSell(ctx context.Context, id string, outcomeIndex int, shares *big.Int) (*Quote, error) {
	m, err := ms.store.GetMarket(ctx, id)
	if err != nil {
		return nil, err
	}
	return ms.sellQuote(m, outcomeIndex, shares)
}

func logTrade(t *Trade) {
	log.Info().Str("market", t.MarketID).Str("trade", t.ID).Str("kind", string(t.Kind)).
		Int("outcome", t.OutcomeIndex).Str("collateral", t.Collateral.String()).
		Str("shares", t.Shares.String()).
		Float64("collateralUnits", fixed.ToFloat(t.Collateral, fixed.Decimals)).
		Msg("trade-executed")
}

func tradeFromQuote(q *Quote) *Trade {
	return &Trade{
		Kind:         q.Kind,
		OutcomeIndex: q.OutcomeIndex,
		Collateral:   q.Collateral,
		Shares:       q.Shares,
		Balances:     q.Balances,
	}
}

// Buy invests collateral in outcomeIndex. The quote is recomputed against
// the pool at execution time; the trade fails with ErrSlippage if it would
// return fewer than minShares. A nil minShares accepts any amount.
func (ms *MarketService) Buy(ctx context.Context, id string, outcomeIndex int, investment, minShares *big.Int) (*Trade, error) {
	t, err := ms.store.ApplyTrade(ctx, id, func(m *Market) (*Trade, error) {
		q, err := buyQuote(m, outcomeIndex, investment)
		if err != nil {
			return nil, err
		}
		if minShares != nil && q.Shares.Cmp(minShares) < 0 {
			return nil, fmt.Errorf("%w: %s shares < %s", ErrSlippage, q.Shares, minShares)
		}
		return tradeFromQuote(q), nil
	})
	if err != nil {
		return nil, err
	}
	logTrade(t)
	return t, nil
}

// Sell sells shares of outcomeIndex back to the pool. It fails with
// ErrSlippage if less than minCollateral would be returned.
func (ms *MarketService) Sell(ctx context.Context, id string, outcomeIndex int, shares, minCollateral *big.Int) (*Trade, error) {
	t, err := ms.store.ApplyTrade(ctx, id, func(m *Market) (*Trade, error) {
		q, err := ms.sellQuote(m, outcomeIndex, shares)
		if err != nil {
			return nil, err
		}
		if minCollateral != nil && q.Collateral.Cmp(minCollateral) < 0 {
			return nil, fmt.Errorf("%w: %s collateral < %s", ErrSlippage, q.Collateral, minCollateral)
		}
		return tradeFromQuote(q), nil
	})
	if err != nil {
		return nil, err
	}
	logTrade(t)
	return t, nil
}

// Prediction maps the price of the long outcome of a scalar market onto
// its bounds.
func (ms *MarketService) Prediction(ctx context.Context, id string) (*Prediction, error) {
	m, err := ms.store.GetMarket(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.IsScalar() {
		return nil, fmt.Errorf("%w: %s", ErrNotScalar, id)
	}
	price := fpmm.CalcPrice(m.Balances)[longOutcome]
	value, err := scalar.CalcPrediction(strconv.FormatFloat(price, 'f', -1, 64), m.LowerBound, m.UpperBound)
	if err != nil {
		return nil, err
	}
	return &Prediction{
		Price:  price,
		Value:  value,
		XValue: scalar.CalcXValue(fixed.FromFloat(value, fixed.Decimals), m.LowerBound, m.UpperBound),
	}, nil
}

// EstimateNetCost estimates what buying amount shares of outcomeIndex would
// cost in a binary market under a base-2 LMSR whose funding is the
// geometric mean of the pool balances, at the current pool prices.
func (ms *MarketService) EstimateNetCost(ctx context.Context, id string, outcomeIndex int, amount *big.Int) (*big.Int, error) {
	m, err := ms.store.GetMarket(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(m.Balances) != 2 {
		return nil, fmt.Errorf("%w: %s has %d outcomes", ErrNotBinary, id, len(m.Balances))
	}
	if err := checkTrade(m, outcomeIndex, amount); err != nil {
		return nil, err
	}
	funding := new(big.Int).Sqrt(new(big.Int).Mul(m.Balances[0], m.Balances[1]))
	trades := []*big.Int{new(big.Int), new(big.Int)}
	trades[outcomeIndex] = amount
	prices := fpmm.CalcPrice(m.Balances)
	return lmsr.CalcNetCost(funding, prices[0], trades[0], prices[1], trades[1]), nil
}
