package marketapi

import (
	"errors"
	"math/big"
)

var (
	ErrMarketNotFound = errors.New("market not found")
	ErrClosedMarket   = errors.New("market is closed")
	ErrInvalidMarket  = errors.New("invalid market")
	ErrInvalidTrade   = errors.New("invalid trade")
	ErrNoQuote        = errors.New("cannot compute a quote for this trade")
	ErrSlippage       = errors.New("trade no longer meets the requested minimum")
	ErrNotScalar      = errors.New("market is not a scalar market")
	ErrNotBinary      = errors.New("market is not a binary market")
)

// Market is a pool together with its configuration. Scalar markets carry
// bounds; categorical markets leave them nil.
type Market struct {
	ID          string
	Description string
	Fee         float64
	Balances    []*big.Int
	LowerBound  *big.Int
	UpperBound  *big.Int
	IsOpen      bool
	DateCreated string
	DateClosed  string
}

func (m *Market) IsScalar() bool {
	return m.LowerBound != nil && m.UpperBound != nil
}

// NewMarket describes a market to be created. Balances is the initial
// funding of the pool.
type NewMarket struct {
	Description string
	Fee         float64
	Balances    []*big.Int
	LowerBound  *big.Int
	UpperBound  *big.Int
}

type TradeKind string

const (
	Buy  TradeKind = "buy"
	Sell TradeKind = "sell"
)

// Trade is an executed trade. Collateral is what the trader paid for a buy
// or received for a sale; Shares is what left or entered the pool.
type Trade struct {
	ID           string
	MarketID     string
	Kind         TradeKind
	OutcomeIndex int
	Collateral   *big.Int
	Shares       *big.Int
	Balances     []*big.Int
	DateCreated  string
}

// Quote is the predicted result of a trade against the current pool.
type Quote struct {
	Kind         TradeKind
	OutcomeIndex int
	Collateral   *big.Int
	Shares       *big.Int
	Balances     []*big.Int
	Prices       []float64
}

// Prediction is where a scalar market currently expects to resolve.
type Prediction struct {
	Price  float64
	Value  float64
	XValue float64
}
