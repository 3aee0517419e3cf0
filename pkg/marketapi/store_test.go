package marketapi

import (
	"context"
	"database/sql"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/matryer/is"

	"github.com/domino14/fpmm/pkg/fixed"
	"github.com/domino14/fpmm/pkg/fpmm"
)

func testConfig(t *testing.T) *Config {
	migrations := os.Getenv("DB_MIGRATIONS_PATH")
	if migrations == "" {
		migrations = "file://../../db/migrations"
	}
	return &Config{
		DBMigrationsPath: migrations,
		DBPath:           filepath.Join(t.TempDir(), "fpmm_test.db"),
	}
}

func initDB(t *testing.T) *Config {
	cfg := testConfig(t)
	EnsureMigrations(cfg)
	return cfg
}

func addFixtures(cfg *Config, fixtureFile string) {
	bts, err := os.ReadFile(fixtureFile)
	if err != nil {
		panic(err)
	}
	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	_, err = db.ExecContext(context.Background(), string(bts))
	if err != nil {
		panic(err)
	}
}

func newFixtureStore(t *testing.T) *SqliteStore {
	cfg := initDB(t)
	addFixtures(cfg, "./testfixtures/basic.sql")
	s, err := NewSqliteStore(cfg.DBPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func units(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), fixed.Unit())
}

func amounts(xs []*big.Int) []string {
	out := make([]string, len(xs))
	for i, x := range xs {
		out[i] = x.String()
	}
	return out
}

func TestGetMarket(t *testing.T) {
	is := is.New(t)
	s := newFixtureStore(t)
	m, err := s.GetMarket(context.Background(), "scalar2022")
	is.NoErr(err)
	is.Equal(m.Description, "Winning score at nationals")
	is.Equal(m.Fee, 0.01)
	is.True(m.IsOpen)
	is.True(m.IsScalar())
	is.Equal(m.LowerBound.String(), units(5).String())
	is.Equal(m.UpperBound.String(), units(105).String())
	is.Equal(amounts(m.Balances), []string{units(100).String(), units(100).String()})
	is.Equal(m.DateCreated, "2022-07-08T14:00:02Z")
}

func TestGetMarketNotFound(t *testing.T) {
	is := is.New(t)
	s := newFixtureStore(t)
	_, err := s.GetMarket(context.Background(), "nope")
	is.True(errors.Is(err, ErrMarketNotFound))
}

func TestCreateMarket(t *testing.T) {
	cfg := initDB(t)
	is := is.New(t)
	ctx := context.Background()
	s, err := NewSqliteStore(cfg.DBPath)
	is.NoErr(err)
	defer s.Close()

	uuid, err := s.CreateMarket(ctx, NewMarket{
		Description: "a foo market",
		Fee:         0.02,
		Balances:    []*big.Int{units(10), units(20), units(30)},
	})
	is.NoErr(err)

	markets, err := s.GetOpenMarkets(ctx)
	is.NoErr(err)
	is.Equal(len(markets), 1)
	is.Equal(markets[0].ID, uuid)
	is.Equal(markets[0].Description, "a foo market")
	is.True(!markets[0].IsScalar())
	is.Equal(amounts(markets[0].Balances), []string{units(10).String(), units(20).String(), units(30).String()})
}

func TestCreateMarketInvalid(t *testing.T) {
	cfg := initDB(t)
	s, err := NewSqliteStore(cfg.DBPath)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	tooMany := make([]*big.Int, MaxOutcomes+1)
	for i := range tooMany {
		tooMany[i] = units(1)
	}
	cases := []struct {
		name string
		nm   NewMarket
	}{
		{"too many outcomes", NewMarket{Balances: tooMany}},
		{"one outcome", NewMarket{Balances: []*big.Int{units(1)}}},
		{"zero holdings", NewMarket{Balances: []*big.Int{units(1), big.NewInt(0)}}},
		{"fee of one", NewMarket{Fee: 1, Balances: []*big.Int{units(1), units(1)}}},
		{"negative fee", NewMarket{Fee: -0.1, Balances: []*big.Int{units(1), units(1)}}},
		{"one bound", NewMarket{Balances: []*big.Int{units(1), units(1)}, LowerBound: units(1)}},
		{"inverted bounds", NewMarket{Balances: []*big.Int{units(1), units(1)}, LowerBound: units(2), UpperBound: units(1)}},
		{"scalar with three outcomes", NewMarket{
			Balances:   []*big.Int{units(1), units(1), units(1)},
			LowerBound: units(1), UpperBound: units(2),
		}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			is := is.New(t)
			_, err := s.CreateMarket(context.Background(), c.nm)
			is.True(errors.Is(err, ErrInvalidMarket))
		})
	}
}

func TestGetOpenMarkets(t *testing.T) {
	is := is.New(t)
	s := newFixtureStore(t)
	markets, err := s.GetOpenMarkets(context.Background())
	is.NoErr(err)
	is.Equal(len(markets), 2)
	is.Equal(markets[0].ID, "binary2022")
	is.Equal(markets[1].ID, "scalar2022")
}

func TestCloseMarket(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	s := newFixtureStore(t)
	is.NoErr(s.CloseMarket(ctx, "binary2022"))

	m, err := s.GetMarket(ctx, "binary2022")
	is.NoErr(err)
	is.True(!m.IsOpen)
	is.True(m.DateClosed != "")

	err = s.CloseMarket(ctx, "binary2022")
	is.True(errors.Is(err, ErrClosedMarket))
	err = s.CloseMarket(ctx, "nope")
	is.True(errors.Is(err, ErrMarketNotFound))
}

func TestApplyTrade(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	s := newFixtureStore(t)
	newBalances := []*big.Int{units(99), units(101)}
	trade, err := s.ApplyTrade(ctx, "binary2022", func(m *Market) (*Trade, error) {
		is.Equal(amounts(m.Balances), []string{units(100).String(), units(100).String()})
		return &Trade{Kind: Buy, OutcomeIndex: 0, Collateral: units(1), Shares: units(2), Balances: newBalances}, nil
	})
	is.NoErr(err)
	is.True(trade.ID != "")
	is.Equal(trade.MarketID, "binary2022")

	m, err := s.GetMarket(ctx, "binary2022")
	is.NoErr(err)
	is.Equal(amounts(m.Balances), amounts(newBalances))

	trades, err := s.GetTrades(ctx, "binary2022", 0)
	is.NoErr(err)
	is.Equal(len(trades), 1)
	is.Equal(trades[0].ID, trade.ID)
	is.Equal(trades[0].Kind, Buy)
	is.Equal(trades[0].Collateral.String(), units(1).String())
	is.Equal(trades[0].Shares.String(), units(2).String())
}

func TestApplyTradeRollsBack(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	s := newFixtureStore(t)
	boom := errors.New("boom")
	_, err := s.ApplyTrade(ctx, "binary2022", func(m *Market) (*Trade, error) {
		return nil, boom
	})
	is.True(errors.Is(err, boom))

	trades, err := s.GetTrades(ctx, "binary2022", 0)
	is.NoErr(err)
	is.Equal(len(trades), 0)
}

func TestApplyTradeClosedMarket(t *testing.T) {
	is := is.New(t)
	s := newFixtureStore(t)
	called := false
	_, err := s.ApplyTrade(context.Background(), "closed2021", func(m *Market) (*Trade, error) {
		called = true
		return nil, nil
	})
	is.True(errors.Is(err, ErrClosedMarket))
	is.True(!called)
}

func TestGetTradesLimit(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	s := newFixtureStore(t)
	for i := 0; i < 3; i++ {
		_, err := s.ApplyTrade(ctx, "binary2022", func(m *Market) (*Trade, error) {
			return &Trade{Kind: Sell, Collateral: units(1), Shares: units(1), Balances: m.Balances}, nil
		})
		is.NoErr(err)
	}
	trades, err := s.GetTrades(ctx, "binary2022", 2)
	is.NoErr(err)
	is.Equal(len(trades), 2)

	_, err = s.GetTrades(ctx, "nope", 0)
	is.True(errors.Is(err, ErrMarketNotFound))
}

func TestSimultaneousBuys(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	s := newFixtureStore(t)
	svc := NewMarketService(s)

	// The same buy from many goroutines at once. Each one must see the pool
	// left by the previous one.
	const buyers = 20
	var wg sync.WaitGroup
	errs := make(chan error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Buy(ctx, "binary2022", 0, units(1), nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		is.NoErr(err)
	}

	want := []*big.Int{units(100), units(100)}
	for i := 0; i < buyers; i++ {
		shares := fpmm.CalcBuyAmountInShares(units(1), 0, want, 0.02)
		var err error
		want, err = fpmm.ComputeBalanceAfterSharePurchase(want, 0, units(1), shares, 0.02)
		is.NoErr(err)
	}
	m, err := s.GetMarket(ctx, "binary2022")
	is.NoErr(err)
	is.Equal(amounts(m.Balances), amounts(want))

	trades, err := s.GetTrades(ctx, "binary2022", 0)
	is.NoErr(err)
	is.Equal(len(trades), buyers)
}
