package marketapi

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/lithammer/shortuuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/domino14/fpmm/pkg/fixed"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TradeFunc computes a trade against the current state of a market. It runs
// inside the transaction that persists its result.
type TradeFunc func(m *Market) (*Trade, error)

type SqliteStore struct {
	db *sql.DB
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func NewSqliteStore(dbName string) (*SqliteStore, error) {
	sep := "?"
	if strings.Contains(dbName, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite3", dbName+sep+"_foreign_keys=on&_busy_timeout=5000&_txlock=exclusive")
	if err != nil {
		return nil, err
	}
	// A single connection serializes writers, so a pool is read and updated
	// by one trade at a time.
	db.SetMaxOpenConns(1)
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func dbid(ctx context.Context, q querier, tableName, otheridName, otherid string) (int64, error) {
	var id int64

	query := fmt.Sprintf("SELECT id FROM %s WHERE %s = ?", tableName, otheridName)

	err := q.QueryRowContext(ctx, query, otherid).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// MaxOutcomes bounds the number of outcomes of a market. Pricing a pool
// takes a quadratic number of big integer products.
const MaxOutcomes = 32

func validateNewMarket(nm NewMarket) error {
	if len(nm.Balances) < 2 {
		return fmt.Errorf("%w: a market needs at least two outcomes", ErrInvalidMarket)
	}
	if len(nm.Balances) > MaxOutcomes {
		return fmt.Errorf("%w: %d outcomes, at most %d allowed", ErrInvalidMarket, len(nm.Balances), MaxOutcomes)
	}
	for i, b := range nm.Balances {
		if b == nil || b.Sign() <= 0 {
			return fmt.Errorf("%w: balance of outcome %d must be positive", ErrInvalidMarket, i)
		}
	}
	if nm.Fee < 0 || nm.Fee >= 1 {
		return fmt.Errorf("%w: fee %v must be in [0, 1)", ErrInvalidMarket, nm.Fee)
	}
	if (nm.LowerBound == nil) != (nm.UpperBound == nil) {
		return fmt.Errorf("%w: scalar markets need both bounds", ErrInvalidMarket)
	}
	if nm.LowerBound != nil {
		if len(nm.Balances) != 2 {
			return fmt.Errorf("%w: scalar markets have exactly two outcomes", ErrInvalidMarket)
		}
		if nm.LowerBound.Cmp(nm.UpperBound) > 0 {
			return fmt.Errorf("%w: lower bound above upper bound", ErrInvalidMarket)
		}
	}
	return nil
}

func nullableAmount(v *big.Int) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: v.String(), Valid: true}
}

func scanAmount(s string) (*big.Int, error) {
	v, err := fixed.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("corrupt amount in store: %w", err)
	}
	return v, nil
}

// CreateMarket stores a new, open market and returns its id.
func (s *SqliteStore) CreateMarket(ctx context.Context, nm NewMarket) (string, error) {
	if err := validateNewMarket(nm); err != nil {
		return "", err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	id := shortuuid.New()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO markets (uuid, description, fee, lower_bound, upper_bound, is_open, date_created)
		VALUES (?, ?, ?, ?, ?, 1, ?)`,
		id, nm.Description, nm.Fee, nullableAmount(nm.LowerBound), nullableAmount(nm.UpperBound), now())
	if err != nil {
		return "", err
	}
	marketID, err := res.LastInsertId()
	if err != nil {
		return "", err
	}
	if err := writeBalances(ctx, tx, marketID, nm.Balances); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	log.Debug().Str("market", id).Int("outcomes", len(nm.Balances)).Msg("created-market")
	return id, nil
}

func writeBalances(ctx context.Context, q querier, marketID int64, balances []*big.Int) error {
	for i, b := range balances {
		_, err := q.ExecContext(ctx, `
			INSERT INTO pool_balances (market_id, outcome_index, holdings)
			VALUES (?, ?, ?)
			ON CONFLICT (market_id, outcome_index) DO UPDATE SET holdings = excluded.holdings`,
			marketID, i, b.String())
		if err != nil {
			return err
		}
	}
	return nil
}

// GetMarket returns the market with the given uuid, or ErrMarketNotFound.
func (s *SqliteStore) GetMarket(ctx context.Context, uuid string) (*Market, error) {
	return getMarket(ctx, s.db, uuid)
}

func getMarket(ctx context.Context, q querier, uuid string) (*Market, error) {
	var (
		id         int64
		lower      sql.NullString
		upper      sql.NullString
		dateClosed sql.NullString
	)
	m := &Market{}
	err := q.QueryRowContext(ctx, `
		SELECT id, uuid, description, fee, lower_bound, upper_bound, is_open, date_created, date_closed
		FROM markets
		WHERE uuid = ?`, uuid).Scan(&id, &m.ID, &m.Description, &m.Fee, &lower, &upper,
		&m.IsOpen, &m.DateCreated, &dateClosed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrMarketNotFound, uuid)
	}
	if err != nil {
		return nil, err
	}
	m.DateClosed = dateClosed.String
	if lower.Valid && upper.Valid {
		if m.LowerBound, err = scanAmount(lower.String); err != nil {
			return nil, err
		}
		if m.UpperBound, err = scanAmount(upper.String); err != nil {
			return nil, err
		}
	}
	m.Balances, err = getBalances(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func getBalances(ctx context.Context, q querier, marketID int64) ([]*big.Int, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT holdings FROM pool_balances
		WHERE market_id = ?
		ORDER BY outcome_index`, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	balances := []*big.Int{}
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		b, err := scanAmount(h)
		if err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

func (s *SqliteStore) GetOpenMarkets(ctx context.Context) ([]*Market, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uuid
		FROM markets
		WHERE is_open = 1
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rows have to be closed before the next query; there is only one
	// connection.
	markets := make([]*Market, 0, len(ids))
	for _, id := range ids {
		m, err := s.GetMarket(ctx, id)
		if err != nil {
			return nil, err
		}
		markets = append(markets, m)
	}
	return markets, nil
}

// CloseMarket stops a market from trading.
func (s *SqliteStore) CloseMarket(ctx context.Context, uuid string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE markets SET is_open = 0, date_closed = ?
		WHERE uuid = ? AND is_open = 1`, now(), uuid)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// either unknown, or already closed
		if _, err := s.GetMarket(ctx, uuid); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrClosedMarket, uuid)
	}
	return nil
}

// ApplyTrade loads the market, lets fn compute a trade against it and
// stores the resulting balances and the trade, all in one transaction. Any
// error returned by fn aborts the transaction.
func (s *SqliteStore) ApplyTrade(ctx context.Context, uuid string, fn TradeFunc) (*Trade, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	m, err := getMarket(ctx, tx, uuid)
	if err != nil {
		return nil, err
	}
	if !m.IsOpen {
		return nil, fmt.Errorf("%w: %s", ErrClosedMarket, uuid)
	}
	trade, err := fn(m)
	if err != nil {
		return nil, err
	}
	marketID, err := dbid(ctx, tx, "markets", "uuid", uuid)
	if err != nil {
		return nil, err
	}
	if err := writeBalances(ctx, tx, marketID, trade.Balances); err != nil {
		return nil, err
	}

	trade.ID = shortuuid.New()
	trade.MarketID = uuid
	trade.DateCreated = now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO trades (uuid, market_id, kind, outcome_index, collateral, shares, date_created)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		trade.ID, marketID, string(trade.Kind), trade.OutcomeIndex,
		trade.Collateral.String(), trade.Shares.String(), trade.DateCreated)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return trade, nil
}

// GetTrades returns the trades of a market, oldest first. A positive limit
// caps the number of trades returned.
func (s *SqliteStore) GetTrades(ctx context.Context, uuid string, limit int) ([]*Trade, error) {
	marketID, err := dbid(ctx, s.db, "markets", "uuid", uuid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrMarketNotFound, uuid)
	}
	if err != nil {
		return nil, err
	}
	limitRendered := ""
	if limit > 0 {
		limitRendered = fmt.Sprintf("LIMIT %d", limit)
	}
	fullQuery := fmt.Sprintf(`
		SELECT uuid, kind, outcome_index, collateral, shares, date_created
		FROM trades
		WHERE market_id = ?
		ORDER BY id
		%s`, limitRendered)
	log.Debug().Str("fullQuery", fullQuery).Str("storeMethod", "GetTrades").Msg("executing-query")
	rows, err := s.db.QueryContext(ctx, fullQuery, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trades := []*Trade{}
	for rows.Next() {
		var (
			kind               string
			collateral, shares string
		)
		t := &Trade{MarketID: uuid}
		if err := rows.Scan(&t.ID, &kind, &t.OutcomeIndex, &collateral, &shares, &t.DateCreated); err != nil {
			return nil, err
		}
		t.Kind = TradeKind(kind)
		if t.Collateral, err = scanAmount(collateral); err != nil {
			return nil, err
		}
		if t.Shares, err = scanAmount(shares); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
