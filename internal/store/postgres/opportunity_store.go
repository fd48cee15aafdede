package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liqtrack/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates a store backed by the given connection pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const oppSelectCols = `id, symbol, buy_venue, sell_venue, buy_price, sell_price,
	spread_bps, estimated_profit_usd, max_trade_size, confidence_score,
	detected_at, expires_at`

// Insert stores one detected opportunity.
func (s *OpportunityStore) Insert(ctx context.Context, opp domain.ArbitrageOpportunity) error {
	const query = `
		INSERT INTO arbitrage_opportunities (
			id, symbol, buy_venue, sell_venue, buy_price, sell_price,
			spread_bps, estimated_profit_usd, max_trade_size, confidence_score,
			detected_at, expires_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12
		)`

	_, err := s.pool.Exec(ctx, query,
		opp.ID, opp.Symbol, opp.BuyVenue, opp.SellVenue, opp.BuyPrice, opp.SellPrice,
		opp.SpreadBps, opp.EstimatedProfitUSD, opp.MaxTradeSize, opp.ConfidenceScore,
		opp.DetectedAt, opp.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// ListRecent returns the most recently detected opportunities, newest first.
func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]domain.ArbitrageOpportunity, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM arbitrage_opportunities
		ORDER BY detected_at DESC
		LIMIT $1`, oppSelectCols)

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent opportunities: %w", err)
	}
	defer rows.Close()

	return scanOpportunities(rows)
}

// ListBySymbol returns the most recent opportunities for one symbol, newest
// first.
func (s *OpportunityStore) ListBySymbol(ctx context.Context, symbol string, limit int) ([]domain.ArbitrageOpportunity, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM arbitrage_opportunities
		WHERE symbol = $1
		ORDER BY detected_at DESC
		LIMIT $2`, oppSelectCols)

	rows, err := s.pool.Query(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities for %s: %w", symbol, err)
	}
	defer rows.Close()

	return scanOpportunities(rows)
}

func scanOpportunities(rows pgx.Rows) ([]domain.ArbitrageOpportunity, error) {
	var opps []domain.ArbitrageOpportunity
	for rows.Next() {
		var opp domain.ArbitrageOpportunity
		err := rows.Scan(
			&opp.ID, &opp.Symbol, &opp.BuyVenue, &opp.SellVenue, &opp.BuyPrice, &opp.SellPrice,
			&opp.SpreadBps, &opp.EstimatedProfitUSD, &opp.MaxTradeSize, &opp.ConfidenceScore,
			&opp.DetectedAt, &opp.ExpiresAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		opps = append(opps, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate opportunities: %w", err)
	}
	return opps, nil
}

// Compile-time interface check.
var _ domain.OpportunityStore = (*OpportunityStore)(nil)
