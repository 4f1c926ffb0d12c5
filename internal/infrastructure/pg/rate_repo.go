package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"cryptorates-service/internal/application"
	"cryptorates-service/internal/domain"
)

var _ application.RateRepo = (*RateRepo)(nil)

type RateRepo struct{ db *DB }

func NewRateRepo(db *DB) *RateRepo { return &RateRepo{db: db} }

const insertRate = `
    INSERT INTO exchange_rates(
        id, crypto_currency, fiat_currency, rate, bid, ask,
        spread_percent, source, confidence_score, provider_breakdown,
        valid_until, created_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

func (r *RateRepo) SaveQuotes(ctx context.Context, rows []domain.Rate) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, row := range rows {
		args, err := insertArgs(row)
		if err != nil {
			return err
		}
		batch.Queue(insertRate, args...)
	}
	return r.db.Pool.SendBatch(ctx, batch).Close()
}

func (r *RateRepo) SaveAggregate(ctx context.Context, row domain.Rate) error {
	args, err := insertArgs(row)
	if err != nil {
		return err
	}
	_, err = r.db.Pool.Exec(ctx, insertRate, args...)
	return err
}

func insertArgs(row domain.Rate) ([]any, error) {
	id := row.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := row.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	var breakdown []byte
	if len(row.ProviderBreakdown) > 0 {
		b, err := json.Marshal(row.ProviderBreakdown)
		if err != nil {
			return nil, fmt.Errorf("encode provider breakdown: %w", err)
		}
		breakdown = b
	}
	return []any{
		id, row.Pair.Crypto, row.Pair.Fiat, row.Rate, row.Bid, row.Ask,
		row.SpreadPercent, string(row.Source), row.ConfidenceScore, breakdown,
		row.ValidUntil, createdAt,
	}, nil
}

const selectRate = `
    SELECT id::text, crypto_currency, fiat_currency, rate::float8,
           bid::float8, ask::float8, spread_percent::float8, source,
           confidence_score::float8, provider_breakdown, valid_until, created_at
    FROM exchange_rates`

func (r *RateRepo) FindLatest(ctx context.Context, pair domain.Pair, source domain.RateSource) (domain.Rate, error) {
	q := selectRate + `
        WHERE crypto_currency=$1 AND fiat_currency=$2 AND source=$3
        ORDER BY created_at DESC
        LIMIT 1`
	row, err := scanRate(r.db.Pool.QueryRow(ctx, q, pair.Crypto, pair.Fiat, string(source)))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Rate{}, application.ErrNotFound
	}
	if err != nil {
		return domain.Rate{}, err
	}
	return row, nil
}

func (r *RateRepo) FindRange(ctx context.Context, pair domain.Pair, source domain.RateSource, from, to time.Time) ([]domain.Rate, error) {
	q := selectRate + `
        WHERE crypto_currency=$1 AND fiat_currency=$2 AND source=$3
          AND created_at BETWEEN $4 AND $5
        ORDER BY created_at ASC`
	rows, err := r.db.Pool.Query(ctx, q, pair.Crypto, pair.Fiat, string(source), from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Rate
	for rows.Next() {
		rate, err := scanRate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rate)
	}
	return out, rows.Err()
}

func scanRate(row pgx.Row) (domain.Rate, error) {
	var out domain.Rate
	var source string
	var breakdown []byte
	err := row.Scan(
		&out.ID, &out.Pair.Crypto, &out.Pair.Fiat, &out.Rate,
		&out.Bid, &out.Ask, &out.SpreadPercent, &source,
		&out.ConfidenceScore, &breakdown, &out.ValidUntil, &out.CreatedAt,
	)
	if err != nil {
		return domain.Rate{}, err
	}
	out.Source = domain.RateSource(source)
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &out.ProviderBreakdown); err != nil {
			return domain.Rate{}, fmt.Errorf("decode provider breakdown: %w", err)
		}
	}
	return out, nil
}
