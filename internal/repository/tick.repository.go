package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/krobus00/futures-feed-service/internal/entity"
)

type TickRepository struct {
	db *sqlx.DB
}

func NewTickRepository(db *sqlx.DB) *TickRepository {
	return &TickRepository{db: db}
}

// Insert writes one tick in its own transaction. At-most-once: the caller
// logs and drops the record on failure, a stale tick is not worth a retry
// queue.
func (r *TickRepository) Insert(ctx context.Context, data entity.TickRecord) error {
	queryBuilder := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Insert(data.TableName()).
		Columns(
			"timestamp",
			"symbol",
			"exchange",
			"price",
			"size",
			"bid_price",
			"ask_price",
			"bid_size",
			"ask_size",
			"aggressor_side",
			"trade_id",
		).
		Values(
			data.Timestamp,
			data.Symbol,
			data.Exchange,
			data.Price,
			data.Size,
			data.BidPrice,
			data.AskPrice,
			data.BidSize,
			data.AskSize,
			data.AggressorSide,
			data.TradeID,
		)

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}
