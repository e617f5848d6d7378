package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/krobus00/futures-feed-service/internal/entity"
)

type SymbolRepository struct {
	db *sqlx.DB
}

func NewSymbolRepository(db *sqlx.DB) *SymbolRepository {
	return &SymbolRepository{db: db}
}

func (r *SymbolRepository) Upsert(ctx context.Context, data entity.Symbol) error {
	queryBuilder := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Insert(data.TableName()).
		Columns("symbol", "exchange", "active").
		Values(data.Symbol, data.Exchange, data.Active).
		Suffix(`ON CONFLICT (symbol)
DO UPDATE SET
	exchange = EXCLUDED.exchange,
	active = EXCLUDED.active,
	updated_at = now()`)

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *SymbolRepository) GetActive(ctx context.Context) ([]entity.Symbol, error) {
	var rows []entity.Symbol
	err := r.db.SelectContext(ctx, &rows, "SELECT * FROM symbols WHERE active = TRUE ORDER BY symbol")
	return rows, err
}
