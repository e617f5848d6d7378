package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/krobus00/futures-feed-service/internal/entity"
)

type Level2Repository struct {
	db        *sqlx.DB
	retention time.Duration
}

func NewLevel2Repository(db *sqlx.DB, retention time.Duration) *Level2Repository {
	if retention <= 0 {
		retention = time.Minute
	}
	return &Level2Repository{db: db, retention: retention}
}

// Insert writes one snapshot, one row per level, in a single transaction.
// Rows for the same symbol older than the retention window are pruned in
// the same transaction to bound table growth.
func (r *Level2Repository) Insert(ctx context.Context, data entity.DepthSnapshot) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin level2 tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	pruneQuery, pruneArgs, err := sq.StatementBuilder.
		PlaceholderFormat(sq.Dollar).
		Delete(data.TableName()).
		Where(sq.Eq{"symbol": data.Symbol}).
		Where(sq.Lt{"timestamp": data.Timestamp.Add(-r.retention)}).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, pruneQuery, pruneArgs...); err != nil {
		return fmt.Errorf("prune level2 rows: %w", err)
	}

	if len(data.Levels) > 0 {
		insertBuilder := sq.StatementBuilder.
			PlaceholderFormat(sq.Dollar).
			Insert(data.TableName()).
			Columns(
				"timestamp",
				"symbol",
				"exchange",
				"side",
				"level",
				"price",
				"size",
				"order_count",
			)

		for _, level := range data.Levels {
			insertBuilder = insertBuilder.Values(
				data.Timestamp,
				data.Symbol,
				data.Exchange,
				string(level.Side),
				level.Level,
				level.Price,
				level.Size,
				level.OrderCount,
			)
		}

		insertQuery, insertArgs, err := insertBuilder.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, insertQuery, insertArgs...); err != nil {
			return fmt.Errorf("insert level2 rows: %w", err)
		}
	}

	return tx.Commit()
}
