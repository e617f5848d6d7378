package entity

import (
	"time"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

type AggressorSide string

const (
	AggressorBuy  AggressorSide = "BUY"
	AggressorSell AggressorSide = "SELL"
)

// TickRecord is the normalized shape for both trade and quote updates.
// Trade messages fill Price/Size, quote messages fill the bid/ask columns;
// both land in the same table so there is a single insert path.
type TickRecord struct {
	Timestamp     time.Time           `db:"timestamp"`
	Symbol        string              `db:"symbol"`
	Exchange      string              `db:"exchange"`
	Price         decimal.Decimal     `db:"price"`
	Size          int64               `db:"size"`
	BidPrice      decimal.NullDecimal `db:"bid_price"`
	AskPrice      decimal.NullDecimal `db:"ask_price"`
	BidSize       null.Int            `db:"bid_size"`
	AskSize       null.Int            `db:"ask_size"`
	AggressorSide null.String         `db:"aggressor_side"`
	TradeID       null.String         `db:"trade_id"`
}

func (t TickRecord) TableName() string {
	return "tick_data"
}
