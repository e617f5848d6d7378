package dispatch

import (
	"fmt"
	"math"
	"time"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"

	"github.com/krobus00/futures-feed-service/internal/constant"
	"github.com/krobus00/futures-feed-service/internal/entity"
	"github.com/krobus00/futures-feed-service/internal/wire"
)

// BinaryLayout decodes one vendor message type's positional payload into a
// normalized message. Layouts live in a table rather than a switch so a
// vendor format revision is a table swap, not a code change.
type BinaryLayout func(d *Dispatcher, payload []byte) (entity.Message, error)

type LayoutTable map[uint16]BinaryLayout

// DefaultLayoutTable covers the market data family of the binary feed.
func DefaultLayoutTable() LayoutTable {
	return LayoutTable{
		constant.MsgLastTrade:         decodeLastTrade,
		constant.MsgBidOffer:          decodeBidOffer,
		constant.MsgMarketDepthUpdate: decodeMarketDepth,
		constant.MsgMarketDepthReply:  decodeMarketDepth,
	}
}

// LAST_TRADE: [symbol][price f64][size u32][timestamp u64 ms epoch]
// with an optional trailing aggressor byte (1=buy, 2=sell).
func decodeLastTrade(d *Dispatcher, payload []byte) (entity.Message, error) {
	r := wire.NewPayloadReader(payload)
	symbol := r.String()
	price := r.Float64()
	size := r.Uint32()
	timestamp := r.Uint64()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("decode last trade: %w", err)
	}
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return nil, fmt.Errorf("decode last trade: non-finite price for %s", symbol)
	}

	tick := entity.TickRecord{
		Timestamp: time.UnixMilli(int64(timestamp)).UTC(),
		Symbol:    symbol,
		Exchange:  d.resolver.ResolveExchange(symbol),
		Price:     decimal.NewFromFloat(price),
		Size:      int64(size),
	}
	if r.Remaining() >= 4 {
		switch aggressor := r.Uint32(); aggressor {
		case 1:
			tick.AggressorSide = null.StringFrom(string(entity.AggressorBuy))
		case 2:
			tick.AggressorSide = null.StringFrom(string(entity.AggressorSell))
		}
	}

	return entity.TickMessage{Tick: tick}, nil
}

// BID_OFFER: [symbol][bid_price f64][bid_size u32][ask_price f64][ask_size u32].
// The feed carries no timestamp on quotes; receipt time is used.
func decodeBidOffer(d *Dispatcher, payload []byte) (entity.Message, error) {
	r := wire.NewPayloadReader(payload)
	symbol := r.String()
	bidPrice := r.Float64()
	bidSize := r.Uint32()
	askPrice := r.Float64()
	askSize := r.Uint32()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("decode bid offer: %w", err)
	}

	tick := entity.TickRecord{
		Timestamp: d.now(),
		Symbol:    symbol,
		Exchange:  d.resolver.ResolveExchange(symbol),
		BidPrice:  nullDecimalFromFloat(bidPrice),
		AskPrice:  nullDecimalFromFloat(askPrice),
		BidSize:   null.IntFrom(int64(bidSize)),
		AskSize:   null.IntFrom(int64(askSize)),
	}

	return entity.TickMessage{Tick: tick}, nil
}

// MARKET_DEPTH_UPDATE / MARKET_DEPTH_RESPONSE:
// [symbol][timestamp u64 ms][bid_count u32][{price f64, size u32, orders u32}...]
// [ask_count u32][{price f64, size u32, orders u32}...].
// Levels beyond the book cap are consumed but dropped.
func decodeMarketDepth(d *Dispatcher, payload []byte) (entity.Message, error) {
	r := wire.NewPayloadReader(payload)
	symbol := r.String()
	timestamp := r.Uint64()

	snapshot := entity.DepthSnapshot{
		Timestamp: time.UnixMilli(int64(timestamp)).UTC(),
		Symbol:    symbol,
		Exchange:  d.resolver.ResolveExchange(symbol),
	}

	for _, side := range []entity.DepthSide{entity.DepthSideBid, entity.DepthSideAsk} {
		count := int(r.Uint32())
		for i := 0; i < count; i++ {
			price := r.Float64()
			size := r.Uint32()
			orders := r.Uint32()
			if r.Err() != nil {
				break
			}
			if i >= entity.MaxDepthLevels {
				continue
			}
			snapshot.Levels = append(snapshot.Levels, entity.DepthLevel{
				Side:       side,
				Level:      int32(i + 1),
				Price:      decimal.NewFromFloat(price),
				Size:       int64(size),
				OrderCount: int32(orders),
			})
		}
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("decode market depth: %w", err)
	}

	return entity.DepthMessage{Depth: snapshot}, nil
}

func nullDecimalFromFloat(v float64) decimal.NullDecimal {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: decimal.NewFromFloat(v), Valid: true}
}

// BinaryTypeName labels a vendor tag for logging. Unlisted tags render as
// UNKNOWN(n).
func BinaryTypeName(t uint16) string {
	names := map[uint16]string{
		constant.MsgMarketDataRequest:  "MARKET_DATA_REQUEST",
		constant.MsgMarketDataResponse: "MARKET_DATA_RESPONSE",
		constant.MsgLastTrade:          "LAST_TRADE",
		constant.MsgBidOffer:           "BID_OFFER",
		constant.MsgMarketMode:         "MARKET_MODE",
		constant.MsgOpenInterest:       "OPEN_INTEREST",
		constant.MsgSettlementPrice:    "SETTLEMENT_PRICE",
		constant.MsgMarketDepthRequest: "MARKET_DEPTH_REQUEST",
		constant.MsgMarketDepthReply:   "MARKET_DEPTH_RESPONSE",
		constant.MsgMarketDepthUpdate:  "MARKET_DEPTH_UPDATE",
		constant.MsgTradeVolume:        "TRADE_VOLUME",
		constant.MsgOpenRange:          "OPEN_RANGE",
		constant.MsgHighLow:            "HIGH_LOW",
		constant.MsgTradeStatistics:    "TRADE_STATISTICS",
	}
	if name, ok := names[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", t)
}
