package dispatch

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"

	"github.com/krobus00/futures-feed-service/internal/constant"
	"github.com/krobus00/futures-feed-service/internal/entity"
	"github.com/krobus00/futures-feed-service/internal/symbols"
	"github.com/krobus00/futures-feed-service/internal/wire"
)

// Dispatcher classifies decoded frames and normalizes them into the
// entity.Message variants. A nil message with a nil error means the frame
// was intentionally ignored. A non-nil error is always a semantic decode
// failure scoped to that one frame, never stream fatal.
type Dispatcher struct {
	resolver *symbols.Resolver
	layouts  LayoutTable
	now      func() time.Time
}

type Option func(*Dispatcher)

// WithLayoutTable swaps the binary field layout table, e.g. for a vendor
// protocol revision.
func WithLayoutTable(table LayoutTable) Option {
	return func(d *Dispatcher) {
		d.layouts = table
	}
}

// WithClock overrides receipt-time stamping, for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

func New(resolver *symbols.Resolver, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		resolver: resolver,
		layouts:  DefaultLayoutTable(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// HandleBinary routes one binary frame through the layout table. Tags
// outside the table come back as UnknownMessage with the payload intact.
func (d *Dispatcher) HandleBinary(frame wire.Frame) (entity.Message, error) {
	layout, ok := d.layouts[frame.Type]
	if !ok {
		return entity.UnknownMessage{BinaryType: frame.Type, Raw: frame.Payload}, nil
	}
	return layout(d, frame.Payload)
}

type textLevel struct {
	Price      float64 `json:"price"`
	Size       int64   `json:"size"`
	OrderCount int32   `json:"order_count"`
}

type textEnvelope struct {
	Type      string      `json:"type"`
	Symbol    string      `json:"symbol"`
	Exchange  string      `json:"exchange"`
	Timestamp string      `json:"timestamp"`
	Price     float64     `json:"price"`
	Size      int64       `json:"size"`
	BidPrice  *float64    `json:"bid_price"`
	AskPrice  *float64    `json:"ask_price"`
	BidSize   *int64      `json:"bid_size"`
	AskSize   *int64      `json:"ask_size"`
	Aggressor int         `json:"aggressor"`
	TradeID   string      `json:"trade_id"`
	Bids      []textLevel `json:"bids"`
	Asks      []textLevel `json:"asks"`
	Message   string      `json:"message"`
	Code      string      `json:"code"`
}

// HandleText routes one JSON plugin frame by its type literal.
func (d *Dispatcher) HandleText(frame wire.Frame) (entity.Message, error) {
	var envelope textEnvelope
	if err := json.Unmarshal(frame.Payload, &envelope); err != nil {
		return nil, fmt.Errorf("decode json frame: %w", err)
	}

	switch strings.ToUpper(envelope.Type) {
	case constant.TextTypeTick, constant.TextTypeTrade, constant.TextTypeQuote, constant.TextTypeBBO:
		return d.textTick(envelope)
	case constant.TextTypeDepth, constant.TextTypeLevel2:
		return d.textDepth(envelope)
	case constant.TextTypeStatus, constant.TextTypeError:
		text := envelope.Message
		if text == "" {
			text = string(frame.Payload)
		}
		return entity.ControlMessage{Kind: strings.ToUpper(envelope.Type), Text: text}, nil
	default:
		return entity.UnknownMessage{TextType: envelope.Type, Raw: frame.Payload}, nil
	}
}

func (d *Dispatcher) textTick(envelope textEnvelope) (entity.Message, error) {
	if envelope.Symbol == "" {
		return nil, fmt.Errorf("%s frame missing symbol", envelope.Type)
	}

	tick := entity.TickRecord{
		Timestamp: d.parseTimestamp(envelope.Timestamp),
		Symbol:    envelope.Symbol,
		Exchange:  d.exchangeFor(envelope),
		Price:     decimal.NewFromFloat(envelope.Price),
		Size:      envelope.Size,
	}
	if envelope.BidPrice != nil {
		tick.BidPrice = nullDecimalFromFloat(*envelope.BidPrice)
	}
	if envelope.AskPrice != nil {
		tick.AskPrice = nullDecimalFromFloat(*envelope.AskPrice)
	}
	if envelope.BidSize != nil {
		tick.BidSize = null.IntFrom(*envelope.BidSize)
	}
	if envelope.AskSize != nil {
		tick.AskSize = null.IntFrom(*envelope.AskSize)
	}
	if envelope.TradeID != "" {
		tick.TradeID = null.StringFrom(envelope.TradeID)
	}
	switch envelope.Aggressor {
	case 1:
		tick.AggressorSide = null.StringFrom(string(entity.AggressorBuy))
	case 2:
		tick.AggressorSide = null.StringFrom(string(entity.AggressorSell))
	}

	return entity.TickMessage{Tick: tick}, nil
}

func (d *Dispatcher) textDepth(envelope textEnvelope) (entity.Message, error) {
	if envelope.Symbol == "" {
		return nil, fmt.Errorf("%s frame missing symbol", envelope.Type)
	}

	snapshot := entity.DepthSnapshot{
		Timestamp: d.parseTimestamp(envelope.Timestamp),
		Symbol:    envelope.Symbol,
		Exchange:  d.exchangeFor(envelope),
	}
	snapshot.Levels = appendTextLevels(snapshot.Levels, entity.DepthSideBid, envelope.Bids)
	snapshot.Levels = appendTextLevels(snapshot.Levels, entity.DepthSideAsk, envelope.Asks)

	return entity.DepthMessage{Depth: snapshot}, nil
}

func appendTextLevels(levels []entity.DepthLevel, side entity.DepthSide, raw []textLevel) []entity.DepthLevel {
	if len(raw) > entity.MaxDepthLevels {
		raw = raw[:entity.MaxDepthLevels]
	}
	for i, level := range raw {
		orderCount := level.OrderCount
		if orderCount <= 0 {
			orderCount = 1
		}
		levels = append(levels, entity.DepthLevel{
			Side:       side,
			Level:      int32(i + 1),
			Price:      decimal.NewFromFloat(level.Price),
			Size:       level.Size,
			OrderCount: orderCount,
		})
	}
	return levels
}

func (d *Dispatcher) exchangeFor(envelope textEnvelope) string {
	if exchange := strings.TrimSpace(envelope.Exchange); exchange != "" {
		return strings.ToUpper(exchange)
	}
	return d.resolver.ResolveExchange(envelope.Symbol)
}

func (d *Dispatcher) parseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return d.now()
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05.999999"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC()
		}
	}
	return d.now()
}
