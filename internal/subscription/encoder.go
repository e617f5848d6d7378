package subscription

import (
	"github.com/google/uuid"

	"github.com/krobus00/futures-feed-service/internal/constant"
	"github.com/krobus00/futures-feed-service/internal/entity"
	"github.com/krobus00/futures-feed-service/internal/wire"
)

// FrameEncoder builds the subscribe/unsubscribe wire frames for one
// transport variant.
type FrameEncoder interface {
	EncodeSubscribe(sub entity.Subscription) ([]byte, error)
	EncodeUnsubscribe(sub entity.Subscription) ([]byte, error)
}

// BinaryFrameEncoder emits MARKET_DATA_REQUEST frames:
// [symbol][exchange][flag u32], flag 1 subscribes and 0 unsubscribes.
type BinaryFrameEncoder struct{}

func (BinaryFrameEncoder) encode(sub entity.Subscription, flag uint32) []byte {
	var w wire.PayloadWriter
	w.String(sub.Symbol).String(sub.Exchange).Uint32(flag)
	return wire.EncodeBinary(constant.MsgMarketDataRequest, w.Bytes())
}

func (e BinaryFrameEncoder) EncodeSubscribe(sub entity.Subscription) ([]byte, error) {
	return e.encode(sub, 1), nil
}

func (e BinaryFrameEncoder) EncodeUnsubscribe(sub entity.Subscription) ([]byte, error) {
	return e.encode(sub, 0), nil
}

// TextFrameEncoder emits the plugin API's JSON control lines.
type TextFrameEncoder struct{}

type textControlFrame struct {
	RequestID string   `json:"request_id"`
	Action    string   `json:"action"`
	Type      string   `json:"type"`
	Symbol    string   `json:"symbol"`
	Exchange  string   `json:"exchange"`
	DataTypes []string `json:"data_types,omitempty"`
}

func (TextFrameEncoder) EncodeSubscribe(sub entity.Subscription) ([]byte, error) {
	return wire.EncodeText(textControlFrame{
		RequestID: uuid.NewString(),
		Action:    constant.TextActionSubscribe,
		Type:      constant.TextTypeMarketData,
		Symbol:    sub.Symbol,
		Exchange:  sub.Exchange,
		DataTypes: []string{constant.TextTypeTrade, constant.TextTypeQuote, constant.TextTypeDepth},
	})
}

func (TextFrameEncoder) EncodeUnsubscribe(sub entity.Subscription) ([]byte, error) {
	return wire.EncodeText(textControlFrame{
		RequestID: uuid.NewString(),
		Action:    constant.TextActionUnsubscribe,
		Type:      constant.TextTypeMarketData,
		Symbol:    sub.Symbol,
		Exchange:  sub.Exchange,
	})
}
