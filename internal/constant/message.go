package constant

// Binary feed message types. The vendor numbers the market data family in
// the 100s, history in the 200s and PNL in the 300s; only the market data
// family is handled here, the rest pass through as unknown.
const (
	MsgMarketDataRequest  uint16 = 100
	MsgMarketDataResponse uint16 = 101
	MsgLastTrade          uint16 = 102
	MsgBidOffer           uint16 = 103
	MsgMarketMode         uint16 = 104
	MsgOpenInterest       uint16 = 105
	MsgSettlementPrice    uint16 = 106
	MsgMarketDepthRequest uint16 = 107
	MsgMarketDepthReply   uint16 = 108
	MsgMarketDepthUpdate  uint16 = 109
	MsgTradeVolume        uint16 = 110
	MsgOpenRange          uint16 = 111
	MsgHighLow            uint16 = 112
	MsgTradeStatistics    uint16 = 113
)

// JSON plugin feed message type literals.
const (
	TextTypeTick   = "TICK"
	TextTypeTrade  = "TRADE"
	TextTypeQuote  = "QUOTE"
	TextTypeBBO    = "BBO"
	TextTypeDepth  = "DEPTH"
	TextTypeLevel2 = "LEVEL2"
	TextTypeStatus = "STATUS"
	TextTypeError  = "ERROR"

	TextActionSubscribe   = "SUBSCRIBE"
	TextActionUnsubscribe = "UNSUBSCRIBE"
	TextTypeMarketData    = "MARKET_DATA"
)

// Control queue and event stream names.
const (
	SubscriptionQueueKey = "symbol_subscriptions"

	MarketDataStreamName         = "market_data"
	MarketDataStreamSubjectAll   = "market_data.*"
	MarketDataStreamSubjectTick  = "market_data.tick"
	MarketDataStreamSubjectDepth = "market_data.depth"
)
