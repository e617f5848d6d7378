package entity

// Subscription is a (symbol, exchange) pair. Set membership over Key() is
// the unit of dedup: the same pair is never subscribed twice concurrently.
type Subscription struct {
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
}

func (s Subscription) Key() string {
	return s.Symbol + ":" + s.Exchange
}

// SubscriptionRequest is the control queue payload. Exchange may be empty,
// in which case the collector resolves it from the symbol prefix.
type SubscriptionRequest struct {
	RequestID string `json:"request_id,omitempty"`
	Symbol    string `json:"symbol"`
	Exchange  string `json:"exchange,omitempty"`
}
