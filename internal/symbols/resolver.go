package symbols

import (
	"strings"

	"github.com/krobus00/futures-feed-service/internal/entity"
)

// Static root-prefix to exchange table for the common futures complexes.
var rootExchanges = map[string]string{
	// Metals (COMEX/NYMEX)
	"GC":  "COMEX",
	"MGC": "COMEX",
	"GLD": "COMEX",
	"SI":  "COMEX",
	"HG":  "COMEX",
	"PA":  "NYMEX",
	"PL":  "NYMEX",

	// Energy (NYMEX)
	"CL": "NYMEX",
	"NG": "NYMEX",
	"RB": "NYMEX",
	"HO": "NYMEX",

	// Index (CME/CBOT)
	"ES":  "CME",
	"NQ":  "CME",
	"RTY": "CME",
	"YM":  "CBOT",

	// FX (CME)
	"6A": "CME",
	"6B": "CME",
	"6C": "CME",
	"6E": "CME",
	"6J": "CME",
	"6S": "CME",

	// Agriculture (CBOT)
	"ZC": "CBOT",
	"ZS": "CBOT",
	"ZW": "CBOT",
	"ZL": "CBOT",
	"ZM": "CBOT",
}

// Resolver maps raw contract symbols to their listing exchange. It is
// total: an unmatched prefix falls back to the configured default.
type Resolver struct {
	table           map[string]string
	defaultExchange string
}

func NewResolver(defaultExchange string) *Resolver {
	if strings.TrimSpace(defaultExchange) == "" {
		defaultExchange = "CME"
	}
	return &Resolver{table: rootExchanges, defaultExchange: defaultExchange}
}

// RootSymbol strips the trailing numeric month/year code, e.g. "ESU5" -> "ESU".
func RootSymbol(symbol string) string {
	return strings.TrimRight(symbol, "0123456789")
}

// ResolveExchange returns the exchange for a raw contract symbol using the
// longest matching root prefix.
func (r *Resolver) ResolveExchange(rawSymbol string) string {
	root := RootSymbol(strings.ToUpper(strings.TrimSpace(rawSymbol)))

	best := ""
	for prefix := range r.table {
		if strings.HasPrefix(root, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return r.defaultExchange
	}
	return r.table[best]
}

// ParseToken parses a "SYMBOL" or "SYMBOL:EXCHANGE" config token into a
// subscription, resolving the exchange when the token omits it. Empty
// tokens yield an empty symbol and should be skipped by the caller.
func (r *Resolver) ParseToken(token string) entity.Subscription {
	token = strings.ToUpper(strings.TrimSpace(token))
	if token == "" {
		return entity.Subscription{}
	}

	if symbol, exchange, found := strings.Cut(token, ":"); found && strings.TrimSpace(exchange) != "" {
		return entity.Subscription{Symbol: strings.TrimSpace(symbol), Exchange: strings.TrimSpace(exchange)}
	}

	return entity.Subscription{Symbol: token, Exchange: r.ResolveExchange(token)}
}

// ParseList expands a comma-separated or pre-split symbol list into
// subscriptions, dropping empty tokens.
func (r *Resolver) ParseList(tokens []string) []entity.Subscription {
	subs := make([]entity.Subscription, 0, len(tokens))
	for _, token := range tokens {
		for _, part := range strings.Split(token, ",") {
			sub := r.ParseToken(part)
			if sub.Symbol == "" {
				continue
			}
			subs = append(subs, sub)
		}
	}
	return subs
}
