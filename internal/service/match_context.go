package service

import (
	"slices"

	"premises-geocoder/internal/models"
)

// matchContext is the state of one NextMatch call: what the chain knows about
// itself and which markets are ruled out. The exclusion set only grows.
type matchContext struct {
	market    models.Market
	names     []string
	addresses []string
	pos       []string

	order []int64
	seen  map[int64]bool
}

func newMatchContext(market models.Market, chain []models.Market) *matchContext {
	mc := &matchContext{market: market, seen: map[int64]bool{}}
	for _, m := range chain {
		mc.add(m.ID)
		mc.names = appendDistinct(mc.names, m.Name)
		mc.addresses = appendDistinct(mc.addresses, m.Address)
		mc.pos = appendDistinct(mc.pos, m.PO)
	}
	return mc
}

func (mc *matchContext) add(ids ...int64) {
	for _, id := range ids {
		if !mc.seen[id] {
			mc.seen[id] = true
			mc.order = append(mc.order, id)
		}
	}
}

func (mc *matchContext) excluded() []int64 {
	return slices.Clone(mc.order)
}

func (mc *matchContext) noSignal() bool {
	return len(mc.names) == 0 && len(mc.addresses) == 0 && len(mc.pos) == 0
}

func (mc *matchContext) query(byCity bool) models.MarketQuery {
	return models.MarketQuery{
		State:   mc.market.State,
		City:    mc.market.City,
		ByCity:  byCity,
		Exclude: mc.excluded(),
	}
}

func appendDistinct(values []string, v string) []string {
	if v == "" || slices.Contains(values, v) {
		return values
	}
	return append(values, v)
}
