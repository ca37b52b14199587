package engine

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rakshitha2207/trading-price-engine/pkg/store"
)

// Aggregator computes one aggregated point per bucket boundary from the
// per-source buffers, falling back to forward fill when every source is out.
type Aggregator struct {
	symbol         string
	weights        map[string]float64
	staleThreshold time.Duration
}

// NewAggregator creates an aggregator for the configured source weights.
func NewAggregator(symbol string, weights map[string]float64, staleThreshold time.Duration) *Aggregator {
	return &Aggregator{
		symbol:         symbol,
		weights:        weights,
		staleThreshold: staleThreshold,
	}
}

// EffectiveWeights renormalizes the configured weights over the responding
// sources so they sum to 1 again.
func (a *Aggregator) EffectiveWeights(candidates []string) map[string]float64 {
	total := 0.0
	for _, id := range candidates {
		total += a.weights[id]
	}
	if total == 0 {
		return nil
	}

	out := make(map[string]float64, len(candidates))
	for _, id := range candidates {
		out[id] = a.weights[id] / total
	}
	return out
}

// ComputeBucket produces the point for the bucket ending at boundary.
// Sources that are down or whose newest usable observation is older than the
// stale threshold are excluded. With no usable source the previous point is
// carried forward; with no previous point either, ok is false and the bucket
// is skipped.
func (a *Aggregator) ComputeBucket(
	boundary time.Time,
	buffers map[string]*TickBuffer,
	monitor *Monitor,
	prev *store.AggregatedPoint,
) (store.AggregatedPoint, bool) {
	type candidate struct {
		id    string
		price decimal.Decimal
	}

	var candidates []candidate
	for id := range a.weights {
		status, _ := monitor.Status(id)
		if status == StatusDown {
			continue
		}

		buf, ok := buffers[id]
		if !ok {
			continue
		}
		obs, ok := buf.LatestAtOrBefore(boundary)
		if !ok {
			continue
		}
		if boundary.Sub(obs.Timestamp) > a.staleThreshold {
			continue
		}

		candidates = append(candidates, candidate{id: id, price: obs.Price})
	}

	if len(candidates) == 0 {
		if prev == nil {
			return store.AggregatedPoint{}, false
		}
		return store.AggregatedPoint{
			Symbol:    a.symbol,
			Timestamp: boundary,
			Price:     prev.Price,
			Sources:   []string{},
			Filled:    true,
		}, true
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.id
	}
	eff := a.EffectiveWeights(ids)

	price := decimal.Zero
	for _, c := range candidates {
		price = price.Add(c.price.Mul(decimal.NewFromFloat(eff[c.id])))
	}

	sort.Strings(ids)

	return store.AggregatedPoint{
		Symbol:    a.symbol,
		Timestamp: boundary,
		Price:     price,
		Sources:   ids,
		Filled:    len(candidates) < len(a.weights),
	}, true
}
