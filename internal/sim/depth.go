// Package sim implements the depth-aware cross-fill simulator (spec §4.4,
// component C4). It is a pure function: same inputs always produce the same
// Result, with no I/O and no shared state.
package sim

import "math"

const epsilon = 1e-12

// Level is a single (price, size_base) order-book level.
type Level struct {
	Price float64
	Size  float64
}

// Params are the fee/constraint inputs to Simulate.
type Params struct {
	FeeBuy  float64 // fractional taker fee on the buy side, e.g. 0.001
	FeeSell float64 // fractional taker fee on the sell side

	WithdrawFeeBase float64 // base-asset withdrawal fee subtracted before selling

	MaxQuoteBuy *float64 // optional quote-side budget
	MaxBaseSell *float64 // optional cap on base inventory carried to the sell side

	BaseStep        *float64 // lot-size step
	MinBase         *float64 // minimum base amount per fill
	MinNotionalBuy  *float64 // minimum quote notional on the buy side
	MinNotionalSell *float64 // minimum quote notional on the sell side
}

// Result is the Fill Result of §3.
type Result struct {
	QtyBaseBought      float64
	QtyBaseAfterWithdraw float64
	QtyBaseSold        float64
	SpentQuote         float64
	ReceivedQuote      float64
	BuyFeeQuote        float64
	SellFeeQuote       float64
	WithdrawFeeBase    float64
	AvgBuyPx           float64
	AvgSellPx          float64
	EffectiveSpread    float64
	NetProfitQuote     float64
	ROI                float64
	OK                 bool
}

func floorStep(value float64, step *float64) float64 {
	if step == nil || *step <= 0 {
		return value
	}
	return math.Floor(value / *step) * *step
}

func ceilStep(value float64, step *float64) float64 {
	if step == nil || *step <= 0 {
		return value
	}
	return math.Ceil(value / *step) * *step
}

func orZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// Simulate walks asks (low→high) then bids (high→low) and produces a
// deterministic Fill Result (spec §4.4). asks and bids must already be
// sanitized and ordered (book.Sanitize does this upstream); Simulate treats
// non-positive sizes defensively by skipping them.
func Simulate(asks, bids []Level, p Params) Result {
	if len(asks) == 0 || len(bids) == 0 {
		return Result{}
	}

	spentQuote := 0.0
	acquiredBase := 0.0
	buyFeeQuote := 0.0

	for _, lvl := range asks {
		if lvl.Size <= 0 || lvl.Price <= 0 {
			continue
		}
		maxAffordable := math.Inf(1)
		if p.MaxQuoteBuy != nil {
			maxAffordable = math.Max(0, (*p.MaxQuoteBuy-spentQuote)/lvl.Price)
		}
		take := math.Min(lvl.Size, maxAffordable)
		take = floorStep(take, p.BaseStep)

		notional := take * lvl.Price
		if p.MinNotionalBuy != nil && *p.MinNotionalBuy > 0 && notional < *p.MinNotionalBuy {
			need := *p.MinNotionalBuy / lvl.Price
			need = math.Max(need, orZero(p.MinBase))
			need = ceilStep(need, p.BaseStep)
			fitsBudget := p.MaxQuoteBuy == nil || spentQuote+need*lvl.Price <= *p.MaxQuoteBuy
			if need <= lvl.Size && fitsBudget {
				take = need
				notional = take * lvl.Price
			} else {
				continue
			}
		} else if p.MinBase != nil && *p.MinBase > 0 && take < *p.MinBase {
			tb := math.Min(math.Min(lvl.Size, maxAffordable), *p.MinBase)
			tb = ceilStep(tb, p.BaseStep)
			fitsBudget := p.MaxQuoteBuy == nil || spentQuote+tb*lvl.Price <= *p.MaxQuoteBuy
			if tb <= lvl.Size && fitsBudget {
				take = tb
				notional = take * lvl.Price
			} else {
				continue
			}
		}

		if take <= 0 {
			break
		}

		spentQuote += notional
		buyFeeQuote += notional * p.FeeBuy
		acquiredBase += take

		if p.MaxQuoteBuy != nil && spentQuote >= *p.MaxQuoteBuy-epsilon {
			break
		}
	}

	if p.MaxBaseSell != nil {
		acquiredBase = math.Min(acquiredBase, *p.MaxBaseSell)
	}
	transferableBase := math.Max(0, acquiredBase-p.WithdrawFeeBase)

	remaining := transferableBase
	receivedQuote := 0.0
	sellFeeQuote := 0.0
	qtySold := 0.0

	for _, lvl := range bids {
		if remaining <= 0 {
			break
		}
		if lvl.Size <= 0 || lvl.Price <= 0 {
			continue
		}
		take := math.Min(lvl.Size, remaining)
		notional := take * lvl.Price

		if p.MinNotionalSell != nil && *p.MinNotionalSell > 0 && notional < *p.MinNotionalSell {
			need := *p.MinNotionalSell / lvl.Price
			need = ceilStep(need, p.BaseStep)
			need = math.Min(math.Min(need, remaining), lvl.Size)
			if need <= 0 || (p.MinBase != nil && *p.MinBase > 0 && need < *p.MinBase) {
				continue
			}
			take = need
		}

		take = floorStep(take, p.BaseStep)
		if take <= 0 {
			continue
		}

		notional = take * lvl.Price
		fee := notional * p.FeeSell
		receivedQuote += notional - fee
		sellFeeQuote += fee
		remaining -= take
		qtySold += take

		if remaining <= 0 {
			break
		}
	}

	net := receivedQuote - spentQuote - buyFeeQuote

	if acquiredBase <= 0 || qtySold <= 0 {
		return Result{
			QtyBaseBought:        acquiredBase,
			QtyBaseAfterWithdraw: transferableBase,
			QtyBaseSold:          qtySold,
			SpentQuote:           spentQuote,
			ReceivedQuote:        receivedQuote,
			BuyFeeQuote:          buyFeeQuote,
			SellFeeQuote:         sellFeeQuote,
			WithdrawFeeBase:      p.WithdrawFeeBase,
			AvgBuyPx:             asks[0].Price,
			AvgSellPx:            bids[0].Price,
			NetProfitQuote:       net,
			OK:                   false,
		}
	}

	avgBuyPx := spentQuote / acquiredBase
	avgSellPx := (receivedQuote + sellFeeQuote) / qtySold
	effectiveSpread := (avgSellPx - avgBuyPx) / avgBuyPx
	roi := 0.0
	if spentQuote > 0 {
		roi = net / spentQuote
	}

	return Result{
		QtyBaseBought:        acquiredBase,
		QtyBaseAfterWithdraw: transferableBase,
		QtyBaseSold:          qtySold,
		SpentQuote:           spentQuote,
		ReceivedQuote:        receivedQuote,
		BuyFeeQuote:          buyFeeQuote,
		SellFeeQuote:         sellFeeQuote,
		WithdrawFeeBase:      p.WithdrawFeeBase,
		AvgBuyPx:             avgBuyPx,
		AvgSellPx:            avgSellPx,
		EffectiveSpread:      effectiveSpread,
		NetProfitQuote:       net,
		ROI:                  roi,
		OK:                   qtySold > 0 && net > 0,
	}
}

// Ptr is a small helper for building Params literals with optional fields.
func Ptr(v float64) *float64 { return &v }
