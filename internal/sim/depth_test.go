package sim

import (
	"math"
	"testing"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// Scenario 1: empty book on either side.
func TestSimulate_EmptyAskSide(t *testing.T) {
	res := Simulate(nil, []Level{{Price: 100, Size: 1}}, Params{})
	if res.QtyBaseBought != 0 || res.QtyBaseSold != 0 || res.NetProfitQuote != 0 || res.OK {
		t.Fatalf("expected all-zero non-ok result, got %+v", res)
	}
}

func TestSimulate_EmptyBidSide(t *testing.T) {
	res := Simulate([]Level{{Price: 100, Size: 1}}, nil, Params{})
	if res.OK {
		t.Fatalf("expected non-ok result for empty bid side, got %+v", res)
	}
}

// Scenario 2: single-level profitable cross, zero fees.
func TestSimulate_SingleLevelProfitableCross(t *testing.T) {
	asks := []Level{{Price: 100, Size: 1}}
	bids := []Level{{Price: 110, Size: 1}}
	res := Simulate(asks, bids, Params{MaxQuoteBuy: Ptr(100)})

	if !approxEqual(res.SpentQuote, 100, 1e-9) {
		t.Errorf("spent_quote = %v, want 100", res.SpentQuote)
	}
	if !approxEqual(res.QtyBaseBought, 1, 1e-9) {
		t.Errorf("qty_base_bought = %v, want 1", res.QtyBaseBought)
	}
	if !approxEqual(res.ReceivedQuote, 110, 1e-9) {
		t.Errorf("received_quote = %v, want 110", res.ReceivedQuote)
	}
	if !approxEqual(res.NetProfitQuote, 10, 1e-9) {
		t.Errorf("net_profit_quote = %v, want 10", res.NetProfitQuote)
	}
	if !approxEqual(res.ROI, 0.1, 1e-9) {
		t.Errorf("roi = %v, want 0.1", res.ROI)
	}
	if !res.OK {
		t.Error("expected ok = true")
	}
}

// Scenario 3: fees eliminate the edge.
func TestSimulate_FeesErodeEdge(t *testing.T) {
	asks := []Level{{Price: 100, Size: 1}}
	bids := []Level{{Price: 110, Size: 1}}

	res := Simulate(asks, bids, Params{MaxQuoteBuy: Ptr(100), FeeBuy: 0.01, FeeSell: 0.01})
	if !approxEqual(res.NetProfitQuote, 7.9, 1e-9) {
		t.Errorf("net_profit_quote = %v, want 7.9", res.NetProfitQuote)
	}
	if !res.OK {
		t.Error("expected ok = true at 1%% fees")
	}

	res2 := Simulate(asks, bids, Params{MaxQuoteBuy: Ptr(100), FeeBuy: 0.06, FeeSell: 0.06})
	if !approxEqual(res2.NetProfitQuote, -2.6, 1e-9) {
		t.Errorf("net_profit_quote = %v, want -2.6", res2.NetProfitQuote)
	}
	if res2.OK {
		t.Error("expected ok = false at 6%% fees")
	}
}

// Scenario 4: withdrawal fee truncates the sell side.
func TestSimulate_WithdrawFeeTruncatesSell(t *testing.T) {
	asks := []Level{{Price: 100, Size: 1}}
	bids := []Level{{Price: 110, Size: 1}}
	res := Simulate(asks, bids, Params{WithdrawFeeBase: 0.5})

	if !approxEqual(res.QtyBaseAfterWithdraw, 0.5, 1e-9) {
		t.Errorf("qty_base_after_withdraw = %v, want 0.5", res.QtyBaseAfterWithdraw)
	}
	if !approxEqual(res.QtyBaseSold, 0.5, 1e-9) {
		t.Errorf("qty_base_sold = %v, want 0.5", res.QtyBaseSold)
	}
	if !approxEqual(res.NetProfitQuote, -45, 1e-9) {
		t.Errorf("net_profit_quote = %v, want -45", res.NetProfitQuote)
	}
	if res.OK {
		t.Error("expected ok = false")
	}
}

// Scenario 5: lot step plus minimum notional on the buy side.
func TestSimulate_LotStepAndMinNotional(t *testing.T) {
	asks := []Level{{Price: 100, Size: 0.003}}
	bids := []Level{{Price: 101, Size: 1}}
	res := Simulate(asks, bids, Params{BaseStep: Ptr(0.001), MinNotionalBuy: Ptr(0.25)})

	if !approxEqual(res.SpentQuote, 0.30, 1e-9) {
		t.Errorf("spent_quote = %v, want 0.30", res.SpentQuote)
	}
	if !approxEqual(res.QtyBaseBought, 0.003, 1e-9) {
		t.Errorf("qty_base_bought = %v, want 0.003", res.QtyBaseBought)
	}
	if !approxEqual(res.NetProfitQuote, 0.003, 1e-9) {
		t.Errorf("net_profit_quote = %v, want 0.003", res.NetProfitQuote)
	}
	if !res.OK {
		t.Error("expected ok = true")
	}
}

// Scenario 6: budget spans two ask levels. Spec leaves the exact split as
// implementation-latitude within the documented stop rule; only ok=true,
// net>0 and spent within the budget are pinned.
func TestSimulate_BudgetAcrossTwoLevels(t *testing.T) {
	asks := []Level{{Price: 100, Size: 1}, {Price: 101, Size: 1}}
	bids := []Level{{Price: 105, Size: 10}}
	res := Simulate(asks, bids, Params{MaxQuoteBuy: Ptr(150)})

	if !res.OK {
		t.Fatalf("expected ok = true, got %+v", res)
	}
	if res.NetProfitQuote <= 0 {
		t.Errorf("net_profit_quote = %v, want > 0", res.NetProfitQuote)
	}
	if res.SpentQuote > 150+1e-6 {
		t.Errorf("spent_quote = %v exceeds budget 150", res.SpentQuote)
	}
}

// P2: non-negativity and ordering of quantities.
func TestSimulate_InvariantP2(t *testing.T) {
	asks := []Level{{Price: 100, Size: 2}, {Price: 102, Size: 3}}
	bids := []Level{{Price: 105, Size: 1}, {Price: 103, Size: 4}}
	res := Simulate(asks, bids, Params{FeeBuy: 0.001, FeeSell: 0.001, WithdrawFeeBase: 0.1})

	if res.BuyFeeQuote < 0 || res.SellFeeQuote < 0 || res.SpentQuote < 0 || res.ReceivedQuote < 0 {
		t.Fatalf("negative quantity in result: %+v", res)
	}
	if !(res.QtyBaseSold <= res.QtyBaseAfterWithdraw+1e-9 && res.QtyBaseAfterWithdraw <= res.QtyBaseBought+1e-9) {
		t.Errorf("expected qty_base_sold <= qty_base_after_withdraw <= qty_base_bought, got %+v", res)
	}
}

// P3: ok implies a real, positive profit and sold quantity.
func TestSimulate_InvariantP3(t *testing.T) {
	res := Simulate([]Level{{Price: 100, Size: 1}}, []Level{{Price: 101, Size: 1}}, Params{})
	if res.OK && !(res.NetProfitQuote > 0 && res.QtyBaseSold > 0) {
		t.Fatalf("ok=true but P3 violated: %+v", res)
	}
}

// P4: increasing any fee component monotonically decreases net profit.
func TestSimulate_InvariantP4_MonotonicFees(t *testing.T) {
	asks := []Level{{Price: 100, Size: 1}}
	bids := []Level{{Price: 110, Size: 1}}

	base := Simulate(asks, bids, Params{FeeBuy: 0.001, FeeSell: 0.001})
	higherBuyFee := Simulate(asks, bids, Params{FeeBuy: 0.01, FeeSell: 0.001})
	higherSellFee := Simulate(asks, bids, Params{FeeBuy: 0.001, FeeSell: 0.01})
	higherWithdraw := Simulate(asks, bids, Params{FeeBuy: 0.001, FeeSell: 0.001, WithdrawFeeBase: 0.2})

	if higherBuyFee.NetProfitQuote >= base.NetProfitQuote {
		t.Errorf("raising fee_buy should decrease net profit: base=%v higher=%v", base.NetProfitQuote, higherBuyFee.NetProfitQuote)
	}
	if higherSellFee.NetProfitQuote >= base.NetProfitQuote {
		t.Errorf("raising fee_sell should decrease net profit: base=%v higher=%v", base.NetProfitQuote, higherSellFee.NetProfitQuote)
	}
	if higherWithdraw.NetProfitQuote >= base.NetProfitQuote {
		t.Errorf("raising withdraw_fee_base should decrease net profit: base=%v higher=%v", base.NetProfitQuote, higherWithdraw.NetProfitQuote)
	}
}

// P5: increasing max_quote_buy never decreases qty_base_bought.
func TestSimulate_InvariantP5_MonotonicBudget(t *testing.T) {
	asks := []Level{{Price: 100, Size: 1}, {Price: 101, Size: 1}, {Price: 102, Size: 1}}
	bids := []Level{{Price: 105, Size: 10}}

	small := Simulate(asks, bids, Params{MaxQuoteBuy: Ptr(50)})
	large := Simulate(asks, bids, Params{MaxQuoteBuy: Ptr(300)})

	if large.QtyBaseBought < small.QtyBaseBought-1e-9 {
		t.Errorf("larger budget should not decrease qty_base_bought: small=%v large=%v", small.QtyBaseBought, large.QtyBaseBought)
	}
}
