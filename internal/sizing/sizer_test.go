package sizing

import (
	"context"
	"errors"
	"math"
	"testing"

	"mt5-trader/internal/broker"
)

type mockQuoter struct {
	ticks   map[string]broker.Tick
	specs   map[string]broker.SymbolSpec
	specErr error
}

func (m *mockQuoter) Tick(_ context.Context, symbol string) (broker.Tick, error) {
	tick, ok := m.ticks[symbol]
	if !ok {
		return broker.Tick{}, errors.New("tick not available")
	}
	return tick, nil
}

func (m *mockQuoter) SymbolSpec(_ context.Context, symbol string) (broker.SymbolSpec, error) {
	if m.specErr != nil {
		return broker.SymbolSpec{}, m.specErr
	}
	spec, ok := m.specs[symbol]
	if !ok {
		return broker.SymbolSpec{}, errors.New("symbol spec not available")
	}
	return spec, nil
}

func standardSpec(symbol string) map[string]broker.SymbolSpec {
	return map[string]broker.SymbolSpec{
		symbol: {
			Name:       symbol,
			VolumeStep: 0.01,
			VolumeMin:  0.01,
			VolumeMax:  100,
		},
	}
}

func TestSize_USDQuotedPairExactFit(t *testing.T) {
	quotes := &mockQuoter{
		ticks: map[string]broker.Tick{
			"EURUSD": {Symbol: "EURUSD", Bid: 1.0999, Ask: 1.1001},
		},
		specs: standardSpec("EURUSD"),
	}
	sizer := NewSizer(quotes, nil)

	// 50 pips at $10/pip per lot, $30 target -> exactly 0.06 lots.
	result, err := sizer.Size(context.Background(), "EURUSD", 1.1000, 1.0950, 30)
	if err != nil {
		t.Fatalf("Size returned error: %v", err)
	}

	if got := result.LotSize.InexactFloat64(); math.Abs(got-0.06) > 1e-9 {
		t.Errorf("expected lot size 0.06, got %v", got)
	}
	if got := result.RiskUSD.InexactFloat64(); math.Abs(got-30) > 1e-9 {
		t.Errorf("expected realized risk 30, got %v", got)
	}
}

func TestSize_PicksCandidateClosestToTarget(t *testing.T) {
	quotes := &mockQuoter{
		ticks: map[string]broker.Tick{
			"EURUSD": {Symbol: "EURUSD", Bid: 1.1999, Ask: 1.2001},
		},
		specs: standardSpec("EURUSD"),
	}
	sizer := NewSizer(quotes, nil)

	// ~70 pips (69.99 after float-repr quantization) -> raw lot ~0.0429;
	// lower 0.04 risks ~$28, upper 0.05 risks ~$35.
	result, err := sizer.Size(context.Background(), "EURUSD", 1.2000, 1.1930, 30)
	if err != nil {
		t.Fatalf("Size returned error: %v", err)
	}

	if got := result.LotSize.InexactFloat64(); math.Abs(got-0.04) > 1e-9 {
		t.Errorf("expected lower candidate 0.04, got %v", got)
	}
	if got := result.RiskUSD.InexactFloat64(); math.Abs(got-28) > 0.01 {
		t.Errorf("expected realized risk near 28, got %v", got)
	}
}

func TestSize_TieFavorsLowerCandidate(t *testing.T) {
	quotes := &mockQuoter{
		ticks: map[string]broker.Tick{
			"EURUSD": {Symbol: "EURUSD", Bid: 1.0999, Ask: 1.1001},
		},
		specs: standardSpec("EURUSD"),
	}
	sizer := NewSizer(quotes, nil)

	// 60 pips -> $600/lot; $27 target sits exactly between 0.04 ($24) and 0.05 ($30).
	result, err := sizer.Size(context.Background(), "EURUSD", 1.1000, 1.0940, 27)
	if err != nil {
		t.Fatalf("Size returned error: %v", err)
	}

	if got := result.LotSize.InexactFloat64(); math.Abs(got-0.04) > 1e-9 {
		t.Errorf("tie must favor the lower candidate, got %v", got)
	}
}

func TestSize_USDBasePairUsesInvertedRate(t *testing.T) {
	quotes := &mockQuoter{
		ticks: map[string]broker.Tick{
			"USDJPY": {Symbol: "USDJPY", Bid: 150, Ask: 150},
		},
		specs: standardSpec("USDJPY"),
	}
	sizer := NewSizer(quotes, nil)

	// 300 pips at 100/150 USD per pip per lot -> $200/lot, target $30 -> 0.15 lots.
	result, err := sizer.Size(context.Background(), "USDJPY", 150.00, 149.70, 30)
	if err != nil {
		t.Fatalf("Size returned error: %v", err)
	}

	if got := result.LotSize.InexactFloat64(); math.Abs(got-0.15) > 1e-9 {
		t.Errorf("expected lot size 0.15, got %v", got)
	}
	if got := result.RiskUSD.InexactFloat64(); math.Abs(got-30) > 1e-6 {
		t.Errorf("expected realized risk near 30, got %v", got)
	}
}

func TestSize_CrossPairConversionFailure(t *testing.T) {
	quotes := &mockQuoter{
		ticks: map[string]broker.Tick{
			"EURGBP": {Symbol: "EURGBP", Bid: 0.8599, Ask: 0.8601},
		},
		specs: standardSpec("EURGBP"),
	}
	sizer := NewSizer(quotes, nil)

	_, err := sizer.Size(context.Background(), "EURGBP", 0.8600, 0.8550, 30)
	if !errors.Is(err, ErrPairUnavailable) {
		t.Fatalf("expected ErrPairUnavailable, got %v", err)
	}
}

func TestSize_MissingMetadataFallsBackToDefaults(t *testing.T) {
	quotes := &mockQuoter{
		ticks: map[string]broker.Tick{
			"EURUSD": {Symbol: "EURUSD", Bid: 1.0999, Ask: 1.1001},
		},
		specErr: errors.New("gateway down"),
	}
	sizer := NewSizer(quotes, nil)

	result, err := sizer.Size(context.Background(), "EURUSD", 1.1000, 1.0950, 30)
	if err != nil {
		t.Fatalf("missing metadata must not fail sizing: %v", err)
	}
	if got := result.LotSize.InexactFloat64(); math.Abs(got-0.06) > 1e-9 {
		t.Errorf("expected default-step lot 0.06, got %v", got)
	}
}

func TestSize_ZeroDistanceRejected(t *testing.T) {
	quotes := &mockQuoter{
		ticks: map[string]broker.Tick{"EURUSD": {Bid: 1.1, Ask: 1.1}},
		specs: standardSpec("EURUSD"),
	}
	sizer := NewSizer(quotes, nil)

	if _, err := sizer.Size(context.Background(), "EURUSD", 1.1, 1.1, 30); !errors.Is(err, ErrZeroDistance) {
		t.Fatalf("expected ErrZeroDistance, got %v", err)
	}
}

func TestSize_Idempotent(t *testing.T) {
	quotes := &mockQuoter{
		ticks: map[string]broker.Tick{
			"GBPUSD": {Symbol: "GBPUSD", Bid: 1.2699, Ask: 1.2701},
		},
		specs: standardSpec("GBPUSD"),
	}
	sizer := NewSizer(quotes, nil)

	first, err := sizer.Size(context.Background(), "GBPUSD", 1.2700, 1.2650, 30)
	if err != nil {
		t.Fatalf("Size returned error: %v", err)
	}
	second, err := sizer.Size(context.Background(), "GBPUSD", 1.2700, 1.2650, 30)
	if err != nil {
		t.Fatalf("Size returned error on re-run: %v", err)
	}

	if !first.LotSize.Equal(second.LotSize) {
		t.Errorf("re-sizing the same inputs must yield the same lot: %v vs %v", first.LotSize, second.LotSize)
	}
	if !first.RiskUSD.Equal(second.RiskUSD) {
		t.Errorf("re-sizing the same inputs must yield the same risk: %v vs %v", first.RiskUSD, second.RiskUSD)
	}
}

func TestCalcPips(t *testing.T) {
	cases := []struct {
		symbol   string
		entry    float64
		stop     float64
		expected float64
	}{
		{"EURUSD", 1.1000, 1.0950, 500},
		{"USDJPY", 150.00, 149.70, 300},
		{"BTCUSD", 65000, 64900, 10000},
		{"EURUSD", 1.1000, 0, 0},
	}

	for _, tc := range cases {
		if got := CalcPips(tc.entry, tc.stop, tc.symbol); math.Abs(got-tc.expected) > 0.01 {
			t.Errorf("CalcPips(%s %v->%v) = %v, want %v", tc.symbol, tc.entry, tc.stop, got, tc.expected)
		}
	}
}
