package orders

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"mt5-trader/internal/broker"
	"mt5-trader/internal/config"
	"mt5-trader/internal/counter"
	"mt5-trader/internal/sizing"
)

type mockBroker struct {
	tick      broker.Tick
	tickErr   error
	positions []broker.Position
	orders    []broker.Order
	ordersErr error

	requests []broker.TradeRequest
	sendFn   func(broker.TradeRequest) (broker.TradeResult, error)
}

func (m *mockBroker) Tick(_ context.Context, _ string) (broker.Tick, error) {
	if m.tickErr != nil {
		return broker.Tick{}, m.tickErr
	}
	return m.tick, nil
}

func (m *mockBroker) Positions(_ context.Context) ([]broker.Position, error) {
	return m.positions, nil
}

func (m *mockBroker) Orders(_ context.Context) ([]broker.Order, error) {
	if m.ordersErr != nil {
		return nil, m.ordersErr
	}
	return m.orders, nil
}

func (m *mockBroker) OrderSend(_ context.Context, req broker.TradeRequest) (broker.TradeResult, error) {
	m.requests = append(m.requests, req)
	if m.sendFn != nil {
		return m.sendFn(req)
	}
	return broker.TradeResult{Retcode: broker.RetcodeDone, Order: 555}, nil
}

type stubSizer struct {
	result sizing.Result
	err    error
}

func (s *stubSizer) Size(_ context.Context, _ string, _, _, _ float64) (sizing.Result, error) {
	return s.result, s.err
}

func testConfig() config.TradingConfig {
	return config.TradingConfig{
		MaxDailyOrders: 2,
		TargetRiskUSD:  30,
		RiskToReward:   3,
		Comment:        "mt5-trader",
		Symbols:        []string{"EURUSD", "USDJPY", "BTCUSD"},
	}
}

func sizedResult(lot, risk float64) sizing.Result {
	return sizing.Result{
		LotSize: decimal.NewFromFloat(lot),
		RiskUSD: decimal.NewFromFloat(risk),
	}
}

func TestPlace_RefusedAtDailyCap(t *testing.T) {
	daily := counter.New(2)
	daily.Increment()
	daily.Increment()

	client := &mockBroker{}
	engine := NewEngine(testConfig(), client, &stubSizer{result: sizedResult(0.06, 30)}, daily, nil, nil)

	_, err := engine.Place(context.Background(), Request{
		Symbol: "EURUSD", EntryPrice: 1.1, StopLoss: 1.095, PositionType: "buy", RiskToReward: 3,
	})
	if !errors.Is(err, ErrDailyCapReached) {
		t.Fatalf("expected ErrDailyCapReached, got %v", err)
	}
	if len(client.requests) != 0 {
		t.Errorf("no order must be submitted once the cap is reached")
	}
}

func TestPlace_AcceptedJustBelowCap(t *testing.T) {
	daily := counter.New(2)
	daily.Increment()

	client := &mockBroker{tick: broker.Tick{Bid: 1.1999, Ask: 1.2001}}
	engine := NewEngine(testConfig(), client, &stubSizer{result: sizedResult(0.06, 30)}, daily, nil, nil)

	result, err := engine.Place(context.Background(), Request{
		Symbol: "EURUSD", EntryPrice: 1.1, StopLoss: 1.095, PositionType: "buy", RiskToReward: 3,
	})
	if err != nil {
		t.Fatalf("placement at cap-1 must succeed: %v", err)
	}
	if result.OrderID != 555 {
		t.Errorf("expected broker order id 555, got %d", result.OrderID)
	}
	if result.OrdersLeft != 0 {
		t.Errorf("expected 0 orders left, got %d", result.OrdersLeft)
	}
	if result.Message != "Order placed successfully. 0 orders left for today" {
		t.Errorf("unexpected message %q", result.Message)
	}
	if daily.Count() != 2 {
		t.Errorf("counter must increment on confirmed success, got %d", daily.Count())
	}
}

func TestPlace_InvalidPrices(t *testing.T) {
	engine := NewEngine(testConfig(), &mockBroker{}, &stubSizer{}, counter.New(2), nil, nil)

	_, err := engine.Place(context.Background(), Request{
		Symbol: "EURUSD", EntryPrice: 0, StopLoss: 1.095, PositionType: "buy",
	})
	if !errors.Is(err, ErrInvalidPriceFormat) {
		t.Fatalf("expected ErrInvalidPriceFormat, got %v", err)
	}
}

func TestPlace_MarketPriceUnavailable(t *testing.T) {
	daily := counter.New(2)
	client := &mockBroker{tickErr: broker.ErrUnavailable}
	engine := NewEngine(testConfig(), client, &stubSizer{result: sizedResult(0.06, 30)}, daily, nil, nil)

	_, err := engine.Place(context.Background(), Request{
		Symbol: "EURUSD", EntryPrice: 1.1, StopLoss: 1.095, PositionType: "buy", RiskToReward: 3,
	})
	if !errors.Is(err, ErrMarketPriceUnavailable) {
		t.Fatalf("expected ErrMarketPriceUnavailable, got %v", err)
	}
	if daily.Count() != 0 {
		t.Errorf("counter must not change on failure, got %d", daily.Count())
	}
}

func TestPlace_OrderTypeInference(t *testing.T) {
	cases := []struct {
		name         string
		positionType string
		tick         broker.Tick
		entry        float64
		expected     broker.OrderType
	}{
		{"buy below market is a limit", "buy", broker.Tick{Bid: 1.1999, Ask: 1.2001}, 1.1900, broker.OrderTypeBuyLimit},
		{"buy above market is a stop", "buy", broker.Tick{Bid: 1.1999, Ask: 1.2001}, 1.2100, broker.OrderTypeBuyStop},
		{"sell above market is a limit", "sell", broker.Tick{Bid: 1.1999, Ask: 1.2001}, 1.2100, broker.OrderTypeSellLimit},
		{"sell below market is a stop", "sell", broker.Tick{Bid: 1.1999, Ask: 1.2001}, 1.1900, broker.OrderTypeSellStop},
		{"explicit type passes through", "buy stop", broker.Tick{Bid: 1.1999, Ask: 1.2001}, 1.1900, broker.OrderTypeBuyStop},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := &mockBroker{tick: tc.tick}
			engine := NewEngine(testConfig(), client, &stubSizer{result: sizedResult(0.06, 30)}, counter.New(2), nil, nil)

			_, err := engine.Place(context.Background(), Request{
				Symbol: "EURUSD", EntryPrice: tc.entry, StopLoss: tc.entry - 0.005, PositionType: tc.positionType, RiskToReward: 3,
			})
			if err != nil {
				t.Fatalf("Place returned error: %v", err)
			}
			if len(client.requests) != 1 {
				t.Fatalf("expected one submission, got %d", len(client.requests))
			}
			if got := client.requests[0].Type; got != tc.expected {
				t.Errorf("inferred type %v, want %v", got, tc.expected)
			}
		})
	}
}

func TestPlace_RiskBand(t *testing.T) {
	client := &mockBroker{tick: broker.Tick{Bid: 1.1999, Ask: 1.2001}}

	engine := NewEngine(testConfig(), client, &stubSizer{result: sizedResult(0.2, 37)}, counter.New(2), nil, nil)
	_, err := engine.Place(context.Background(), Request{
		Symbol: "EURUSD", EntryPrice: 1.1, StopLoss: 1.095, PositionType: "buy", RiskToReward: 3,
	})
	if !errors.Is(err, ErrRiskAboveLimit) {
		t.Fatalf("risk 37 on target 30 must exceed the +20%% band, got %v", err)
	}

	engine = NewEngine(testConfig(), client, &stubSizer{result: sizedResult(0.01, 20)}, counter.New(2), nil, nil)
	_, err = engine.Place(context.Background(), Request{
		Symbol: "EURUSD", EntryPrice: 1.1, StopLoss: 1.095, PositionType: "buy", RiskToReward: 3,
	})
	if !errors.Is(err, ErrRiskBelowMinimum) {
		t.Fatalf("risk 20 on target 30 must undershoot the -20%% band, got %v", err)
	}

	if len(client.requests) != 0 {
		t.Errorf("band rejections must not reach the broker")
	}
}

func TestPlace_SubmitsTakeProfitAndConstants(t *testing.T) {
	client := &mockBroker{tick: broker.Tick{Bid: 1.1999, Ask: 1.2001}}
	engine := NewEngine(testConfig(), client, &stubSizer{result: sizedResult(0.06, 30)}, counter.New(2), nil, nil)

	_, err := engine.Place(context.Background(), Request{
		Symbol: "EURUSD", EntryPrice: 1.1900, StopLoss: 1.1850, PositionType: "buy", RiskToReward: 3,
	})
	if err != nil {
		t.Fatalf("Place returned error: %v", err)
	}

	req := client.requests[0]
	expectedTP := 1.1900 + 3*math.Abs(1.1900-1.1850)
	if math.Abs(req.TakeProfit-expectedTP) > 1e-9 {
		t.Errorf("take profit %v, want %v", req.TakeProfit, expectedTP)
	}
	if req.Action != broker.ActionPending {
		t.Errorf("expected pending action, got %d", req.Action)
	}
	if req.Deviation != 20 || req.Magic != 234000 {
		t.Errorf("unexpected deviation/magic: %d/%d", req.Deviation, req.Magic)
	}
	if req.TypeFilling != broker.FillingReturn || req.TypeTime != broker.OrderTimeGTC {
		t.Errorf("unexpected filling/time: %d/%d", req.TypeFilling, req.TypeTime)
	}
	if req.Comment != "mt5-trader" {
		t.Errorf("unexpected comment %q", req.Comment)
	}
}

func TestPlace_BrokerErrorSurfacedVerbatim(t *testing.T) {
	daily := counter.New(2)
	client := &mockBroker{
		tick: broker.Tick{Bid: 1.1999, Ask: 1.2001},
		sendFn: func(broker.TradeRequest) (broker.TradeResult, error) {
			return broker.TradeResult{}, &broker.TradeError{Retcode: 10014, Message: "Volume value error"}
		},
	}
	engine := NewEngine(testConfig(), client, &stubSizer{result: sizedResult(0.06, 30)}, daily, nil, nil)

	_, err := engine.Place(context.Background(), Request{
		Symbol: "EURUSD", EntryPrice: 1.1, StopLoss: 1.095, PositionType: "buy", RiskToReward: 3,
	})
	if err == nil || err.Error() != "Volume value error" {
		t.Fatalf("expected broker message verbatim, got %v", err)
	}
	if daily.Count() != 0 {
		t.Errorf("counter must not increment on broker failure")
	}
}

func TestCancelPending_NoOrders(t *testing.T) {
	daily := counter.New(2)
	daily.Increment()

	engine := NewEngine(testConfig(), &mockBroker{}, &stubSizer{}, daily, nil, nil)

	result, err := engine.CancelPending(context.Background())
	if err != nil {
		t.Fatalf("CancelPending returned error: %v", err)
	}
	if result.CanceledCount != 0 {
		t.Errorf("expected 0 canceled, got %d", result.CanceledCount)
	}
	if result.Message != "No pending orders to cancel" {
		t.Errorf("unexpected message %q", result.Message)
	}
	if daily.Count() != 1 {
		t.Errorf("counter must stay untouched with zero pending orders, got %d", daily.Count())
	}
}

func TestCancelPending_PartialFailure(t *testing.T) {
	daily := counter.New(5)
	daily.Increment()
	daily.Increment()
	daily.Increment()

	client := &mockBroker{
		orders: []broker.Order{
			{Ticket: 1, Symbol: "EURUSD"},
			{Ticket: 2, Symbol: "EURUSD"},
			{Ticket: 3, Symbol: "USDJPY"},
		},
		sendFn: func(req broker.TradeRequest) (broker.TradeResult, error) {
			if req.Order == 2 {
				return broker.TradeResult{}, &broker.TradeError{Retcode: 10006, Message: "Order rejected"}
			}
			return broker.TradeResult{Retcode: broker.RetcodeDone}, nil
		},
	}
	engine := NewEngine(testConfig(), client, &stubSizer{}, daily, nil, nil)

	result, err := engine.CancelPending(context.Background())
	if err != nil {
		t.Fatalf("partial failure must not fail the batch: %v", err)
	}
	if result.CanceledCount != 2 {
		t.Errorf("expected 2 canceled, got %d", result.CanceledCount)
	}
	if result.Message != "Canceled 2 pending orders" {
		t.Errorf("unexpected message %q", result.Message)
	}
	if daily.Count() != 1 {
		t.Errorf("counter must drop by actual cancellations only, got %d", daily.Count())
	}
}

func TestListAll_MergesPositionsFirst(t *testing.T) {
	client := &mockBroker{
		positions: []broker.Position{
			{Ticket: 11, Symbol: "EURUSD", Type: broker.OrderTypeBuy, PriceOpen: 1.1000, StopLoss: 1.0950, TakeProfit: 1.1150},
		},
		orders: []broker.Order{
			{Ticket: 22, Symbol: "USDJPY", Type: broker.OrderTypeSellLimit, PriceOpen: 150.00, StopLoss: 150.30, TakeProfit: 149.10},
		},
	}
	engine := NewEngine(testConfig(), client, &stubSizer{}, counter.New(2), nil, nil)

	reports, err := engine.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll returned error: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(reports))
	}

	if reports[0].Status != "open" || reports[0].Type != "Buy" || reports[0].Ticket != 11 {
		t.Errorf("unexpected open entry: %+v", reports[0])
	}
	if reports[1].Status != "pending" || reports[1].Type != "Sell Limit" || reports[1].Ticket != 22 {
		t.Errorf("unexpected pending entry: %+v", reports[1])
	}
	if reports[0].Pips != 500 {
		t.Errorf("expected 500 pips for the open position, got %v", reports[0].Pips)
	}
}

func TestRequest_Validate(t *testing.T) {
	symbols := []string{"EURUSD", "BTCUSD"}

	req := Request{Symbol: "XXXYYY", EntryPrice: 1, StopLoss: 1, PositionType: "buy"}
	if err := req.Validate(symbols, 3); err == nil {
		t.Errorf("unknown symbol must be rejected")
	}

	req = Request{Symbol: "EURUSD", EntryPrice: -1, StopLoss: 1, PositionType: "buy"}
	if err := req.Validate(symbols, 3); err == nil {
		t.Errorf("negative price must be rejected")
	}

	req = Request{Symbol: "EURUSD", EntryPrice: 1.1, StopLoss: 1.09, PositionType: "hold"}
	if err := req.Validate(symbols, 3); err == nil {
		t.Errorf("unknown position type must be rejected")
	}

	req = Request{Symbol: "EURUSD", EntryPrice: 1.1, StopLoss: 1.09, PositionType: "Buy Limit"}
	if err := req.Validate(symbols, 3); err != nil {
		t.Errorf("case-insensitive position type must pass: %v", err)
	}
	if req.RiskToReward != 3 {
		t.Errorf("default risk to reward must be applied, got %v", req.RiskToReward)
	}
}
