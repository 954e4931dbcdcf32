package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/shankartiwary/Momentum-trading-bot/internal/bot"
	"github.com/shankartiwary/Momentum-trading-bot/internal/broker"
	"github.com/shankartiwary/Momentum-trading-bot/internal/execution"
	"github.com/shankartiwary/Momentum-trading-bot/internal/feed"
	"github.com/shankartiwary/Momentum-trading-bot/internal/ledger"
	"github.com/shankartiwary/Momentum-trading-bot/internal/risk"
	"github.com/shankartiwary/Momentum-trading-bot/internal/signal"
	"github.com/shankartiwary/Momentum-trading-bot/internal/strategy"
)

// fakeBroker simulates the SmartAPI surface: login, scrip master, a future
// quote that gaps up on the second poll, and order placement.
func fakeBroker(t *testing.T, orderIDs chan<- string) *httptest.Server {
	t.Helper()

	ok := func(w http.ResponseWriter, data any) {
		raw, err := json.Marshal(data)
		if err != nil {
			t.Errorf("marshal response: %v", err)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status": true, "message": "SUCCESS", "data": json.RawMessage(raw),
		})
	}

	quotes := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/auth/angelbroking/user/v1/loginByPassword", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]string{"jwtToken": "jwt-1", "feedToken": "feed-1"})
	})
	mux.HandleFunc("/scrips", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]string{
			{"token": "55555", "symbol": "NIFTY25SEPFUT", "lotsize": "75"},
			{"token": "61234", "symbol": "NIFTY25SEP25050PE", "lotsize": "75"},
		})
	})
	mux.HandleFunc("/rest/secure/angelbroking/order/v1/getLtpData", func(w http.ResponseWriter, r *http.Request) {
		quotes++
		price := 25000.0
		if quotes > 1 {
			price = 25250.0
		}
		ok(w, map[string]float64{"ltp": price})
	})
	mux.HandleFunc("/rest/secure/angelbroking/order/v1/placeOrder", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode order payload: %v", err)
		}
		select {
		case orderIDs <- req["tradingsymbol"] + "/" + req["quantity"]:
		default:
		}
		ok(w, map[string]string{"orderid": "ORD-100"})
	})
	return httptest.NewServer(mux)
}

func TestLiveFlowPlacesGapOrder(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	placed := make(chan string, 4)
	srv := fakeBroker(t, placed)
	defer srv.Close()

	client := broker.NewClient(
		broker.Credentials{APIKey: "key", ClientCode: "C123", Password: "pass", TOTPSecret: "JBSWY3DPEHPK3PXP"},
		"NIFTY", "25SEP", zerolog.Nop(),
		broker.WithBaseURL(srv.URL), broker.WithInstrumentURL(srv.URL+"/scrips"),
	)
	if err := client.Login(ctx); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	anchor, err := feed.InitialPrice(ctx, client, time.Millisecond)
	if err != nil {
		t.Fatalf("InitialPrice returned error: %v", err)
	}
	if anchor != 25000 {
		t.Fatalf("expected anchor 25000, got %v", anchor)
	}

	engine, err := strategy.New(strategy.Config{
		Underlying: "NIFTY", Expiry: "25SEP",
		PutGap: 100, CallGap: 100,
		PutSymbolOffset: 200, CallSymbolOffset: 200,
		PutLotMultiplier: 1, CallLotMultiplier: 1,
		PutResetGap: 150, CallResetGap: 150,
		SellMultiplierCeiling: 3, StrikeRoundingStep: 50,
	}, anchor, zerolog.Nop())
	if err != nil {
		t.Fatalf("strategy.New returned error: %v", err)
	}

	book := ledger.NewLedger(8)
	exec := execution.NewExecutor(client, client, 75, false, zerolog.Nop())
	runner := bot.NewRunner(engine, exec, risk.Limits{MaxLotsPerTrade: 5}, book, nil, false, zerolog.Nop())

	ticks := make(chan signal.Tick, 8)
	src := feed.NewFeed(feed.ProviderBroker, client, zerolog.Nop(), feed.WithPollInterval(10*time.Millisecond))
	go func() { _ = src.Run(ctx, ticks) }()
	done := make(chan struct{})
	go func() {
		_ = runner.Run(ctx, ticks)
		close(done)
	}()

	select {
	case got := <-placed:
		// 25250 against a 25000 reference with gap 100 means two lots of 75.
		if got != "NIFTY25SEP25050PE/150" {
			t.Fatalf("unexpected order submitted: %s", got)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for an order")
	}

	// Wait for the in-flight placement to complete and hit the ledger before
	// canceling; cancellation would otherwise abort the order HTTP round trip.
	for len(book.Snapshot()) == 0 {
		select {
		case <-ctx.Done():
			t.Fatalf("timed out waiting for the ledger to record the order")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	<-done

	orders := book.Snapshot()
	if len(orders) == 0 {
		t.Fatalf("expected ledger to record the placed order")
	}
	last := orders[len(orders)-1]
	if last.ID != "ORD-100" || last.Status != ledger.StatusPlaced {
		t.Fatalf("unexpected recorded order: %+v", last)
	}
	if last.Symbol != "NIFTY25SEP25050PE" || last.Quantity != 150 {
		t.Fatalf("unexpected recorded order details: %+v", last)
	}

	snap := engine.Snapshot()
	if snap.PutReference != 25200 {
		t.Fatalf("expected put reference 25200 after trigger, got %v", snap.PutReference)
	}
}
