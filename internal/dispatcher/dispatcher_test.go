package dispatcher

import (
	"testing"
	"time"

	"luxe_sniper/internal/models"
	"luxe_sniper/internal/queue"
	"luxe_sniper/internal/registry"

	"github.com/shopspring/decimal"
)

const mint = "TOKEN111111111111111111111111111111"

// fakeClock advances only when Sleep is called, so pacing shows up as
// deterministic call timestamps.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time        { return c.now }
func (c *fakeClock) Sleep(d time.Duration) { c.now = c.now.Add(d) }

type execCall struct {
	kind   string // "buy" or "sell"
	cred   string
	token  string
	amount decimal.Decimal
	at     time.Time
}

// SpyExecutor records every external call with its fake-clock time.
type SpyExecutor struct {
	clock *fakeClock
	calls []execCall
	fail  bool
}

func (s *SpyExecutor) Buy(credential, tokenAddress string, amount decimal.Decimal) error {
	s.calls = append(s.calls, execCall{"buy", credential, tokenAddress, amount, s.clock.Now()})
	if s.fail {
		return errAlways
	}
	return nil
}

func (s *SpyExecutor) Sell(credential, tokenAddress string) error {
	s.calls = append(s.calls, execCall{kind: "sell", cred: credential, token: tokenAddress, at: s.clock.Now()})
	if s.fail {
		return errAlways
	}
	return nil
}

var errAlways = &execError{}

type execError struct{}

func (*execError) Error() string { return "executor exploded" }

// SpySink records notifications per account.
type SpySink struct {
	messages map[int64][]string
}

func newSpySink() *SpySink {
	return &SpySink{messages: make(map[int64][]string)}
}

func (s *SpySink) Notify(accountID int64, message string, autoDismissAfter time.Duration) {
	s.messages[accountID] = append(s.messages[accountID], message)
}

// harness bundles a dispatcher with all its fakes.
type harness struct {
	reg   *registry.Registry
	q     *queue.Queue
	exec  *SpyExecutor
	sink  *SpySink
	clock *fakeClock
	d     *Dispatcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	reg := registry.New()
	q := queue.New(reg)
	clock := newFakeClock()
	exec := &SpyExecutor{clock: clock}
	sink := newSpySink()
	d := New(reg, q, exec, sink,
		WithClock(clock),
		WithPaceDelay(1*time.Second),
	)
	return &harness{reg: reg, q: q, exec: exec, sink: sink, clock: clock, d: d}
}

func (h *harness) subscribe(t *testing.T, id int64, buyAmount, target float64) {
	t.Helper()
	h.reg.GetOrCreate(id)
	h.reg.SetCredential(id, creds(id), "addr")
	h.reg.SetBuyAmount(id, decimal.NewFromFloat(buyAmount))
	h.reg.SetTargetMultiplier(id, decimal.NewFromFloat(target))
	if err := h.q.Enqueue(id); err != nil {
		t.Fatalf("enqueue %d: %v", id, err)
	}
}

func creds(id int64) string {
	return "key-" + string(rune('0'+id))
}

func buySignal(token string) models.EngineEvent {
	return models.EngineEvent{Kind: models.EventBuySignal, TokenAddress: token}
}

func sellSignal(token string, reason models.CloseReason) models.EngineEvent {
	return models.EngineEvent{Kind: models.EventSellSignal, TokenAddress: token, Reason: reason}
}

func TestBuyFanout_QueueOrderAndPacing(t *testing.T) {
	h := newHarness(t)
	h.subscribe(t, 1, 0.01, 2.0)
	h.subscribe(t, 2, 0.02, 2.0)
	h.subscribe(t, 3, 0.03, 2.0)

	h.d.Process(buySignal(mint))

	// 1. All three accounts served, in queue order
	if len(h.exec.calls) != 3 {
		t.Fatalf("Expected 3 buy calls, got %d", len(h.exec.calls))
	}
	wantCreds := []string{creds(1), creds(2), creds(3)}
	for i, want := range wantCreds {
		if h.exec.calls[i].cred != want {
			t.Errorf("Call %d: expected %s, got %s", i, want, h.exec.calls[i].cred)
		}
	}

	// 2. Pacing: gap between successive call starts >= 1s
	for i := 1; i < len(h.exec.calls); i++ {
		gap := h.exec.calls[i].at.Sub(h.exec.calls[i-1].at)
		if gap < 1*time.Second {
			t.Errorf("Gap between call %d and %d is %v, want >= 1s", i-1, i, gap)
		}
	}
}

func TestBuy_IdempotentReplay(t *testing.T) {
	h := newHarness(t)
	h.subscribe(t, 1, 0.01, 2.0)

	h.d.Process(buySignal(mint))
	h.d.Process(buySignal(mint))

	// Exactly one external call total, not two
	if len(h.exec.calls) != 1 {
		t.Fatalf("Expected 1 buy call after replay, got %d", len(h.exec.calls))
	}

	// And exactly one open position
	acct, _ := h.reg.Get(1)
	if len(acct.OpenPositions) != 1 {
		t.Fatalf("Expected 1 open position, got %d", len(acct.OpenPositions))
	}
}

func TestSell_NoPositionIsNoop(t *testing.T) {
	h := newHarness(t)
	h.subscribe(t, 1, 0.01, 2.0)

	h.d.Process(sellSignal(mint, models.ReasonTargetHit))

	if len(h.exec.calls) != 0 {
		t.Fatalf("Expected no sell calls without a position, got %d", len(h.exec.calls))
	}
	acct, _ := h.reg.Get(1)
	if len(acct.ClosedHits)+len(acct.ClosedLosses) != 0 {
		t.Error("Sell for unheld token must not touch history")
	}
}

func TestSellFanout_OnlyHoldersServed(t *testing.T) {
	h := newHarness(t)
	h.subscribe(t, 1, 0.01, 2.0)
	h.subscribe(t, 2, 0.01, 2.0)

	// Only account 1 holds the token.
	h.reg.OpenPosition(1, mint, decimal.NewFromFloat(0.01), decimal.NewFromFloat(2.0))

	h.d.Process(sellSignal(mint, models.ReasonStopLoss))

	if len(h.exec.calls) != 1 {
		t.Fatalf("Expected 1 sell call, got %d", len(h.exec.calls))
	}
	if h.exec.calls[0].cred != creds(1) {
		t.Errorf("Sell went to wrong account: %s", h.exec.calls[0].cred)
	}

	// Stop loss lands in the losses bucket with the right reason.
	acct, _ := h.reg.Get(1)
	if len(acct.ClosedLosses) != 1 {
		t.Fatalf("Expected 1 loss record, got %d", len(acct.ClosedLosses))
	}
	if acct.ClosedLosses[0].Reason != models.ReasonStopLoss {
		t.Errorf("Expected stop loss reason, got %s", acct.ClosedLosses[0].Reason)
	}
}

func TestBuyFanout_DisconnectMidQueueTolerated(t *testing.T) {
	h := newHarness(t)
	h.subscribe(t, 1, 0.01, 2.0)
	h.subscribe(t, 2, 0.01, 2.0)
	h.subscribe(t, 3, 0.01, 2.0)

	// Account 2's credential goes away after enqueue, before dispatch.
	h.reg.ClearCredential(2)

	h.d.Process(buySignal(mint))

	// 1. Fan-out completed for the healthy accounts
	if len(h.exec.calls) != 2 {
		t.Fatalf("Expected 2 buy calls, got %d", len(h.exec.calls))
	}
	if h.exec.calls[0].cred != creds(1) || h.exec.calls[1].cred != creds(3) {
		t.Errorf("Wrong accounts served: %+v", h.exec.calls)
	}

	// 2. The stale account got no position and a warning
	acct, _ := h.reg.Get(2)
	if len(acct.OpenPositions) != 0 {
		t.Error("Disconnected account must not gain a position")
	}
	if len(h.sink.messages[2]) == 0 {
		t.Error("Disconnected account should be told its buy was skipped")
	}
}

func TestBuyFanout_ExecutorFailureDoesNotAbortLoop(t *testing.T) {
	h := newHarness(t)
	h.subscribe(t, 1, 0.01, 2.0)
	h.subscribe(t, 2, 0.01, 2.0)
	h.exec.fail = true

	h.d.Process(buySignal(mint))

	// Both accounts were still attempted.
	if len(h.exec.calls) != 2 {
		t.Fatalf("Expected 2 attempts despite failures, got %d", len(h.exec.calls))
	}
	// Each account heard about its own failure.
	for _, id := range []int64{1, 2} {
		if len(h.sink.messages[id]) == 0 {
			t.Errorf("Account %d should have been notified of the failure", id)
		}
	}
}

func TestStatusNote_BroadcastWithoutMutation(t *testing.T) {
	h := newHarness(t)
	h.subscribe(t, 1, 0.01, 2.0)
	h.subscribe(t, 2, 0.01, 2.0)

	h.d.Process(models.EngineEvent{Kind: models.EventStatusNote, Text: "Scan Complete. 3 NEW"})

	if len(h.exec.calls) != 0 {
		t.Error("Status notes must not trigger executor calls")
	}
	for _, id := range []int64{1, 2} {
		if len(h.sink.messages[id]) != 1 {
			t.Errorf("Account %d should receive the broadcast once, got %d", id, len(h.sink.messages[id]))
		}
	}
}

func TestSellAllFor_PanicSell(t *testing.T) {
	h := newHarness(t)
	h.subscribe(t, 1, 0.01, 2.0)
	mintB := "BBBB1111111111111111111111111111"
	h.reg.OpenPosition(1, mint, decimal.NewFromFloat(0.01), decimal.NewFromFloat(2.0))
	h.reg.OpenPosition(1, mintB, decimal.NewFromFloat(0.01), decimal.NewFromFloat(2.0))

	sold := h.d.SellAllFor(1, models.ReasonPanicSell)

	if sold != 2 {
		t.Fatalf("Expected 2 positions sold, got %d", sold)
	}
	acct, _ := h.reg.Get(1)
	if len(acct.OpenPositions) != 0 {
		t.Errorf("All positions should be closed, %d remain", len(acct.OpenPositions))
	}
	if len(acct.ClosedLosses) != 2 {
		t.Errorf("Panic sells belong in losses, got %d", len(acct.ClosedLosses))
	}
}

func TestEndToEnd_SingleSubscriberBuy(t *testing.T) {
	// One connected account, alone in the queue, with explicit
	// settings. A buy signal must produce exactly one executor call
	// carrying those settings, one recorded position, one chat note.
	h := newHarness(t)
	h.subscribe(t, 7, 0.01, 2.0)

	h.d.Process(buySignal(mint))

	if len(h.exec.calls) != 1 {
		t.Fatalf("Expected 1 buy call, got %d", len(h.exec.calls))
	}
	call := h.exec.calls[0]
	if call.cred != creds(7) || call.token != mint {
		t.Errorf("Wrong call args: %+v", call)
	}
	if !call.amount.Equal(decimal.NewFromFloat(0.01)) {
		t.Errorf("Expected amount 0.01, got %s", call.amount)
	}

	acct, _ := h.reg.Get(7)
	if len(acct.OpenPositions) != 1 {
		t.Fatalf("Expected 1 open position, got %d", len(acct.OpenPositions))
	}
	pos := acct.OpenPositions[0]
	if pos.TokenAddress != mint {
		t.Errorf("Wrong token: %s", pos.TokenAddress)
	}
	if !pos.Amount.Equal(decimal.NewFromFloat(0.01)) || !pos.TargetMultiplier.Equal(decimal.NewFromFloat(2.0)) {
		t.Errorf("Position snapshot wrong: %+v", pos)
	}

	if len(h.sink.messages[7]) != 1 {
		t.Errorf("Expected exactly 1 notification, got %d", len(h.sink.messages[7]))
	}
}
