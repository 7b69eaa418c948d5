// Package dispatcher fans one stream of engine events out to every
// subscribed account, in queue order, with pacing between accounts.
package dispatcher

import (
	"context"
	"fmt"
	"log"
	"time"

	"luxe_sniper/internal/models"
	"luxe_sniper/internal/queue"
	"luxe_sniper/internal/registry"

	"github.com/shopspring/decimal"
)

// Executor launches the external buy/sell scripts. Calls are
// fire-and-forget from the bot's perspective: a nil error means the
// script was started, not that the trade confirmed on chain.
type Executor interface {
	Buy(credential, tokenAddress string, amount decimal.Decimal) error
	Sell(credential, tokenAddress string) error
}

// NotificationSink delivers a per-account chat message. Best effort;
// implementations swallow their own failures.
type NotificationSink interface {
	Notify(accountID int64, message string, autoDismissAfter time.Duration)
}

// TradeObserver is told about bookkeeping changes, e.g. for the trade
// journal. May be nil.
type TradeObserver interface {
	PositionOpened(accountID int64, pos models.Position)
	PositionClosed(accountID int64, closed models.ClosedPosition)
}

// Clock abstracts pacing so tests can measure dispatch order without
// real sleeps.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// DefaultPaceDelay is the minimum gap between successive accounts'
// external calls for one event. It protects the downstream RPC, not
// the event stream: there is no delay between events.
const DefaultPaceDelay = 1 * time.Second

// Dispatcher consumes parsed engine events and applies each one to the
// current queue membership. One goroutine drains the event channel, so
// events are always handled in emission order.
type Dispatcher struct {
	registry  *registry.Registry
	queue     *queue.Queue
	executor  Executor
	sink      NotificationSink
	observer  TradeObserver
	clock     Clock
	paceDelay time.Duration
	events    chan models.EngineEvent
}

// Option tweaks dispatcher construction.
type Option func(*Dispatcher)

// WithClock substitutes the pacing clock, for tests.
func WithClock(c Clock) Option {
	return func(d *Dispatcher) { d.clock = c }
}

// WithPaceDelay overrides the inter-account pacing gap.
func WithPaceDelay(delay time.Duration) Option {
	return func(d *Dispatcher) { d.paceDelay = delay }
}

// WithObserver attaches a trade observer.
func WithObserver(o TradeObserver) Option {
	return func(d *Dispatcher) { d.observer = o }
}

func New(reg *registry.Registry, q *queue.Queue, exec Executor, sink NotificationSink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry:  reg,
		queue:     q,
		executor:  exec,
		sink:      sink,
		clock:     systemClock{},
		paceDelay: DefaultPaceDelay,
		events:    make(chan models.EngineEvent, 256),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetSink installs the notification sink. The chat layer is built
// after the dispatcher (it needs one to hand events to), so the sink
// arrives late. Must be called before Run starts.
func (d *Dispatcher) SetSink(sink NotificationSink) {
	d.sink = sink
}

// Submit hands an event to the dispatch goroutine. Events submitted
// from one goroutine are processed in submission order.
func (d *Dispatcher) Submit(ev models.EngineEvent) {
	d.events <- ev
}

// Run drains the event channel until the context is cancelled.
// Blocking; callers start it in a goroutine.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.events:
			d.Process(ev)
		}
	}
}

// Process applies one event to every matching queue member. Exported
// so the chat layer can push synthetic events (panic sell) through the
// same path the scanner uses.
func (d *Dispatcher) Process(ev models.EngineEvent) {
	switch ev.Kind {
	case models.EventBuySignal:
		d.fanoutBuy(ev.TokenAddress)
	case models.EventSellSignal:
		d.fanoutSell(ev.TokenAddress, ev.Reason)
	case models.EventStatusNote:
		d.broadcast(ev.Text)
	}
}

// fanoutBuy serves queue members in priority order. The position is
// recorded at dispatch time, before the script could possibly confirm,
// so a repeated buy signal for the same token is suppressed even while
// the first transaction is still pending.
func (d *Dispatcher) fanoutBuy(tokenAddress string) {
	members := d.queue.Members()
	for i, id := range members {
		if d.buyForAccount(id, tokenAddress) && i < len(members)-1 {
			d.clock.Sleep(d.paceDelay)
		}
	}
}

// buyForAccount dispatches one account's buy. Reports whether an
// external call was made, which is what pacing keys off. Every failure
// is contained here: one account's bad credential never stops the
// rest of the queue.
func (d *Dispatcher) buyForAccount(id int64, tokenAddress string) bool {
	acct, err := d.registry.Get(id)
	if err != nil {
		log.Printf("dispatch: buy %s skipped for %d: %v", tokenAddress, id, err)
		return false
	}
	if acct.HasOpenPosition(tokenAddress) {
		return false
	}

	cred, err := d.registry.Credential(id)
	if err != nil {
		// Credential cleared after enqueue. Stale member, skip.
		log.Printf("dispatch: buy %s skipped for %d: %v", tokenAddress, id, err)
		d.notify(id, "⚠️ Buy skipped: wallet disconnected.", 5*time.Second)
		return false
	}

	// Open before invoking so the duplicate check and the append are
	// one atomic step. A false return means another event for this
	// token won the race, and no second call goes out.
	if !d.registry.OpenPosition(id, tokenAddress, acct.BuyAmount, acct.TargetMultiplier) {
		return false
	}

	if err := d.executor.Buy(cred, tokenAddress, acct.BuyAmount); err != nil {
		log.Printf("dispatch: buy executor failed for %d on %s: %v", id, tokenAddress, err)
		d.notify(id, "❌ Buy failed to launch: "+shortReason(err), 10*time.Second)
		return true
	}

	if d.observer != nil {
		d.observer.PositionOpened(id, models.Position{
			TokenAddress:     tokenAddress,
			Amount:           acct.BuyAmount,
			TargetMultiplier: acct.TargetMultiplier,
			AcquiredAt:       d.clock.Now(),
		})
	}
	d.notify(id, fmt.Sprintf("🚀 *Position Opened:* `%s`\n💰 %s SOL | 🎯 %sx",
		tokenAddress, acct.BuyAmount.String(), acct.TargetMultiplier.String()), 10*time.Second)
	return true
}

// fanoutSell serves, in queue order, every member currently holding
// the token. Members without the position are silent no-ops.
func (d *Dispatcher) fanoutSell(tokenAddress string, reason models.CloseReason) {
	members := d.queue.Members()
	for i, id := range members {
		if d.sellForAccount(id, tokenAddress, reason) && i < len(members)-1 {
			d.clock.Sleep(d.paceDelay)
		}
	}
}

func (d *Dispatcher) sellForAccount(id int64, tokenAddress string, reason models.CloseReason) bool {
	acct, err := d.registry.Get(id)
	if err != nil || !acct.HasOpenPosition(tokenAddress) {
		return false
	}

	cred, err := d.registry.Credential(id)
	if err != nil {
		log.Printf("dispatch: sell %s skipped for %d: %v", tokenAddress, id, err)
		d.notify(id, "⚠️ Sell skipped: wallet disconnected.", 5*time.Second)
		return false
	}

	closed, ok := d.registry.ClosePosition(id, tokenAddress, reason)
	if !ok {
		// Lost a race with a concurrent close. Nothing left to sell.
		return false
	}

	if err := d.executor.Sell(cred, tokenAddress); err != nil {
		log.Printf("dispatch: sell executor failed for %d on %s: %v", id, tokenAddress, err)
		d.notify(id, "❌ Sell failed to launch: "+shortReason(err), 10*time.Second)
		return true
	}

	if d.observer != nil {
		d.observer.PositionClosed(id, closed)
	}
	d.notify(id, sellMessage(tokenAddress, reason), 10*time.Second)
	return true
}

// SellOneFor closes a single position on the user's explicit request,
// through the same bookkeeping path as engine-driven sells.
func (d *Dispatcher) SellOneFor(id int64, tokenAddress string, reason models.CloseReason) bool {
	return d.sellForAccount(id, tokenAddress, reason)
}

// SellAllFor liquidates every open position for one account, with the
// usual pacing between external calls. Used by the panic-sell button.
func (d *Dispatcher) SellAllFor(id int64, reason models.CloseReason) int {
	acct, err := d.registry.Get(id)
	if err != nil {
		return 0
	}
	sold := 0
	for i, pos := range acct.OpenPositions {
		if d.sellForAccount(id, pos.TokenAddress, reason) {
			sold++
			if i < len(acct.OpenPositions)-1 {
				d.clock.Sleep(d.paceDelay)
			}
		}
	}
	return sold
}

// broadcast forwards a status note to all members. Informational only,
// no pacing and no state change.
func (d *Dispatcher) broadcast(text string) {
	for _, id := range d.queue.Members() {
		d.notify(id, "ℹ️ "+text, 10*time.Second)
	}
}

func (d *Dispatcher) notify(id int64, msg string, dismiss time.Duration) {
	if d.sink != nil {
		d.sink.Notify(id, msg, dismiss)
	}
}

func sellMessage(tokenAddress string, reason models.CloseReason) string {
	switch reason {
	case models.ReasonTargetHit:
		return fmt.Sprintf("🎯 *Target Hit!* Sold `%s`", tokenAddress)
	case models.ReasonStopLoss:
		return fmt.Sprintf("🚨 *Emergency Exit:* Sold `%s`", tokenAddress)
	case models.ReasonPanicSell:
		return fmt.Sprintf("🛑 *Panic Sell:* Sold `%s`", tokenAddress)
	default:
		return fmt.Sprintf("💸 *Sold:* `%s`", tokenAddress)
	}
}

// shortReason trims an error to a single chat-safe line. Users get a
// short human reason, never a stack of wrapped causes.
func shortReason(err error) string {
	s := err.Error()
	if len(s) > 120 {
		s = s[:120] + "…"
	}
	return s
}
