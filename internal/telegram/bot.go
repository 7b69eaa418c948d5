// Package telegram is the chat front-end: menu rendering, input
// prompts, and outbound notifications for the fan-out core.
package telegram

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"luxe_sniper/internal/dispatcher"
	"luxe_sniper/internal/engine"
	"luxe_sniper/internal/executor"
	"luxe_sniper/internal/journal"
	"luxe_sniper/internal/models"
	"luxe_sniper/internal/queue"
	"luxe_sniper/internal/registry"
	"luxe_sniper/internal/wallet"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
)

const menuTitle = "👑 *LUXE SOLANA WALLET*"

// Bot wires the Telegram API to the core. It also implements the
// dispatcher's NotificationSink, so fan-out outcomes land in chat
// through the same message plumbing the menus use.
type Bot struct {
	api      *tgbotapi.BotAPI
	registry *registry.Registry
	queue    *queue.Queue
	dispatch *dispatcher.Dispatcher
	engine   *engine.Manager
	scripts  *executor.ScriptExecutor
	balances *wallet.BalanceFetcher
	journal  *journal.Journal
	sessions *sessionStore
}

func New(token string, reg *registry.Registry, q *queue.Queue, d *dispatcher.Dispatcher,
	eng *engine.Manager, scripts *executor.ScriptExecutor, balances *wallet.BalanceFetcher,
	j *journal.Journal) (*Bot, error) {

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram init: %w", err)
	}
	log.Printf("Bot started: @%s", api.Self.UserName)

	return &Bot{
		api:      api,
		registry: reg,
		queue:    q,
		dispatch: d,
		engine:   eng,
		scripts:  scripts,
		balances: balances,
		journal:  j,
		sessions: newSessionStore(),
	}, nil
}

// Run long-polls for updates until the context is cancelled. Blocking.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			b.handleUpdate(update)
		}
	}
}

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(update.Message)
	}
}

// Notify implements dispatcher.NotificationSink. Each status replaces
// the previous one so the chat doesn't fill with stale banners, and
// autoDismissAfter > 0 schedules deletion.
func (b *Bot) Notify(accountID int64, message string, autoDismissAfter time.Duration) {
	msg := tgbotapi.NewMessage(accountID, message)
	msg.ParseMode = tgbotapi.ModeMarkdown

	sent, err := b.api.Send(msg)
	if err != nil {
		log.Printf("telegram: notify %d failed: %v", accountID, err)
		return
	}

	if prev := b.sessions.swapStatusMsg(accountID, sent.MessageID); prev != 0 {
		b.deleteMessage(accountID, prev)
	}
	if autoDismissAfter > 0 {
		msgID := sent.MessageID
		time.AfterFunc(autoDismissAfter, func() { b.deleteMessage(accountID, msgID) })
	}
}

// --- Callback routing ---

func (b *Bot) handleCallback(cb *tgbotapi.CallbackQuery) {
	chatID := cb.Message.Chat.ID
	b.api.Request(tgbotapi.NewCallback(cb.ID, ""))

	acct := b.registry.GetOrCreate(chatID)

	if strings.HasPrefix(cb.Data, sellBackPfx) {
		b.handleSellBack(chatID, strings.TrimPrefix(cb.Data, sellBackPfx))
		return
	}

	switch cb.Data {
	case cbBackHome:
		b.showMenu(chatID, menuTitle)
	case cbConnect:
		b.showMenuWith(chatID, "👑 *CONNECT WALLET*", connectMenu())
	case cbEnterKey:
		b.prompt(chatID, promptPrivateKey, "✏️ *Paste your Private Key (Base58) now:*")
	case cbDisconnect:
		b.handleDisconnect(chatID)
	case cbBalance:
		b.handleBalance(chatID, acct)
	case cbInvest:
		b.handleInvestToggle(chatID, acct)
	case cbTrades:
		b.handleTrades(chatID, acct)
	case cbSellBack:
		if len(acct.OpenPositions) == 0 {
			b.Notify(chatID, "ℹ️ No open positions to sell back.", 5*time.Second)
			return
		}
		b.showMenuWith(chatID, "💸 *SELL BACK — pick a position:*", sellBackMenu(acct.OpenPositions))
	case cbPanicSell:
		b.handlePanicSell(chatID, acct)
	case cbRugHistory:
		b.prompt(chatID, promptRugToken, "🛡️ *Enter token address to check dev rug history:*")
	case cbTransfer:
		if !acct.Connected {
			b.Notify(chatID, "❌ Connect wallet first.", 3*time.Second)
			return
		}
		b.prompt(chatID, promptTransferAddress, "📤 *Step 1:* Enter destination address:")
	case cbSetTarget:
		b.prompt(chatID, promptTarget, "🎯 Target multiplier (e.g. 2.5):")
	case cbSetAmount:
		b.prompt(chatID, promptAmount, "💰 Buy amount in SOL (e.g. 0.1):")
	}
}

func (b *Bot) handleDisconnect(chatID int64) {
	b.registry.ClearCredential(chatID)
	b.queue.Dequeue(chatID)
	if b.queue.Len() == 0 {
		b.engine.Stop()
	}
	b.showMenu(chatID, "❌ *Wallet Disconnected.*")
}

func (b *Bot) handleBalance(chatID int64, acct models.Account) {
	if !acct.Connected {
		b.Notify(chatID, "❌ Connect wallet first.", 3*time.Second)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		text, err := b.balances.BalanceText(ctx, acct.WalletAddress)
		if err != nil {
			log.Printf("telegram: balance for %d: %v", chatID, err)
			b.Notify(chatID, "⚠️ Balance unavailable right now.", 5*time.Second)
			return
		}
		b.registry.SetBalanceText(chatID, text)
		b.showMenu(chatID, menuTitle)
	}()
}

// handleInvestToggle subscribes or unsubscribes the chat. The first
// subscriber's settings seed the shared scanner; the process stops
// once the last subscriber leaves.
func (b *Bot) handleInvestToggle(chatID int64, acct models.Account) {
	if b.queue.Contains(chatID) {
		b.queue.Dequeue(chatID)
		if b.queue.Len() == 0 {
			b.engine.Stop()
		}
		b.Notify(chatID, "⛔ Bot Stopped.", 5*time.Second)
		b.showMenu(chatID, menuTitle)
		return
	}

	if err := b.queue.Enqueue(chatID); err != nil {
		b.Notify(chatID, "❌ Connect wallet first.", 3*time.Second)
		return
	}

	if !b.engine.Running() {
		cred, err := b.registry.Credential(chatID)
		if err != nil {
			b.queue.Dequeue(chatID)
			b.Notify(chatID, "❌ Connect wallet first.", 3*time.Second)
			return
		}
		if err := b.engine.Start(cred, acct.TargetMultiplier.String(), acct.BuyAmount.String()); err != nil {
			log.Printf("telegram: scanner start failed: %v", err)
			b.queue.Dequeue(chatID)
			b.Notify(chatID, "❌ Scanner failed to start.", 5*time.Second)
			return
		}
	}

	b.Notify(chatID, "▶️ Bot Started. Scanning...", 5*time.Second)
	b.showMenu(chatID, menuTitle)
}

func (b *Bot) handleTrades(chatID int64, acct models.Account) {
	var sb strings.Builder
	sb.WriteString("📊 *ACTIVE TRADES*\n\n")
	if len(acct.OpenPositions) == 0 {
		sb.WriteString("None\n")
	}
	for i, p := range acct.OpenPositions {
		sb.WriteString(fmt.Sprintf("%d. `%s...` — %s SOL @ %sx\n",
			i+1, shortToken(p.TokenAddress), p.Amount.String(), p.TargetMultiplier.String()))
	}

	if b.journal != nil {
		hits, losses, err := b.journal.Record(chatID)
		if err == nil {
			sb.WriteString(fmt.Sprintf("\n🏆 Hits: %d | 💀 Losses: %d", hits, losses))
		}
	}

	msg := tgbotapi.NewMessage(chatID, sb.String())
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⬅️ BACK", cbBackHome)))
	b.api.Send(msg)
}

func (b *Bot) handleSellBack(chatID int64, tokenAddress string) {
	b.Notify(chatID, "💸 *Selling back...*", 0)
	go func() {
		if !b.dispatch.SellOneFor(chatID, tokenAddress, models.ReasonManualSell) {
			b.Notify(chatID, "ℹ️ Nothing to sell for that token.", 5*time.Second)
		}
	}()
}

func (b *Bot) handlePanicSell(chatID int64, acct models.Account) {
	if !acct.Connected {
		return
	}
	b.Notify(chatID, "🚨 *Executing Panic Sell...*", 0)
	go func() {
		sold := b.dispatch.SellAllFor(chatID, models.ReasonPanicSell)
		b.Notify(chatID, fmt.Sprintf("✅ Panic Sell complete. %d position(s) dispatched.", sold), 10*time.Second)
		b.showMenu(chatID, menuTitle)
	}()
}

// --- Free-text prompts ---

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	if strings.HasPrefix(text, "/") {
		if strings.HasPrefix(text, "/start") {
			b.registry.GetOrCreate(chatID)
			b.showMenu(chatID, menuTitle)
		}
		return
	}

	state := b.sessions.takePrompt(chatID)
	if state == promptNone {
		return
	}

	// The user's message may contain a private key; remove it from the
	// chat along with the prompt that asked for it.
	b.deleteMessage(chatID, msg.MessageID)
	if promptID := b.sessions.takePromptMsg(chatID); promptID != 0 {
		b.deleteMessage(chatID, promptID)
	}

	switch state {
	case promptPrivateKey:
		b.connectWallet(chatID, text)
	case promptTarget:
		b.setTarget(chatID, text)
	case promptAmount:
		b.setAmount(chatID, text)
	case promptTransferAddress:
		b.sessions.setPendingTransfer(chatID, text)
		b.prompt(chatID, promptTransferAmount,
			fmt.Sprintf("💰 *Amount to send to* `%s...`:", shortToken(text)))
	case promptTransferAmount:
		b.runTransfer(chatID, text)
	case promptRugToken:
		b.runRugCheck(chatID, text)
	}
}

func (b *Bot) connectWallet(chatID int64, keyText string) {
	cred, err := wallet.ParseKey(keyText)
	if err != nil {
		b.Notify(chatID, "❌ Invalid Private Key.", 5*time.Second)
		return
	}
	b.registry.SetCredential(chatID, cred.Handle, cred.Address)
	b.showMenu(chatID, fmt.Sprintf("✅ *Wallet Connected:* `%s`", wallet.ShortAddress(cred.Address)))
}

func (b *Bot) setTarget(chatID int64, text string) {
	m, err := decimal.NewFromString(text)
	if err != nil || m.LessThanOrEqual(decimal.NewFromInt(1)) {
		b.Notify(chatID, "❌ Target must be a number above 1.", 5*time.Second)
		return
	}
	b.registry.SetTargetMultiplier(chatID, m)
	b.showMenu(chatID, fmt.Sprintf("🎯 Target set to %sx", m.String()))
}

func (b *Bot) setAmount(chatID int64, text string) {
	amt, err := decimal.NewFromString(text)
	if err != nil || amt.LessThanOrEqual(decimal.Zero) {
		b.Notify(chatID, "❌ Amount must be a positive number.", 5*time.Second)
		return
	}
	b.registry.SetBuyAmount(chatID, amt)
	b.showMenu(chatID, fmt.Sprintf("💰 Amount set to %s SOL", amt.String()))
}

func (b *Bot) runTransfer(chatID int64, amount string) {
	to := b.sessions.takePendingTransfer(chatID)
	cred, err := b.registry.Credential(chatID)
	if err != nil || to == "" {
		b.Notify(chatID, "❌ Connect wallet first.", 3*time.Second)
		return
	}
	b.Notify(chatID, "💸 *Sending...*", 0)
	go func() {
		out, err := b.scripts.Transfer(cred, to, amount)
		if err != nil {
			log.Printf("telegram: transfer for %d: %v", chatID, err)
			b.Notify(chatID, "❌ Transfer failed.", 10*time.Second)
			return
		}
		b.Notify(chatID, fmt.Sprintf("✅ *Sent!*\nSig: `%s`", out), 0)
	}()
}

func (b *Bot) runRugCheck(chatID int64, tokenAddress string) {
	b.Notify(chatID, "🔎 Scanning...", 0)
	go func() {
		report, err := b.scripts.RugCheck(tokenAddress)
		if err != nil {
			log.Printf("telegram: rug check for %d: %v", chatID, err)
			b.Notify(chatID, "❌ Analysis failed.", 10*time.Second)
			return
		}
		if len(report) > 3800 {
			report = report[:3800] + "…"
		}
		msg := tgbotapi.NewMessage(chatID, "🛡️ *Rug Analysis:*\n\n`"+report+"`")
		msg.ParseMode = tgbotapi.ModeMarkdown
		b.api.Send(msg)
	}()
}

// --- Rendering helpers ---

func (b *Bot) showMenu(chatID int64, title string) {
	acct := b.registry.GetOrCreate(chatID)
	b.showMenuWith(chatID, title, mainMenu(acct, b.queue.Contains(chatID)))
}

func (b *Bot) showMenuWith(chatID int64, title string, kb tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, title)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = kb

	sent, err := b.api.Send(msg)
	if err != nil {
		log.Printf("telegram: menu for %d failed: %v", chatID, err)
		return
	}
	if prev := b.sessions.swapMenuMsg(chatID, sent.MessageID); prev != 0 {
		b.deleteMessage(chatID, prev)
	}
}

func (b *Bot) prompt(chatID int64, state promptState, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	sent, err := b.api.Send(msg)
	if err != nil {
		log.Printf("telegram: prompt for %d failed: %v", chatID, err)
		return
	}
	b.sessions.setPrompt(chatID, state, sent.MessageID)
}

func (b *Bot) deleteMessage(chatID int64, msgID int) {
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, msgID)); err != nil {
		// Deleting an already-deleted message is routine noise.
	}
}
