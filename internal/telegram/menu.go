package telegram

import (
	"fmt"

	"luxe_sniper/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Callback data values for the main menu.
const (
	cbConnect     = "connect_wallet"
	cbEnterKey    = "enter_key"
	cbBalance     = "balance"
	cbInvest      = "invest"
	cbTrades      = "trades"
	cbSellBack    = "sell_back_list"
	cbPanicSell   = "panic_sell"
	cbRugHistory  = "verify_rug_history"
	cbTransfer    = "transfer_sol"
	cbSetTarget   = "set_target"
	cbSetAmount   = "set_amount"
	cbDisconnect  = "disconnect"
	cbBackHome    = "back_home"
	sellBackPfx   = "sellback:"
)

// mainMenu renders the premium keyboard. Button labels reflect live
// state: connection, cached balance, subscription, current settings.
func mainMenu(acct models.Account, investing bool) tgbotapi.InlineKeyboardMarkup {
	connectLabel := "🔐 CONNECT WALLET"
	if acct.Connected {
		connectLabel = "🟩 CONNECTED"
	}
	balanceLabel := "💛 CHECK BALANCE"
	if acct.BalanceText != "" {
		balanceLabel = "💛 BALANCE: " + acct.BalanceText
	}
	investLabel := "⚜️ START INVESTMENT BOT"
	if investing {
		investLabel = "🟥 STOP INVESTMENT BOT"
	}
	targetLabel := fmt.Sprintf("🎯 TARGET: %sx", acct.TargetMultiplier.String())
	amountLabel := fmt.Sprintf("💰 AMOUNT: %s SOL", acct.BuyAmount.String())

	rows := [][]tgbotapi.InlineKeyboardButton{
		{tgbotapi.NewInlineKeyboardButtonData(connectLabel, cbConnect)},
		{tgbotapi.NewInlineKeyboardButtonData(balanceLabel, cbBalance)},
		{tgbotapi.NewInlineKeyboardButtonData(investLabel, cbInvest)},
		{tgbotapi.NewInlineKeyboardButtonData("📊 TRADES", cbTrades)},
		{tgbotapi.NewInlineKeyboardButtonData("💸 SELL BACK", cbSellBack)},
		{tgbotapi.NewInlineKeyboardButtonData("🛑 PANIC SELL ALL", cbPanicSell)},
		{tgbotapi.NewInlineKeyboardButtonData("🛡️ VERIFY DEV RUG HISTORY", cbRugHistory)},
		{tgbotapi.NewInlineKeyboardButtonData("📤 TRANSFER SOL", cbTransfer)},
		{tgbotapi.NewInlineKeyboardButtonData(targetLabel, cbSetTarget)},
		{tgbotapi.NewInlineKeyboardButtonData(amountLabel, cbSetAmount)},
	}
	if acct.Connected {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("❌ DISCONNECT WALLET", cbDisconnect),
		})
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// connectMenu offers the key-entry path.
func connectMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✏️ ENTER PRIVATE KEY", cbEnterKey)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⬅️ BACK", cbBackHome)),
	)
}

// sellBackMenu lists open positions as tappable buttons.
func sellBackMenu(positions []models.Position) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, p := range positions {
		label := fmt.Sprintf("💸 %s… — %s SOL", shortToken(p.TokenAddress), p.Amount.String())
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(label, sellBackPfx+p.TokenAddress),
		})
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("⬅️ BACK", cbBackHome),
	})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func shortToken(addr string) string {
	if len(addr) <= 8 {
		return addr
	}
	return addr[:8]
}
