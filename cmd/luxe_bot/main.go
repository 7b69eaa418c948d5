package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"luxe_sniper/internal/config"
	"luxe_sniper/internal/dispatcher"
	"luxe_sniper/internal/engine"
	"luxe_sniper/internal/executor"
	"luxe_sniper/internal/journal"
	"luxe_sniper/internal/logger"
	"luxe_sniper/internal/queue"
	"luxe_sniper/internal/registry"
	"luxe_sniper/internal/storage"
	"luxe_sniper/internal/telegram"
	"luxe_sniper/internal/wallet"
)

// main is the entry point of the application.
func main() {
	// 1. Configuration and logging
	cfg := config.Load()
	logger.Setup(cfg.LogFile, cfg.MaxLogSizeMB, cfg.MaxLogBackups)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Core state
	reg := registry.New()
	q := queue.New(reg)

	j, err := journal.Open(cfg.JournalFile)
	if err != nil {
		log.Fatalf("CRITICAL: trade journal unavailable: %v", err)
	}
	defer j.Close()

	// 3. Collaborators
	scripts := executor.NewScriptExecutor(cfg.PythonPath, cfg.ScriptsDir)
	balances := wallet.NewBalanceFetcher(cfg.SolanaRPCURL, cfg.SolUSDRate)

	d := dispatcher.New(reg, q, scripts, nil,
		dispatcher.WithPaceDelay(cfg.PaceDelay),
		dispatcher.WithObserver(j),
	)
	eng := engine.NewManager(cfg.PythonPath, cfg.ScriptsDir, d)

	bot, err := telegram.New(cfg.TelegramBotToken, reg, q, d, eng, scripts, balances, j)
	if err != nil {
		log.Fatalf("CRITICAL: %v", err)
	}
	d.SetSink(bot)

	// 4. Queue snapshotting and rehydration
	snap := storage.NewSnapshotter(cfg.SnapshotFile)
	q.OnChange(func(members []int64) {
		doc := storage.QueueSnapshot{}
		for _, id := range members {
			acct, err := reg.Get(id)
			if err != nil {
				continue
			}
			doc.Members = append(doc.Members, storage.MemberSnapshot{
				AccountID:        id,
				CredentialHandle: acct.CredentialHandle,
				WalletAddress:    acct.WalletAddress,
				TargetMultiplier: acct.TargetMultiplier,
				BuyAmount:        acct.BuyAmount,
			})
		}
		snap.Save(doc)
	})
	rehydrate(snap, reg, q, eng)

	// 5. Scanner crash handling: subscription implicitly ends for
	// everyone, and each member hears about it.
	eng.OnCrash(func() {
		for _, id := range q.Clear() {
			bot.Notify(id, "⚠️ Scanner stopped unexpectedly. Investing paused.", 0)
		}
	})

	// 6. Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Println("⚠️ Shutting down: system signal received.")
		eng.Stop()
		cancel()
	}()

	// 7. Run
	go d.Run(ctx)
	log.Println("💎 LUXE BOT ONLINE")
	bot.Run(ctx)
}

// rehydrate re-subscribes the accounts saved by the last run. Open
// positions are deliberately not restored; only membership and
// settings survive a restart. The scanner restarts seeded with the
// first member's settings, same as a fresh first subscriber.
func rehydrate(snap *storage.Snapshotter, reg *registry.Registry, q *queue.Queue, eng *engine.Manager) {
	doc := snap.Load()
	if len(doc.Members) == 0 {
		return
	}

	for _, m := range doc.Members {
		reg.SetCredential(m.AccountID, m.CredentialHandle, m.WalletAddress)
		reg.SetTargetMultiplier(m.AccountID, m.TargetMultiplier)
		reg.SetBuyAmount(m.AccountID, m.BuyAmount)
		if err := q.Enqueue(m.AccountID); err != nil {
			log.Printf("rehydrate: skipping %d: %v", m.AccountID, err)
		}
	}

	first := doc.Members[0]
	if err := eng.Start(first.CredentialHandle, first.TargetMultiplier.String(), first.BuyAmount.String()); err != nil {
		log.Printf("rehydrate: scanner restart failed: %v", err)
	}
	log.Printf("rehydrate: %d subscriber(s) restored", len(doc.Members))
}
