package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds every tunable the bot reads at startup.
type Config struct {
	TelegramBotToken string

	SolanaRPCURL string
	SolUSDRate   decimal.Decimal // Display-only conversion rate

	PythonPath string // Interpreter used for all external scripts
	ScriptsDir string // Where bot.py, execute_buy.py etc. live

	SnapshotFile string
	JournalFile  string

	PaceDelay time.Duration // Gap between per-account dispatches

	LogFile       string
	MaxLogSizeMB  int64
	MaxLogBackups int
}

// Load reads .env plus the process environment and validates required
// secrets. Missing required variables are fatal at startup; optional
// ones fall back to defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: No .env file found, using system environment variables")
	}

	requiredSecretVars := []string{
		"TELEGRAM_BOT_TOKEN",
	}

	var missing []string
	for _, key := range requiredSecretVars {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		log.Fatalf("CRITICAL: Missing required environment variables: %v", missing)
	}

	// Echo the secrets masked so a startup log never leaks them.
	for _, key := range requiredSecretVars {
		val := os.Getenv(key)
		masked := "***"
		if len(val) > 4 {
			masked = "***" + val[len(val)-4:]
		}
		log.Printf("%s=%s", key, masked)
	}

	return &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		SolanaRPCURL: getEnv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"),
		SolUSDRate:   decimal.NewFromFloat(getEnvAsFloat64("SOL_USD_RATE", 133.93)),

		PythonPath: getEnv("PYTHON_PATH", "venv/bin/python3"),
		ScriptsDir: getEnv("SCRIPTS_DIR", "."),

		SnapshotFile: getEnv("SNAPSHOT_FILE", "invest_queue.json"),
		JournalFile:  getEnv("JOURNAL_FILE", "trades.db"),

		PaceDelay: time.Duration(getEnvAsInt("PACE_DELAY_MS", 1000)) * time.Millisecond,

		LogFile:       getEnv("LOG_FILE", "luxe_bot.log"),
		MaxLogSizeMB:  int64(getEnvAsInt("MAX_LOG_SIZE_MB", 10)),
		MaxLogBackups: getEnvAsInt("MAX_LOG_BACKUPS", 3),
	}
}
