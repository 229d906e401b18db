// Command softphone runs the agent-side call-session manager as a headless
// process: it loads the vendor SDK adapter, connects, authenticates against
// the ledger API, and keeps the persistent call-state store current.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"crm-softphone/internal/callstate"
	"crm-softphone/internal/config"
	"crm-softphone/internal/ledger"
	"crm-softphone/internal/session"
	"crm-softphone/internal/voximplant"
	"crm-softphone/pkg/logger"
	"crm-softphone/pkg/utils"

	"github.com/joho/godotenv"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	userID := strings.TrimSpace(os.Getenv("SOFTPHONE_USER_ID"))
	if userID == "" {
		log.Error("SOFTPHONE_USER_ID is required")
		os.Exit(1)
	}
	apiURL := strings.TrimSpace(os.Getenv("LEDGER_API_URL"))
	if apiURL == "" {
		log.Error("LEDGER_API_URL is required")
		os.Exit(1)
	}
	apiToken := os.Getenv("LEDGER_API_TOKEN")

	// Call-state snapshots go to Redis when reachable; otherwise the
	// process falls back to memory and loses recovery across restarts.
	var store callstate.Store
	if rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()}); err != nil {
		log.Warn("redis unavailable, call-state recovery disabled", "err", err)
		store = callstate.NewMemoryStore()
	} else {
		defer rdb.Close()
		store = callstate.NewRedisStore(rdb, log)
	}

	loader := voximplant.NewLoader(func(ctx context.Context) (voximplant.Client, error) {
		return voximplant.NewGatewayClient(), nil
	})

	manager := session.NewManager(session.Options{
		UserID: userID,
		Loader: loader,
		Store:  store,
		Ledger: ledger.NewClient(apiURL, apiToken),
		Logger: log,
	})

	if err := manager.Start(rootCtx); err != nil {
		log.Error("softphone bootstrap failed", "err", err)
		os.Exit(1)
	}
	log.Info("softphone running", "user_id", userID)

	<-rootCtx.Done()
	manager.Stop()
	log.Info("softphone stopped")
}
