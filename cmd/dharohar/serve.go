package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dharohar/api/server"
	"dharohar/config"
	"dharohar/core/ledger"
	"dharohar/core/notify"
	"dharohar/core/registry"
	"dharohar/core/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ledger node (HTTP API and mining scheduler)",
	Example: `  dharohar serve
  DHAROHAR_MINE_POLICY=immediate dharohar serve --config node.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		closer, err := setupLogging(cfg)
		if err != nil {
			return err
		}
		defer closer.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runNode(ctx, cfg, log.Default())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func buildPublisher(cfg *config.Config, logger *log.Logger) (notify.Publisher, error) {
	pubs := notify.Fanout{notify.NewLogPublisher(logger)}
	if cfg.Kafka.Enabled() {
		kp, err := notify.NewKafkaPublisher(cfg.Kafka, logger)
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, kp)
	}
	return pubs, nil
}

func runNode(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	logger.Println("[NODE] Starting Dharohar node", server.NodeVersion())

	policy, err := registry.ParsePolicy(cfg.Ledger.MinePolicy)
	if err != nil {
		return err
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}

	pub, err := buildPublisher(cfg, logger)
	if err != nil {
		store.Close()
		return err
	}
	defer pub.Close()

	l, err := openLedger(cfg, store, logger, ledger.WithBlockListener(notify.Listener(pub, logger, 5*time.Second)))
	if err != nil {
		store.Close()
		return err
	}
	defer func() {
		if err := l.Close(); err != nil {
			logger.Printf("[NODE][ERROR] Closing ledger: %v", err)
		}
		if err := store.Close(); err != nil {
			logger.Printf("[NODE][ERROR] Closing store: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.New(l, cfg.Ledger.MineInterval(),
		scheduler.WithLogger(logger),
		scheduler.WithRoundTimeout(cfg.Ledger.MineTimeout()),
	)
	regOpts := []registry.Option{registry.WithPolicy(policy), registry.WithLogger(logger)}
	if policy == registry.MineImmediately {
		regOpts = append(regOpts, registry.WithMineTrigger(sched.Trigger))
	}
	svc := registry.NewService(l, regOpts...)
	if _, err := svc.RecordSystemEvent(ctx, "node_started", "Dharohar node online", map[string]string{
		"version":    server.NodeVersion(),
		"difficulty": fmt.Sprint(l.Difficulty()),
		"digest":     l.Digester().Name(),
		"minePolicy": policy.String(),
	}, registry.Provenance{}); err != nil {
		logger.Printf("[NODE][WARN] Could not record start-up event: %v", err)
	}

	schedDone := make(chan error, 1)
	go func() { schedDone <- sched.Run(ctx) }()

	api := server.NewServer(l, svc, cfg.API.Addr,
		server.WithLogger(logger),
		server.WithDataDir(cfg.Node.DBPath),
		server.WithRateLimit(cfg.API.RateLimitPerMin),
		server.WithMineTimeout(cfg.Ledger.MineTimeout()),
		server.WithTimeouts(config.Duration(cfg.API.ReadTimeout, 10*time.Second), config.Duration(cfg.API.WriteTimeout, 30*time.Second)),
	)
	apiDone := make(chan error, 1)
	go func() { apiDone <- api.Start(ctx) }()

	// Start returns only after graceful shutdown, so no handler outlives
	// the final mining round or the store.
	var apiErr error
	select {
	case <-ctx.Done():
		if err := <-apiDone; err != nil {
			logger.Printf("[NODE][WARN] API shutdown: %v", err)
		}
	case apiErr = <-apiDone:
	}
	cancel()
	<-schedDone
	if apiErr != nil {
		return fmt.Errorf("node stopped: %w", apiErr)
	}

	// Seal whatever is still pending before the final snapshot.
	mineCtx, cancelMine := context.WithTimeout(context.Background(), cfg.Ledger.MineTimeout())
	defer cancelMine()
	if _, err := l.Mine(mineCtx); err != nil {
		logger.Printf("[NODE][WARN] Final mining round failed: %v", err)
	}
	logger.Println("[NODE] Shutdown complete")
	return nil
}
