package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"hivekit/internal/agent"
	"hivekit/internal/assign"
	"hivekit/internal/config"
	"hivekit/internal/event"
	"hivekit/internal/hive"
	"hivekit/internal/logging"
	"hivekit/internal/store"
	sqlitestore "hivekit/internal/store/sqlite"
	"hivekit/internal/task"
)

var runCmd = &cobra.Command{
	Use:   "run [workload-file...]",
	Short: "Run the hive until interrupted",
	Long: `Run the hive coordinator as a long-lived process.

Any workload files given as arguments are applied on startup: their
agents are registered and their tasks submitted. The hive then keeps
assigning work, recovering agent energy, and retrying deferred
verifications until it receives SIGINT or SIGTERM.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	h, logger, cleanup, err := buildHive(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := h.Start(ctx); err != nil {
		return fmt.Errorf("failed to start hive: %w", err)
	}
	defer func() {
		_ = h.Stop()
	}()

	for _, path := range args {
		w, err := loadWorkload(path)
		if err != nil {
			return err
		}
		created, err := applyWorkload(ctx, h, w, cfg.DefaultVerificationLevel())
		if err != nil {
			return err
		}
		logger.Info("workload applied",
			"file", path,
			"agents", len(w.Agents),
			"tasks", len(created))
	}

	// Pick up config file edits while running. Engine and verifier
	// settings apply on the next start; only validity is checked here.
	config.Watch(
		func(*config.Config) {
			logger.Info("configuration reloaded, changes apply on restart")
		},
		func(err error) {
			logger.Warn("configuration change rejected", "error", err)
		},
	)

	fmt.Println("Hive running. Press Ctrl+C to stop.")
	<-ctx.Done()

	status := h.GetStatus()
	fmt.Printf("Shutting down: %d tasks in flight, %d queued\n",
		status.Tasks.InProgress, status.Queue.Pending)
	return nil
}

// buildHive assembles a hive from the resolved configuration: logger,
// optional sqlite store, and a dispatcher that records assignments.
// The returned cleanup closes whatever was opened.
func buildHive(cfg *config.Config) (*hive.Hive, *logging.Logger, func(), error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	dataDir := cfg.Paths.ResolveDataDir(cwd)

	logger := logging.NopLogger()
	if cfg.Logging.Enabled {
		logger, err = logging.NewLogger(dataDir, cfg.Logging.Level)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	var st store.Store
	if dbPath := cfg.Paths.DatabasePath(cwd); dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			_ = logger.Close()
			return nil, nil, nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		sq, err := sqlitestore.Open(dbPath)
		if err != nil {
			_ = logger.Close()
			return nil, nil, nil, fmt.Errorf("failed to open store: %w", err)
		}
		if err := sq.Migrate(context.Background()); err != nil {
			_ = sq.Close()
			_ = logger.Close()
			return nil, nil, nil, fmt.Errorf("failed to migrate store: %w", err)
		}
		st = sq
	}

	// Execution transport is external to the hive. The CLI dispatcher
	// just records who got what; executors report back through the API.
	dispatchLog := logger.WithComponent("dispatch")
	dispatcher := assign.DispatcherFunc(func(ctx context.Context, t *task.Task, a *agent.Agent) error {
		dispatchLog.Info("task dispatched",
			"task_id", t.ID,
			"agent_id", a.ID,
			"agent_name", a.Name,
			"priority", t.Priority.String())
		return nil
	})

	h, err := hive.NewHive(hive.Config{
		Bus:        event.NewBus(),
		Dispatcher: dispatcher,
		Logger:     logger,
		Store:      st,
	},
		hive.WithVerifyConfig(cfg.Verification.ToVerify()),
		hive.WithAssignConfig(cfg.Assignment.ToAssign()),
		hive.WithMaintenanceInterval(cfg.Maintenance.Interval()),
		hive.WithCapabilityPatterns(cfg.Capabilities.Patterns),
	)
	if err != nil {
		if st != nil {
			_ = st.Close()
		}
		_ = logger.Close()
		return nil, nil, nil, fmt.Errorf("failed to create hive: %w", err)
	}

	cleanup := func() {
		if st != nil {
			_ = st.Close()
		}
		_ = logger.Close()
	}
	return h, logger, cleanup, nil
}
