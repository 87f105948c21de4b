package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hivekit/internal/config"
	sqlitestore "hivekit/internal/store/sqlite"
	"hivekit/internal/task"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show hive state from the database",
	Long: `Show tasks and agents recorded in the hive database.

Requires persistence to be enabled (paths.database_file in the config).`,
	RunE: runStatus,
}

var statusVerbose bool

func init() {
	statusCmd.Flags().BoolVarP(&statusVerbose, "verbose", "v", false, "list individual tasks and agents")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	dbPath := cfg.Paths.DatabasePath(cwd)
	if dbPath == "" {
		return fmt.Errorf("persistence is disabled, set paths.database_file to use 'hivekit status'")
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("no hive database at %s, run or submit a workload first", dbPath)
	}

	st, err := sqlitestore.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		_ = st.Close()
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	tasks, err := st.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}
	agents, err := st.ListAgents(ctx)
	if err != nil {
		return fmt.Errorf("failed to list agents: %w", err)
	}

	byStatus := make(map[task.Status]int)
	for _, t := range tasks {
		byStatus[t.Status]++
	}

	fmt.Printf("Database: %s\n\n", dbPath)

	fmt.Printf("Tasks (%d):\n", len(tasks))
	for _, s := range []task.Status{
		task.StatusPending,
		task.StatusAssigned,
		task.StatusInProgress,
		task.StatusAwaitingVerification,
		task.StatusCompleted,
		task.StatusFailed,
		task.StatusCancelled,
	} {
		if n := byStatus[s]; n > 0 {
			fmt.Printf("  %-21s %d\n", s, n)
		}
	}
	if statusVerbose {
		fmt.Println()
		for _, t := range tasks {
			line := fmt.Sprintf("  %s  %-21s  %s", t.ID, t.Status, t.Description)
			if t.AssignedTo != "" {
				line += fmt.Sprintf("  -> %s", t.AssignedTo)
			}
			fmt.Println(line)

			reports, err := st.ListVerifications(ctx, t.ID)
			if err != nil {
				return fmt.Errorf("failed to list verifications: %w", err)
			}
			for _, r := range reports {
				fmt.Printf("      verification attempt %d: %s (confidence %.2f, verifier %s)\n",
					r.Attempt, r.Status, r.Confidence, r.VerifierID)
			}
		}
	}

	fmt.Printf("\nAgents (%d):\n", len(agents))
	for _, a := range agents {
		fmt.Printf("  %s  %-11s  %-10s  energy %.0f  completed %d  failed %d\n",
			a.ID, a.Name, a.Kind, a.Energy, a.TasksCompleted, a.TasksFailed)
	}

	return nil
}
