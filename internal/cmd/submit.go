package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"hivekit/internal/config"
	"hivekit/internal/task"
)

var submitCmd = &cobra.Command{
	Use:   "submit <workload-file>",
	Short: "Submit a workload file to the hive",
	Long: `Submit a workload file: register its agents and submit its tasks.

Assignment runs immediately, so tasks that match a registered agent are
dispatched before the command returns. With persistence enabled the
resulting state is written to the hive database, where 'hivekit status'
can inspect it.

Workload files are YAML:

  agents:
    - name: builder
      kind: worker
      capabilities:
        - name: lang.go
          proficiency: 0.8
          learning_rate: 0.2
  tasks:
    - description: implement the config parser
      priority: high
      required:
        - name: lang.go
          min_proficiency: 0.5
      verification:
        level: standard
        criteria:
          - parser handles nested keys`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	w, err := loadWorkload(args[0])
	if err != nil {
		return err
	}

	h, _, cleanup, err := buildHive(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := h.Start(ctx); err != nil {
		return fmt.Errorf("failed to start hive: %w", err)
	}
	defer func() {
		_ = h.Stop()
	}()

	created, err := applyWorkload(ctx, h, w, cfg.DefaultVerificationLevel())
	if err != nil {
		return err
	}

	if len(w.Agents) > 0 {
		fmt.Printf("Registered %d agent(s)\n", len(w.Agents))
	}
	fmt.Printf("Submitted %d task(s):\n", len(created))
	pending := 0
	for _, t := range created {
		// Re-read: assignment may have advanced the task already.
		current, err := h.Tasks().Get(t.ID)
		if err != nil {
			current = t
		}
		if current.Status == task.StatusPending {
			pending++
		}
		line := fmt.Sprintf("  %s  %-11s  %s", current.ID, current.Status, current.Description)
		if current.AssignedTo != "" {
			line += fmt.Sprintf("  -> %s", current.AssignedTo)
		}
		fmt.Println(line)
	}
	if pending > 0 {
		fmt.Printf("%d task(s) waiting for a capable agent\n", pending)
	}

	return nil
}
