package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mao-project/mao/internal/config"
)

var initCostTier string

var initCmd = &cobra.Command{
	Use:     "init",
	GroupID: GroupCore,
	Short:   "Scaffold .mao/ in the current project",
	Long: `Create the .mao/ directory a project needs before "mao start" will
run: config.yaml with the chosen cost tier, and the directories the
orchestrator's stores write into (sessions, queue, approval_queue,
feedback, improvements, logs).`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initCostTier, "cost-tier", string(config.TierStandard), "cost tier: standard, economy, or budget")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	root, err := projectRoot(cmd)
	if err != nil {
		return err
	}

	maoDir := filepath.Join(root, ".mao")
	if _, err := os.Stat(filepath.Join(maoDir, "config.yaml")); err == nil {
		return fmt.Errorf(".mao/config.yaml already exists in %s", root)
	}

	if !config.IsValidTier(initCostTier) {
		return fmt.Errorf("unknown cost tier %q (valid: %s)", initCostTier, config.ValidCostTiers())
	}
	tier := config.CostTier(initCostTier)

	cfg := config.Config{
		CostTier: tier,
		Notify:   true,
		MaxPanes: 6,
	}
	if err := config.Save(root, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	for _, dir := range []string{"sessions", "queue/messages", "queue/processed", "approval_queue", "feedback", "improvements", "logs", "worktrees"} {
		if err := os.MkdirAll(filepath.Join(maoDir, dir), 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	fmt.Printf("initialized .mao/ in %s (cost tier: %s)\n", root, tier)
	return nil
}
