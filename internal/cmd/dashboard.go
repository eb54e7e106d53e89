package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mao-project/mao/internal/orchestrator"
	"github.com/mao-project/mao/internal/tui/dashboard"
)

var dashboardSession string

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: GroupDiag,
	Short:   "Watch a running session's sub-tasks and pending approvals",
	Long: `Dashboard attaches to an already-running mao session (one started
with "mao start" in another terminal, or the same tmux session) and
shows a live, read-only view of its sub-task queue and pending
approvals. Press ? for key bindings, q to quit.`,
	RunE: runDashboard,
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardSession, "session", "mao", "tmux session name to watch")
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	root, err := projectRoot(cmd)
	if err != nil {
		return err
	}

	orch, err := orchestrator.New(root, dashboardSession)
	if err != nil {
		return fmt.Errorf("assembling orchestrator: %w", err)
	}

	p := tea.NewProgram(dashboard.New(orch), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
