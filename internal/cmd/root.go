// Package cmd implements the mao command-line tool: the operator-facing
// surface over internal/orchestrator. One file per subcommand, a shared
// rootCmd with cobra command groups, package-level flag vars wired in
// each file's init.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mao-project/mao/internal/util"
)

// Command groups, shown as separate sections in `mao --help`.
const (
	GroupCore = "core"
	GroupSession = "session"
	GroupFeedback = "feedback"
	GroupProject = "project"
	GroupDiag = "diag"
)

// Version/Build are set via -ldflags at release build time; both default
// to "dev" for a local `go build`.
var (
	Version = "dev"
	Build = "dev"
)

var rootCmd = &cobra.Command{
	Use: "mao",
	Short: "mao orchestrates a hierarchy of LLM agents over one project",
	Long: `mao runs a CTO agent in a tmux pane that decomposes a task into
	sub-tasks, dispatches each to a worker agent in its own pane and git
	worktree, and routes every completed sub-task through a human approval
	gate before it lands.

	Run "mao init" once per project, then "mao start" to begin a session.`,
	SilenceUsage: true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupCore, Title: "Core Commands:"},
		&cobra.Group{ID: GroupSession, Title: "Session Commands:"},
		&cobra.Group{ID: GroupFeedback, Title: "Feedback Commands:"},
		&cobra.Group{ID: GroupProject, Title: "Project Commands:"},
		&cobra.Group{ID: GroupDiag, Title: "Diagnostic Commands:"},
	)
	rootCmd.CompletionOptions.DisableDefaultCmd = false
	rootCmd.PersistentFlags().String("project", "", "project root (defaults to the current directory)")
}

// Execute runs the root command and returns a process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

// projectRoot resolves the project root a command should operate
// against: the current working directory, unless overridden by
// --project (which may itself use a leading ~/).
func projectRoot(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("project"); p != "" {
		return util.ExpandHome(p), nil
	}
	return os.Getwd()
}
