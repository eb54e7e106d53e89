package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mao-project/mao/internal/orchestrator"
)

var startSession string

var startCmd = &cobra.Command{
	Use: "start <prompt>",
	GroupID: GroupCore,
	Short: "Start a new orchestration session",
	Long: `Start brings up a tmux session with a CTO pane and sends it the
	given prompt. The CTO decomposes the task into sub-tasks, and mao
	dispatches each to a worker agent as the CTO's output is parsed.

	While a session runs, type commands at the "mao>" prompt:
	approve <id> [feedback] approve a pending completion
	reject <id> <feedback> reject it and retry with feedback
	diff <id> show the pending completion's git diff
	status show every sub-task and pending approval
	quit shut the session down`,
	Args: cobra.ExactArgs(1),
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&startSession, "session", "mao", "tmux session name")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	root, err := projectRoot(cmd)
	if err != nil {
		return err
	}

	orch, err := orchestrator.New(root, startSession)
	if err != nil {
		return fmt.Errorf("assembling orchestrator: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := orch.Start(ctx, args[0]); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	defer orch.Shutdown()

	fmt.Printf("session started in tmux session %q; attach with: tmux attach -t %s\n", startSession, startSession)
	return runOperatorREPL(ctx, orch)
}

func runOperatorREPL(ctx context.Context, orch *orchestrator.Orchestrator) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print("mao> ")
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if done := handleOperatorCommand(orch, line); done {
				return nil
			}
		}
	}
}

// handleOperatorCommand runs one REPL line. Returns true if
// the session should end.
func handleOperatorCommand(orch *orchestrator.Orchestrator, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "quit", "exit":
		return true
	case "status":
		printStatus(orch)
	case "approve":
		if len(fields) < 2 {
			fmt.Println("usage: approve <id> [feedback...]")
			return false
		}
		feedback := strings.Join(fields[2:], " ")
		if _, err := orch.Approve(fields[1], feedback); err != nil {
			fmt.Println("error:", err)
		}
	case "reject":
		if len(fields) < 3 {
			fmt.Println("usage: reject <id> <feedback...>")
			return false
		}
		if _, err := orch.Reject(fields[1], strings.Join(fields[2:], " ")); err != nil {
			fmt.Println("error:", err)
		}
	case "diff":
		if len(fields) < 2 {
			fmt.Println("usage: diff <id>")
			return false
		}
		out, err := orch.Diff(fields[1])
		if err != nil {
			fmt.Println("error:", err)
			return false
		}
		fmt.Println(out)
	default:
		fmt.Printf("unknown command %q\n", fields[0])
	}
	return false
}

func printStatus(orch *orchestrator.Orchestrator) {
	state := orch.State()
	fmt.Printf("session %s, %d sub-task(s), done=%v\n", state.SessionID, len(state.Tasks), state.Done)
	for _, t := range state.Tasks {
		fmt.Printf(" %s [%s] %s\n", t.SubtaskID, t.Status, t.Description)
	}
	for _, a := range state.Pending {
		fmt.Printf(" pending approval %s: %s\n", a.ID, a.TaskDescription)
	}
}
