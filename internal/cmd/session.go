package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mao-project/mao/internal/sessionlog"
	"github.com/mao-project/mao/internal/store"
)

var sessionCmd = &cobra.Command{
	Use:     "session",
	GroupID: GroupSession,
	Short:   "Inspect and manage recorded sessions",
}

func sessionLog(cmd *cobra.Command) (*sessionlog.Log, error) {
	root, err := projectRoot(cmd)
	if err != nil {
		return nil, err
	}
	return sessionlog.New(store.New(filepath.Join(root, ".mao"))), nil
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every recorded session, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := sessionLog(cmd)
		if err != nil {
			return err
		}
		sessions, err := log.All()
		if err != nil {
			return err
		}
		for _, s := range sessions {
			title := s.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Printf("%s  %-30s  %d messages  updated %s\n", s.ID, title, s.MessageCount, s.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print a session's full chat log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := sessionLog(cmd)
		if err != nil {
			return err
		}
		messages, err := log.Messages(args[0])
		if err != nil {
			return err
		}
		for _, m := range messages {
			fmt.Printf("[%s %s] %s\n", m.Timestamp.Format("15:04:05"), m.Role, m.Content)
		}
		return nil
	},
}

var sessionRenameCmd = &cobra.Command{
	Use:   "rename <session-id> <title>",
	Short: "Set a session's display title",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := sessionLog(cmd)
		if err != nil {
			return err
		}
		return log.Rename(args[0], args[1])
	},
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session's chat log and metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := sessionLog(cmd)
		if err != nil {
			return err
		}
		return log.Delete(args[0])
	},
}

var sessionSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search every session's chat content for a substring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := sessionLog(cmd)
		if err != nil {
			return err
		}
		results, err := log.Search(args[0])
		if err != nil {
			return err
		}
		for _, r := range results {
			fmt.Printf("%s: %s\n", r.SessionID, r.Message.Content)
		}
		return nil
	},
}

func init() {
	sessionCmd.AddCommand(sessionListCmd, sessionShowCmd, sessionRenameCmd, sessionDeleteCmd, sessionSearchCmd)
	rootCmd.AddCommand(sessionCmd)
}
