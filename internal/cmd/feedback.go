package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mao-project/mao/internal/feedback"
	"github.com/mao-project/mao/internal/store"
)

var feedbackCmd = &cobra.Command{
	Use:     "feedback",
	GroupID: GroupFeedback,
	Short:   "Manage orchestrator self-improvement feedback",
}

func feedbackStore(cmd *cobra.Command) (*feedback.Store, error) {
	root, err := projectRoot(cmd)
	if err != nil {
		return nil, err
	}
	return feedback.New(store.New(filepath.Join(root, ".mao"))), nil
}

var (
	feedbackSendCategory string
	feedbackSendPriority string
)

var feedbackSendCmd = &cobra.Command{
	Use:   "send <title> <description>",
	Short: "Record a feedback item manually",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := feedbackStore(cmd)
		if err != nil {
			return err
		}
		fb, err := st.Add(feedback.Feedback{
			Title:       args[0],
			Description: args[1],
			Category:    feedback.Category(feedbackSendCategory),
			Priority:    feedbackSendPriority,
		})
		if err != nil {
			return err
		}
		fmt.Println(fb.ID)
		return nil
	},
}

var feedbackListStatus string

var feedbackListCmd = &cobra.Command{
	Use:   "list",
	Short: "List feedback items",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := feedbackStore(cmd)
		if err != nil {
			return err
		}
		items, err := st.List(feedback.Filter{Status: feedback.Status(feedbackListStatus)})
		if err != nil {
			return err
		}
		for _, fb := range items {
			fmt.Printf("%s  [%s/%s]  %-8s  %s\n", fb.ID, fb.Category, fb.Priority, fb.Status, fb.Title)
		}
		return nil
	},
}

var feedbackShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one feedback item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := feedbackStore(cmd)
		if err != nil {
			return err
		}
		fb, err := st.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Println(fb.MarshalForLog())
		return nil
	},
}

var feedbackImproveCmd = &cobra.Command{
	Use:   "improve <id>",
	Short: "Mark a feedback item in_progress, for a worker acting on it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := feedbackStore(cmd)
		if err != nil {
			return err
		}
		_, err = st.SetStatus(args[0], feedback.StatusInProgress)
		return err
	},
}

var feedbackRepairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Rebuild feedback/index.json from the per-file records on disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := feedbackStore(cmd)
		if err != nil {
			return err
		}
		n, err := st.RepairIndex()
		if err != nil {
			return err
		}
		fmt.Printf("recovered %d feedback record(s)\n", n)
		return nil
	},
}

func init() {
	feedbackSendCmd.Flags().StringVar(&feedbackSendCategory, "category", "improvement", "bug, feature, improvement, or documentation")
	feedbackSendCmd.Flags().StringVar(&feedbackSendPriority, "priority", "medium", "low, medium, high, or critical")
	feedbackListCmd.Flags().StringVar(&feedbackListStatus, "status", "", "filter by status: open, in_progress, completed, rejected")

	feedbackCmd.AddCommand(feedbackSendCmd, feedbackListCmd, feedbackShowCmd, feedbackImproveCmd, feedbackRepairCmd)
	rootCmd.AddCommand(feedbackCmd)
}
