package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mao-project/mao/internal/improvement"
	"github.com/mao-project/mao/internal/store"
)

var projectCmd = &cobra.Command{
	Use:     "project",
	GroupID: GroupProject,
	Short:   "Manage improvement suggestions raised against external projects",
}

func improvementStore(cmd *cobra.Command) (*improvement.Store, error) {
	root, err := projectRoot(cmd)
	if err != nil {
		return nil, err
	}
	return improvement.New(store.New(filepath.Join(root, ".mao"))), nil
}

var (
	projectImproveCategory string
	projectImprovePriority string
)

var projectImproveCmd = &cobra.Command{
	Use:   "improve <project-path> <title> <description>",
	Short: "Record an improvement suggestion for another project",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := improvementStore(cmd)
		if err != nil {
			return err
		}
		imp, err := st.Add(improvement.Improvement{
			ProjectPath: args[0],
			Title:       args[1],
			Description: args[2],
			Category:    improvement.Category(projectImproveCategory),
			Priority:    projectImprovePriority,
		})
		if err != nil {
			return err
		}
		fmt.Println(imp.ID)
		return nil
	},
}

var projectListPath string

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List improvement suggestions",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := improvementStore(cmd)
		if err != nil {
			return err
		}
		items, err := st.List(improvement.Filter{ProjectPath: projectListPath})
		if err != nil {
			return err
		}
		for _, imp := range items {
			fmt.Printf("%s  %-8s  %-20s  %s\n", imp.ID, imp.Status, imp.ProjectPath, imp.Title)
		}
		return nil
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one improvement suggestion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := improvementStore(cmd)
		if err != nil {
			return err
		}
		imp, err := st.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Println(imp.MarshalForLog())
		return nil
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Cancel an improvement suggestion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := improvementStore(cmd)
		if err != nil {
			return err
		}
		_, err = st.Update(args[0], func(imp *improvement.Improvement) {
			imp.Status = improvement.StatusCancelled
		})
		return err
	},
}

func init() {
	projectImproveCmd.Flags().StringVar(&projectImproveCategory, "category", "feature", "feature, bug, refactor, performance, or documentation")
	projectImproveCmd.Flags().StringVar(&projectImprovePriority, "priority", "medium", "low, medium, high, or critical")
	projectListCmd.Flags().StringVar(&projectListPath, "path", "", "filter by project path")

	projectCmd.AddCommand(projectImproveCmd, projectListCmd, projectShowCmd, projectDeleteCmd)
	rootCmd.AddCommand(projectCmd)
}
