package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mao-project/mao/internal/config"
	"github.com/mao-project/mao/internal/roles"
)

var rolesCmd = &cobra.Command{
	Use:     "roles",
	GroupID: GroupCore,
	Short:   "List the role catalogue and the model tier each role resolves to",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := projectRoot(cmd)
		if err != nil {
			return err
		}
		cfg, err := config.Load(root)
		if err != nil {
			return err
		}
		cat, err := roles.Load(root)
		if err != nil {
			return err
		}
		table, err := config.FormatTierRoleTable(cfg.CostTier, cat)
		if err != nil {
			return err
		}
		fmt.Printf("cost tier: %s (%s)\n\n", cfg.CostTier, config.TierDescription(cfg.CostTier))
		fmt.Println(table)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rolesCmd)
}
