package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mao-project/mao/internal/config"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: GroupCore,
	Short:   "Show or edit .mao/config.yaml",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := projectRoot(cmd)
		if err != nil {
			return err
		}
		cfg, err := config.Load(root)
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

var configSetCostTierCmd = &cobra.Command{
	Use:   "set-cost-tier <standard|economy|budget>",
	Short: "Change the project's cost tier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := projectRoot(cmd)
		if err != nil {
			return err
		}
		if !config.IsValidTier(args[0]) {
			return fmt.Errorf("unknown cost tier %q (valid: %s)", args[0], config.ValidCostTiers())
		}
		cfg, err := config.Load(root)
		if err != nil {
			return err
		}
		cfg.CostTier = config.CostTier(args[0])
		if err := config.Save(root, cfg); err != nil {
			return err
		}
		fmt.Printf("cost tier set to %s\n", cfg.CostTier)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCostTierCmd)
	rootCmd.AddCommand(configCmd)
}
