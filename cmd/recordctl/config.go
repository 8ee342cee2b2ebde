package main

import (
	"fmt"

	"github.com/danmuck/tagwire/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write or check recordctl config files",
	}

	var (
		output string
		force  bool
	)
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config template with default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteTemplate(output, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote config template to %s\n", output)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&output, "output", "o", "recordctl.toml", "output path")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	var input string
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Load and validate a config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(input)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "valid config %s (store=%s format=%s)\n", input, cfg.Store.Backend, cfg.Text.Format)
			return nil
		},
	}
	checkCmd.Flags().StringVarP(&input, "input", "i", "recordctl.toml", "config path")

	cmd.AddCommand(initCmd, checkCmd)
	return cmd
}
