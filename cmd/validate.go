package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	ext_config "github.com/bundlekit/passctl/config"
	"github.com/bundlekit/passctl/internal/config"
)

func init() {
	var params configParams

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := params.load()
			if err != nil {
				return err
			}

			params.logger().Infof("Configuration valid: %d module(s), %d output(s).", len(cfg.Modules), len(cfg.Outputs))
			return nil
		},
	}
	params.addFlags(validate.Flags())

	schema := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := cmd.OutOrStdout().Write(ext_config.Schema())
			return err
		},
	}

	var conflictError bool
	merge := &cobra.Command{
		Use:   "merge [path...]",
		Short: "Merge configuration files into one document",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bs, err := config.Merge(args, conflictError)
			if err != nil {
				return err
			}

			if _, err := config.Parse(bs); err != nil {
				return fmt.Errorf("merged configuration is invalid: %w", err)
			}

			_, err = cmd.OutOrStdout().Write(bs)
			return err
		},
	}
	merge.Flags().BoolVar(&conflictError, "conflict-error", false, "Fail on conflicting values instead of letting the last file win")

	RootCommand.AddCommand(validate, schema, merge)
}
