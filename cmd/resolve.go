package cmd

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/thediveo/enumflag/v2"

	"github.com/bundlekit/passctl/internal/container"
	"github.com/bundlekit/passctl/internal/service"
)

type outputFormat int

const (
	outputTable outputFormat = iota
	outputYAML
	outputJSON
)

var outputFormatIds = map[outputFormat][]string{
	outputTable: {"table"},
	outputYAML:  {"yaml"},
	outputJSON:  {"json"},
}

type resolveParams struct {
	configParams
	modules []string
	output  outputFormat
}

func init() {
	var params resolveParams

	resolve := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the compiler passes of the configured modules without publishing",
		Example: `  $ passctl resolve -c config.yaml --modules SyliusAttributeBundle
  $ passctl resolve -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := params.load()
			if err != nil {
				return err
			}

			svc, err := service.New().
				WithConfig(cfg).
				WithLogger(params.logger()).
				WithDryRun(true).
				WithModuleFilter(params.modules)
			if err != nil {
				return err
			}

			plan, err := svc.Build(cmd.Context())
			if err != nil {
				return err
			}

			return printPlan(cmd.OutOrStdout(), plan, params.output)
		},
	}

	params.addFlags(resolve.Flags())
	resolve.Flags().StringSliceVar(&params.modules, "modules", nil, "Glob patterns of the module names to resolve")
	resolve.Flags().VarP(enumflag.New(&params.output, "format", outputFormatIds, enumflag.EnumCaseInsensitive), "output", "o", "Output format: table, yaml or json")

	RootCommand.AddCommand(resolve)
}

func printPlan(w io.Writer, plan *container.Plan, format outputFormat) error {
	switch format {
	case outputYAML:
		return plan.Encode(w, container.FormatYAML)
	case outputJSON:
		return plan.Encode(w, container.FormatJSON)
	}

	table := tablewriter.NewWriter(w)
	table.Header("Module", "Driver", "Provider", "Method", "ID")
	for _, r := range plan.Passes {
		if err := table.Append([]string{r.Module, r.Pass.Driver.String(), r.Pass.Provider, r.Pass.Method, r.Pass.ID}); err != nil {
			return err
		}
	}

	if err := table.Render(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "%d compiler pass(es)\n", len(plan.Passes))
	return err
}
