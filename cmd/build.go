package cmd

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/bundlekit/passctl/internal/metrics"
	"github.com/bundlekit/passctl/internal/service"
)

type buildParams struct {
	configParams
	modules     []string
	metricsFile string
	progress    bool
}

func init() {
	var params buildParams

	build := &cobra.Command{
		Use:   "build",
		Short: "Resolve all modules and publish the container build plan",
		Long: `Resolve the compiler passes of all enabled modules, check the plan against the
configured policy and publish it to every configured output.

Any module failing to resolve aborts the build and nothing is published.`,
		Example: `  # Build with the default config.yaml
  $ passctl build

  # Only the Sylius modules, dumping metrics afterwards
  $ passctl build -c conf.d/ --modules 'Sylius*' --metrics-file metrics.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd, params)
		},
	}

	params.addFlags(build.Flags())
	build.Flags().StringSliceVar(&params.modules, "modules", nil, "Glob patterns of the module names to build")
	build.Flags().StringVar(&params.metricsFile, "metrics-file", "", "Write metrics in text exposition format to this file")
	build.Flags().BoolVar(&params.progress, "progress", false, "Show a progress bar")

	RootCommand.AddCommand(build)
}

func runBuild(cmd *cobra.Command, params buildParams) (err error) {
	if params.metricsFile != "" {
		defer func() {
			if werr := writeMetrics(params.metricsFile); werr != nil && err == nil {
				err = werr
			}
		}()
	}

	cfg, err := params.load()
	if err != nil {
		return err
	}

	svc, err := service.New().
		WithConfig(cfg).
		WithLogger(params.logger()).
		WithProgress(params.progress).
		WithModuleFilter(params.modules)
	if err != nil {
		return err
	}

	_, err = svc.Build(cmd.Context())
	return err
}

func writeMetrics(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create metrics file: %w", err)
	}
	defer f.Close()

	return metrics.WriteText(f, prometheus.DefaultGatherer)
}
