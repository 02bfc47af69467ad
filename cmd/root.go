// Package cmd implements the passctl command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thediveo/enumflag/v2"

	"github.com/bundlekit/passctl/internal/config"
	"github.com/bundlekit/passctl/internal/jsonpatch"
	"github.com/bundlekit/passctl/internal/logging"
)

var RootCommand = &cobra.Command{
	Use:   "passctl",
	Short: "Resolve and publish the mapping compiler passes of resource bundles",
	Long: `passctl reads the resource bundle (module) declarations from its configuration,
resolves one mapping compiler pass per supported and installed persistence driver,
and publishes the resulting container build plan.`,
	SilenceUsage: true,
}

func init() {
	RootCommand.CompletionOptions.DisableDefaultCmd = true
}

// configParams are the flags of every command reading the configuration.
type configParams struct {
	configFiles []string
	patchFile   string
	logLevel    logging.Level
	logFormat   logging.Format
}

func (p *configParams) addFlags(fs *pflag.FlagSet) {
	p.logLevel = logging.Info
	fs.StringSliceVarP(&p.configFiles, "config", "c", []string{"config.yaml"}, "Path to the configuration file(s) or directories")
	fs.StringVar(&p.patchFile, "patch", "", "JSON patch (RFC 6902, JSON or YAML) applied to the merged configuration")
	fs.Var(enumflag.New(&p.logLevel, "level", logging.LevelIds, enumflag.EnumCaseInsensitive), "log-level", "Log level: debug, info, warn or error")
	fs.Var(enumflag.New(&p.logFormat, "format", logging.FormatIds, enumflag.EnumCaseInsensitive), "log-format", "Log format: text or json")
}

func (p *configParams) logger() *logging.Logger {
	return logging.NewLogger(logging.Config{Level: p.logLevel, Format: p.logFormat})
}

// load merges the configuration files, applies the patch, if any, and parses
// the result.
func (p *configParams) load() (*config.Root, error) {
	bs, err := config.Merge(p.configFiles, false)
	if err != nil {
		return nil, err
	}

	if p.patchFile != "" {
		data, err := os.ReadFile(p.patchFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read patch file: %w", err)
		}

		patch, err := jsonpatch.Decode(data)
		if err != nil {
			return nil, err
		}

		if bs, err = jsonpatch.ApplyYAML(patch, bs); err != nil {
			return nil, fmt.Errorf("failed to apply patch: %w", err)
		}
	}

	return config.Parse(bs)
}
