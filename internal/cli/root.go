// Package cli implements dflctl, the operator tool for inspecting and
// repairing feedback-loop state by hand.
package cli

import (
	"fmt"
	"os"

	"dfl-stack/shared/config"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

type options struct {
	cfgFile string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "dflctl",
		Short: "Inspect and repair the DFL feedback loop",
		Long: `dflctl runs the feedback-loop building blocks by hand.

  dflctl parse report.txt          Parse a Studio report into metrics
  dflctl analyze report.txt        Score a report against the YPP targets
  dflctl normalize plan.json       Normalize a planner response
  dflctl state get dfl_status      Read closed-loop state
  dflctl snapshot create -m "..."  Checkpoint the working tree`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is $CONFIG_FILE or config.yaml)")
	root.SetVersionTemplate(fmt.Sprintf("dflctl version %s\n", version))

	root.AddCommand(
		newParseCmd(),
		newAnalyzeCmd(opts),
		newNormalizeCmd(),
		newStateCmd(opts),
		newSnapshotCmd(opts),
	)
	return root
}

func Execute() error {
	err := newRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, theme.Error("Error:"), err)
	}
	return err
}

// loadConfig reads the --config file when given. Without one it tries the
// default location and falls back to defaults, since most commands never
// reach the APIs.
func (o *options) loadConfig() (*config.Config, error) {
	if o.cfgFile != "" {
		return config.LoadFile(o.cfgFile)
	}
	if cfg, err := config.Load(); err == nil {
		return cfg, nil
	}
	return config.Defaults(), nil
}
