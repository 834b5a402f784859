package main

import (
	"fmt"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/spf13/cobra"

	"github.com/dshills/topichub/internal/config"
	"github.com/dshills/topichub/internal/logging"
)

var logger = loggo.GetLogger("topichub.cmd")

// rootOptions holds global flags and the configuration they resolve to.
type rootOptions struct {
	configPath string
	logLevel   string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:     "topichub",
		Short:   "Hierarchical publish/subscribe hub",
		Long:    "topichub runs Lua scripts against an in-process publish/subscribe hub and explains channel matching.",
		Version: fmt.Sprintf("%s (%s)", version, commit),

		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a TOML or YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")

	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newMatchCmd())
	return cmd
}

// setup loads configuration and configures logging.
// Precedence: flags, then environment, then file, then defaults.
func (o *rootOptions) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return errors.Trace(err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return errors.Trace(err)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return errors.Trace(err)
	}

	if err := logging.Configure(cfg.Log.Level, cmd.ErrOrStderr()); err != nil {
		return errors.Trace(err)
	}
	logger.Debugf("configuration loaded from %q", o.configPath)

	o.cfg = cfg
	return nil
}
