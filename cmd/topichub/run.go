package main

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/spf13/cobra"

	"github.com/dshills/topichub/internal/config"
	"github.com/dshills/topichub/internal/luabind"
)

const defaultDebounce = 100 * time.Millisecond

type runOptions struct {
	root     *rootOptions
	watch    bool
	debounce time.Duration
	clock    clock.Clock
}

func newRunCmd(root *rootOptions) *cobra.Command {
	o := &runOptions{root: root, clock: clock.WallClock}

	cmd := &cobra.Command{
		Use:   "run <script.lua>",
		Short: "Run a Lua script against a fresh hub",
		Long: `Runs a Lua script with a global "hub" table providing subscribe,
unsubscribe, publish and match. Deliveries run after the script body returns.
The command fails if the script or any callback raises an error.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.watch || o.root.cfg.Script.Watch {
				return o.watchScript(cmd, args[0])
			}
			return o.runOnce(cmd.Context(), cmd, args[0])
		},
	}

	cmd.Flags().BoolVarP(&o.watch, "watch", "w", false, "re-run the script whenever it changes")
	cmd.Flags().DurationVar(&o.debounce, "debounce", defaultDebounce, "quiet period before re-running a changed script")
	return cmd
}

// runtimeOptions maps the scheduler configuration onto the Lua runtime.
// Deliveries always run on the script goroutine; the timer kind delays them.
func (o *runOptions) runtimeOptions(cmd *cobra.Command) ([]luabind.Option, error) {
	opts := []luabind.Option{luabind.WithOutput(cmd.OutOrStdout())}

	cfg := o.root.cfg
	if cfg.Scheduler.Kind == config.SchedulerTimer {
		delay, err := cfg.Scheduler.DelayDuration()
		if err != nil {
			return nil, errors.Trace(err)
		}
		opts = append(opts, luabind.WithTimer(o.clock, delay))
	}
	return opts, nil
}

// runOnce runs path in a new runtime and reports callback errors.
func (o *runOptions) runOnce(ctx context.Context, cmd *cobra.Command, path string) error {
	opts, err := o.runtimeOptions(cmd)
	if err != nil {
		return errors.Trace(err)
	}

	rt := luabind.New(opts...)
	defer rt.Close()

	if err := rt.DoFile(ctx, path); err != nil {
		return errors.Trace(err)
	}

	stats := rt.Hub().Stats()
	logger.Debugf("%s: %d published, %d delivered, %d subscriptions left",
		path, stats.Published, stats.Delivered, stats.Subscriptions)

	if errs := rt.Errors(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(cmd.ErrOrStderr(), "callback error: %v\n", e)
		}
		return errors.Errorf("%d callback error(s) in %s", len(errs), path)
	}
	return nil
}
