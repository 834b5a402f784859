package main

import (
	"fmt"
	"strings"

	"github.com/juju/errors"
	"github.com/spf13/cobra"

	"github.com/dshills/topichub/internal/hub"
	"github.com/dshills/topichub/internal/hub/schedule"
	"github.com/dshills/topichub/internal/hub/topic"
)

func newMatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "match <channel> [pattern...]",
		Short: "Explain which patterns a channel fires",
		Long: `Prints every pattern key a publish on channel would look up, in firing
order. With patterns, also prints how many times each one matches and the
order in which subscribers of those patterns would be called.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(cmd, args[0], args[1:])
		},
	}
}

func runMatch(cmd *cobra.Command, channel string, patterns []string) error {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "candidates for %s:\n", channel)
	for _, c := range topic.Candidates(channel) {
		fmt.Fprintf(out, "  %s\n", c)
	}

	if len(patterns) == 0 {
		return nil
	}

	fmt.Fprintln(out, "patterns:")
	h := hub.New(hub.WithScheduler(schedule.NewManual()))
	for _, p := range patterns {
		fmt.Fprintf(out, "  %s\t%d\n", p, topic.MatchCount(p, channel))
		if _, err := h.SubscribeFunc(p, func(hub.Delivery) {}); err != nil {
			return errors.Trace(err)
		}
	}

	fmt.Fprintf(out, "fires: %s\n", strings.Join(h.Match(channel), " "))
	return nil
}
