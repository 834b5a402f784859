package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
)

// watchScript runs path, then runs it again each time it is written,
// until the command context is cancelled. The directory is watched rather
// than the file so editors that replace the file are noticed.
func (o *runOptions) watchScript(cmd *cobra.Command, path string) error {
	ctx := cmd.Context()

	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Trace(err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Annotate(err, "creating watcher")
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return errors.Annotatef(err, "watching %s", filepath.Dir(abs))
	}

	rerun := func() {
		if err := o.runOnce(ctx, cmd, abs); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
	}
	rerun()

	var (
		timer clock.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			if timer == nil {
				timer = o.clock.NewTimer(o.debounce)
			} else {
				timer.Reset(o.debounce)
			}
			fire = timer.Chan()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warningf("watching %s: %v", abs, err)

		case <-fire:
			fire = nil
			logger.Infof("%s changed, re-running", path)
			rerun()
		}
	}
}
