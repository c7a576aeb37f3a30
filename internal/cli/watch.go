package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/strata-gfx/strata/pkg/trace"
)

// watchDebounce coalesces editor write bursts into one reload.
const watchDebounce = 200 * time.Millisecond

// watchCommand creates the watch command, which reloads a scene document on
// every change and reports what the edit did to the hierarchy.
func (c *CLI) watchCommand() *cobra.Command {
	var applyTx bool

	cmd := &cobra.Command{
		Use:   "watch [scene.hcl]",
		Short: "Reload a scene document on change and report hierarchy diffs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runWatch(cmd.Context(), cmd.OutOrStdout(), args[0], applyTx)
		},
	}

	cmd.Flags().BoolVarP(&applyTx, "transactions", "t", false, "apply the document's transactions on every reload")

	return cmd
}

func (c *CLI) runWatch(ctx context.Context, out io.Writer, path string, applyTx bool) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors replace files on save,
	// which drops a watch registered on the file itself.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	last, err := c.reloadScene(ctx, out, path, applyTx, trace.Snapshot{})
	if err != nil {
		printErrorLine(out, "%v", err)
	}
	c.Logger.Info("watching", "file", path)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			changed, _ := filepath.Abs(ev.Name)
			if changed != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(watchDebounce)
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.Logger.Warn("watch error", "err", werr)
		case <-pending:
			pending = nil
			next, err := c.reloadScene(ctx, out, path, applyTx, last)
			if err != nil {
				printErrorLine(out, "%v", err)
				continue
			}
			last = next
		}
	}
}

// reloadScene rebuilds the scene and prints what changed relative to the
// previous snapshot.
func (c *CLI) reloadScene(ctx context.Context, out io.Writer, path string, applyTx bool, prev trace.Snapshot) (trace.Snapshot, error) {
	prog := newProgress(c.Logger)
	eng, _, err := c.loadEngine(ctx, path, applyTx)
	if err != nil {
		return prev, err
	}

	snap := eng.Snapshot()
	prog.done(fmt.Sprintf("Loaded %s: %d layer(s)", path, len(snap.Records)))

	if diff := trace.DiffSnapshots(prev, snap); !diff.Empty() {
		printDetail(out, "added %v changed %v destroyed %v", diff.Added, diff.Changed, diff.Destroyed)
	}
	if snap.LoopLayer != 0 {
		printWarning(out, "relative loop at layer %d", snap.LoopLayer)
	} else {
		printSuccess(out, "no relative loops")
	}
	return snap, nil
}
