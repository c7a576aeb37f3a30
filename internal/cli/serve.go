package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/strata-gfx/strata/internal/server"
	"github.com/strata-gfx/strata/pkg/capture"
	"github.com/strata-gfx/strata/pkg/engine"
	"github.com/strata-gfx/strata/pkg/input"
	"github.com/strata-gfx/strata/pkg/layer"
	"github.com/strata-gfx/strata/pkg/scenefile"
	"github.com/strata-gfx/strata/pkg/trace"
)

// serveCommand creates the serve command, which runs the HTTP API around a
// live engine.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr      string
		scenePath string
		repair    bool
		record    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the hierarchy API over HTTP",
		Long: `Serve runs an engine behind the HTTP API: hierarchy and z-order views,
loop validation, SVG rendering, and transaction application. With --scene
the engine starts from a scene document; otherwise it starts empty and is
populated through POST /v1/transactions.

With --record every applied transaction is kept in a ring buffer and saved
as a capture session on shutdown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.Config()
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if !repair {
				repair = cfg.Server.RepairLoops
			}

			var initial []layer.State
			if scenePath != "" {
				doc, err := scenefile.Load(scenePath)
				if err != nil {
					return err
				}
				initial = doc.Initial
			}

			opts := []engine.Option{
				engine.WithLogger(c.Logger),
				engine.WithLoopRepair(repair),
				// The fake dispatcher stands in for a real input pipeline;
				// publishing to it keeps the window-list path exercised.
				engine.WithDispatcher(input.NewFake()),
			}
			var recorder *capture.Recorder
			if record {
				recorder = capture.NewRecorder(cfg.Capture.RingSize)
				opts = append(opts, engine.WithRecorder(recorder))
			}

			eng, err := engine.New(initial, opts...)
			if err != nil {
				return err
			}

			srv := server.New(eng, server.WithLogger(c.Logger))
			serveErr := srv.ListenAndServe(cmd.Context(), addr)

			if recorder != nil {
				if err := c.saveSession(context.Background(), recorder, eng.Snapshot()); err != nil {
					c.Logger.Warn("capture save failed", "err", err)
				}
			}
			return serveErr
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, then :8270)")
	cmd.Flags().StringVar(&scenePath, "scene", "", "scene document supplying the initial layers")
	cmd.Flags().BoolVar(&repair, "repair", false, "repair relative loops instead of only flagging them")
	cmd.Flags().BoolVar(&record, "record", false, "record applied transactions and save a capture session on shutdown")

	return cmd
}

// saveSession stores the recorder's transactions as a capture session.
func (c *CLI) saveSession(ctx context.Context, recorder *capture.Recorder, final trace.Snapshot) error {
	if len(recorder.Transactions()) == 0 {
		return nil
	}

	store, backend, err := c.newCaptureStore(ctx)
	if err != nil {
		return err
	}
	sess := recorder.Session("serve", final)
	if err := store.Set(ctx, sess); err != nil {
		return err
	}
	c.Logger.Info("capture session saved", "id", sess.ID, "backend", backend,
		"transactions", len(sess.Transactions), "dropped", sess.Dropped)
	return nil
}

// newCaptureStore builds the capture store selected by the config.
func (c *CLI) newCaptureStore(ctx context.Context) (capture.Store, string, error) {
	cfg := c.Config().Capture
	switch cfg.Backend {
	case "", "file":
		dir := cfg.Dir
		if dir == "" {
			if base, err := configDir(); err == nil {
				dir = filepath.Join(base, "captures")
			}
		}
		store, err := capture.NewFileStore(dir)
		return store, "file", err
	case "redis":
		store, err := capture.NewRedisStore(ctx, capture.RedisConfig{Addr: cfg.RedisAddr})
		return store, "redis", err
	default:
		return nil, "", fmt.Errorf("unknown capture backend %q (want file or redis)", cfg.Backend)
	}
}
