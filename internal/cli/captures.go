package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/strata-gfx/strata/pkg/capture"
	"github.com/strata-gfx/strata/pkg/errors"
	"github.com/strata-gfx/strata/pkg/trace"
)

// capturesCommand creates the captures command group for managing recorded
// sessions.
func (c *CLI) capturesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "captures",
		Short: "Manage recorded capture sessions",
		Long:  `Captures lists, shows, exports, and deletes the sessions the serve command records. The backend (file directory or redis) is selected by the config file.`,
	}

	cmd.AddCommand(c.capturesListCommand())
	cmd.AddCommand(c.capturesShowCommand())
	cmd.AddCommand(c.capturesExportCommand())
	cmd.AddCommand(c.capturesRemoveCommand())
	cmd.AddCommand(c.capturesCleanupCommand())
	cmd.AddCommand(c.capturesArchiveCommand())

	return cmd
}

func (c *CLI) capturesListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List capture sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, backend, err := c.newCaptureStore(cmd.Context())
			if err != nil {
				return err
			}
			ids, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(ids) == 0 {
				printDetail(out, "no sessions (%s backend)", backend)
				return nil
			}
			for _, id := range ids {
				sess, err := store.Get(cmd.Context(), id)
				if err != nil || sess == nil {
					continue
				}
				fmt.Fprintf(out, "%s  %s  %s\n",
					styleValue.Render(sess.ID),
					styleDim.Render(sess.CreatedAt.Format(time.RFC3339)),
					fmt.Sprintf("%q, %d transaction(s)", sess.Name, len(sess.Transactions)))
			}
			return nil
		},
	}
}

func (c *CLI) capturesShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show one capture session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := c.getSession(cmd, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, styleTitle.Render("Session "+sess.ID))
			printDetail(out, "name       %s", sess.Name)
			printDetail(out, "created    %s", sess.CreatedAt.Format(time.RFC3339))
			printDetail(out, "expires    %s", sess.ExpiresAt.Format(time.RFC3339))
			printDetail(out, "recorded   %d transaction(s), %d dropped", len(sess.Transactions), sess.Dropped)
			printDetail(out, "final      %d layer(s), %d edge(s)", len(sess.Final.Records), len(sess.Final.Edges))
			if sess.Final.LoopLayer != 0 {
				printWarning(out, "final snapshot has a relative loop at layer %d", sess.Final.LoopLayer)
			}
			for i, tx := range sess.Transactions {
				fmt.Fprintf(out, "  %2d. %s %s\n", i+1,
					styleValue.Render(txLabel(tx)),
					styleDim.Render(fmt.Sprintf("create=%d set=%d destroy=%d",
						len(tx.Create), len(tx.Set), len(tx.Destroy))))
			}
			return nil
		},
	}
}

func (c *CLI) capturesExportCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export [id]",
		Short: "Export a session's transaction stream as JSON lines",
		Long:  `Export writes a session's transactions in the format the replay command reads.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := c.getSession(cmd, args[0])
			if err != nil {
				return err
			}
			if output == "" {
				return trace.WriteTransactions(cmd.OutOrStdout(), sess.Transactions)
			}
			if err := trace.ExportTransactions(output, sess.Transactions); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "%d transaction(s) written to %s", len(sess.Transactions), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func (c *CLI) capturesRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rm [id]",
		Short: "Delete a capture session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := c.newCaptureStore(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "deleted %s", args[0])
			return nil
		},
	}
}

func (c *CLI) capturesCleanupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired capture sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, backend, err := c.newCaptureStore(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.Cleanup(cmd.Context()); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "cleanup complete (%s backend)", backend)
			return nil
		},
	}
}

func (c *CLI) capturesArchiveCommand() *cobra.Command {
	var uri string

	cmd := &cobra.Command{
		Use:   "archive [id]",
		Short: "Copy a session to the long-term mongo archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if uri == "" {
				uri = c.Config().Capture.MongoURI
			}
			if uri == "" {
				return errors.New(errors.ErrCodeInvalidInput, "no mongo URI; set --mongo-uri or capture.mongo_uri in the config")
			}

			sess, err := c.getSession(cmd, args[0])
			if err != nil {
				return err
			}

			archive, err := capture.NewMongoArchive(cmd.Context(), capture.MongoConfig{URI: uri})
			if err != nil {
				return err
			}
			defer func() { _ = archive.Close(cmd.Context()) }()

			if err := archive.Archive(cmd.Context(), sess); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "archived %s", sess.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&uri, "mongo-uri", "", "mongo connection string (default from config)")
	return cmd
}

// getSession loads one session from the configured store.
func (c *CLI) getSession(cmd *cobra.Command, id string) (*capture.Session, error) {
	store, _, err := c.newCaptureStore(cmd.Context())
	if err != nil {
		return nil, err
	}
	sess, err := store.Get(cmd.Context(), id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, errors.New(errors.ErrCodeSessionNotFound, "no capture session %q", id)
	}
	return sess, nil
}

func txLabel(tx trace.Transaction) string {
	if tx.Name != "" {
		return tx.Name
	}
	return "(unnamed)"
}
