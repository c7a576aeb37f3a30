package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/strata-gfx/strata/pkg/errors"
	"github.com/strata-gfx/strata/pkg/render/scenedot"
	"github.com/strata-gfx/strata/pkg/scene"
)

const (
	formatSVG = "svg"
	formatPNG = "png"
	formatDOT = "dot"
)

// renderCommand creates the render command, which draws a scene document's
// hierarchy as a Graphviz diagram.
func (c *CLI) renderCommand() *cobra.Command {
	var (
		applyTx  bool
		output   string
		format   string
		detailed bool
	)

	cmd := &cobra.Command{
		Use:   "render [scene.hcl]",
		Short: "Render a scene document's hierarchy to SVG, PNG, or DOT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.Config()
			if format == "" {
				format = cfg.Render.Format
			}
			if !detailed {
				detailed = cfg.Render.Detailed
			}
			if format != formatSVG && format != formatPNG && format != formatDOT {
				return errors.New(errors.ErrCodeInvalidFormat, "unknown format %q (want svg, png, or dot)", format)
			}
			if output == "" {
				base := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
				output = base + "." + format
			}

			eng, _, err := c.loadEngine(cmd.Context(), args[0], applyTx)
			if err != nil {
				return err
			}

			prog := newProgress(c.Logger)
			var dot string
			eng.View(func(hierarchy, _ *scene.Graph) {
				dot = scenedot.ToDOT(hierarchy, scenedot.Options{Detailed: detailed})
			})

			var data []byte
			switch format {
			case formatDOT:
				data = []byte(dot)
			case formatSVG:
				data, err = scenedot.RenderSVG(dot)
			case formatPNG:
				data, err = scenedot.RenderPNG(dot)
			}
			if err != nil {
				return err
			}

			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			prog.done(fmt.Sprintf("Rendered %s", output))
			printSuccess(cmd.OutOrStdout(), "%s", output)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&applyTx, "transactions", "t", false, "apply the document's transactions first")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default scene name + format)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "output format: svg (default), png, dot")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include record ids and z values in labels")

	return cmd
}
