package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/strata-gfx/strata/pkg/zorder"
)

// zorderCommand creates the zorder command, which prints per-display paint
// order.
func (c *CLI) zorderCommand() *cobra.Command {
	var (
		applyTx bool
		display uint32
		all     bool
		topDown bool
	)

	cmd := &cobra.Command{
		Use:   "zorder [scene.hcl]",
		Short: "Print the paint order of a scene document",
		Long:  `Zorder flattens the hierarchy's z-ordered traversal into per-display paint lists, bottom-up. Layers on flagged relative loops and invisible layers are excluded, matching what a compositor would draw.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, err := c.loadEngine(cmd.Context(), args[0], applyTx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			paint := eng.PaintOrder()
			displays := make([]uint32, 0, len(paint))
			for d := range paint {
				displays = append(displays, d)
			}
			slices.Sort(displays)

			if !all {
				displays = []uint32{display}
			}
			for i, d := range displays {
				if i > 0 {
					fmt.Fprintln(out)
				}
				entries := paint[d]
				if topDown {
					entries = zorder.TopDown(entries)
				}
				writePaintList(out, d, entries, topDown)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&applyTx, "transactions", "t", false, "apply the document's transactions first")
	cmd.Flags().Uint32VarP(&display, "display", "d", 0, "display to print")
	cmd.Flags().BoolVar(&all, "all", false, "print every display")
	cmd.Flags().BoolVar(&topDown, "top-down", false, "print front-most layer first (input hit-test order)")

	return cmd
}

func writePaintList(w io.Writer, display uint32, entries []zorder.Entry, topDown bool) {
	order := "bottom-up"
	if topDown {
		order = "top-down"
	}
	fmt.Fprintln(w, styleTitle.Render(fmt.Sprintf("Display %d", display))+styleDim.Render("  ("+order+")"))
	if len(entries) == 0 {
		printDetail(w, "no visible layers")
		return
	}
	for i, e := range entries {
		name := e.Name
		if name == "" {
			name = fmt.Sprintf("layer %d", e.Layer)
		}
		fmt.Fprintf(w, "  %2d. %s %s\n",
			i+1,
			styleValue.Render(name),
			styleDim.Render(fmt.Sprintf("id=%d z=%d", e.Layer, e.Z)))
	}
}
