package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strata-gfx/strata/pkg/scene"
)

// showCommand creates the show command, which prints a scene document's
// hierarchy as an indented tree.
func (c *CLI) showCommand() *cobra.Command {
	var (
		applyTx   bool
		offscreen bool
	)

	cmd := &cobra.Command{
		Use:   "show [scene.hcl]",
		Short: "Print the layer hierarchy of a scene document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, doc, err := c.loadEngine(cmd.Context(), args[0], applyTx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, styleTitle.Render("Hierarchy"))
			eng.View(func(hierarchy, off *scene.Graph) {
				writeTree(out, hierarchy)
				if offscreen {
					fmt.Fprintln(out)
					fmt.Fprintln(out, styleTitle.Render("Offscreen"))
					writeTree(out, off)
				}
			})

			if applyTx && len(doc.Transactions) > 0 {
				printDetail(out, "%d transaction(s) applied", len(doc.Transactions))
			}
			if id, looped := eng.Validate(); looped {
				printWarning(out, "relative loop at layer %d", id)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&applyTx, "transactions", "t", false, "apply the document's transactions before printing")
	cmd.Flags().BoolVar(&offscreen, "offscreen", false, "also print layers not reachable from the display root")

	return cmd
}
