package cli

import (
	"fmt"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/strata-gfx/strata/pkg/layer"
	"github.com/strata-gfx/strata/pkg/scene"
	"github.com/strata-gfx/strata/pkg/zorder"
)

// inspectCommand creates the inspect command, an interactive hierarchy
// browser.
func (c *CLI) inspectCommand() *cobra.Command {
	var applyTx bool

	cmd := &cobra.Command{
		Use:   "inspect [scene.hcl]",
		Short: "Browse a scene document's hierarchy interactively",
		Long:  `Inspect opens a terminal browser over the hierarchy: arrow keys move the cursor through the tree, the detail pane shows the selected layer's record, and "z" switches between the tree and the per-display paint order.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, err := c.loadEngine(cmd.Context(), args[0], applyTx)
			if err != nil {
				return err
			}

			m := newInspectModel(args[0])
			eng.View(func(hierarchy, _ *scene.Graph) {
				m.rows = hierarchyRows(hierarchy)
			})
			m.paint = eng.PaintOrder()
			for _, rec := range eng.Records() {
				m.records[rec.ID] = rec
			}
			if id, looped := eng.Validate(); looped {
				m.loopLayer = id
			}

			_, err = tea.NewProgram(m, tea.WithContext(cmd.Context())).Run()
			return err
		},
	}

	cmd.Flags().BoolVarP(&applyTx, "transactions", "t", false, "apply the document's transactions first")

	return cmd
}

// inspectModel is the bubbletea model for the hierarchy browser.
type inspectModel struct {
	path    string
	rows    []treeRow
	paint   map[uint32][]zorder.Entry
	records map[layer.ID]layer.State

	cursor    int
	offset    int
	height    int
	zOrder    bool
	loopLayer layer.ID
}

func newInspectModel(path string) *inspectModel {
	return &inspectModel{
		path:    path,
		records: make(map[layer.ID]layer.State),
		height:  15,
	}
}

func (m *inspectModel) Init() tea.Cmd {
	return nil
}

func (m *inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				if m.cursor < m.offset {
					m.offset = m.cursor
				}
			}
		case "down", "j":
			if m.cursor < len(m.rows)-1 {
				m.cursor++
				if m.cursor >= m.offset+m.height {
					m.offset = m.cursor - m.height + 1
				}
			}
		case "z":
			m.zOrder = !m.zOrder
		}
	case tea.WindowSizeMsg:
		m.height = msg.Height - 12
		if m.height < 5 {
			m.height = 5
		}
	}
	return m, nil
}

var detailBoxStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorDim).
	Padding(0, 1)

func (m *inspectModel) View() string {
	var b strings.Builder

	b.WriteString(styleTitle.Render("strata inspect") + styleDim.Render("  "+m.path))
	b.WriteString("\n")
	b.WriteString(styleDim.Render("↑/↓ navigate  z toggle z-order  q quit"))
	b.WriteString("\n\n")

	if m.zOrder {
		m.viewZOrder(&b)
	} else {
		m.viewTree(&b)
	}

	if m.loopLayer != layer.None {
		b.WriteString("\n")
		b.WriteString(styleError.Render(fmt.Sprintf("%s relative loop at layer %d", iconLoop, m.loopLayer)))
	}
	return b.String()
}

func (m *inspectModel) viewTree(b *strings.Builder) {
	if len(m.rows) == 0 {
		b.WriteString(styleDim.Render("  (empty hierarchy)"))
		b.WriteString("\n")
		return
	}

	end := min(m.offset+m.height, len(m.rows))
	for i := m.offset; i < end; i++ {
		r := m.rows[i]
		cursor := "  "
		if i == m.cursor {
			cursor = styleTitle.Render("▸ ")
		}
		b.WriteString(cursor + strings.Repeat("  ", r.Depth) + renderRow(r))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.viewDetail())
	b.WriteString("\n")
	b.WriteString(styleDim.Render(fmt.Sprintf("  [%d/%d]", m.cursor+1, len(m.rows))))
}

func (m *inspectModel) viewDetail() string {
	if m.cursor >= len(m.rows) {
		return ""
	}
	r := m.rows[m.cursor]
	rec, ok := m.records[r.Layer]
	if !ok {
		return detailBoxStyle.Render(styleDim.Render("no record"))
	}

	field := func(k, v string) string {
		return styleDim.Render(fmt.Sprintf("%-16s", k)) + styleValue.Render(v) + "\n"
	}
	ref := func(id layer.ID) string {
		if id == layer.None {
			return "none"
		}
		return fmt.Sprintf("%d", id)
	}

	var d strings.Builder
	d.WriteString(field("id", fmt.Sprintf("%d", rec.ID)))
	d.WriteString(field("name", rec.Name))
	d.WriteString(field("parent", ref(rec.Parent)))
	d.WriteString(field("relative parent", ref(rec.RelativeParent)))
	d.WriteString(field("mirror source", ref(rec.MirrorSource)))
	d.WriteString(field("z", fmt.Sprintf("%d", rec.Z)))
	d.WriteString(field("display", fmt.Sprintf("%d", rec.Display)))
	d.WriteString(field("visible", fmt.Sprintf("%t", rec.Visible)))
	return detailBoxStyle.Render(strings.TrimRight(d.String(), "\n"))
}

func (m *inspectModel) viewZOrder(b *strings.Builder) {
	displays := make([]uint32, 0, len(m.paint))
	for d := range m.paint {
		displays = append(displays, d)
	}
	if len(displays) == 0 {
		b.WriteString(styleDim.Render("  (nothing to paint)"))
		b.WriteString("\n")
		return
	}

	slices.Sort(displays)
	for _, d := range displays {
		b.WriteString(styleTitle.Render(fmt.Sprintf("Display %d", d)) + styleDim.Render("  (bottom-up)"))
		b.WriteString("\n")
		for i, e := range m.paint[d] {
			name := e.Name
			if name == "" {
				name = fmt.Sprintf("layer %d", e.Layer)
			}
			b.WriteString(fmt.Sprintf("  %2d. %s %s\n",
				i+1, styleValue.Render(name),
				styleDim.Render(fmt.Sprintf("id=%d z=%d", e.Layer, e.Z))))
		}
		b.WriteString("\n")
	}
}
