package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Color palette.
var (
	colorCyan    = lipgloss.Color("36")  // teal - primary
	colorGreen   = lipgloss.Color("35")  // green - success
	colorYellow  = lipgloss.Color("220") // amber - warnings
	colorRed     = lipgloss.Color("167") // soft red - errors
	colorBlue    = lipgloss.Color("75")  // light blue - relative edges
	colorMagenta = lipgloss.Color("176") // magenta - mirror edges
	colorWhite   = lipgloss.Color("255") // bright white - values
	colorGray    = lipgloss.Color("245") // gray - secondary text
	colorDim     = lipgloss.Color("240") // dim gray - muted text
)

// Shared styles.
var (
	styleTitle    = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	styleDim      = lipgloss.NewStyle().Foreground(colorDim)
	styleValue    = lipgloss.NewStyle().Foreground(colorWhite)
	styleSuccess  = lipgloss.NewStyle().Foreground(colorGreen)
	styleWarning  = lipgloss.NewStyle().Foreground(colorYellow)
	styleError    = lipgloss.NewStyle().Foreground(colorRed)
	styleRelative = lipgloss.NewStyle().Foreground(colorBlue)
	styleMirror   = lipgloss.NewStyle().Foreground(colorMagenta)
	styleDetached = lipgloss.NewStyle().Foreground(colorGray)
)

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconLoop    = "⟳"
)

// printSuccess prints a success message.
func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleSuccess.Render(iconSuccess)+" "+fmt.Sprintf(format, args...))
}

// printErrorLine prints an error message.
func printErrorLine(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleError.Render(iconError)+" "+fmt.Sprintf(format, args...))
}

// printWarning prints a warning message.
func printWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleWarning.Render(iconWarning)+" "+styleWarning.Render(fmt.Sprintf(format, args...)))
}

// printDetail prints an indented secondary line.
func printDetail(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, "  "+styleDim.Render(fmt.Sprintf(format, args...)))
}
