package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"cstruct2yaml/pkg/emit"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB")).
			Width(12)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	pathStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func printSummary(w io.Writer, path string, s emit.Summary) {
	fmt.Fprint(w, renderSummary(path, s, isTerminal(w)))
}

func renderSummary(path string, s emit.Summary, styled bool) string {
	var b strings.Builder
	if !styled {
		fmt.Fprintf(&b, "Wrote %s\n", path)
		for _, row := range s.Rows() {
			fmt.Fprintf(&b, "  %-12s%s\n", row[0]+":", row[1])
		}
		return b.String()
	}

	b.WriteString(titleStyle.Render("cstruct2yaml"))
	b.WriteString(" ")
	b.WriteString(pathStyle.Render(path))
	b.WriteString("\n")
	for _, row := range s.Rows() {
		b.WriteString("  ")
		b.WriteString(labelStyle.Render(row[0]))
		b.WriteString(valueStyle.Render(row[1]))
		b.WriteString("\n")
	}
	return b.String()
}
