package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"cstruct2yaml/pkg/analyze"
	"cstruct2yaml/pkg/layout"
)

var (
	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	bitfieldStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0E68C"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

func newBrowseCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "browse <header.h>",
		Short: "Explore the resolved layouts interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isTerminal(os.Stdout) {
				return errors.New("browse needs an interactive terminal")
			}
			cfg, err := opts.config(cmd.Root())
			if err != nil {
				return err
			}
			u, err := analyze.LoadPath(args[0], cfg)
			if err != nil {
				return err
			}
			res, err := u.ResolveAll(cmd.Context())
			if err != nil {
				return err
			}
			p := tea.NewProgram(newBrowseModel(u.Name, res), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			_, err = p.Run()
			return err
		},
	}
}

// row is one line of the member view.
type row struct {
	depth int
	field *layout.FieldDescriptor
	base  int // absolute offset of the enclosing aggregate
}

type browseState int

const (
	stateList browseState = iota
	stateMembers
)

type browseModel struct {
	filename string
	types    []*layout.FieldDescriptor
	rows     []row
	selected int
	scroll   int
	height   int
	state    browseState
}

func newBrowseModel(filename string, res *analyze.Results) *browseModel {
	types := append([]*layout.FieldDescriptor{}, res.Structs...)
	types = append(types, res.Unions...)
	return &browseModel{filename: filename, types: types, height: 24}
}

func (m *browseModel) Init() tea.Cmd {
	return nil
}

func (m *browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			if m.state == stateList && m.selected > 0 {
				m.selected--
			}
			if m.state == stateMembers && m.scroll > 0 {
				m.scroll--
			}

		case "down", "j":
			if m.state == stateList && m.selected < len(m.types)-1 {
				m.selected++
			}
			if m.state == stateMembers && m.scroll < len(m.rows)-m.visible() {
				m.scroll++
			}

		case "enter":
			if m.state == stateList && len(m.types) > 0 {
				m.rows = flattenRows(m.types[m.selected], 0, 0, nil)
				m.scroll = 0
				m.state = stateMembers
			}

		case "esc", "backspace":
			m.state = stateList
			m.rows = nil
		}
	}
	return m, nil
}

// visible is the number of member rows that fit under the header.
func (m *browseModel) visible() int {
	return max(m.height-6, 1)
}

func flattenRows(fd *layout.FieldDescriptor, depth, base int, out []row) []row {
	for _, c := range fd.Children {
		out = append(out, row{depth: depth, field: c, base: base})
		if c.Type.Kind != layout.KindArray {
			out = flattenRows(c, depth+1, base+c.OffsetBits, out)
		}
	}
	return out
}

func (m *browseModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("cstruct2yaml"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	if len(m.types) == 0 {
		b.WriteString("No structs or unions found.\n\n")
		b.WriteString(helpStyle.Render("q quit"))
		return b.String()
	}

	switch m.state {
	case stateList:
		for i, fd := range m.types {
			line := fmt.Sprintf("%-32s %6d bits  %3d members", fd.Type.DisplayName(), fd.SizeBits, fd.CountMembers())
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter members • q quit"))

	case stateMembers:
		fd := m.types[m.selected]
		fmt.Fprintf(&b, "%s  %s\n\n", typeStyle.Render(fd.Type.DisplayName()),
			valueStyle.Render(fmt.Sprintf("%d bits (%d bytes)", fd.SizeBits, fd.SizeBits/8)))
		end := min(m.scroll+m.visible(), len(m.rows))
		for _, r := range m.rows[m.scroll:end] {
			b.WriteString(formatRow(r))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ scroll • esc back • q quit"))
	}
	return b.String()
}

func formatRow(r row) string {
	f := r.field
	offset := r.base + f.OffsetBits
	place := fmt.Sprintf("@%d", offset)
	if f.Bitfield != nil {
		place = fmt.Sprintf("@%d+%d", offset, f.Bitfield.Offset)
	}
	name := strings.Repeat("  ", r.depth) + f.Name
	line := fmt.Sprintf("%-30s %-10s %5d  ", name, place, f.SizeBits)
	if f.Bitfield != nil {
		return line + bitfieldStyle.Render(fmt.Sprintf("%s : %d", f.Type.DisplayName(), f.Bitfield.Width))
	}
	return line + typeStyle.Render(f.Type.DisplayName())
}
