// Package ui implements the interactive model browser behind the
// inspect command: a filterable list of everything the parse resolved,
// with a per-type detail view showing offsets, slots and members.
package ui

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/ousttrue/pycpptool/internal/driver"
	"github.com/ousttrue/pycpptool/internal/typegraph"
)

var (
	detailTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	detailBodyStyle  = lipgloss.NewStyle().PaddingLeft(2)
	detailHintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// entry is one browsable declaration. Every string is precomputed at
// construction so View never touches the layout engine.
type entry struct {
	title  string
	desc   string
	filter string
	detail string
}

func (e entry) Title() string       { return e.title }
func (e entry) Description() string { return e.desc }
func (e entry) FilterValue() string { return e.filter }

// InspectModel is the Bubble Tea model for the inspect command.
type InspectModel struct {
	list   list.Model
	detail string
	width  int
}

// NewInspectModel builds the browser over a finished parse.
func NewInspectModel(res *driver.ParseResult) *InspectModel {
	items := collectEntries(res)

	delegate := list.NewDefaultDelegate()
	l := list.New(items, delegate, 80, 24)
	l.Title = fmt.Sprintf("cpptool inspect: %d declarations from %d headers", len(items), len(res.Headers))
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)

	return &InspectModel{list: l, width: 80}
}

func (m *InspectModel) Init() tea.Cmd {
	return nil
}

func (m *InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.list.SetSize(msg.Width-2, msg.Height-2)
		}
		return m, nil

	case tea.KeyMsg:
		// the filter input owns the keyboard while active
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "enter":
			if m.detail == "" {
				if e, ok := m.list.SelectedItem().(entry); ok {
					m.detail = e.detail
				}
			}
			return m, nil
		case "esc":
			// esc with no detail open falls through so the list can
			// clear an applied filter
			if m.detail != "" {
				m.detail = ""
				return m, nil
			}
		}
		if m.detail != "" {
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *InspectModel) View() string {
	if m.detail != "" {
		lines := strings.Split(m.detail, "\n")
		head := detailTitleStyle.Render(truncate(lines[0], m.width))
		body := detailBodyStyle.Render(strings.Join(lines[1:], "\n"))
		hint := detailHintStyle.Render("esc to go back, q to quit")
		return fmt.Sprintf("%s\n%s\n\n%s\n", head, body, hint)
	}
	return m.list.View()
}

// WriteListing prints the browser entries as plain text, one line per
// declaration, for runs without a terminal.
func WriteListing(w io.Writer, res *driver.ParseResult) {
	for _, item := range collectEntries(res) {
		e := item.(entry)
		fmt.Fprintf(w, "%-36s %s\n", e.title, e.desc)
	}
}

// collectEntries walks the units in declaration order: claimed types
// first, then the free functions of each header.
func collectEntries(res *driver.ParseResult) []list.Item {
	g := res.Graph
	items := make([]list.Item, 0, 64)

	for _, u := range g.Units() {
		file := filepath.Base(u.Path)
		for _, id := range u.Types {
			n := g.Get(id)
			if n.Name == "" {
				continue
			}
			items = append(items, entry{
				title:  kindLabel(n) + " " + n.Name,
				desc:   truncate(describeType(res, id, n), 48) + ", " + file,
				filter: n.Name,
				detail: detailFor(res, id, n, file),
			})
		}
		for i := range u.Funcs {
			f := &u.Funcs[i]
			items = append(items, entry{
				title:  "function " + f.Name,
				desc:   truncate(signature(g, f.Ret, f.Params, f.Variadic), 48) + ", " + file,
				filter: f.Name,
				detail: fmt.Sprintf("function %s (%s)\n\n%s %s(%s)\n", f.Name, file, cSpelling(g, f.Ret), f.Name, paramList(g, f.Params, f.Variadic)),
			})
		}
	}
	return items
}

func kindLabel(n *typegraph.TypeNode) string {
	switch n.Kind {
	case typegraph.KindInterface:
		return "interface"
	case typegraph.KindTypedef, typegraph.KindFuncPtr:
		return "typedef"
	case typegraph.KindUnion:
		return "union"
	case typegraph.KindEnum:
		return "enum"
	default:
		return "struct"
	}
}

func describeType(res *driver.ParseResult, id typegraph.NodeID, n *typegraph.TypeNode) string {
	switch n.Kind {
	case typegraph.KindInterface:
		return fmt.Sprintf("%d slots", len(res.Table.Slots(id)))
	case typegraph.KindEnum:
		return fmt.Sprintf("%d members", len(n.Members))
	case typegraph.KindTypedef:
		return "= " + cSpelling(res.Graph, n.Elem)
	case typegraph.KindFuncPtr:
		return signature(res.Graph, n.Ret, n.Params, n.Variadic)
	default:
		if !n.Defined {
			return "opaque"
		}
		l, err := res.Layout.LayoutOf(id)
		if err != nil {
			return "unresolved"
		}
		return fmt.Sprintf("%d bytes, align %d", l.Size, l.Align)
	}
}

func detailFor(res *driver.ParseResult, id typegraph.NodeID, n *typegraph.TypeNode, file string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (%s)\n", kindLabel(n), n.Name, file)

	g := res.Graph
	switch n.Kind {
	case typegraph.KindStruct, typegraph.KindUnion:
		if !n.Defined {
			b.WriteString("\nopaque: referenced but never defined\n")
			break
		}
		l, err := res.Layout.LayoutOf(id)
		if err != nil {
			break
		}
		fmt.Fprintf(&b, "\nsize %d, align %d\n\n", l.Size, l.Align)
		for _, f := range l.Fields {
			if f.Bits >= 0 {
				fmt.Fprintf(&b, "+%-5d %s %s : %d (bit %d)\n", f.Offset, cSpelling(g, f.Type), f.Name, f.Bits, f.BitOff)
			} else {
				fmt.Fprintf(&b, "+%-5d %s %s\n", f.Offset, cSpelling(g, f.Type), f.Name)
			}
		}

	case typegraph.KindEnum:
		b.WriteString("\n")
		for _, mem := range n.Members {
			fmt.Fprintf(&b, "%s = %d\n", mem.Name, mem.Value)
		}

	case typegraph.KindTypedef:
		fmt.Fprintf(&b, "\n= %s\n", cSpelling(g, n.Elem))

	case typegraph.KindFuncPtr:
		fmt.Fprintf(&b, "\n= %s (*)(%s)\n", cSpelling(g, n.Ret), paramList(g, n.Params, n.Variadic))

	case typegraph.KindInterface:
		if u, ok := res.Table.GUID(id); ok {
			fmt.Fprintf(&b, "guid %s\n", u)
		}
		if base := n.Base(); base != typegraph.InvalidNode {
			fmt.Fprintf(&b, "base %s\n", g.Get(base).Name)
		}
		b.WriteString("\n")
		for _, s := range res.Table.Slots(id) {
			owner := ""
			if s.Owner != id {
				owner = "  (" + g.Get(s.Owner).Name + ")"
			}
			fmt.Fprintf(&b, "[%2d] %s %s(%s)%s\n", s.Index, cSpelling(g, s.Ret), s.Name, paramList(g, s.Params, s.Variadic), owner)
		}
	}
	return b.String()
}

func signature(g *typegraph.Graph, ret typegraph.NodeID, params []typegraph.Param, variadic bool) string {
	return fmt.Sprintf("%s (%s)", cSpelling(g, ret), paramList(g, params, variadic))
}

func paramList(g *typegraph.Graph, params []typegraph.Param, variadic bool) string {
	parts := make([]string, 0, len(params)+1)
	for _, p := range params {
		if p.Name == "" {
			parts = append(parts, cSpelling(g, p.Type))
			continue
		}
		parts = append(parts, cSpelling(g, p.Type)+" "+p.Name)
	}
	if variadic {
		parts = append(parts, "...")
	}
	return strings.Join(parts, ", ")
}

// cSpelling renders a node the way a header would spell it, for
// display only; emitters have their own per-target renderings.
func cSpelling(g *typegraph.Graph, id typegraph.NodeID) string {
	if id == typegraph.InvalidNode {
		return "void"
	}
	n := g.Get(id)
	switch n.Kind {
	case typegraph.KindPrimitive:
		return n.Prim.String()
	case typegraph.KindPointer:
		base := cSpelling(g, n.Elem)
		if n.Const {
			base = "const " + base
		}
		return base + "*"
	case typegraph.KindArray:
		return fmt.Sprintf("%s[%d]", cSpelling(g, n.Elem), n.Count)
	case typegraph.KindFuncPtr:
		if n.Name != "" {
			return n.Name
		}
		return fmt.Sprintf("%s (*)(%s)", cSpelling(g, n.Ret), paramList(g, n.Params, n.Variadic))
	default:
		if n.Name != "" {
			return n.Name
		}
		return n.Kind.String()
	}
}

// truncate shortens a value to a display width, ellipsis included.
func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
