package preview

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lepinkainen/blog-mirror/internal/blog"
)

// ViewMode represents the current view mode
type ViewMode int

// View modes for the preview TUI
const (
	ListViewMode ViewMode = iota
	DetailViewMode
	JSONViewMode
)

const (
	imageMark   = "▣"
	noImageMark = "·"
	// rows reserved for header, status line and footer
	chromeHeight = 7
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("12")).Bold(true)
	undatedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Model is the Bubble Tea model for browsing one gateway result
type Model struct {
	records    []blog.Record
	visible    []int // indexes into records after filtering
	cursor     int   // position in visible
	viewMode   ViewMode
	imagesOnly bool

	source    string
	cached    bool
	updatedAt time.Time
	now       func() time.Time

	height int
}

// NewModel creates a preview model for a gateway result fetched from source
func NewModel(result *blog.Result, source string) Model {
	m := Model{
		records:   result.Records,
		viewMode:  ListViewMode,
		source:    source,
		cached:    result.Cached,
		updatedAt: result.UpdatedAt,
		now:       time.Now,
	}
	m.applyFilter()
	return m
}

// applyFilter rebuilds the visible rows and keeps the cursor in range
func (m *Model) applyFilter() {
	m.visible = make([]int, 0, len(m.records))
	for i, r := range m.records {
		if m.imagesOnly && !r.HasImage() {
			continue
		}
		m.visible = append(m.visible, i)
	}
	m.cursor = min(m.cursor, max(len(m.visible)-1, 0))
}

// selected returns the record under the cursor
func (m Model) selected() (blog.Record, bool) {
	if len(m.visible) == 0 {
		return blog.Record{}, false
	}
	return m.records[m.visible[m.cursor]], true
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
		if m.viewMode == ListViewMode {
			return m.updateList(msg), nil
		}
		return m.updateRecord(msg), nil
	}

	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) Model {
	switch msg.String() {
	case "up", "k":
		m.cursor = max(m.cursor-1, 0)
	case "down", "j":
		m.cursor = min(m.cursor+1, max(len(m.visible)-1, 0))
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		m.cursor = max(len(m.visible)-1, 0)
	case "i":
		m.imagesOnly = !m.imagesOnly
		m.applyFilter()
	case "enter":
		if len(m.visible) > 0 {
			m.viewMode = DetailViewMode
		}
	case "x":
		if len(m.visible) > 0 {
			m.viewMode = JSONViewMode
		}
	}
	return m
}

func (m Model) updateRecord(msg tea.KeyMsg) Model {
	switch msg.String() {
	case "esc":
		m.viewMode = ListViewMode
	case "x":
		if m.viewMode == DetailViewMode {
			m.viewMode = JSONViewMode
		} else {
			m.viewMode = DetailViewMode
		}
	}
	return m
}

// View implements tea.Model
func (m Model) View() string {
	switch m.viewMode {
	case DetailViewMode:
		return m.renderRecord(FormatDetailedItem, "esc: back to list • x: JSON • q: quit")
	case JSONViewMode:
		return m.renderRecord(func(r blog.Record) string {
			return headerStyle.Render("As served by /api/blog") + "\n\n" + FormatJSONItem(r)
		}, "esc: back to list • x: details • q: quit")
	default:
		return m.renderList()
	}
}

func (m Model) renderList() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Blog Preview - " + m.source))
	b.WriteString("\n")
	b.WriteString(statusStyle.Render(m.status()))
	b.WriteString("\n\n")

	if len(m.visible) == 0 {
		if m.imagesOnly {
			b.WriteString("  no posts with images\n")
		} else {
			b.WriteString("  no posts\n")
		}
	}

	start, end := window(m.cursor, len(m.visible), m.height-chromeHeight)
	for pos := start; pos < end; pos++ {
		index := m.visible[pos]
		record := m.records[index]

		mark := noImageMark
		if record.HasImage() {
			mark = imageMark
		}
		line := mark + " " + FormatCompactListItem(index, record)

		switch {
		case pos == m.cursor:
			b.WriteString(selectedStyle.Render("→ " + line))
		case record.Timestamp == blog.UnknownTimestamp:
			b.WriteString("  " + undatedStyle.Render(line))
		default:
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(footerStyle.Render("j/k: move • g/G: first/last • i: images only • enter: details • x: JSON • q: quit"))
	return b.String()
}

// status summarises where the records came from and how many lack a usable date
func (m Model) status() string {
	origin := "fresh"
	if m.cached {
		origin = fmt.Sprintf("cached %s ago", m.now().Sub(m.updatedAt).Truncate(time.Second))
	}

	undated := 0
	for _, r := range m.records {
		if r.Timestamp == blog.UnknownTimestamp {
			undated++
		}
	}

	status := fmt.Sprintf("%d posts, %s", len(m.records), origin)
	if undated > 0 {
		status += fmt.Sprintf(", %d undated", undated)
	}
	if m.imagesOnly {
		status += fmt.Sprintf(", showing %d with images", len(m.visible))
	}
	return status
}

func (m Model) renderRecord(format func(blog.Record) string, footer string) string {
	record, ok := m.selected()
	if !ok {
		return "No post selected"
	}
	return format(record) + "\n" + footerStyle.Render(footer)
}

// window returns the [start, end) slice of total rows that fits in height
// lines, keeping the cursor roughly centred. A height of zero or less shows everything.
func window(cursor, total, height int) (int, int) {
	if height <= 0 || total <= height {
		return 0, total
	}
	start := min(max(cursor-height/2, 0), total-height)
	return start, start + height
}

// Run starts the Bubble Tea program
func Run(result *blog.Result, source string) error {
	if len(result.Records) == 0 {
		fmt.Println("No posts to preview")
		return nil
	}

	p := tea.NewProgram(NewModel(result, source), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
