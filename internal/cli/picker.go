package cli

import (
	"fmt"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/traceviz/traceviz/pkg/listing"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// EntityPickerModel - Interactive start-tag selection
// =============================================================================

// EntityPickerModel is the bubbletea model for picking start entities when
// no --tags flag was given.
type EntityPickerModel struct {
	Entries []listing.Entry
	Cursor  int
	Marked  map[int]bool
	Chosen  []string
	Height  int
	Offset  int
}

// NewEntityPickerModel creates a picker over the registry's entities.
func NewEntityPickerModel(entries []listing.Entry) EntityPickerModel {
	return EntityPickerModel{
		Entries: entries,
		Marked:  make(map[int]bool),
		Height:  15,
	}
}

func (m EntityPickerModel) Init() tea.Cmd {
	return nil
}

func (m EntityPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Entries)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case " ":
			m.Marked[m.Cursor] = !m.Marked[m.Cursor]
		case "enter":
			for i, marked := range m.Marked {
				if marked {
					m.Chosen = append(m.Chosen, m.Entries[i].Tag)
				}
			}
			slices.Sort(m.Chosen)
			// Enter with nothing marked picks the entity under the cursor.
			if len(m.Chosen) == 0 && len(m.Entries) > 0 {
				m.Chosen = []string{m.Entries[m.Cursor].Tag}
			}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 6
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m EntityPickerModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Start Entities"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  space mark  ⏎ confirm  q quit"))
	b.WriteString("\n\n")

	end := m.Offset + m.Height
	if end > len(m.Entries) {
		end = len(m.Entries)
	}

	for i := m.Offset; i < end; i++ {
		e := m.Entries[i]

		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		mark := "[ ]"
		if m.Marked[i] {
			mark = "[" + StyleSuccess.Render("x") + "]"
		}

		line := fmt.Sprintf("%s%s %-20s  %s", cursor, mark, e.Tag, listDimStyle.Render(e.Title))
		if i == m.Cursor {
			b.WriteString(listSelectedStyle.Render(line))
		} else {
			b.WriteString(listNormalStyle.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Entries))))

	return b.String()
}

// pickTags runs the interactive entity picker and returns the chosen tags.
// Returns an empty slice when the user quits without choosing.
func pickTags(entries []listing.Entry) ([]string, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("trace file declares no entities")
	}

	model := NewEntityPickerModel(entries)
	final, err := tea.NewProgram(model).Run()
	if err != nil {
		return nil, fmt.Errorf("entity picker: %w", err)
	}
	picked, ok := final.(EntityPickerModel)
	if !ok {
		return nil, fmt.Errorf("entity picker: unexpected model type")
	}
	return picked.Chosen, nil
}
