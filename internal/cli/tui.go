package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/afcplot/pkg/analysis"
)

var listDimStyle = lipgloss.NewStyle().Foreground(colorDim)

// =============================================================================
// Animal summaries
// =============================================================================

// AnimalSummary is one row of the animal picker.
type AnimalSummary struct {
	Name     string    `json:"name"`
	Display  string    `json:"display"`
	Sessions int       `json:"sessions"`
	Trials   int       `json:"trials"`
	Last     time.Time `json:"last_session"`
}

// summarizeAnimals counts sessions and trials per animal, most recently
// trained animal first.
func summarizeAnimals(trials []analysis.Trial, a *analysis.Analyzer) []AnimalSummary {
	var out []AnimalSummary
	for _, name := range analysis.Animals(trials) {
		own := analysis.FilterAnimal(trials, name)
		s := AnimalSummary{Name: name, Display: a.DisplayName(name), Trials: len(own)}
		for _, sess := range analysis.Sessions(own) {
			s.Sessions++
			if sess.Key.Date.After(s.Last) {
				s.Last = sess.Key.Date.Time
			}
		}
		out = append(out, s)
	}
	slices.SortStableFunc(out, func(x, y AnimalSummary) int { return y.Last.Compare(x.Last) })
	return out
}

// =============================================================================
// AnimalListModel - Interactive animal selection
// =============================================================================

// AnimalListModel is the bubbletea model for picking the animal to plot.
type AnimalListModel struct {
	Animals  []AnimalSummary
	Cursor   int
	Selected *AnimalSummary
	Height   int
	Offset   int
	now      time.Time
}

// NewAnimalListModel creates a new animal list model.
func NewAnimalListModel(animals []AnimalSummary) AnimalListModel {
	return AnimalListModel{Animals: animals, Height: 15, now: time.Now()}
}

func (m AnimalListModel) Init() tea.Cmd {
	return nil
}

func (m AnimalListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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
			if m.Cursor < len(m.Animals)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter":
			if len(m.Animals) == 0 {
				return m, tea.Quit
			}
			sel := m.Animals[m.Cursor]
			m.Selected = &sel
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-6, 5)
	}
	return m, nil
}

func (m AnimalListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Animal"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Animals))
	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		a := m.Animals[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		rows = append(rows, []string{
			cursor,
			a.Display,
			fmt.Sprintf("%d", a.Sessions),
			fmt.Sprintf("%d", a.Trials),
			formatRelativeTime(a.Last, m.now),
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Animal", "Sessions", "Trials", "Last session").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if m.Offset+row == m.Cursor {
				return lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
			}
			if col >= 2 {
				return lipgloss.NewStyle().Foreground(colorDim)
			}
			return lipgloss.NewStyle()
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Animals))))

	return b.String()
}

// pickAnimal runs the picker on in/out and returns the chosen animal, or ""
// when the user quit.
func pickAnimal(animals []AnimalSummary, in io.Reader, out io.Writer) (string, error) {
	p := tea.NewProgram(NewAnimalListModel(animals), tea.WithInput(in), tea.WithOutput(out))
	final, err := p.Run()
	if err != nil {
		return "", err
	}
	fm, ok := final.(AnimalListModel)
	if !ok || fm.Selected == nil {
		return "", nil
	}
	return fm.Selected.Name, nil
}

// =============================================================================
// Helpers
// =============================================================================

func formatRelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "—"
	}
	days := int(now.Sub(t).Hours() / 24)
	switch {
	case days < 1:
		return "today"
	case days < 7:
		return fmt.Sprintf("%dd ago", days)
	default:
		return t.Format("Jan 2, 2006")
	}
}
