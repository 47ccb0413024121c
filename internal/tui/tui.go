// Package tui provides a Bubble Tea terminal viewer over the review session.
// Slices are drawn with half-block characters, two pixels per cell.
package tui

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"strings"

	"seg-viewer/internal/app"
	segimage "seg-viewer/internal/image"
	"seg-viewer/internal/volume"
	"seg-viewer/pkg/colorutil"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// OpacityStep is the opacity change of one [ or ] key press.
const OpacityStep = 0.05

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#E8E8E8"))

	captionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	inputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(0, 1)
)

var channelNames = [app.NumPanes]string{"FLAIR", "T1", "T1ce", "T2"}

// Mode is what keyboard input currently drives.
type Mode int

const (
	ModeView    Mode = iota // navigation keys
	ModeJump                // typing a case number
	ModeComment             // typing a comment
)

// Model is the Bubble Tea model for the terminal viewer.
type Model struct {
	ctx     context.Context
	session *app.Session

	mode  Mode
	input textinput.Model

	// Comment field content as the window would show it
	comment string

	status    string
	statusErr bool

	paneWidth int
	quitting  bool
}

// NewModel creates a model over session. The session should already show
// a case; otherwise the panes stay empty until one is opened.
func NewModel(ctx context.Context, session *app.Session, paneWidth int) Model {
	ti := textinput.New()
	ti.CharLimit = 500
	ti.Width = 60

	if paneWidth < 8 {
		paneWidth = 8
	}
	return Model{
		ctx:       ctx,
		session:   session,
		input:     ti,
		paneWidth: paneWidth,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Mode returns the current input mode.
func (m Model) Mode() Mode {
	return m.mode
}

// Status returns the status line text.
func (m Model) Status() string {
	return m.status
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
		if m.mode != ModeView {
			return m.updateInput(msg)
		}
		return m.updateView(msg)

	case tea.MouseMsg:
		if m.mode != ModeView || msg.Action != tea.MouseActionPress {
			return m, nil
		}
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.report(m.session.PrevSlice())
		case tea.MouseButtonWheelDown:
			m.report(m.session.NextSlice())
		}
	}
	return m, nil
}

func (m Model) updateView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		return m.quit()
	case "up":
		m.report(m.session.PrevSlice())
	case "down":
		m.report(m.session.NextSlice())
	case "left":
		m.changeCase(m.session.PrevCase(m.ctx))
	case "right":
		m.changeCase(m.session.NextCase(m.ctx))
	case "[":
		m.setOpacity(m.session.State().Opacity - OpacityStep)
	case "]":
		m.setOpacity(m.session.State().Opacity + OpacityStep)
	case "g":
		m.openInput(ModeJump, fmt.Sprintf("case 1-%d", m.session.CaseCount()))
		return m, textinput.Blink
	case "c":
		m.openInput(ModeComment, "what is wrong with this segmentation")
		return m, textinput.Blink
	}
	return m, nil
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closeInput()
		return m, nil
	case "enter":
		text := m.input.Value()
		mode := m.mode
		m.closeInput()
		if mode == ModeJump {
			m.changeCase(m.session.JumpTo(m.ctx, text))
		} else {
			next, err := m.session.SubmitComment(text)
			m.comment = next
			if err != nil {
				m.setError(err)
			} else if next == app.CommentSentinel && strings.TrimSpace(text) != app.CommentSentinel {
				m.setStatus("comment saved for " + m.session.State().CaseID)
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) openInput(mode Mode, placeholder string) {
	m.mode = mode
	m.input.Reset()
	m.input.Placeholder = placeholder
	m.input.Focus()
}

func (m *Model) closeInput() {
	m.mode = ModeView
	m.input.Blur()
	m.input.Reset()
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.session.Close()
	m.quitting = true
	return m, tea.Quit
}

func (m *Model) changeCase(err error) {
	if err != nil {
		m.setError(err)
		return
	}
	st := m.session.State()
	m.comment = ""
	m.setStatus(fmt.Sprintf("loaded %s", st.CaseID))
}

func (m *Model) setOpacity(v float64) {
	o := m.session.SetOpacity(v)
	m.setStatus(fmt.Sprintf("opacity %.2f", o))
}

func (m *Model) report(_ int, err error) {
	if err != nil {
		m.setError(err)
	}
}

func (m *Model) setStatus(text string) {
	m.status = text
	m.statusErr = false
}

func (m *Model) setError(err error) {
	m.status = app.Describe(err, m.session.CaseCount())
	m.statusErr = true
}

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	st := m.session.State()

	if st.SliceCount() == 0 {
		b.WriteString(titleStyle.Render("No case loaded"))
		b.WriteString("\n")
	} else {
		b.WriteString(titleStyle.Render(fmt.Sprintf("%s  Number %d of %d", st.CaseID, st.CaseIndex+1, m.session.CaseCount())))
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("slice %d/%d  opacity %.2f", st.SliceIndex()+1, st.SliceCount(), st.Opacity)))
		b.WriteString("  ")
		b.WriteString(legend())
		b.WriteString("\n\n")
		b.WriteString(m.renderPanes(st))
		b.WriteString("\n")
	}

	switch m.mode {
	case ModeJump:
		b.WriteString(inputStyle.Render("Choose Case: " + m.input.View()))
		b.WriteString("\n")
	case ModeComment:
		b.WriteString(inputStyle.Render("Segmentation Comment: " + m.input.View()))
		b.WriteString("\n")
	default:
		if m.comment != "" {
			b.WriteString(dimStyle.Render("Segmentation Comment: " + m.comment))
			b.WriteString("\n")
		}
	}

	if m.status != "" {
		style := successStyle
		if m.statusErr {
			style = errorStyle
		}
		b.WriteString(style.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString(dimStyle.Render(m.helpText()))
	return b.String()
}

func (m Model) renderPanes(st app.ViewerState) string {
	cols := make([]string, 0, app.NumPanes)
	for i, ps := range st.Panes {
		img := segimage.RenderPane(ps.Volume, ps.Mask, ps.SliceIndex, st.Opacity)
		fitted := segimage.Fit(img, m.paneWidth, m.paneWidth)
		caption := captionStyle.Width(m.paneWidth).Align(lipgloss.Center).Render(channelNames[i])
		cols = append(cols, lipgloss.JoinVertical(lipgloss.Left, caption, HalfBlocks(fitted)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

// HalfBlocks draws img with one "▀" per cell: the foreground colors the
// upper pixel and the background the lower one. An odd last row gets a
// black lower half.
func HalfBlocks(img *image.RGBA) string {
	b := img.Bounds()
	var sb strings.Builder
	for y := b.Min.Y; y < b.Max.Y; y += 2 {
		if y > b.Min.Y {
			sb.WriteByte('\n')
		}
		for x := b.Min.X; x < b.Max.X; x++ {
			top := img.RGBAAt(x, y)
			var bottom color.Color = color.Black
			if y+1 < b.Max.Y {
				bottom = img.RGBAAt(x, y+1)
			}
			sb.WriteString(lipgloss.NewStyle().
				Foreground(hexColor(top)).
				Background(hexColor(bottom)).
				Render("▀"))
		}
	}
	return sb.String()
}

func hexColor(c color.Color) lipgloss.Color {
	return lipgloss.Color(colorutil.Hex(colorutil.Opaque(c)))
}

// legend renders each label name in its overlay color.
func legend() string {
	parts := make([]string, 0, volume.MaxLabel)
	for l := volume.LabelEdema; l <= volume.MaxLabel; l++ {
		parts = append(parts, lipgloss.NewStyle().Bold(true).Foreground(hexColor(segimage.LabelColor(l))).Render(l.String()))
	}
	return strings.Join(parts, " ")
}

func (m Model) helpText() string {
	switch m.mode {
	case ModeJump, ModeComment:
		return "enter: submit • esc: cancel"
	}
	return "↑/↓ wheel: slice • ←/→: case • [/]: opacity • g: go to case • c: comment • esc: quit"
}

// Run starts the terminal viewer and blocks until it exits.
func Run(ctx context.Context, session *app.Session, paneWidth int) error {
	p := tea.NewProgram(NewModel(ctx, session, paneWidth), tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}
