package tui

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"strings"
	"testing"

	"seg-viewer/internal/app"
	"seg-viewer/internal/caseio"
	"seg-viewer/internal/volume"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLoader struct{}

func (stubLoader) LoadCase(_ context.Context, id string) (*caseio.Case, error) {
	if id == "missing" {
		return nil, fmt.Errorf("%s: %w", id, caseio.ErrFileNotFound)
	}
	s := volume.Shape{Depth: 4, Height: 4, Width: 4}
	c := &caseio.Case{ID: id, Mask: volume.NewMask(s)}
	for i := range c.Channels {
		c.Channels[i] = volume.New(s)
	}
	return c, nil
}

type memSink struct{ lines []string }

func (m *memSink) Append(caseID, text string) error {
	m.lines = append(m.lines, caseID+": "+text)
	return nil
}

func newTestModel(t *testing.T, cases ...string) (Model, *app.Session, *memSink) {
	t.Helper()
	sink := &memSink{}
	session := app.NewSession(cases, stubLoader{}, sink, app.Options{DefaultOpacity: 0.3}, nil)
	require.NoError(t, session.Open(context.Background(), 0))
	return NewModel(context.Background(), session, 8), session, sink
}

func key(s string) tea.KeyMsg {
	switch s {
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func send(m Model, msgs ...tea.Msg) Model {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func typeText(m Model, text string) Model {
	for _, r := range text {
		m = send(m, key(string(r)))
	}
	return m
}

func TestUpdate_SliceKeysAndWheel(t *testing.T) {
	m, session, _ := newTestModel(t, "A")

	m = send(m, key("down"))
	assert.Equal(t, 3, session.State().SliceIndex())
	m = send(m, key("down"))
	assert.Equal(t, 0, session.State().SliceIndex(), "wraps at the end")

	m = send(m, tea.MouseMsg{Button: tea.MouseButtonWheelUp, Action: tea.MouseActionPress})
	assert.Equal(t, 3, session.State().SliceIndex())
	_ = send(m, tea.MouseMsg{Button: tea.MouseButtonWheelDown, Action: tea.MouseActionPress})
	assert.Equal(t, 0, session.State().SliceIndex())
}

func TestUpdate_CaseNavigation(t *testing.T) {
	m, session, _ := newTestModel(t, "A", "B", "C")

	m = send(m, key("right"), key("right"), key("left"))
	assert.Equal(t, "B", session.State().CaseID)

	m = send(m, key("left"), key("left"))
	assert.Equal(t, "A", session.State().CaseID)
	assert.Equal(t, "no more cases in that direction", m.Status())
}

func TestUpdate_Opacity(t *testing.T) {
	m, session, _ := newTestModel(t, "A")

	m = send(m, key("]"), key("]"))
	assert.InDelta(t, 0.4, session.State().Opacity, 1e-9)

	for i := 0; i < 30; i++ {
		m = send(m, key("["))
	}
	assert.Equal(t, 0.0, session.State().Opacity)
	assert.Equal(t, "opacity 0.00", m.Status())
}

func TestUpdate_JumpToCase(t *testing.T) {
	m, session, _ := newTestModel(t, "A", "B", "C")

	m = send(m, key("g"))
	require.Equal(t, ModeJump, m.Mode())
	m = typeText(m, "3")
	m = send(m, key("enter"))
	assert.Equal(t, ModeView, m.Mode())
	assert.Equal(t, "C", session.State().CaseID)
	assert.Equal(t, 2, session.State().SliceIndex())

	m = send(m, key("g"))
	m = typeText(m, "x")
	m = send(m, key("enter"))
	assert.Equal(t, "C", session.State().CaseID)
	assert.Equal(t, "enter a case number between 1 and 3", m.Status())
}

func TestUpdate_Comment(t *testing.T) {
	m, _, sink := newTestModel(t, "A", "B")

	m = send(m, key("c"))
	require.Equal(t, ModeComment, m.Mode())
	m = typeText(m, "x")
	m = send(m, key("enter"))
	assert.Equal(t, []string{"A: x"}, sink.lines)
	assert.Contains(t, m.View(), "Segmentation Comment: saved")

	m = send(m, key("c"))
	m = typeText(m, "saved")
	m = send(m, key("enter"))
	assert.Len(t, sink.lines, 1)
}

func TestUpdate_EscCancelsInputThenQuits(t *testing.T) {
	m, session, sink := newTestModel(t, "A")

	m = send(m, key("c"))
	m = typeText(m, "draft")
	m = send(m, key("esc"))
	assert.Equal(t, ModeView, m.Mode())
	assert.Empty(t, sink.lines)
	assert.Equal(t, app.StatusDisplaying, session.Status())

	next, cmd := m.Update(key("esc"))
	require.NotNil(t, cmd)
	assert.Equal(t, app.StatusClosed, session.Status())
	assert.Equal(t, "", next.View())
}

func TestView_ShowsPanes(t *testing.T) {
	m, _, _ := newTestModel(t, "A", "B")
	out := m.View()

	assert.Contains(t, out, "A  Number 1 of 2")
	assert.Contains(t, out, "slice 3/4")
	for _, name := range channelNames {
		assert.Contains(t, out, name)
	}
	assert.Equal(t, 4*8*4, strings.Count(out, "▀"), "four panes of 8x4 cells")
}

func TestView_NoCase(t *testing.T) {
	session := app.NewSession([]string{"missing"}, stubLoader{}, &memSink{}, app.Options{}, nil)
	require.Error(t, session.Open(context.Background(), 0))

	m := NewModel(context.Background(), session, 8)
	assert.Contains(t, m.View(), "No case loaded")
}

func TestHalfBlocks(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 3))
	img.Set(0, 0, color.White)

	out := HalfBlocks(img)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2, "odd heights round up")
	for _, line := range lines {
		assert.Equal(t, 3, lipgloss.Width(line))
	}
}
