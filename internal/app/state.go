// Package app holds the review session: which case is shown, which slice
// every pane is on, the overlay opacity, and the events that change them.
package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"seg-viewer/internal/caseio"
	"seg-viewer/internal/comments"
	"seg-viewer/internal/logging"
	"seg-viewer/internal/volume"

	"go.uber.org/zap"
)

// NumPanes is the number of synchronized slice panes, one per channel.
const NumPanes = caseio.NumChannels

// CommentSentinel is shown in the comment field after a comment is saved.
// Submitting it again logs nothing.
const CommentSentinel = "saved"

var (
	// ErrOutOfRangeCaseIndex is returned when navigating past the first or last case.
	ErrOutOfRangeCaseIndex = errors.New("case index out of range")

	// ErrInvalidCaseNumber is returned for case-jump input that is not a valid 1-based case number.
	ErrInvalidCaseNumber = errors.New("invalid case number")

	// ErrNoCase is returned for slice and comment events before any case is displayed.
	ErrNoCase = errors.New("no case displayed")

	// ErrClosed is returned for events after the session was closed.
	ErrClosed = errors.New("session closed")
)

// CaseLoader loads one case by id.
type CaseLoader interface {
	LoadCase(ctx context.Context, id string) (*caseio.Case, error)
}

// CommentSink stores reviewer comments.
type CommentSink interface {
	Append(caseID, text string) error
}

// Status is the session's lifecycle state.
type Status int

const (
	StatusEmpty      Status = iota // no case loaded yet
	StatusDisplaying               // a case is shown and input is accepted
	StatusClosed                   // terminal
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "Empty"
	case StatusDisplaying:
		return "Displaying"
	case StatusClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// PaneState is what one pane shows.
type PaneState struct {
	Volume     *volume.Volume
	Mask       *volume.Mask
	SliceIndex int
}

// ViewerState is a snapshot of the interactive state. Volumes and masks
// are shared with the session and must not be modified.
type ViewerState struct {
	CaseIndex int
	CaseID    string
	Panes     [NumPanes]PaneState
	Opacity   float64
}

// SliceIndex returns the slice shown by all panes.
func (vs ViewerState) SliceIndex() int {
	return vs.Panes[0].SliceIndex
}

// SliceCount returns the number of slices of the current case.
func (vs ViewerState) SliceCount() int {
	if vs.Panes[0].Mask == nil {
		return 0
	}
	return vs.Panes[0].Mask.SliceCount()
}

// Options tune session behavior.
type Options struct {
	// DefaultOpacity is the overlay opacity every case starts with.
	DefaultOpacity float64

	// KeepOpacity carries the current opacity over on case change.
	KeepOpacity bool
}

// EventType identifies session events.
type EventType int

const (
	EventCaseLoaded     EventType = iota // data: ViewerState
	EventSliceChanged                    // data: int, the new slice index
	EventOpacityChanged                  // data: float64
	EventCommentSaved                    // data: string, the logged line
	EventError                           // data: error
	EventClosed                          // data: nil
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// Session owns the review state. Every method runs to completion before
// returning; listeners are called synchronously after the state changed.
type Session struct {
	mu sync.RWMutex

	cases    []string
	loader   CaseLoader
	comments CommentSink
	opts     Options
	logger   *zap.Logger

	status Status
	state  ViewerState

	listeners map[EventType][]EventListener
}

// NewSession creates a session over the case list. Nothing is loaded until
// Open is called.
func NewSession(cases []string, loader CaseLoader, sink CommentSink, opts Options, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.DefaultOpacity = clampOpacity(opts.DefaultOpacity, 0)
	return &Session{
		cases:     append([]string(nil), cases...),
		loader:    loader,
		comments:  sink,
		opts:      opts,
		logger:    logger,
		state:     ViewerState{Opacity: opts.DefaultOpacity},
		listeners: make(map[EventType][]EventListener),
	}
}

// On registers an event listener for the specified event type.
func (s *Session) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *Session) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// Cases returns a copy of the case list.
func (s *Session) Cases() []string {
	return append([]string(nil), s.cases...)
}

// CaseCount returns the number of cases.
func (s *Session) CaseCount() int {
	return len(s.cases)
}

// CommentsPath returns where comments are written, or "" when the sink
// is not file backed.
func (s *Session) CommentsPath() string {
	if f, ok := s.comments.(interface{ Path() string }); ok {
		return f.Path()
	}
	return ""
}

// Status returns the lifecycle state.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// State returns a snapshot of the viewer state.
func (s *Session) State() ViewerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Open loads the case at index and shows it with every pane on the middle
// slice. On failure the previous case stays displayed.
func (s *Session) Open(ctx context.Context, index int) error {
	s.mu.RLock()
	status := s.status
	s.mu.RUnlock()

	if status == StatusClosed {
		return ErrClosed
	}
	if index < 0 || index >= len(s.cases) {
		err := fmt.Errorf("case %d of %d: %w", index+1, len(s.cases), ErrOutOfRangeCaseIndex)
		s.fail(err)
		return err
	}

	id := s.cases[index]
	log := logging.WithCase(s.logger, index, id)

	c, err := s.loader.LoadCase(ctx, id)
	if err != nil {
		s.fail(err)
		return err
	}

	s.mu.Lock()
	opacity := s.opts.DefaultOpacity
	if s.opts.KeepOpacity && s.status == StatusDisplaying {
		opacity = s.state.Opacity
	}
	mid := c.SliceCount() / 2
	next := ViewerState{CaseIndex: index, CaseID: id, Opacity: opacity}
	for i := range next.Panes {
		next.Panes[i] = PaneState{Volume: c.Channels[i], Mask: c.Mask, SliceIndex: mid}
	}
	s.state = next
	s.status = StatusDisplaying
	s.mu.Unlock()

	log.Info("case opened", zap.Int("slices", c.SliceCount()), zap.Int("slice", mid))
	s.Emit(EventCaseLoaded, next)
	return nil
}

// NextCase opens the following case. At the last case it is rejected with
// ErrOutOfRangeCaseIndex and nothing changes.
func (s *Session) NextCase(ctx context.Context) error {
	return s.step(ctx, +1)
}

// PrevCase opens the preceding case. At the first case it is rejected with
// ErrOutOfRangeCaseIndex and nothing changes.
func (s *Session) PrevCase(ctx context.Context) error {
	return s.step(ctx, -1)
}

func (s *Session) step(ctx context.Context, delta int) error {
	s.mu.RLock()
	index := s.state.CaseIndex + delta
	s.mu.RUnlock()
	return s.Open(ctx, index)
}

// JumpTo opens the case with the given 1-based number as typed by the user.
// Non-numeric or out-of-range input returns ErrInvalidCaseNumber and leaves
// the state untouched.
func (s *Session) JumpTo(ctx context.Context, text string) error {
	if s.Status() == StatusClosed {
		return ErrClosed
	}
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		err = fmt.Errorf("%q is not a number: %w", text, ErrInvalidCaseNumber)
		s.fail(err)
		return err
	}
	if n < 1 || n > len(s.cases) {
		err = fmt.Errorf("%d is outside 1..%d: %w", n, len(s.cases), ErrInvalidCaseNumber)
		s.fail(err)
		return err
	}
	return s.Open(ctx, n-1)
}

// NextSlice advances every pane by one slice, wrapping at the end.
func (s *Session) NextSlice() (int, error) {
	return s.MoveSlice(+1)
}

// PrevSlice moves every pane back one slice, wrapping at the start.
func (s *Session) PrevSlice() (int, error) {
	return s.MoveSlice(-1)
}

// MoveSlice moves every pane by delta slices modulo the slice count and
// returns the new index.
func (s *Session) MoveSlice(delta int) (int, error) {
	s.mu.Lock()
	if err := s.displayingLocked(); err != nil {
		s.mu.Unlock()
		return 0, err
	}
	for i := range s.state.Panes {
		p := &s.state.Panes[i]
		p.SliceIndex = wrap(p.SliceIndex+delta, p.Volume.SliceCount())
	}
	index := s.state.Panes[0].SliceIndex
	s.mu.Unlock()

	s.Emit(EventSliceChanged, index)
	return index, nil
}

// SetOpacity sets the overlay opacity of all panes, clamped to [0,1], and
// returns the value applied. NaN keeps the current opacity.
func (s *Session) SetOpacity(v float64) float64 {
	s.mu.Lock()
	if s.status == StatusClosed {
		o := s.state.Opacity
		s.mu.Unlock()
		return o
	}
	s.state.Opacity = clampOpacity(v, s.state.Opacity)
	o := s.state.Opacity
	s.mu.Unlock()

	s.Emit(EventOpacityChanged, o)
	return o
}

// SubmitComment logs text for the current case and returns what the
// comment field should show next. Accepted comments return
// CommentSentinel. Text is passed to the sink as typed. Blank text and
// the sentinel itself are ignored, which makes resubmitting an unedited
// field a no-op. On a write error the text
// is returned unchanged so nothing typed is lost.
func (s *Session) SubmitComment(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == CommentSentinel {
		return CommentSentinel, nil
	}
	if trimmed == "" {
		return text, nil
	}

	s.mu.RLock()
	err := s.displayingLocked()
	id := s.state.CaseID
	s.mu.RUnlock()
	if err != nil {
		return text, err
	}

	if err := s.comments.Append(id, text); err != nil {
		err = fmt.Errorf("saving comment for %s: %w", id, err)
		s.fail(err)
		return text, err
	}

	line := id + ": " + comments.Fold(text)
	s.logger.Info("comment saved", zap.String("case", id))
	s.Emit(EventCommentSaved, line)
	return CommentSentinel, nil
}

// Close ends the session. Later events are rejected with ErrClosed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.status == StatusClosed {
		s.mu.Unlock()
		return
	}
	s.status = StatusClosed
	s.mu.Unlock()

	s.logger.Info("session closed")
	s.Emit(EventClosed, nil)
}

func (s *Session) displayingLocked() error {
	switch s.status {
	case StatusClosed:
		return ErrClosed
	case StatusEmpty:
		return ErrNoCase
	}
	return nil
}

func (s *Session) fail(err error) {
	s.logger.Warn("event rejected", zap.Error(err))
	s.Emit(EventError, err)
}

func wrap(i, n int) int {
	if n <= 0 {
		return 0
	}
	return ((i % n) + n) % n
}

func clampOpacity(v, fallback float64) float64 {
	switch {
	case math.IsNaN(v):
		return fallback
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
