// Package mainwindow provides the review window: four synchronized slice
// panes with the controls below them.
package mainwindow

import (
	"context"
	"fmt"
	"strconv"

	"seg-viewer/internal/app"
	"seg-viewer/internal/config"
	segimage "seg-viewer/internal/image"
	"seg-viewer/internal/version"
	"seg-viewer/internal/volume"
	"seg-viewer/ui/canvas"
	"seg-viewer/ui/prefs"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"
)

const helpText = "up/down or wheel: slice    left/right: case    esc: quit"

// channelNames label the panes in channel order.
var channelNames = [app.NumPanes]string{"FLAIR", "T1", "T1ce", "T2"}

// MainWindow is the review window.
type MainWindow struct {
	fyne.Window
	app     fyne.App
	session *app.Session
	prefs   *prefs.Prefs
	logger  *zap.Logger
	ctx     context.Context

	panes        [app.NumPanes]*canvas.SlicePane
	paneRow      *fyne.Container
	title        *widget.Label
	sliceLabel   *widget.Label
	slider       *widget.Slider
	caseEntry    *widget.Entry
	commentEntry *widget.Entry
	statusBar    *widget.Label
	hint         *widget.Label
	paneSize     float32
}

// New creates the review window over session. Nothing is shown until Start.
func New(ctx context.Context, fyneApp fyne.App, session *app.Session, p *prefs.Prefs, cfg config.ViewerConfig, logger *zap.Logger) *MainWindow {
	if logger == nil {
		logger = zap.NewNop()
	}
	win := fyneApp.NewWindow("Segmentation Viewer")

	mw := &MainWindow{
		Window:   win,
		app:      fyneApp,
		session:  session,
		prefs:    p,
		logger:   logger,
		ctx:      ctx,
		paneSize: float32(cfg.PaneSize),
	}

	mw.setupUI(cfg.Opacity, session.CommentsPath())
	mw.setupKeys()
	mw.setupEventHandlers()

	win.SetMaster()
	win.SetFullScreen(cfg.FullScreen)
	win.SetCloseIntercept(func() {
		mw.session.Close()
	})
	return mw
}

// setupUI creates the window layout.
func (mw *MainWindow) setupUI(opacity float64, commentsPath string) {
	mw.title = widget.NewLabelWithStyle("No case loaded", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	mw.sliceLabel = widget.NewLabel("")
	mw.statusBar = widget.NewLabel("Ready")

	header := container.NewVBox(
		mw.title,
		container.NewHBox(widget.NewLabel(helpText), layout.NewSpacer(), mw.sliceLabel),
		legend(),
	)

	mw.paneRow = container.NewGridWithColumns(app.NumPanes)
	mw.buildPanes()

	mw.slider = widget.NewSlider(0, 1)
	mw.slider.Step = 0.01
	mw.slider.Value = opacity
	mw.slider.OnChanged = func(v float64) {
		mw.session.SetOpacity(v)
	}

	mw.caseEntry = widget.NewEntry()
	mw.caseEntry.OnSubmitted = mw.onJump

	mw.commentEntry = widget.NewEntry()
	mw.commentEntry.SetPlaceHolder("describe what is wrong with this segmentation")
	mw.commentEntry.OnSubmitted = mw.onComment

	controls := widget.NewForm(
		widget.NewFormItem("Opacity", mw.slider),
		widget.NewFormItem("Choose Case", mw.caseEntry),
		widget.NewFormItem("Segmentation Comment", mw.commentEntry),
	)

	hint := "press enter to submit a case number or a comment"
	if commentsPath != "" {
		hint += "; comments are stored in " + commentsPath
	}
	mw.hint = widget.NewLabel(hint)

	footer := container.NewVBox(
		controls,
		mw.hint,
		container.NewPadded(mw.statusBar),
	)

	content := container.NewBorder(
		header, // top
		footer, // bottom
		nil,    // left
		nil,    // right
		mw.paneRow,
	)
	mw.SetContent(content)
}

// buildPanes replaces the pane row with fresh, empty panes.
func (mw *MainWindow) buildPanes() {
	objects := make([]fyne.CanvasObject, 0, app.NumPanes)
	for i := range mw.panes {
		pane := canvas.NewSlicePane(mw.paneSize)
		pane.OnScroll(mw.onScroll)
		mw.panes[i] = pane

		caption := widget.NewLabelWithStyle(channelNames[i], fyne.TextAlignCenter, fyne.TextStyle{})
		objects = append(objects, container.NewBorder(caption, nil, nil, nil, pane))
	}
	mw.paneRow.Objects = objects
	mw.paneRow.Refresh()
}

// legend shows each label name in its overlay color.
func legend() fyne.CanvasObject {
	items := []fyne.CanvasObject{widget.NewLabel("Labels:")}
	for l := volume.LabelEdema; l <= volume.MaxLabel; l++ {
		text := fynecanvas.NewText(l.String(), segimage.LabelColor(l))
		text.TextStyle = fyne.TextStyle{Bold: true}
		items = append(items, text)
	}
	return container.NewHBox(items...)
}

// setupKeys binds the navigation keys on the window canvas. Keys typed
// into an entry go to the entry instead.
func (mw *MainWindow) setupKeys() {
	mw.Canvas().SetOnTypedKey(mw.onKey)
}

func (mw *MainWindow) onKey(ev *fyne.KeyEvent) {
	switch ev.Name {
	case fyne.KeyUp:
		_, _ = mw.session.PrevSlice()
	case fyne.KeyDown:
		_, _ = mw.session.NextSlice()
	case fyne.KeyLeft:
		_ = mw.session.PrevCase(mw.ctx)
	case fyne.KeyRight:
		_ = mw.session.NextCase(mw.ctx)
	case fyne.KeyEscape:
		mw.session.Close()
	}
}

func (mw *MainWindow) onScroll(delta int) {
	_, _ = mw.session.MoveSlice(delta)
}

// onJump and onComment hand focus back to the window canvas after a
// submit; a focused entry would swallow the navigation keys.
func (mw *MainWindow) onJump(text string) {
	// Failures arrive through EventError.
	_ = mw.session.JumpTo(mw.ctx, text)
	mw.Canvas().Unfocus()
}

func (mw *MainWindow) onComment(text string) {
	next, _ := mw.session.SubmitComment(text)
	mw.commentEntry.SetText(next)
	mw.Canvas().Unfocus()
}

// setupEventHandlers keeps the widgets in step with the session.
func (mw *MainWindow) setupEventHandlers() {
	mw.session.On(app.EventCaseLoaded, func(data interface{}) {
		if st, ok := data.(app.ViewerState); ok {
			mw.showCase(st)
		}
	})

	mw.session.On(app.EventSliceChanged, func(data interface{}) {
		mw.showSlice(mw.session.State())
	})

	mw.session.On(app.EventOpacityChanged, func(data interface{}) {
		if o, ok := data.(float64); ok {
			for _, p := range mw.panes {
				p.SetOpacity(o)
			}
			mw.prefs.SetFloat(prefs.KeyOpacity, o)
		}
	})

	mw.session.On(app.EventCommentSaved, func(data interface{}) {
		if line, ok := data.(string); ok {
			mw.updateStatus("Comment saved: " + line)
		}
	})

	mw.session.On(app.EventError, func(data interface{}) {
		if err, ok := data.(error); ok {
			mw.showError(err)
		}
	})

	mw.session.On(app.EventClosed, func(interface{}) {
		if mw.prefs.Changed() {
			if err := mw.prefs.Save(); err != nil {
				mw.logger.Warn("failed to save preferences", zap.Error(err))
			}
		}
		mw.Window.Close()
	})
}

// showCase rebuilds the panes for a newly loaded case.
func (mw *MainWindow) showCase(st app.ViewerState) {
	mw.buildPanes()
	for i, ps := range st.Panes {
		mw.panes[i].SetSlice(ps.Volume, ps.Mask, ps.SliceIndex)
		mw.panes[i].SetOpacity(st.Opacity)
	}

	mw.title.SetText(fmt.Sprintf("%s  Number %d of %d", st.CaseID, st.CaseIndex+1, mw.session.CaseCount()))
	mw.sliceLabel.SetText(sliceText(st))
	mw.caseEntry.SetText(strconv.Itoa(st.CaseIndex + 1))
	mw.commentEntry.SetText("")

	// Set directly: SetValue would feed the value back through OnChanged.
	mw.slider.Value = st.Opacity
	mw.slider.Refresh()

	mw.prefs.SetString(prefs.KeyLastCase, st.CaseID)
	mw.updateStatus(fmt.Sprintf("Loaded %s", st.CaseID))
}

func (mw *MainWindow) showSlice(st app.ViewerState) {
	for i, ps := range st.Panes {
		mw.panes[i].SetSlice(ps.Volume, ps.Mask, ps.SliceIndex)
	}
	mw.sliceLabel.SetText(sliceText(st))
}

func sliceText(st app.ViewerState) string {
	return fmt.Sprintf("slice %d/%d", st.SliceIndex()+1, st.SliceCount())
}

func (mw *MainWindow) showError(err error) {
	msg := app.Describe(err, mw.session.CaseCount())
	mw.updateStatus(msg)
	if app.Modal(err) {
		dialog.ShowError(fmt.Errorf("%s", msg), mw.Window)
	}
}

// updateStatus updates the status bar text.
func (mw *MainWindow) updateStatus(text string) {
	mw.statusBar.SetText(text)
}

// Start opens the case at index, falling back to the first case if that
// fails, and logs the build.
func (mw *MainWindow) Start(index int) {
	mw.logger.Info("starting viewer",
		zap.String("build", version.String("seg-viewer")),
		zap.Int("cases", mw.session.CaseCount()),
	)
	if err := mw.session.Open(mw.ctx, index); err != nil && index != 0 {
		_ = mw.session.Open(mw.ctx, 0)
	}
}
