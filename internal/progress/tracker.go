// Package progress holds the presentation-side state for long-running Extend
// operations: at most one active progress indicator and at most one visible
// error at a time.
package progress

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Common errors.
var (
	// ErrIndicatorActive is returned when an indicator is already showing.
	ErrIndicatorActive = errors.New("a progress indicator is already active")
	// ErrIndicatorClosed is returned when updating a closed indicator.
	ErrIndicatorClosed = errors.New("progress indicator is closed")
)

// Notice is a visible error.
type Notice struct {
	ID        string
	Title     string
	Message   string
	Fatal     bool // the caller should end the current flow once shown
	CreatedAt time.Time
}

// Tracker owns the progress and error state and renders it to a writer.
type Tracker struct {
	mu     sync.Mutex
	out    io.Writer
	active *Indicator
	notice *Notice
	logger *slog.Logger
}

// NewTracker creates a tracker that renders to out.
func NewTracker(out io.Writer, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		out:    out,
		logger: logger.With("component", "progress"),
	}
}

// generateID creates a unique identifier for indicators and notices.
func generateID() string {
	return ulid.Make().String()
}

// Begin shows a new progress indicator. Only one indicator may be active;
// close the current one first.
func (t *Tracker) Begin(title, message string) (*Indicator, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active != nil {
		return nil, ErrIndicatorActive
	}

	ind := &Indicator{
		ID:        generateID(),
		Title:     title,
		tracker:   t,
		startedAt: time.Now(),
	}
	ind.message = message
	t.active = ind

	fmt.Fprintf(t.out, "%s: %s\n", title, message)
	t.logger.Debug("progress started", slog.String("id", ind.ID), slog.String("title", title))
	return ind, nil
}

// Active returns the active indicator, if any.
func (t *Tracker) Active() *Indicator {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// ShowError displays an error unless one is already visible. It reports
// whether the notice was shown. Showing an error closes the active indicator.
func (t *Tracker) ShowError(title, message string, fatal bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.notice != nil {
		t.logger.Debug("suppressing error while another is visible",
			slog.String("title", title), slog.String("message", message))
		return false
	}

	if t.active != nil {
		t.closeLocked(t.active)
	}

	t.notice = &Notice{
		ID:        generateID(),
		Title:     title,
		Message:   message,
		Fatal:     fatal,
		CreatedAt: time.Now(),
	}
	fmt.Fprintf(t.out, "%s: %s\n", title, message)
	return true
}

// Notice returns the visible error, if any.
func (t *Tracker) Notice() *Notice {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.notice
}

// Dismiss hides the visible error.
func (t *Tracker) Dismiss() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notice = nil
}

// CloseAll closes the active indicator and dismisses the visible error.
// Call it on lifecycle transitions such as leaving a command.
func (t *Tracker) CloseAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active != nil {
		t.closeLocked(t.active)
	}
	t.notice = nil
}

func (t *Tracker) closeLocked(ind *Indicator) {
	ind.closed = true
	if t.active == ind {
		t.active = nil
	}
	t.logger.Debug("progress closed",
		slog.String("id", ind.ID),
		slog.Duration("duration", time.Since(ind.startedAt)))
}

// Indicator is a progress indicator shown by a Tracker.
type Indicator struct {
	ID    string
	Title string

	tracker   *Tracker
	message   string
	closed    bool
	startedAt time.Time
}

// Update replaces the indicator message. Repeated identical messages are not re-rendered.
func (i *Indicator) Update(message string) error {
	t := i.tracker
	t.mu.Lock()
	defer t.mu.Unlock()

	if i.closed {
		return ErrIndicatorClosed
	}
	if message == i.message {
		return nil
	}
	i.message = message
	fmt.Fprintf(t.out, "%s: %s\n", i.Title, message)
	return nil
}

// Message returns the current message.
func (i *Indicator) Message() string {
	i.tracker.mu.Lock()
	defer i.tracker.mu.Unlock()
	return i.message
}

// Close hides the indicator. Closing twice is a no-op.
func (i *Indicator) Close() {
	t := i.tracker
	t.mu.Lock()
	defer t.mu.Unlock()

	if i.closed {
		return
	}
	t.closeLocked(i)
}

// Closed reports whether the indicator has been closed.
func (i *Indicator) Closed() bool {
	i.tracker.mu.Lock()
	defer i.tracker.mu.Unlock()
	return i.closed
}

// TranscodeMessage formats a transcode percentage for display.
func TranscodeMessage(percentage int) string {
	return fmt.Sprintf("Transcoding: %d%%", percentage)
}
