// Package layout models the responsive shell around the playground: a
// navigation drawer toggled by the burger control and a narrow-viewport flag
// that only affects header text size.
package layout

import "sync"

// DefaultNarrowThreshold is the viewport width, in CSS pixels, below which the
// header switches to compact text.
const DefaultNarrowThreshold = 390

// NavState is the drawer state.
type NavState string

const (
	NavClosed NavState = "closed"
	NavOpen   NavState = "open"
)

// Capability is the minimal surface the page needs from a layout implementation.
type Capability interface {
	ToggleNav() NavState
	IsNarrowViewport() bool
}

// IsNarrowViewport reports width < threshold. An unknown width (0 or less) is never narrow.
func IsNarrowViewport(width, threshold int) bool {
	if width <= 0 {
		return false
	}
	return width < threshold
}

// Shell tracks the drawer state and the last reported viewport width.
type Shell struct {
	mu        sync.Mutex
	nav       NavState
	width     int
	threshold int
}

// NewShell starts closed. A non-positive threshold falls back to DefaultNarrowThreshold.
func NewShell(threshold int) *Shell {
	if threshold <= 0 {
		threshold = DefaultNarrowThreshold
	}
	return &Shell{nav: NavClosed, threshold: threshold}
}

// Restore rebuilds a shell from persisted state.
func Restore(state NavState, width, threshold int) *Shell {
	s := NewShell(threshold)
	if state == NavOpen {
		s.nav = NavOpen
	}
	s.width = width
	return s
}

// ToggleNav flips the drawer and returns the new state.
func (s *Shell) ToggleNav() NavState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nav == NavOpen {
		s.nav = NavClosed
	} else {
		s.nav = NavOpen
	}
	return s.nav
}

func (s *Shell) State() NavState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav
}

func (s *Shell) Opened() bool {
	return s.State() == NavOpen
}

// Resize records the current viewport width. Drawer state is not affected.
func (s *Shell) Resize(width int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width = width
}

func (s *Shell) IsNarrowViewport() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return IsNarrowViewport(s.width, s.threshold)
}

// View is the serializable shell state handed to the page.
type View struct {
	Nav           NavState `json:"nav"`
	Opened        bool     `json:"opened"`
	ViewportWidth int      `json:"viewportWidth"`
	Narrow        bool     `json:"narrow"`
}

func (s *Shell) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		Nav:           s.nav,
		Opened:        s.nav == NavOpen,
		ViewportWidth: s.width,
		Narrow:        IsNarrowViewport(s.width, s.threshold),
	}
}

var _ Capability = (*Shell)(nil)
