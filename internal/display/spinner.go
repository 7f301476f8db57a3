package display

import (
	"time"

	"github.com/briandowns/spinner"
)

// Spinner shows activity on stderr while waiting for the backend. It is a
// no-op when stderr is not a terminal, so piped output stays clean.
type Spinner struct {
	s       *spinner.Spinner
	enabled bool
}

// NewSpinner creates a spinner with message as its suffix
func NewSpinner(message string) *Spinner {
	enabled := IsTerminal(Stderr)
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(Stderr))
	s.Suffix = " " + message
	return &Spinner{s: s, enabled: enabled}
}

// Start begins the animation
func (sp *Spinner) Start() {
	if sp.enabled {
		sp.s.Start()
	}
}

// Stop clears the spinner line. Safe to call more than once.
func (sp *Spinner) Stop() {
	if sp.enabled {
		sp.s.Stop()
	}
}

// UpdateMessage replaces the text next to the spinner
func (sp *Spinner) UpdateMessage(message string) {
	sp.s.Lock()
	sp.s.Suffix = " " + message
	sp.s.Unlock()
}
