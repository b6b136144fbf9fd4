// Copyright (c) 2025 The pgquery Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package querytool

// Loading indicator events emitted on the host view.
const (
	EventLoadingMessage = "pgquery:loading-icon:message"
	EventLoadingShow    = "pgquery:loading-icon:show"
	EventLoadingHide    = "pgquery:loading-icon:hide"
)

// Indicator is the loading indicator capability the coordinator drives.
// Calls are notifications: they return nothing and cannot fail.
type Indicator interface {
	SetMessage(text string)
	Show(text string)
	Hide()
}

// Emitter delivers named events to the host view.
type Emitter interface {
	Trigger(event string, args ...any)
}

// LoadingScreen implements Indicator by emitting loading-icon events on the host view.
type LoadingScreen struct {
	emitter Emitter
}

// NewLoadingScreen returns an indicator bound to the given emitter.
func NewLoadingScreen(e Emitter) *LoadingScreen {
	return &LoadingScreen{emitter: e}
}

func (l *LoadingScreen) SetMessage(text string) {
	l.emitter.Trigger(EventLoadingMessage, text)
}

func (l *LoadingScreen) Show(text string) {
	l.emitter.Trigger(EventLoadingShow, text)
}

func (l *LoadingScreen) Hide() {
	l.emitter.Trigger(EventLoadingHide)
}
