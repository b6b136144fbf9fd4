// Copyright (c) 2025 The pgquery Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package editor

import (
	"fmt"
	"io"
	"sync"
	"time"

	"atomicgo.dev/cursor"
)

var spinnerFrames = []string{"|", "/", "-", "\\"}

const spinnerInterval = 120 * time.Millisecond

// spinner is an inline, single-line animation whose text can change while it runs.
type spinner struct {
	w        io.Writer
	frames   []string
	interval time.Duration

	mu      sync.Mutex
	text    string
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

func newSpinner(w io.Writer) *spinner {
	return &spinner{w: w, frames: spinnerFrames, interval: spinnerInterval}
}

// start begins animating text. A running spinner only has its text replaced.
func (s *spinner) start(text string) {
	s.mu.Lock()
	s.text = text
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	stop := s.stop
	s.mu.Unlock()

	cursor.Hide()
	s.wg.Add(1)
	go s.loop(stop)
}

func (s *spinner) setText(text string) {
	s.mu.Lock()
	s.text = text
	s.mu.Unlock()
}

func (s *spinner) loop(stop chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	i, width := 0, 0
	for {
		select {
		case <-stop:
			fmt.Fprintf(s.w, "\r%*s\r", width, "")
			return
		case <-ticker.C:
			s.mu.Lock()
			line := fmt.Sprintf("%s %s", s.frames[i%len(s.frames)], s.text)
			s.mu.Unlock()
			// Pad over a longer previous frame.
			pad := max(width-len(line), 0)
			fmt.Fprintf(s.w, "\r%s%*s", line, pad, "")
			width = max(width, len(line))
			i++
		}
	}
}

// halt stops the animation and clears its line. It is a no-op when not running.
func (s *spinner) halt() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()
	cursor.Show()
}
