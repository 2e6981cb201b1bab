// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// =============================================================================
// SHOW / HIDE TRANSITION
// =============================================================================

// Transition describes the reveal played when the window shows or hides.
type Transition struct {
	Frames   int
	Duration time.Duration
}

// FadeTransition matches the 300ms fade of a desktop popup.
var FadeTransition = Transition{Frames: 6, Duration: 300 * time.Millisecond}

// FrameInterval returns the delay between frames.
func (t Transition) FrameInterval() time.Duration {
	if t.Frames <= 0 {
		return 0
	}
	return t.Duration / time.Duration(t.Frames)
}

// Progress returns the eased completion of frame (0..Frames) in [0,1].
func (t Transition) Progress(frame int) float64 {
	if t.Frames <= 0 || frame >= t.Frames {
		return 1
	}
	if frame <= 0 {
		return 0
	}
	return EaseOutQuad(float64(frame) / float64(t.Frames))
}

// EaseOutQuad decelerates toward the end.
func EaseOutQuad(x float64) float64 {
	return 1 - (1-x)*(1-x)
}

// =============================================================================
// SPINNER
// =============================================================================

// ThinkingSpinner is ASCII-safe so it renders on any terminal font.
var ThinkingSpinner = spinner.Spinner{
	Frames: []string{".  ", ".. ", "...", " ..", "  .", "   "},
	FPS:    time.Second / 6,
}
