package tuitest

import (
	"regexp"
	"strings"
)

// Bubbletea repaints the alt screen with an erase-display sequence, so
// every CSI J marks the start of a fresh frame in the raw stream.
var (
	repaintBoundary = regexp.MustCompile(`\x1b\[[0-9;]*J`)
	csiSequence     = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)
	oscSequence     = regexp.MustCompile(`\x1b\][^\x07]*(\x07|\x1b\\)`)
)

// parseFrames splits the raw PTY stream into one plain-text snapshot per
// repaint. Styling is stripped: assertions in the reader's tests match on
// text content, never on colors or cursor movement.
func parseFrames(raw []byte) []string {
	cleaned := strings.ReplaceAll(string(raw), "\r", "")
	var frames []string
	for _, segment := range repaintBoundary.Split(cleaned, -1) {
		segment = strings.Trim(segment, "\x00")
		segment = strings.TrimPrefix(segment, "\x1b[H")
		plain := normalizeLines(stripControl(segment))
		if strings.TrimSpace(plain) == "" {
			continue
		}
		frames = append(frames, plain)
	}
	if len(frames) == 0 && len(cleaned) > 0 {
		frames = append(frames, normalizeLines(stripControl(cleaned)))
	}
	return frames
}

// FinalFrame returns the plain text of the last repaint, or false when
// nothing was rendered.
func (r *Recording) FinalFrame() (string, bool) {
	if r == nil || len(r.Frames) == 0 {
		return "", false
	}
	return r.Frames[len(r.Frames)-1], true
}

func stripControl(s string) string {
	s = oscSequence.ReplaceAllString(s, "")
	s = csiSequence.ReplaceAllString(s, "")
	// Shift-in/shift-out pairs show up around line-drawing runs.
	s = strings.ReplaceAll(s, "\x0f", "")
	s = strings.ReplaceAll(s, "\x0e", "")
	return s
}

func normalizeLines(s string) string {
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
