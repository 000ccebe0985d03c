package tuitest

import (
	"strings"
	"testing"
)

func TestParseFramesSplitsOnRepaint(t *testing.T) {
	t.Parallel()

	raw := []byte("\x1b[2J\x1b[H\x1b[1mPage 1\x1b[0m   \r\n\r\n" +
		"\x1b[2J\x1b[HPage 2\r\nMode NORMAL\r\n")
	frames := parseFrames(raw)
	if len(frames) != 2 {
		t.Fatalf("frames = %d, want 2:\n%q", len(frames), frames)
	}
	if frames[0] != "Page 1" {
		t.Fatalf("first frame not stripped and trimmed: %q", frames[0])
	}
	if !strings.Contains(frames[1], "Mode NORMAL") {
		t.Fatalf("second frame lost content: %q", frames[1])
	}

	rec := &Recording{Frames: frames}
	last, ok := rec.FinalFrame()
	if !ok || !strings.HasPrefix(last, "Page 2") {
		t.Fatalf("FinalFrame = %q, %v", last, ok)
	}
}

func TestFinalFrameEmptyRecording(t *testing.T) {
	t.Parallel()

	var rec *Recording
	if _, ok := rec.FinalFrame(); ok {
		t.Fatal("nil recording should report no frame")
	}
	if _, ok := (&Recording{}).FinalFrame(); ok {
		t.Fatal("empty recording should report no frame")
	}
}
