package tuitest

import (
	"bytes"
	"io"
)

// queryResponses answers the terminal capability queries bubbletea and
// lipgloss issue on startup; without them the program blocks waiting for
// a reply the PTY never sends.
var queryResponses = []struct {
	pattern  []byte
	response []byte
}{
	{[]byte("\x1b[6n"), []byte("\x1b[1;1R")},
	{[]byte("\x1b]10;?\x07"), []byte("\x1b]10;rgb:cccc/cccc/cccc\x07")},
	{[]byte("\x1b]10;?\x1b\\"), []byte("\x1b]10;rgb:cccc/cccc/cccc\x1b\\")},
	{[]byte("\x1b]11;?\x07"), []byte("\x1b]11;rgb:0000/0000/0000\x07")},
	{[]byte("\x1b]11;?\x1b\\"), []byte("\x1b]11;rgb:0000/0000/0000\x1b\\")},
}

type terminalResponder struct {
	w   io.Writer
	buf []byte
}

func newTerminalResponder(w io.Writer) *terminalResponder {
	return &terminalResponder{w: w, buf: make([]byte, 0, 128)}
}

func (tr *terminalResponder) Process(chunk []byte) {
	tr.buf = append(tr.buf, chunk...)
	for tr.scan() {
	}
	// Keep a small tail so sequences that span reads are still detected.
	if len(tr.buf) > 256 {
		tr.buf = tr.buf[len(tr.buf)-64:]
	}
}

func (tr *terminalResponder) scan() bool {
	answered := false
	for _, q := range queryResponses {
		idx := bytes.Index(tr.buf, q.pattern)
		if idx < 0 {
			continue
		}
		tr.buf = tr.buf[idx+len(q.pattern):]
		_, _ = tr.w.Write(q.response)
		answered = true
	}
	return answered
}
