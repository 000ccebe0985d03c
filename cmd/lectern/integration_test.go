package main

import (
	"context"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/lectern-app/lectern/internal/tuitest"
)

func TestLecternDemoShowsReaderAndHelp(t *testing.T) {
	t.Parallel()

	cmdDir := moduleDir(t)
	binary := buildBinary(t, cmdDir)
	rec, err := tuitest.Run(context.Background(), tuitest.Config{
		Command: []string{binary, "-no-alt-screen", "-demo", "-no-store"},
		Dir:     cmdDir,
		Width:   120,
		Height:  40,
		Steps: []tuitest.Step{
			{Delay: time.Second},
			{Input: []byte("?")},
			{Delay: 500 * time.Millisecond},
			{Input: []byte("q")},
		},
		Timeout:        8 * time.Second,
		AllowInterrupt: true,
	})
	if err != nil {
		t.Fatalf("run CLI: %v", err)
	}

	frame, ok := rec.FinalFrame()
	if !ok {
		t.Fatal("no frames captured")
	}
	for _, want := range []string{"Lectern", "Page 1", "Mode NORMAL", "Keys"} {
		if !strings.Contains(frame, want) {
			t.Fatalf("final frame missing %q:\n%s", want, frame)
		}
	}
}

func TestLecternGotoPage(t *testing.T) {
	t.Parallel()

	cmdDir := moduleDir(t)
	binary := buildBinary(t, cmdDir)
	rec, err := tuitest.Run(context.Background(), tuitest.Config{
		Command: []string{binary, "-no-alt-screen", "-demo", "-no-store"},
		Dir:     cmdDir,
		Width:   120,
		Height:  40,
		Steps: []tuitest.Step{
			{Delay: time.Second},
			{Input: []byte("p")},
			{Delay: 200 * time.Millisecond},
			{Input: []byte("2")},
			{Input: tuitest.KeyEnter},
			{Delay: time.Second},
			{Input: []byte("q")},
		},
		Timeout:        8 * time.Second,
		AllowInterrupt: true,
	})
	if err != nil {
		t.Fatalf("run CLI: %v", err)
	}

	frame, ok := rec.FinalFrame()
	if !ok {
		t.Fatal("no frames captured")
	}
	if !strings.Contains(frame, "Page 2") {
		t.Fatalf("final frame not on page 2:\n%s", frame)
	}
}

func moduleDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime caller unavailable")
	}
	return filepath.Dir(file)
}

func buildBinary(t *testing.T, cmdDir string) string {
	t.Helper()
	tmp := t.TempDir()
	name := "lectern-integration"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	binPath := filepath.Join(tmp, name)
	cmd := exec.Command("go", "build", "-o", binPath, ".")
	cmd.Dir = cmdDir
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("build CLI: %v\n%s", err, output)
	}
	return binPath
}
