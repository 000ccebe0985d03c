package doc

import (
	"context"
	"errors"
	"testing"

	"github.com/lectern-app/lectern/internal/geom"
)

func TestGroupParagraphsSplitsOnGap(t *testing.T) {
	runs := []TextRun{
		{Text: "first line", Origin: geom.Point{X: 72, Y: 100}, FontSize: 10, Width: 200},
		{Text: "second line", Origin: geom.Point{X: 72, Y: 112}, FontSize: 10, Width: 180},
		// Gap of 60 units, far more than 1.8 line heights.
		{Text: "next block", Origin: geom.Point{X: 72, Y: 182}, FontSize: 10, Width: 210},
	}
	paras := groupParagraphs(3, runs)
	if len(paras) != 2 {
		t.Fatalf("expected 2 paragraphs, got %d: %+v", len(paras), paras)
	}
	if paras[0].ID != "p3-1" || paras[1].ID != "p3-2" {
		t.Fatalf("unexpected ids: %s %s", paras[0].ID, paras[1].ID)
	}
	if paras[0].Page != 3 {
		t.Fatalf("paragraph page not carried: %+v", paras[0])
	}
	if paras[0].BBox.H <= 0 || paras[0].BBox.W < 200 {
		t.Fatalf("first bbox not a union of its lines: %+v", paras[0].BBox)
	}
}

func TestGroupParagraphsEmpty(t *testing.T) {
	if got := groupParagraphs(1, nil); got != nil {
		t.Fatalf("expected nil for empty runs, got %+v", got)
	}
}

func TestMemoryNamedDestination(t *testing.T) {
	m := NewMemory("d1", 5, geom.Size{W: 612, H: 792})
	m.NamedDests["section.2"] = 4

	page, err := m.ResolveNamedDestination(context.Background(), "section.2")
	if err != nil || page != 4 {
		t.Fatalf("resolve failed: page=%d err=%v", page, err)
	}
	if _, err := m.ResolveNamedDestination(context.Background(), "missing"); !errors.Is(err, ErrDestinationNotFound) {
		t.Fatalf("expected ErrDestinationNotFound, got %v", err)
	}
}

func TestAxisAligned(t *testing.T) {
	cases := []struct {
		rot  float64
		want bool
	}{
		{0, true}, {90, true}, {180, true}, {270, true}, {-90, true},
		{45, false}, {12.5, false},
	}
	for _, tc := range cases {
		run := TextRun{Rotation: tc.rot}
		if got := run.AxisAligned(); got != tc.want {
			t.Fatalf("rotation %v: got %v want %v", tc.rot, got, tc.want)
		}
	}
}

func TestMemoryPageRange(t *testing.T) {
	m := NewMemory("d1", 2, geom.Size{W: 100, H: 100})
	if _, err := m.Page(0); err == nil {
		t.Fatal("page 0 should be rejected")
	}
	if _, err := m.Page(3); err == nil {
		t.Fatal("page 3 should be rejected")
	}
	p, err := m.Page(2)
	if err != nil || p.Number() != 2 {
		t.Fatalf("page 2 lookup failed: %v", err)
	}
}
