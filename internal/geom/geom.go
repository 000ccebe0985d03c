// Package geom holds the coordinate math shared by every layer of the
// viewport engine. Three spaces are in play: intrinsic document units
// (page geometry at scale 1), normalized page fractions (0..1 of the
// rendered box, stable across zoom), and screen logical pixels. Device
// pixel ratio never appears here; it is confined to the raster surface.
package geom

import "math"

// Point is a position in whichever space the caller is working in.
type Point struct {
	X float64
	Y float64
}

// Size is a width/height pair.
type Size struct {
	W float64
	H float64
}

// Rect is an axis-aligned rectangle with its origin at the top-left.
type Rect struct {
	X float64
	Y float64
	W float64
	H float64
}

// Contains reports whether p lies inside r, right and bottom edges
// exclusive.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.W && p.Y >= r.Y && p.Y < r.Y+r.H
}

// ContainsY reports whether the vertical span of r covers y.
func (r Rect) ContainsY(y float64) bool {
	return y >= r.Y && y < r.Y+r.H
}

// Center returns the midpoint of r.
func (r Rect) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Union returns the smallest rectangle covering both r and other. A
// zero-size receiver yields other unchanged so unions can start from the
// zero value.
func (r Rect) Union(other Rect) Rect {
	if r.W == 0 && r.H == 0 {
		return other
	}
	if other.W == 0 && other.H == 0 {
		return r
	}
	x0 := math.Min(r.X, other.X)
	y0 := math.Min(r.Y, other.Y)
	x1 := math.Max(r.X+r.W, other.X+other.W)
	y1 := math.Max(r.Y+r.H, other.Y+other.H)
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// IntersectsSpan reports whether the vertical extent of r overlaps the
// half-open span [top, bottom). Visibility checks only care about the
// vertical axis because pages stack in a single column.
func (r Rect) IntersectsSpan(top, bottom float64) bool {
	return r.Y < bottom && r.Y+r.H > top
}

// Dist returns the euclidean distance to q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}
