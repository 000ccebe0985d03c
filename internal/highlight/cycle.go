package highlight

import "github.com/lectern-app/lectern/internal/geom"

// HitCycle resolves a click at a normalized page point into a selected
// highlight. When several highlights overlap under the point, repeated
// clicks cycle through them: a click whose hit set shares members with
// the previous click's advances past the previous pick, while a click in
// a fresh spot restarts at the topmost (most recent) mark. Returns ""
// when nothing is under the point; that also clears the selection.
func (c *Collection) HitCycle(page int, at geom.Point) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var hits []string
	for _, i := range c.byPage[page] {
		h := c.items[i]
		for _, r := range h.Rects {
			if at.X >= r.Left && at.X <= r.Left+r.Width &&
				at.Y >= r.Top && at.Y <= r.Top+r.Height {
				hits = append(hits, h.ID)
				break
			}
		}
	}
	if len(hits) == 0 {
		c.selected = ""
		c.lastHits = nil
		c.lastPick = ""
		return ""
	}
	// Most recent on top.
	for i, j := 0, len(hits)-1; i < j; i, j = i+1, j-1 {
		hits[i], hits[j] = hits[j], hits[i]
	}

	pick := hits[0]
	if c.lastPick != "" && intersects(hits, c.lastHits) {
		for i, id := range hits {
			if id == c.lastPick {
				pick = hits[(i+1)%len(hits)]
				break
			}
		}
	}
	c.lastHits = hits
	c.lastPick = pick
	c.selected = pick
	return pick
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
