package compositor

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/lectern-app/lectern/internal/doc"
	"github.com/lectern-app/lectern/internal/geom"
)

func (c *Compositor) buildLinkLayer(ctx context.Context, d doc.Document, page doc.Page, scale float64) ([]LinkRegion, error) {
	annots, err := page.Annotations()
	if err != nil {
		return nil, err
	}
	regions := make([]LinkRegion, 0, len(annots))
	for _, a := range annots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		region := LinkRegion{
			Rect: geom.Rect{
				X: a.Rect.X * scale,
				Y: a.Rect.Y * scale,
				W: a.Rect.W * scale,
				H: a.Rect.H * scale,
			},
		}
		switch a.Kind {
		case doc.LinkExternal:
			region.Kind = LinkAnchor
			region.URI = a.URI
		case doc.LinkPage:
			region.Kind = LinkGoto
			region.Page = a.Page
		case doc.LinkNamed:
			// Named destinations need a lookup through the document's
			// name tree; the failure mode is an inert region, not a
			// broken page.
			target, err := d.ResolveNamedDestination(ctx, a.Name)
			if err != nil {
				if ctx.Err() != nil {
					return nil, err
				}
				log.Printf("[compositor] page %d: %v", page.Number(), destinationError(a.Name, err))
				region.Kind = LinkInert
			} else {
				region.Kind = LinkGoto
				region.Page = target
			}
		default:
			region.Kind = LinkInert
		}
		regions = append(regions, region)
	}
	return regions, nil
}

func destinationError(name string, err error) error {
	if errors.Is(err, doc.ErrDestinationNotFound) {
		return fmt.Errorf("%w: %q not in name tree", ErrDestinationResolution, name)
	}
	return fmt.Errorf("%w: %q: %v", ErrDestinationResolution, name, err)
}
