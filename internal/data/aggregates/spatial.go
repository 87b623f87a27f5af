package aggregates

import (
	"github.com/paulmach/orb"

	types "github.com/cordee/cordee-backend/internal/domain"
	"github.com/cordee/cordee-backend/internal/platform/dbctx"
)

// refreshSpatialLinks recomputes the derived area and topo map links of doc
// from its geometry. Both ends of every added or removed link are queued for
// a cache bump; no association log is written for these links.
func (a *DocumentEngine) refreshSpatialLinks(dbc dbctx.Context, doc *types.Document, bumps *cacheBumpSet) error {
	if doc.Type.IsSpatialContainer() {
		return a.refreshContained(dbc, doc, bumps)
	}
	return a.refreshContainers(dbc, doc, bumps)
}

func (a *DocumentEngine) refreshContainers(dbc dbctx.Context, doc *types.Document, bumps *cacheBumpSet) error {
	p, located := doc.Geometry.RepresentativePoint()
	for _, ct := range []types.DocumentType{types.DocumentTypeArea, types.DocumentTypeTopoMap} {
		var ids []int64
		if located {
			candidates, err := a.deps.Spatial.ListContainersAt(dbc, p, ct)
			if err != nil {
				return err
			}
			for _, c := range candidates {
				if c.Geometry.Contains(p) {
					ids = append(ids, c.DocumentID)
				}
			}
		}
		added, removed, err := a.deps.Spatial.ReplaceContainersOf(dbc, doc.DocumentID, ct, ids)
		if err != nil {
			return err
		}
		if len(added)+len(removed) > 0 {
			bumps.add(doc.DocumentID)
		}
		bumps.add(added...)
		bumps.add(removed...)
	}
	return nil
}

func (a *DocumentEngine) refreshContained(dbc dbctx.Context, container *types.Document, bumps *cacheBumpSet) error {
	var ids []int64
	g := container.Geometry
	if g != nil && g.GeomDetail != nil {
		bound := orb.Bound{Min: orb.Point{g.MinX, g.MinY}, Max: orb.Point{g.MaxX, g.MaxY}}
		candidates, err := a.deps.Spatial.ListContainedCandidates(dbc, bound)
		if err != nil {
			return err
		}
		for _, c := range candidates {
			if p, ok := c.Geometry.RepresentativePoint(); ok && g.Contains(p) {
				ids = append(ids, c.DocumentID)
			}
		}
	}
	added, removed, err := a.deps.Spatial.ReplaceContainedBy(dbc, container.DocumentID, container.Type, ids)
	if err != nil {
		return err
	}
	if len(added)+len(removed) > 0 {
		bumps.add(container.DocumentID)
	}
	bumps.add(added...)
	bumps.add(removed...)
	return nil
}
