package documents

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// DocumentGeometry is the optional 1:1 spatial payload of a document.
// Geom holds a GeoJSON point, GeomDetail a GeoJSON line or polygon.
// The bbox columns are derived and drive the spatial prefilter.
type DocumentGeometry struct {
	DocumentID int64   `gorm:"column:document_id;primaryKey;autoIncrement:false" json:"document_id"`
	Version    int     `gorm:"column:version;not null;default:1" json:"version"`
	Geom       *string `gorm:"column:geom;type:text" json:"geom,omitempty"`
	GeomDetail *string `gorm:"column:geom_detail;type:text" json:"geom_detail,omitempty"`

	MinX float64 `gorm:"column:min_x;index:idx_geometry_bbox,priority:1" json:"-"`
	MinY float64 `gorm:"column:min_y;index:idx_geometry_bbox,priority:2" json:"-"`
	MaxX float64 `gorm:"column:max_x;index:idx_geometry_bbox,priority:3" json:"-"`
	MaxY float64 `gorm:"column:max_y;index:idx_geometry_bbox,priority:4" json:"-"`
}

func (DocumentGeometry) TableName() string { return "documents_geometries" }

// SameContent reports whether both geometries carry the same payload.
func (g *DocumentGeometry) SameContent(other *DocumentGeometry) bool {
	if g == nil || other == nil {
		return g == nil && other == nil
	}
	return strPtrEq(g.Geom, other.Geom) && strPtrEq(g.GeomDetail, other.GeomDetail)
}

// Normalize validates both GeoJSON payloads, rewrites them in canonical form
// and refreshes the bbox columns.
func (g *DocumentGeometry) Normalize() error {
	if g == nil {
		return nil
	}
	var bound orb.Bound
	hasBound := false
	for _, field := range []**string{&g.Geom, &g.GeomDetail} {
		if *field == nil || **field == "" {
			*field = nil
			continue
		}
		geom, err := ParseGeoJSON(**field)
		if err != nil {
			return err
		}
		canonical, err := geojson.NewGeometry(geom).MarshalJSON()
		if err != nil {
			return fmt.Errorf("encode geometry: %w", err)
		}
		s := string(canonical)
		*field = &s
		if !hasBound {
			bound = geom.Bound()
			hasBound = true
		} else {
			bound = bound.Union(geom.Bound())
		}
	}
	if hasBound {
		g.MinX, g.MinY = bound.Min[0], bound.Min[1]
		g.MaxX, g.MaxY = bound.Max[0], bound.Max[1]
	} else {
		g.MinX, g.MinY, g.MaxX, g.MaxY = 0, 0, 0, 0
	}
	return nil
}

// HasPayload reports whether at least one of the two geometries is set.
func (g *DocumentGeometry) HasPayload() bool {
	return g != nil && (g.Geom != nil || g.GeomDetail != nil)
}

// RepresentativePoint is the location used for containment tests: the point
// geometry when present, otherwise the center of the detail geometry.
func (g *DocumentGeometry) RepresentativePoint() (orb.Point, bool) {
	if g == nil {
		return orb.Point{}, false
	}
	if g.Geom != nil {
		if geom, err := ParseGeoJSON(*g.Geom); err == nil {
			if p, ok := geom.(orb.Point); ok {
				return p, true
			}
			return geom.Bound().Center(), true
		}
	}
	if g.GeomDetail != nil {
		if geom, err := ParseGeoJSON(*g.GeomDetail); err == nil {
			return geom.Bound().Center(), true
		}
	}
	return orb.Point{}, false
}

// Contains reports whether the container's detail polygon covers p.
func (g *DocumentGeometry) Contains(p orb.Point) bool {
	if g == nil || g.GeomDetail == nil {
		return false
	}
	geom, err := ParseGeoJSON(*g.GeomDetail)
	if err != nil {
		return false
	}
	switch shape := geom.(type) {
	case orb.Polygon:
		return planar.PolygonContains(shape, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(shape, p)
	case orb.Bound:
		return shape.Contains(p)
	default:
		return false
	}
}

func ParseGeoJSON(raw string) (orb.Geometry, error) {
	g, err := geojson.UnmarshalGeometry([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid geojson geometry: %w", err)
	}
	if g == nil || g.Geometry() == nil {
		return nil, fmt.Errorf("invalid geojson geometry: empty")
	}
	return g.Geometry(), nil
}

// PointGeoJSON encodes a lon/lat point the way geometry columns store it.
func PointGeoJSON(x, y float64) string {
	b, _ := geojson.NewGeometry(orb.Point{x, y}).MarshalJSON()
	return string(b)
}

// PolygonGeoJSON encodes a single-ring polygon; the ring is closed if needed.
func PolygonGeoJSON(ring ...orb.Point) string {
	r := orb.Ring(ring)
	if len(r) > 0 && !r.Closed() {
		r = append(r, r[0])
	}
	b, _ := geojson.NewGeometry(orb.Polygon{r}).MarshalJSON()
	return string(b)
}

func strPtrEq(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
