package documents

import (
	"github.com/paulmach/orb"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/cordee/cordee-backend/internal/domain"
	"github.com/cordee/cordee-backend/internal/platform/dbctx"
	"github.com/cordee/cordee-backend/internal/platform/logger"
)

// SpatialCandidate is a geometry row joined with its document type.
type SpatialCandidate struct {
	DocumentID int64
	Type       types.DocumentType
	Geometry   *types.DocumentGeometry
}

// SpatialRepo maintains the derived area and topo map links. The bbox
// columns give a coarse SQL prefilter; exact containment is computed by the
// caller on the returned geometries.
type SpatialRepo interface {
	ListContainersAt(dbc dbctx.Context, p orb.Point, containerType types.DocumentType) ([]*SpatialCandidate, error)
	ListContainedCandidates(dbc dbctx.Context, bound orb.Bound) ([]*SpatialCandidate, error)

	ListContainerIDs(dbc dbctx.Context, documentID int64, containerType types.DocumentType) ([]int64, error)
	ListContainedIDs(dbc dbctx.Context, containerID int64, containerType types.DocumentType) ([]int64, error)

	ReplaceContainersOf(dbc dbctx.Context, documentID int64, containerType types.DocumentType, containerIDs []int64) (added, removed []int64, err error)
	ReplaceContainedBy(dbc dbctx.Context, containerID int64, containerType types.DocumentType, documentIDs []int64) (added, removed []int64, err error)

	DeleteByDocumentIDs(dbc dbctx.Context, documentIDs []int64) error
}

type spatialRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSpatialRepo(db *gorm.DB, baseLog *logger.Logger) SpatialRepo {
	return &spatialRepo{db: db, log: baseLog.With("repo", "SpatialRepo")}
}

type spatialRow struct {
	DocumentID int64
	Type       types.DocumentType
	Version    int
	Geom       *string
	GeomDetail *string
	MinX       float64
	MinY       float64
	MaxX       float64
	MaxY       float64
}

func (row spatialRow) candidate() *SpatialCandidate {
	return &SpatialCandidate{
		DocumentID: row.DocumentID,
		Type:       row.Type,
		Geometry: &types.DocumentGeometry{
			DocumentID: row.DocumentID,
			Version:    row.Version,
			Geom:       row.Geom,
			GeomDetail: row.GeomDetail,
			MinX:       row.MinX,
			MinY:       row.MinY,
			MaxX:       row.MaxX,
			MaxY:       row.MaxY,
		},
	}
}

func (r *spatialRepo) baseQuery(dbc dbctx.Context) *gorm.DB {
	return dbc.Conn(r.db).
		Table("documents_geometries AS g").
		Select("g.document_id, d.type, g.version, g.geom, g.geom_detail, g.min_x, g.min_y, g.max_x, g.max_y").
		Joins("JOIN documents d ON d.document_id = g.document_id").
		Where("d.redirects_to IS NULL")
}

// ListContainersAt returns non-redirected containers of the given type whose
// bbox covers p and that carry a detail geometry.
func (r *spatialRepo) ListContainersAt(dbc dbctx.Context, p orb.Point, containerType types.DocumentType) ([]*SpatialCandidate, error) {
	var rows []spatialRow
	err := r.baseQuery(dbc).
		Where("d.type = ? AND g.geom_detail IS NOT NULL", containerType).
		Where("g.min_x <= ? AND g.max_x >= ? AND g.min_y <= ? AND g.max_y >= ?", p[0], p[0], p[1], p[1]).
		Order("g.document_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return candidates(rows), nil
}

// ListContainedCandidates returns non-container documents whose bbox
// intersects bound.
func (r *spatialRepo) ListContainedCandidates(dbc dbctx.Context, bound orb.Bound) ([]*SpatialCandidate, error) {
	var rows []spatialRow
	err := r.baseQuery(dbc).
		Where("d.type NOT IN ?", []types.DocumentType{types.DocumentTypeArea, types.DocumentTypeTopoMap}).
		Where("g.max_x >= ? AND g.min_x <= ? AND g.max_y >= ? AND g.min_y <= ?", bound.Min[0], bound.Max[0], bound.Min[1], bound.Max[1]).
		Order("g.document_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return candidates(rows), nil
}

func candidates(rows []spatialRow) []*SpatialCandidate {
	out := make([]*SpatialCandidate, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.candidate())
	}
	return out
}

func (r *spatialRepo) ListContainerIDs(dbc dbctx.Context, documentID int64, containerType types.DocumentType) ([]int64, error) {
	model, containerCol, err := linkTable(containerType)
	if err != nil {
		return nil, err
	}
	var ids []int64
	err = dbc.Conn(r.db).Model(model).
		Where("document_id = ?", documentID).
		Order(containerCol).
		Pluck(containerCol, &ids).Error
	return ids, err
}

func (r *spatialRepo) ListContainedIDs(dbc dbctx.Context, containerID int64, containerType types.DocumentType) ([]int64, error) {
	model, containerCol, err := linkTable(containerType)
	if err != nil {
		return nil, err
	}
	var ids []int64
	err = dbc.Conn(r.db).Model(model).
		Where(containerCol+" = ?", containerID).
		Order("document_id").
		Pluck("document_id", &ids).Error
	return ids, err
}

func (r *spatialRepo) ReplaceContainersOf(dbc dbctx.Context, documentID int64, containerType types.DocumentType, containerIDs []int64) ([]int64, []int64, error) {
	current, err := r.ListContainerIDs(dbc, documentID, containerType)
	if err != nil {
		return nil, nil, err
	}
	added, removed := diffIDs(current, containerIDs)
	pairs := make([][2]int64, 0, len(added))
	for _, id := range added {
		pairs = append(pairs, [2]int64{documentID, id})
	}
	if err := r.insertLinks(dbc, containerType, pairs); err != nil {
		return nil, nil, err
	}
	if len(removed) > 0 {
		model, containerCol, err := linkTable(containerType)
		if err != nil {
			return nil, nil, err
		}
		if err := dbc.Conn(r.db).
			Where("document_id = ? AND "+containerCol+" IN ?", documentID, removed).
			Delete(model).Error; err != nil {
			return nil, nil, err
		}
	}
	return added, removed, nil
}

func (r *spatialRepo) ReplaceContainedBy(dbc dbctx.Context, containerID int64, containerType types.DocumentType, documentIDs []int64) ([]int64, []int64, error) {
	current, err := r.ListContainedIDs(dbc, containerID, containerType)
	if err != nil {
		return nil, nil, err
	}
	added, removed := diffIDs(current, documentIDs)
	pairs := make([][2]int64, 0, len(added))
	for _, id := range added {
		pairs = append(pairs, [2]int64{id, containerID})
	}
	if err := r.insertLinks(dbc, containerType, pairs); err != nil {
		return nil, nil, err
	}
	if len(removed) > 0 {
		model, containerCol, err := linkTable(containerType)
		if err != nil {
			return nil, nil, err
		}
		if err := dbc.Conn(r.db).
			Where(containerCol+" = ? AND document_id IN ?", containerID, removed).
			Delete(model).Error; err != nil {
			return nil, nil, err
		}
	}
	return added, removed, nil
}

// insertLinks writes (document_id, container_id) pairs.
func (r *spatialRepo) insertLinks(dbc dbctx.Context, containerType types.DocumentType, pairs [][2]int64) error {
	if len(pairs) == 0 {
		return nil
	}
	t := dbc.Conn(r.db).Clauses(clause.OnConflict{DoNothing: true})
	switch containerType {
	case types.DocumentTypeArea:
		rows := make([]*types.AreaAssociation, 0, len(pairs))
		for _, p := range pairs {
			rows = append(rows, &types.AreaAssociation{DocumentID: p[0], AreaID: p[1]})
		}
		return t.Create(&rows).Error
	case types.DocumentTypeTopoMap:
		rows := make([]*types.TopoMapAssociation, 0, len(pairs))
		for _, p := range pairs {
			rows = append(rows, &types.TopoMapAssociation{DocumentID: p[0], TopoMapID: p[1]})
		}
		return t.Create(&rows).Error
	default:
		_, _, err := linkTable(containerType)
		return err
	}
}

func (r *spatialRepo) DeleteByDocumentIDs(dbc dbctx.Context, documentIDs []int64) error {
	if len(documentIDs) == 0 {
		return nil
	}
	t := dbc.Conn(r.db)
	if err := t.Where("document_id IN ? OR area_id IN ?", documentIDs, documentIDs).
		Delete(&types.AreaAssociation{}).Error; err != nil {
		return err
	}
	return t.Where("document_id IN ? OR topo_map_id IN ?", documentIDs, documentIDs).
		Delete(&types.TopoMapAssociation{}).Error
}

func linkTable(containerType types.DocumentType) (interface{}, string, error) {
	switch containerType {
	case types.DocumentTypeArea:
		return &types.AreaAssociation{}, "area_id", nil
	case types.DocumentTypeTopoMap:
		return &types.TopoMapAssociation{}, "topo_map_id", nil
	default:
		return nil, "", &UnsupportedContainerError{Type: containerType}
	}
}

type UnsupportedContainerError struct {
	Type types.DocumentType
}

func (e *UnsupportedContainerError) Error() string {
	return "unsupported spatial container type " + string(e.Type)
}

// diffIDs returns ids in want but not in have, and ids in have but not in want.
func diffIDs(have, want []int64) (added, removed []int64) {
	haveSet := make(map[int64]bool, len(have))
	for _, id := range have {
		haveSet[id] = true
	}
	wantSet := make(map[int64]bool, len(want))
	for _, id := range want {
		if wantSet[id] {
			continue
		}
		wantSet[id] = true
		if !haveSet[id] {
			added = append(added, id)
		}
	}
	for _, id := range have {
		if !wantSet[id] {
			removed = append(removed, id)
		}
	}
	return added, removed
}
