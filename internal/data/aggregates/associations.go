package aggregates

import (
	"context"
	"fmt"
	"sort"

	types "github.com/cordee/cordee-backend/internal/domain"
	domainagg "github.com/cordee/cordee-backend/internal/domain/aggregates"
	"github.com/cordee/cordee-backend/internal/domain/documents"
	"github.com/cordee/cordee-backend/internal/platform/dbctx"
)

func (a *DocumentEngine) Associate(ctx context.Context, in domainagg.AssociationInput) (domainagg.AssociationResult, error) {
	const op = "Documents.Association.Create"
	var out domainagg.AssociationResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	if err := validateAssociationInput(op, in); err != nil {
		return out, err
	}
	key := types.AssociationKey{Parent: in.ParentDocumentID, Child: in.ChildDocumentID}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		bumps := newCacheBumpSet()
		added, err := a.addAssociations(dbc, []types.AssociationKey{key}, in.UserID, bumps)
		if err != nil {
			return err
		}
		out.Changed = added > 0
		_, err = a.flushCacheBumps(dbc, bumps)
		return err
	})
	if err != nil {
		return domainagg.AssociationResult{}, err
	}
	return out, nil
}

func (a *DocumentEngine) Dissociate(ctx context.Context, in domainagg.AssociationInput) (domainagg.AssociationResult, error) {
	const op = "Documents.Association.Delete"
	var out domainagg.AssociationResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	if err := validateAssociationInput(op, in); err != nil {
		return out, err
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		edge, err := a.deps.Associations.Get(dbc, in.ParentDocumentID, in.ChildDocumentID)
		if err != nil {
			return err
		}
		if edge == nil {
			return domainagg.NotFound(op, "association %d -> %d not found", in.ParentDocumentID, in.ChildDocumentID)
		}
		bumps := newCacheBumpSet()
		if err := a.removeAssociations(dbc, []*types.Association{edge}, in.UserID, bumps); err != nil {
			return err
		}
		out.Changed = true
		_, err = a.flushCacheBumps(dbc, bumps)
		return err
	})
	if err != nil {
		return domainagg.AssociationResult{}, err
	}
	return out, nil
}

func validateAssociationInput(op string, in domainagg.AssociationInput) error {
	if in.UserID <= 0 {
		return domainagg.NewError(domainagg.CodeValidation, op, "missing user_id", nil)
	}
	if in.ParentDocumentID <= 0 || in.ChildDocumentID <= 0 {
		return domainagg.NewError(domainagg.CodeValidation, op, "parent and child document ids are required", nil)
	}
	if in.ParentDocumentID == in.ChildDocumentID {
		return domainagg.NewError(domainagg.CodeValidation, op, "a document cannot be associated with itself", nil)
	}
	return nil
}

// buildEdges resolves the endpoint types of keys and checks that both
// endpoints exist, are not redirected, and form an allowed pair.
func (a *DocumentEngine) buildEdges(dbc dbctx.Context, keys []types.AssociationKey) ([]*types.Association, error) {
	ids := make([]int64, 0, len(keys)*2)
	for _, k := range keys {
		ids = append(ids, k.Parent, k.Child)
	}
	docs, err := a.deps.Documents.GetByIDs(dbc, uniqueIDs(ids))
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*types.Document, len(docs))
	for _, d := range docs {
		byID[d.DocumentID] = d
	}
	out := make([]*types.Association, 0, len(keys))
	for _, k := range keys {
		if k.Parent == k.Child {
			return nil, ValidationError("a document cannot be associated with itself")
		}
		parent, child := byID[k.Parent], byID[k.Child]
		for id, d := range map[int64]*types.Document{k.Parent: parent, k.Child: child} {
			if d == nil {
				return nil, domainagg.NotFound("Documents.Association", "document %d not found", id)
			}
			if d.IsRedirected() {
				return nil, ValidationError(fmt.Sprintf("document %d is redirected", id))
			}
		}
		if !documents.AssociationAllowed(parent.Type, child.Type) {
			return nil, ValidationError(fmt.Sprintf("invalid association %s -> %s", parent.Type, child.Type))
		}
		out = append(out, &types.Association{
			ParentDocumentID:   k.Parent,
			ChildDocumentID:    k.Child,
			ParentDocumentType: parent.Type,
			ChildDocumentType:  child.Type,
		})
	}
	return out, nil
}

// addAssociations inserts the missing edges among keys, logs them and
// queues both endpoints for a cache bump. Existing edges are left alone; an
// existing back-link is rejected.
func (a *DocumentEngine) addAssociations(dbc dbctx.Context, keys []types.AssociationKey, userID int64, bumps *cacheBumpSet) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	edges, err := a.buildEdges(dbc, keys)
	if err != nil {
		return 0, err
	}
	fresh := make([]*types.Association, 0, len(edges))
	for _, e := range edges {
		back, err := a.deps.Associations.Get(dbc, e.ChildDocumentID, e.ParentDocumentID)
		if err != nil {
			return 0, err
		}
		if back != nil {
			return 0, ValidationError(fmt.Sprintf("association %d -> %d exists as back-link", e.ParentDocumentID, e.ChildDocumentID))
		}
		cur, err := a.deps.Associations.Get(dbc, e.ParentDocumentID, e.ChildDocumentID)
		if err != nil {
			return 0, err
		}
		if cur == nil {
			fresh = append(fresh, e)
		}
	}
	if len(fresh) == 0 {
		return 0, nil
	}
	n, err := a.deps.Associations.Create(dbc, fresh)
	if err != nil {
		return 0, err
	}
	now := a.deps.Base.Now()
	logs := make([]*types.AssociationLog, 0, len(fresh))
	for _, e := range fresh {
		logs = append(logs, documents.NewAssociationLog(e, userID, true, now))
		bumps.add(e.ParentDocumentID, e.ChildDocumentID)
	}
	if err := a.deps.Associations.CreateLogs(dbc, logs); err != nil {
		return 0, err
	}
	return n, nil
}

func (a *DocumentEngine) removeAssociations(dbc dbctx.Context, edges []*types.Association, userID int64, bumps *cacheBumpSet) error {
	if len(edges) == 0 {
		return nil
	}
	keys := make([]types.AssociationKey, 0, len(edges))
	now := a.deps.Base.Now()
	logs := make([]*types.AssociationLog, 0, len(edges))
	for _, e := range edges {
		keys = append(keys, e.Key())
		logs = append(logs, documents.NewAssociationLog(e, userID, false, now))
		bumps.add(e.ParentDocumentID, e.ChildDocumentID)
	}
	if _, err := a.deps.Associations.Delete(dbc, keys); err != nil {
		return err
	}
	return a.deps.Associations.CreateLogs(dbc, logs)
}

// replaceAssociations makes the edge set touching doc equal to inputs. A zero
// id on either side stands for doc itself.
func (a *DocumentEngine) replaceAssociations(dbc dbctx.Context, doc *types.Document, inputs []domainagg.AssociationInput, userID int64, bumps *cacheBumpSet) (bool, error) {
	want := make(map[types.AssociationKey]bool, len(inputs))
	for _, in := range inputs {
		k := types.AssociationKey{Parent: in.ParentDocumentID, Child: in.ChildDocumentID}
		if k.Parent == 0 {
			k.Parent = doc.DocumentID
		}
		if k.Child == 0 {
			k.Child = doc.DocumentID
		}
		if k.Parent != doc.DocumentID && k.Child != doc.DocumentID {
			return false, ValidationError(fmt.Sprintf("association %d -> %d does not involve document %d", k.Parent, k.Child, doc.DocumentID))
		}
		want[k] = true
	}

	existing, err := a.deps.Associations.ListByDocumentIDs(dbc, []int64{doc.DocumentID})
	if err != nil {
		return false, err
	}
	have := make(map[types.AssociationKey]bool, len(existing))
	var stale []*types.Association
	for _, e := range existing {
		have[e.Key()] = true
		if !want[e.Key()] {
			stale = append(stale, e)
		}
	}
	var missing []types.AssociationKey
	for k := range want {
		if !have[k] {
			missing = append(missing, k)
		}
	}
	sortKeys(missing)

	if err := a.removeAssociations(dbc, stale, userID, bumps); err != nil {
		return false, err
	}
	added, err := a.addAssociations(dbc, missing, userID, bumps)
	if err != nil {
		return false, err
	}
	return len(stale) > 0 || added > 0, nil
}

// collectNeighbours queues doc and every document one hop away from it,
// through user edges or area and topo map links.
func (a *DocumentEngine) collectNeighbours(dbc dbctx.Context, doc *types.Document, bumps *cacheBumpSet) error {
	bumps.add(doc.DocumentID)
	edges, err := a.deps.Associations.ListByDocumentIDs(dbc, []int64{doc.DocumentID})
	if err != nil {
		return err
	}
	for _, e := range edges {
		bumps.add(e.ParentDocumentID, e.ChildDocumentID)
	}
	if doc.Type.IsSpatialContainer() {
		ids, err := a.deps.Spatial.ListContainedIDs(dbc, doc.DocumentID, doc.Type)
		if err != nil {
			return err
		}
		bumps.add(ids...)
		return nil
	}
	for _, ct := range []types.DocumentType{types.DocumentTypeArea, types.DocumentTypeTopoMap} {
		ids, err := a.deps.Spatial.ListContainerIDs(dbc, doc.DocumentID, ct)
		if err != nil {
			return err
		}
		bumps.add(ids...)
	}
	return nil
}

// cacheBumpSet collects the documents whose cache version moves in one
// operation, so each is bumped at most once.
type cacheBumpSet struct {
	ids      map[int64]struct{}
	excluded map[int64]struct{}
}

func newCacheBumpSet() *cacheBumpSet {
	return &cacheBumpSet{ids: map[int64]struct{}{}, excluded: map[int64]struct{}{}}
}

func (s *cacheBumpSet) add(ids ...int64) {
	for _, id := range ids {
		if id > 0 {
			s.ids[id] = struct{}{}
		}
	}
}

func (s *cacheBumpSet) exclude(ids ...int64) {
	for _, id := range ids {
		s.excluded[id] = struct{}{}
	}
}

func (s *cacheBumpSet) list() []int64 {
	out := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		if _, skip := s.excluded[id]; !skip {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (a *DocumentEngine) flushCacheBumps(dbc dbctx.Context, s *cacheBumpSet) ([]int64, error) {
	ids := s.list()
	if len(ids) == 0 {
		return nil, nil
	}
	n, err := a.deps.CacheVersions.Bump(dbc, ids)
	if err != nil {
		return nil, err
	}
	a.deps.Base.Hooks.AddCacheBumps(int(n))
	return ids, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func dedupKeys(keys []types.AssociationKey) []types.AssociationKey {
	seen := make(map[types.AssociationKey]bool, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

func sortKeys(keys []types.AssociationKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Parent != keys[j].Parent {
			return keys[i].Parent < keys[j].Parent
		}
		return keys[i].Child < keys[j].Child
	})
}
