package aggregates

import (
	"context"
	"fmt"
	"sort"

	"github.com/looplab/fsm"

	types "github.com/cordee/cordee-backend/internal/domain"
	domainagg "github.com/cordee/cordee-backend/internal/domain/aggregates"
	"github.com/cordee/cordee-backend/internal/domain/documents"
	"github.com/cordee/cordee-backend/internal/platform/dbctx"
	"github.com/cordee/cordee-backend/internal/platform/logger"
)

// Deletion pipeline states, in order.
const (
	deleteStateValidate     = "validate"
	deleteStateVersions     = "cascade_versions"
	deleteStateAssociations = "cascade_associations"
	deleteStateFeed         = "cascade_feed"
	deleteStateRows         = "delete_rows"
	deleteStateCaches       = "bump_caches"
	deleteStateSideEffects  = "side_effects"
	deleteStateDone         = "done"
)

var deletePipeline = []string{
	deleteStateValidate,
	deleteStateVersions,
	deleteStateAssociations,
	deleteStateFeed,
	deleteStateRows,
	deleteStateCaches,
	deleteStateSideEffects,
	deleteStateDone,
}

const (
	msgMainWaypoint    = "This waypoint cannot be deleted because it is a main waypoint."
	msgOnlyWaypoint    = "This waypoint cannot be deleted because it is the only waypoint associated to some routes."
	msgOnlyRouteOuting = "This route cannot be deleted because it is the only route associated to some outings."
)

func transitionTo(state string) string { return "to_" + state }

// newDeleteMachine builds a linear machine over deletePipeline; every state
// can only be left towards the next one.
func newDeleteMachine(log *logger.Logger, documentID int64) *fsm.FSM {
	events := make(fsm.Events, 0, len(deletePipeline)-1)
	for i := 0; i+1 < len(deletePipeline); i++ {
		events = append(events, fsm.EventDesc{
			Name: transitionTo(deletePipeline[i+1]),
			Src:  []string{deletePipeline[i]},
			Dst:  deletePipeline[i+1],
		})
	}
	return fsm.NewFSM(deleteStateValidate, events, fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			log.Debug("delete pipeline transition", "document_id", documentID, "from", e.Src, "to", e.Dst)
		},
	})
}

// deletion is the state carried through the pipeline.
type deletion struct {
	op         string
	rootID     int64
	ids        []int64
	docs       []*types.Document
	neighbours *cacheBumpSet
	filenames  []string
	bumped     []int64
}

type deleteStep struct {
	state string
	run   func(dbc dbctx.Context, d *deletion) error
}

func (a *DocumentEngine) Delete(ctx context.Context, in domainagg.DeleteDocumentInput) (domainagg.DeleteDocumentResult, error) {
	const op = "Documents.Document.Delete"
	var out domainagg.DeleteDocumentResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	if in.DocumentID <= 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing document_id", nil)
	}

	log := a.deps.Base.Log
	machine := newDeleteMachine(log, in.DocumentID)
	d := &deletion{op: op, rootID: in.DocumentID, neighbours: newCacheBumpSet()}
	steps := []deleteStep{
		{deleteStateValidate, a.deleteValidate},
		{deleteStateVersions, a.deleteVersions},
		{deleteStateAssociations, a.deleteAssociations},
		{deleteStateFeed, a.deleteFeed},
		{deleteStateRows, a.deleteRows},
		{deleteStateCaches, a.deleteBumpCaches},
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		for _, step := range steps {
			if cur := machine.Current(); cur != step.state {
				return InvariantError(fmt.Sprintf("delete pipeline in state %s, expected %s", cur, step.state))
			}
			if err := step.run(dbc, d); err != nil {
				return err
			}
			if err := advance(dbc.Ctx, machine); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return out, err
	}

	out.DeletedIDs = d.ids
	out.CacheBumpedIDs = d.bumped
	out.Warnings = afterCommit(ctx, a.deps.Base, op, []sideEffect{
		a.imageDeleteEffect(d.filenames),
		a.searchSyncEffect(d.ids),
	})
	if err := advance(ctx, machine); err != nil {
		log.Warn("delete pipeline did not reach its final state", "document_id", in.DocumentID, "error", err)
	}
	log.Info("documents deleted", "document_ids", d.ids, "cache_bumps", len(d.bumped))
	return out, nil
}

// advance moves the machine to the next pipeline state.
func advance(ctx context.Context, m *fsm.FSM) error {
	next := ""
	for i, s := range deletePipeline {
		if s == m.Current() && i+1 < len(deletePipeline) {
			next = deletePipeline[i+1]
		}
	}
	if next == "" {
		return InvariantError(fmt.Sprintf("delete pipeline has no state after %s", m.Current()))
	}
	if err := m.Event(ctx, transitionTo(next)); err != nil {
		return InvariantError(fmt.Sprintf("delete pipeline: %v", err))
	}
	return nil
}

func (a *DocumentEngine) deleteValidate(dbc dbctx.Context, d *deletion) error {
	doc, err := a.deps.Documents.GetByID(dbc, d.rootID)
	if err != nil {
		return err
	}
	if doc == nil {
		return domainagg.PreconditionFailed(d.op, fmt.Sprintf("document %d does not exist", d.rootID))
	}

	switch doc.Type {
	case types.DocumentTypeWaypoint:
		routes, err := a.deps.Documents.ListRouteIDsByMainWaypoint(dbc, doc.DocumentID)
		if err != nil {
			return err
		}
		if len(routes) > 0 {
			return domainagg.PreconditionFailed(d.op, msgMainWaypoint)
		}
		orphans, err := a.deps.Associations.ListSoleParentChildIDs(dbc, doc.DocumentID, types.DocumentTypeWaypoint, types.DocumentTypeRoute)
		if err != nil {
			return err
		}
		if len(orphans) > 0 {
			return domainagg.PreconditionFailed(d.op, msgOnlyWaypoint)
		}
	case types.DocumentTypeRoute:
		orphans, err := a.deps.Associations.ListSoleParentChildIDs(dbc, doc.DocumentID, types.DocumentTypeRoute, types.DocumentTypeOuting)
		if err != nil {
			return err
		}
		if len(orphans) > 0 {
			return domainagg.PreconditionFailed(d.op, msgOnlyRouteOuting)
		}
	}

	redirected, err := a.deps.Documents.ListIDsRedirectingTo(dbc, doc.DocumentID)
	if err != nil {
		return err
	}
	d.ids = append([]int64{doc.DocumentID}, redirected...)
	sort.Slice(d.ids, func(i, j int) bool { return d.ids[i] < d.ids[j] })

	d.docs, err = a.deps.Documents.GetByIDs(dbc, d.ids)
	if err != nil {
		return err
	}
	for _, doc := range d.docs {
		if err := a.collectNeighbours(dbc, doc, d.neighbours); err != nil {
			return err
		}
	}
	d.neighbours.exclude(d.ids...)

	d.filenames, err = a.imageFilenames(dbc, d.docs)
	return err
}

// imageFilenames lists every filename an image document ever had, current
// and archived.
func (a *DocumentEngine) imageFilenames(dbc dbctx.Context, docs []*types.Document) ([]string, error) {
	var imageIDs []int64
	seen := map[string]bool{}
	for _, doc := range docs {
		if doc.Type != types.DocumentTypeImage {
			continue
		}
		imageIDs = append(imageIDs, doc.DocumentID)
		if doc.Filename != nil && *doc.Filename != "" {
			seen[*doc.Filename] = true
		}
	}
	if len(imageIDs) == 0 {
		return nil, nil
	}
	archives, err := a.deps.Archives.ListDocumentArchives(dbc, imageIDs)
	if err != nil {
		return nil, err
	}
	for _, arch := range archives {
		f, err := documents.DecodeFigures(arch.Type, arch.Figures)
		if err != nil {
			return nil, InvariantError(fmt.Sprintf("archive %d: %v", arch.ID, err))
		}
		if img, ok := f.(*documents.ImageFigures); ok && img.Filename != "" {
			seen[img.Filename] = true
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (a *DocumentEngine) deleteVersions(dbc dbctx.Context, d *deletion) error {
	return a.deps.Versions.DeleteByDocumentIDs(dbc, d.ids)
}

func (a *DocumentEngine) deleteAssociations(dbc dbctx.Context, d *deletion) error {
	if err := a.deps.Associations.DeleteByDocumentIDs(dbc, d.ids); err != nil {
		return err
	}
	if err := a.deps.Associations.DeleteLogsByDocumentIDs(dbc, d.ids); err != nil {
		return err
	}
	return a.deps.Spatial.DeleteByDocumentIDs(dbc, d.ids)
}

func (a *DocumentEngine) deleteFeed(dbc dbctx.Context, d *deletion) error {
	return a.deps.Feed.RemoveByDocumentIDs(dbc, d.ids)
}

func (a *DocumentEngine) deleteRows(dbc dbctx.Context, d *deletion) error {
	if err := a.deps.Archives.DeleteByDocumentIDs(dbc, d.ids); err != nil {
		return err
	}
	if err := a.deps.Documents.DeleteByIDs(dbc, d.ids); err != nil {
		return err
	}
	return a.deps.CacheVersions.DeleteByDocumentIDs(dbc, d.ids)
}

func (a *DocumentEngine) deleteBumpCaches(dbc dbctx.Context, d *deletion) error {
	bumped, err := a.flushCacheBumps(dbc, d.neighbours)
	d.bumped = bumped
	return err
}

func (a *DocumentEngine) imageDeleteEffect(filenames []string) sideEffect {
	eff := sideEffect{name: domainagg.EffectImageDelete}
	if a.deps.Images == nil || len(filenames) == 0 {
		return eff
	}
	eff.run = func(ctx context.Context) error {
		return a.deps.Images.Delete(ctx, filenames)
	}
	return eff
}
