package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"tour-service/internal/metrics"
	"tour-service/internal/models"
	"tour-service/internal/repository"
	"tour-service/internal/utils"
)

// DrawingSyncEngine reconciles an editor's annotation set for one node with
// the annotation store. It is the only writer of annotation rows.
type DrawingSyncEngine struct {
	db          *gorm.DB
	tours       repository.TourRepository
	annotations repository.AnnotationRepository
	locks       *KeyedLocker
	exports     ExportInvalidator
	metrics     *utils.Metrics
	log         zerolog.Logger
}

// SyncOption configures optional collaborators of a DrawingSyncEngine.
type SyncOption func(*DrawingSyncEngine)

func WithSyncMetrics(m *utils.Metrics) SyncOption {
	return func(e *DrawingSyncEngine) { e.metrics = m }
}

func WithSyncExportInvalidator(inv ExportInvalidator) SyncOption {
	return func(e *DrawingSyncEngine) { e.exports = inv }
}

func WithSyncLogger(l zerolog.Logger) SyncOption {
	return func(e *DrawingSyncEngine) { e.log = l }
}

func NewDrawingSyncEngine(db *gorm.DB, tours repository.TourRepository, annotations repository.AnnotationRepository, opts ...SyncOption) *DrawingSyncEngine {
	e := &DrawingSyncEngine{
		db:          db,
		tours:       tours,
		annotations: annotations,
		locks:       NewKeyedLocker(),
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// submission is the full submitted list of one kind.
type submission struct {
	kind  models.AnnotationKind
	items []syncItem
}

// Load returns the node's annotations in the order they were last submitted.
func (e *DrawingSyncEngine) Load(ctx context.Context, nodeID uuid.UUID) (*models.DrawingSet, error) {
	if _, err := e.tours.GetNode(ctx, nodeID); err != nil {
		return nil, notFound(err, "node")
	}

	set := &models.DrawingSet{Polygons: []models.Polygon{}, Texts: []models.Text{}}

	rows, err := e.annotations.ListByNode(ctx, nodeID, models.KindPolygon)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load polygons")
	}
	for i := range rows {
		p, err := polygonFromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		set.Polygons = append(set.Polygons, p)
	}

	rows, err = e.annotations.ListByNode(ctx, nodeID, models.KindText)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load texts")
	}
	for i := range rows {
		t, err := textFromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		set.Texts = append(set.Texts, t)
	}
	return set, nil
}

// ReconcilePolygons makes the node's stored polygons equal to polygons.
func (e *DrawingSyncEngine) ReconcilePolygons(ctx context.Context, nodeID uuid.UUID, polygons []models.Polygon) (*models.AppliedSet, error) {
	if err := e.validatePolygons(polygons); err != nil {
		return nil, e.rejected(nodeID, err)
	}
	items, err := polygonItems(polygons)
	if err != nil {
		return nil, err
	}
	return e.reconcile(ctx, nodeID, []submission{{kind: models.KindPolygon, items: items}})
}

// ReconcileTexts makes the node's stored texts equal to texts.
func (e *DrawingSyncEngine) ReconcileTexts(ctx context.Context, nodeID uuid.UUID, texts []models.Text) (*models.AppliedSet, error) {
	if err := e.validateTexts(texts); err != nil {
		return nil, e.rejected(nodeID, err)
	}
	items, err := textItems(texts)
	if err != nil {
		return nil, err
	}
	return e.reconcile(ctx, nodeID, []submission{{kind: models.KindText, items: items}})
}

// ReconcileNodeAnnotations reconciles both kinds in one transaction. Both
// lists are validated before anything is written.
func (e *DrawingSyncEngine) ReconcileNodeAnnotations(ctx context.Context, nodeID uuid.UUID, polygons []models.Polygon, texts []models.Text) (*models.AppliedSet, error) {
	if err := e.validatePolygons(polygons); err != nil {
		return nil, e.rejected(nodeID, err)
	}
	if err := e.validateTexts(texts); err != nil {
		return nil, e.rejected(nodeID, err)
	}
	pItems, err := polygonItems(polygons)
	if err != nil {
		return nil, err
	}
	tItems, err := textItems(texts)
	if err != nil {
		return nil, err
	}
	// Lock order is polygon then text.
	return e.reconcile(ctx, nodeID, []submission{
		{kind: models.KindPolygon, items: pItems},
		{kind: models.KindText, items: tItems},
	})
}

func (e *DrawingSyncEngine) reconcile(ctx context.Context, nodeID uuid.UUID, subs []submission) (*models.AppliedSet, error) {
	kinds := make([]string, len(subs))
	for i, sub := range subs {
		kinds[i] = string(sub.kind)
	}
	timings := metrics.NewSyncTimings(nodeID.String(), strings.Join(kinds, ","))

	node, err := e.tours.GetNode(ctx, nodeID)
	if err != nil {
		return nil, notFound(err, "node")
	}

	timings.StartPhase(metrics.PhaseLockWait)
	for _, sub := range subs {
		unlock, err := e.locks.Lock(ctx, nodeID, sub.kind)
		if err != nil {
			timings.EndPhase(metrics.PhaseLockWait)
			return nil, errors.Wrapf(err, "waiting for %s lock", sub.kind)
		}
		defer unlock()
	}
	timings.EndPhase(metrics.PhaseLockWait)

	result := &models.AppliedSet{}
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tours := e.tours.WithTx(tx)
		// The anchor and every target stay locked against deletion until commit.
		anchor, err := tours.LockNodesShared(ctx, []uuid.UUID{nodeID})
		if err != nil {
			return errors.Wrap(err, "failed to lock node")
		}
		if len(anchor) == 0 {
			return errors.Wrap(ErrNotFound, "node")
		}
		annotations := e.annotations.WithTx(tx)
		for _, sub := range subs {
			if err := annotations.LockNodeKind(ctx, nodeID, sub.kind); err != nil {
				return errors.Wrapf(err, "failed to lock %s annotations", sub.kind)
			}
		}

		timings.StartPhase(metrics.PhaseValidate)
		err = validateTargets(ctx, tours, anchor[0].TourID, subs)
		timings.EndPhase(metrics.PhaseValidate)
		if err != nil {
			return err
		}

		for _, sub := range subs {
			rows, stats, err := e.apply(ctx, annotations, nodeID, sub, timings)
			if err != nil {
				return err
			}
			if err := fillResult(result, sub.kind, rows, stats); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return nil, e.rejected(nodeID, err)
		}
		for _, sub := range subs {
			e.metrics.RecordSync(sub.kind, "error", models.SyncStats{})
		}
		return nil, err
	}
	result.Success = true

	changed := false
	for _, stats := range []*models.SyncStats{result.PolygonStats, result.TextStats} {
		if stats != nil && stats.Changed() {
			changed = true
		}
	}
	if changed && e.exports != nil {
		e.exports.Invalidate(ctx, node.TourID)
	}

	phases := timings.Finalize()
	e.metrics.RecordSyncPhases(phases)
	ev := e.log.Info().Str("node_id", nodeID.String()).Str("kinds", timings.Kinds)
	if s := result.PolygonStats; s != nil {
		e.metrics.RecordSync(models.KindPolygon, "success", *s)
		ev = ev.Int("polygons_inserted", s.Inserted).Int("polygons_updated", s.Updated).
			Int("polygons_deleted", s.Deleted).Int("polygons_unchanged", s.Unchanged)
	}
	if s := result.TextStats; s != nil {
		e.metrics.RecordSync(models.KindText, "success", *s)
		ev = ev.Int("texts_inserted", s.Inserted).Int("texts_updated", s.Updated).
			Int("texts_deleted", s.Deleted).Int("texts_unchanged", s.Unchanged)
	}
	ev.Float64("latency_ms", phases[metrics.PhaseTotal]).Msg("drawings reconciled")

	return result, nil
}

// apply runs the diff for one kind inside tx and returns the stored rows in
// submission order.
func (e *DrawingSyncEngine) apply(ctx context.Context, repo repository.AnnotationRepository, nodeID uuid.UUID, sub submission, timings *metrics.SyncTimings) ([]models.Annotation, models.SyncStats, error) {
	var stats models.SyncStats

	timings.StartPhase(metrics.PhaseLoad)
	stored, err := repo.ListByNode(ctx, nodeID, sub.kind)
	timings.EndPhase(metrics.PhaseLoad)
	if err != nil {
		return nil, stats, errors.Wrapf(err, "failed to load stored %s annotations", sub.kind)
	}

	timings.StartPhase(metrics.PhaseDiff)
	byClient := make(map[string]*models.Annotation, len(stored))
	for i := range stored {
		byClient[stored[i].ClientID] = &stored[i]
	}

	final := make([]models.Annotation, len(sub.items))
	var inserts []models.Annotation
	var insertAt []int
	var updates []*models.Annotation
	seen := make(map[string]struct{}, len(sub.items))
	for i, item := range sub.items {
		seen[item.clientID] = struct{}{}
		row, ok := byClient[item.clientID]
		if !ok {
			inserts = append(inserts, models.Annotation{
				NodeID:       nodeID,
				Kind:         sub.kind,
				ClientID:     item.clientID,
				Ordinal:      i,
				IsLink:       item.isLink,
				TargetNodeID: item.target,
				Body:         item.raw,
			})
			insertAt = append(insertAt, i)
			continue
		}
		same, err := item.matches(row, i)
		if err != nil {
			timings.EndPhase(metrics.PhaseDiff)
			return nil, stats, err
		}
		if same {
			stats.Unchanged++
			final[i] = *row
			continue
		}
		row.Ordinal = i
		row.IsLink = item.isLink
		row.TargetNodeID = item.target
		row.Body = item.raw
		updates = append(updates, row)
		final[i] = *row
	}

	var deletes []uuid.UUID
	for i := range stored {
		if _, ok := seen[stored[i].ClientID]; !ok {
			deletes = append(deletes, stored[i].ID)
		}
	}
	timings.EndPhase(metrics.PhaseDiff)

	timings.StartPhase(metrics.PhaseApply)
	defer timings.EndPhase(metrics.PhaseApply)

	if err := repo.DeleteByIDs(ctx, deletes); err != nil {
		return nil, stats, errors.Wrapf(err, "failed to delete %s annotations", sub.kind)
	}
	stats.Deleted = len(deletes)

	for _, row := range updates {
		if err := repo.Update(ctx, row); err != nil {
			return nil, stats, errors.Wrapf(err, "failed to update %s %q", sub.kind, row.ClientID)
		}
	}
	stats.Updated = len(updates)

	if err := repo.Insert(ctx, inserts); err != nil {
		return nil, stats, errors.Wrapf(err, "failed to insert %s annotations", sub.kind)
	}
	stats.Inserted = len(inserts)
	for j, i := range insertAt {
		final[i] = inserts[j]
	}

	return final, stats, nil
}

// fillResult stores the wire form of one kind's rows in result.
func fillResult(result *models.AppliedSet, kind models.AnnotationKind, rows []models.Annotation, stats models.SyncStats) error {
	switch kind {
	case models.KindPolygon:
		result.Polygons = make([]models.Polygon, 0, len(rows))
		for i := range rows {
			p, err := polygonFromRow(&rows[i])
			if err != nil {
				return err
			}
			result.Polygons = append(result.Polygons, p)
		}
		result.PolygonStats = &stats
	case models.KindText:
		result.Texts = make([]models.Text, 0, len(rows))
		for i := range rows {
			t, err := textFromRow(&rows[i])
			if err != nil {
				return err
			}
			result.Texts = append(result.Texts, t)
		}
		result.TextStats = &stats
	}
	return nil
}

func (e *DrawingSyncEngine) validatePolygons(polygons []models.Polygon) error {
	seen := make(map[string]struct{}, len(polygons))
	for i := range polygons {
		p := &polygons[i]
		if err := models.Validator().Struct(p); err != nil {
			return validationFailure(err, models.KindPolygon, p.ClientID)
		}
		if _, dup := seen[p.ClientID]; dup {
			return duplicateClientID(models.KindPolygon, p.ClientID)
		}
		seen[p.ClientID] = struct{}{}
	}
	return nil
}

func (e *DrawingSyncEngine) validateTexts(texts []models.Text) error {
	seen := make(map[string]struct{}, len(texts))
	for i := range texts {
		t := &texts[i]
		if err := models.Validator().Struct(t); err != nil {
			return validationFailure(err, models.KindText, t.ClientID)
		}
		if _, dup := seen[t.ClientID]; dup {
			return duplicateClientID(models.KindText, t.ClientID)
		}
		seen[t.ClientID] = struct{}{}
	}
	return nil
}

// validateTargets checks that every targetNodeId names a node of tourID and
// share-locks those nodes.
func validateTargets(ctx context.Context, tours repository.TourRepository, tourID uuid.UUID, subs []submission) error {
	var ids []uuid.UUID
	wanted := make(map[uuid.UUID]struct{})
	for _, sub := range subs {
		for _, item := range sub.items {
			if item.target == nil {
				continue
			}
			if _, ok := wanted[*item.target]; !ok {
				wanted[*item.target] = struct{}{}
				ids = append(ids, *item.target)
			}
		}
	}
	if len(ids) == 0 {
		return nil
	}

	list, err := tours.LockNodesShared(ctx, ids)
	if err != nil {
		return errors.Wrap(err, "failed to lock target nodes")
	}
	inTour := make(map[uuid.UUID]struct{}, len(list))
	for _, n := range list {
		if n.TourID == tourID {
			inTour[n.ID] = struct{}{}
		}
	}

	for _, sub := range subs {
		for _, item := range sub.items {
			if item.target == nil {
				continue
			}
			if _, ok := inTour[*item.target]; !ok {
				return &ValidationError{
					Kind:       sub.kind,
					ClientID:   item.clientID,
					Field:      "targetNodeId",
					Constraint: "node_in_tour",
				}
			}
		}
	}
	return nil
}

func (e *DrawingSyncEngine) rejected(nodeID uuid.UUID, err error) error {
	var verr *ValidationError
	if errors.As(err, &verr) {
		e.metrics.RecordSync(verr.Kind, "invalid", models.SyncStats{})
		e.log.Warn().
			Str("node_id", nodeID.String()).
			Str("kind", string(verr.Kind)).
			Str("client_id", verr.ClientID).
			Str("field", verr.Field).
			Str("constraint", verr.Constraint).
			Msg("drawing submission rejected")
	}
	return err
}

func duplicateClientID(kind models.AnnotationKind, clientID string) error {
	return &ValidationError{Kind: kind, ClientID: clientID, Field: "clientId", Constraint: "unique"}
}
