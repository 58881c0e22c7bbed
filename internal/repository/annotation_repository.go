package repository

import (
	"context"
	"hash/fnv"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tour-service/internal/models"
)

// AnnotationRepository defines the annotation store. Rows are keyed by
// (node, kind, client id).
type AnnotationRepository interface {
	WithTx(tx *gorm.DB) AnnotationRepository

	LockNodeKind(ctx context.Context, nodeID uuid.UUID, kind models.AnnotationKind) error
	ListByNode(ctx context.Context, nodeID uuid.UUID, kind models.AnnotationKind) ([]models.Annotation, error)
	ListByNodes(ctx context.Context, nodeIDs []uuid.UUID) ([]models.Annotation, error)
	Insert(ctx context.Context, rows []models.Annotation) error
	Update(ctx context.Context, row *models.Annotation) error
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) error
	DeleteByNode(ctx context.Context, nodeID uuid.UUID) (int64, error)
	ClearLinkTargets(ctx context.Context, targetNodeID uuid.UUID) (int64, error)
}

// AnnotationRepositoryImpl stores annotations through GORM.
type AnnotationRepositoryImpl struct {
	db *gorm.DB
}

// NewAnnotationRepository creates a new AnnotationRepositoryImpl with the provided GORM database connection.
func NewAnnotationRepository(db *gorm.DB) *AnnotationRepositoryImpl {
	return &AnnotationRepositoryImpl{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *AnnotationRepositoryImpl) WithTx(tx *gorm.DB) AnnotationRepository {
	return &AnnotationRepositoryImpl{db: tx}
}

// LockNodeKind takes a transaction-scoped advisory lock on (kind, node) when
// running on PostgreSQL, serializing reconciliations across service replicas.
// It must be called inside a transaction. Other dialects rely on the
// caller's in-process lock.
func (r *AnnotationRepositoryImpl) LockNodeKind(ctx context.Context, nodeID uuid.UUID, kind models.AnnotationKind) error {
	if r.db.Dialector.Name() != "postgres" {
		return nil
	}
	return r.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(?, ?)", kindLockKey(kind), nodeLockKey(nodeID)).Error
}

// ListByNode returns one kind of a node's annotations in submission order.
func (r *AnnotationRepositoryImpl) ListByNode(ctx context.Context, nodeID uuid.UUID, kind models.AnnotationKind) ([]models.Annotation, error) {
	var rows []models.Annotation
	err := r.db.WithContext(ctx).
		Where("node_id = ? AND kind = ?", nodeID, kind).
		Order("ordinal, client_id").
		Find(&rows).Error
	return rows, err
}

// ListByNodes returns the annotations of all given nodes, grouped by node
// and in submission order within each kind.
func (r *AnnotationRepositoryImpl) ListByNodes(ctx context.Context, nodeIDs []uuid.UUID) ([]models.Annotation, error) {
	var rows []models.Annotation
	if len(nodeIDs) == 0 {
		return rows, nil
	}
	err := r.db.WithContext(ctx).
		Where("node_id IN ?", nodeIDs).
		Order("node_id, kind, ordinal, client_id").
		Find(&rows).Error
	return rows, err
}

func (r *AnnotationRepositoryImpl) Insert(ctx context.Context, rows []models.Annotation) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Omit("Node").Create(&rows).Error
}

func (r *AnnotationRepositoryImpl) Update(ctx context.Context, row *models.Annotation) error {
	return r.db.WithContext(ctx).Model(row).
		Select("ordinal", "is_link", "target_node_id", "body", "updated_at").
		Updates(row).Error
}

func (r *AnnotationRepositoryImpl) DeleteByIDs(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Annotation{}).Error
}

// DeleteByNode removes every annotation anchored to nodeID, of either kind.
func (r *AnnotationRepositoryImpl) DeleteByNode(ctx context.Context, nodeID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("node_id = ?", nodeID).Delete(&models.Annotation{})
	return res.RowsAffected, res.Error
}

// ClearLinkTargets turns every annotation linking to targetNodeID into a
// plain annotation. Used when the target node is deleted.
func (r *AnnotationRepositoryImpl) ClearLinkTargets(ctx context.Context, targetNodeID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Annotation{}).
		Where("target_node_id = ?", targetNodeID).
		Updates(map[string]any{"is_link": false, "target_node_id": nil})
	return res.RowsAffected, res.Error
}

func kindLockKey(kind models.AnnotationKind) int32 {
	switch kind {
	case models.KindPolygon:
		return 1
	case models.KindText:
		return 2
	}
	return 0
}

func nodeLockKey(nodeID uuid.UUID) int32 {
	h := fnv.New32a()
	_, _ = h.Write(nodeID[:])
	return int32(h.Sum32())
}
