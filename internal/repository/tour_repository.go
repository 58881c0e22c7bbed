package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tour-service/internal/models"
	"tour-service/internal/utils"
)

// TourRepository defines the graph store: tours, nodes and directed links.
type TourRepository interface {
	WithTx(tx *gorm.DB) TourRepository

	CreateTour(ctx context.Context, tour *models.VirtualTour) error
	GetTour(ctx context.Context, id uuid.UUID) (*models.VirtualTour, error)
	ListTours(ctx context.Context, owner *models.OwnerRef) ([]models.VirtualTour, error)
	UpdateTour(ctx context.Context, tour *models.VirtualTour) error
	DeleteTour(ctx context.Context, id uuid.UUID) error

	NextNodeSequence(ctx context.Context, tourID uuid.UUID) (int64, error)
	CreateNode(ctx context.Context, node *models.TourNode) error
	GetNode(ctx context.Context, id uuid.UUID) (*models.TourNode, error)
	GetNodeForUpdate(ctx context.Context, id uuid.UUID) (*models.TourNode, error)
	LockNodesShared(ctx context.Context, ids []uuid.UUID) ([]models.TourNode, error)
	ListNodes(ctx context.Context, tourID uuid.UUID) ([]models.TourNode, error)
	UpdateNode(ctx context.Context, node *models.TourNode) error
	DeleteNode(ctx context.Context, id uuid.UUID) error
	ClearStartNode(ctx context.Context, tourID uuid.UUID) error
	MarkStartNode(ctx context.Context, nodeID uuid.UUID) error
	FindNodesWithinRadius(ctx context.Context, tourID uuid.UUID, lat, lng, radiusMeters float64) ([]models.TourNode, error)

	CreateLink(ctx context.Context, link *models.TourLink) error
	GetLink(ctx context.Context, id uuid.UUID) (*models.TourLink, error)
	ListLinks(ctx context.Context, tourID uuid.UUID) ([]models.TourLink, error)
	DeleteLink(ctx context.Context, id uuid.UUID) error
	DeleteLinksTouching(ctx context.Context, nodeID uuid.UUID) (int64, error)
}

// TourRepositoryImpl stores the tour graph through GORM.
type TourRepositoryImpl struct {
	db *gorm.DB
}

// NewTourRepository creates a new TourRepositoryImpl with the provided GORM database connection.
func NewTourRepository(db *gorm.DB) *TourRepositoryImpl {
	return &TourRepositoryImpl{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *TourRepositoryImpl) WithTx(tx *gorm.DB) TourRepository {
	return &TourRepositoryImpl{db: tx}
}

func (r *TourRepositoryImpl) CreateTour(ctx context.Context, tour *models.VirtualTour) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(tour).Error
}

func (r *TourRepositoryImpl) GetTour(ctx context.Context, id uuid.UUID) (*models.VirtualTour, error) {
	var tour models.VirtualTour
	err := r.db.WithContext(ctx).First(&tour, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &tour, nil
}

// ListTours returns all tours, or only those of owner when it is non-nil.
func (r *TourRepositoryImpl) ListTours(ctx context.Context, owner *models.OwnerRef) ([]models.VirtualTour, error) {
	var tours []models.VirtualTour
	q := r.db.WithContext(ctx).Order("created_at, id")
	if owner != nil {
		q = q.Where("owner_kind = ? AND owner_id = ?", owner.Kind, owner.ID)
	}
	err := q.Find(&tours).Error
	return tours, err
}

func (r *TourRepositoryImpl) UpdateTour(ctx context.Context, tour *models.VirtualTour) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(tour).Error
}

// DeleteTour removes a tour together with its annotations, links and nodes.
// Callers should run it inside a transaction.
func (r *TourRepositoryImpl) DeleteTour(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	nodeIDs := db.Model(&models.TourNode{}).Select("id").Where("tour_id = ?", id)
	if err := db.Where("node_id IN (?)", nodeIDs).Delete(&models.Annotation{}).Error; err != nil {
		return err
	}
	if err := db.Where("tour_id = ?", id).Delete(&models.TourLink{}).Error; err != nil {
		return err
	}
	if err := db.Where("tour_id = ?", id).Delete(&models.TourNode{}).Error; err != nil {
		return err
	}
	res := db.Delete(&models.VirtualTour{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// NextNodeSequence bumps the tour's node counter and returns the new value.
// The UPDATE takes the tour row lock, so concurrent inserts into one tour
// get distinct, increasing sequences.
func (r *TourRepositoryImpl) NextNodeSequence(ctx context.Context, tourID uuid.UUID) (int64, error) {
	db := r.db.WithContext(ctx)
	res := db.Model(&models.VirtualTour{}).
		Where("id = ?", tourID).
		UpdateColumn("node_counter", gorm.Expr("node_counter + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	var counter int64
	err := db.Model(&models.VirtualTour{}).Select("node_counter").Where("id = ?", tourID).Scan(&counter).Error
	return counter, err
}

func (r *TourRepositoryImpl) CreateNode(ctx context.Context, node *models.TourNode) error {
	return r.db.WithContext(ctx).Create(node).Error
}

func (r *TourRepositoryImpl) GetNode(ctx context.Context, id uuid.UUID) (*models.TourNode, error) {
	var node models.TourNode
	err := r.db.WithContext(ctx).First(&node, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &node, nil
}

// GetNodeForUpdate reads a node and, on PostgreSQL, holds its row lock until
// the transaction ends. Must be called inside a transaction.
func (r *TourRepositoryImpl) GetNodeForUpdate(ctx context.Context, id uuid.UUID) (*models.TourNode, error) {
	var node models.TourNode
	err := rowLock(r.db.WithContext(ctx), "UPDATE").First(&node, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &node, nil
}

// LockNodesShared reads the nodes with the given ids and, on PostgreSQL,
// keeps them from being deleted until the transaction ends. Missing ids are
// left out of the result.
func (r *TourRepositoryImpl) LockNodesShared(ctx context.Context, ids []uuid.UUID) ([]models.TourNode, error) {
	var nodes []models.TourNode
	if len(ids) == 0 {
		return nodes, nil
	}
	err := rowLock(r.db.WithContext(ctx), "SHARE").Where("id IN ?", ids).Order("id").Find(&nodes).Error
	return nodes, err
}

// rowLock adds a locking clause on PostgreSQL. SQLite has no row locks and
// serializes writers on the database file.
func rowLock(db *gorm.DB, strength string) *gorm.DB {
	if db.Dialector.Name() != "postgres" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: strength})
}

// ListNodes returns the nodes of a tour in creation order.
func (r *TourRepositoryImpl) ListNodes(ctx context.Context, tourID uuid.UUID) ([]models.TourNode, error) {
	var nodes []models.TourNode
	err := r.db.WithContext(ctx).Where("tour_id = ?", tourID).Order("sequence, id").Find(&nodes).Error
	return nodes, err
}

// nodeAttributeColumns are the columns UpdateNode writes. Tour, sequence and
// the start flag have their own writers.
var nodeAttributeColumns = []string{
	"name", "caption", "panorama_ref", "thumbnail_ref",
	"gps_latitude", "gps_longitude", "gps_altitude",
	"sphere_pan", "sphere_tilt", "sphere_roll",
	"updated_at",
}

// UpdateNode writes the node's descriptive attributes.
func (r *TourRepositoryImpl) UpdateNode(ctx context.Context, node *models.TourNode) error {
	res := r.db.WithContext(ctx).Model(node).Select(nodeAttributeColumns).Updates(node)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteNode removes the node row only. Links and annotations are removed by
// the caller in the same transaction.
func (r *TourRepositoryImpl) DeleteNode(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.TourNode{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *TourRepositoryImpl) ClearStartNode(ctx context.Context, tourID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.TourNode{}).
		Where("tour_id = ? AND is_start_node = ?", tourID, true).
		UpdateColumn("is_start_node", false).Error
}

func (r *TourRepositoryImpl) MarkStartNode(ctx context.Context, nodeID uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&models.TourNode{}).
		Where("id = ?", nodeID).
		UpdateColumn("is_start_node", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindNodesWithinRadius returns the tour's geotagged nodes within radiusMeters
// of the given point, using a bounding box prefilter and exact haversine distance.
func (r *TourRepositoryImpl) FindNodesWithinRadius(ctx context.Context, tourID uuid.UUID, lat, lng, radiusMeters float64) ([]models.TourNode, error) {
	var nodes []models.TourNode

	minLat, maxLat, minLng, maxLng := utils.CalculateBoundingBox(lat, lng, radiusMeters)

	err := r.db.WithContext(ctx).
		Where("tour_id = ?", tourID).
		Where("gps_latitude IS NOT NULL AND gps_longitude IS NOT NULL").
		Where("gps_latitude BETWEEN ? AND ?", minLat, maxLat).
		Where("gps_longitude BETWEEN ? AND ?", minLng, maxLng).
		Order("sequence").
		Find(&nodes).Error
	if err != nil {
		return nil, err
	}

	var filtered []models.TourNode
	for _, node := range nodes {
		if node.GPS == nil {
			continue
		}
		if utils.HaversineDistance(lat, lng, node.GPS.Latitude, node.GPS.Longitude) <= radiusMeters {
			filtered = append(filtered, node)
		}
	}
	return filtered, nil
}

func (r *TourRepositoryImpl) CreateLink(ctx context.Context, link *models.TourLink) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(link).Error
}

func (r *TourRepositoryImpl) GetLink(ctx context.Context, id uuid.UUID) (*models.TourLink, error) {
	var link models.TourLink
	err := r.db.WithContext(ctx).First(&link, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *TourRepositoryImpl) ListLinks(ctx context.Context, tourID uuid.UUID) ([]models.TourLink, error) {
	var links []models.TourLink
	err := r.db.WithContext(ctx).Where("tour_id = ?", tourID).Order("created_at, id").Find(&links).Error
	return links, err
}

func (r *TourRepositoryImpl) DeleteLink(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.TourLink{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteLinksTouching removes every link where nodeID is the source or the target.
func (r *TourRepositoryImpl) DeleteLinksTouching(ctx context.Context, nodeID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("from_node_id = ? OR to_node_id = ?", nodeID, nodeID).
		Delete(&models.TourLink{})
	return res.RowsAffected, res.Error
}
