package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"tour-service/internal/models"
	"tour-service/internal/repository"
)

// ExportInvalidator drops cached export documents after a tour changes.
type ExportInvalidator interface {
	Invalidate(ctx context.Context, tourID uuid.UUID)
}

// MediaRemover deletes media attached to an entity. Called after the owning
// rows are gone.
type MediaRemover interface {
	RemoveAll(ctx context.Context, ref models.EntityRef) error
}

// GraphService manages tours, nodes and links. It is the only writer of
// graph rows.
type GraphService struct {
	db           *gorm.DB
	tours        repository.TourRepository
	annotations  repository.AnnotationRepository
	owners       OwnerLookup
	exports      ExportInvalidator
	media        MediaRemover
	nearbyRadius float64
	log          zerolog.Logger
}

// GraphOption configures optional collaborators of a GraphService.
type GraphOption func(*GraphService)

func WithOwnerLookup(o OwnerLookup) GraphOption {
	return func(s *GraphService) { s.owners = o }
}

func WithExportInvalidator(e ExportInvalidator) GraphOption {
	return func(s *GraphService) { s.exports = e }
}

func WithMediaRemover(m MediaRemover) GraphOption {
	return func(s *GraphService) { s.media = m }
}

// WithNearbyRadius sets the radius used by NodesNear when the caller passes none.
func WithNearbyRadius(meters float64) GraphOption {
	return func(s *GraphService) { s.nearbyRadius = meters }
}

func WithGraphLogger(l zerolog.Logger) GraphOption {
	return func(s *GraphService) { s.log = l }
}

func NewGraphService(db *gorm.DB, tours repository.TourRepository, annotations repository.AnnotationRepository, opts ...GraphOption) *GraphService {
	s := &GraphService{
		db:           db,
		tours:        tours,
		annotations:  annotations,
		owners:       AnyOwner{},
		nearbyRadius: 30,
		log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *GraphService) CreateTour(ctx context.Context, req models.CreateTourRequest) (*models.VirtualTour, error) {
	if err := models.Validator().Struct(req); err != nil {
		return nil, validationFailure(err, "", "")
	}
	ok, err := s.owners.Exists(ctx, req.Owner)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve tour owner")
	}
	if !ok {
		return nil, invalidRef("owner %s %s does not exist", req.Owner.Kind, req.Owner.ID)
	}

	tour := &models.VirtualTour{Name: req.Name, Owner: req.Owner}
	if err := s.tours.CreateTour(ctx, tour); err != nil {
		return nil, errors.Wrap(err, "failed to create tour")
	}
	s.log.Info().Str("tour_id", tour.ID.String()).Str("owner_kind", string(tour.Owner.Kind)).Msg("tour created")
	return tour, nil
}

func (s *GraphService) GetTour(ctx context.Context, tourID uuid.UUID) (*models.VirtualTour, error) {
	tour, err := s.tours.GetTour(ctx, tourID)
	if err != nil {
		return nil, notFound(err, "tour")
	}
	return tour, nil
}

// ListTours returns every tour, or only the tours of owner when given.
func (s *GraphService) ListTours(ctx context.Context, owner *models.OwnerRef) ([]models.VirtualTour, error) {
	tours, err := s.tours.ListTours(ctx, owner)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list tours")
	}
	return tours, nil
}

func (s *GraphService) RenameTour(ctx context.Context, tourID uuid.UUID, req models.RenameTourRequest) (*models.VirtualTour, error) {
	if err := models.Validator().Struct(req); err != nil {
		return nil, validationFailure(err, "", "")
	}
	tour, err := s.tours.GetTour(ctx, tourID)
	if err != nil {
		return nil, notFound(err, "tour")
	}
	tour.Name = req.Name
	if err := s.tours.UpdateTour(ctx, tour); err != nil {
		return nil, errors.Wrap(err, "failed to rename tour")
	}
	s.invalidate(ctx, tourID)
	return tour, nil
}

// DeleteTour removes the tour with all nodes, links and annotations.
func (s *GraphService) DeleteTour(ctx context.Context, tourID uuid.UUID) error {
	var nodes []models.TourNode
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tours := s.tours.WithTx(tx)
		var err error
		nodes, err = tours.ListNodes(ctx, tourID)
		if err != nil {
			return errors.Wrap(err, "failed to list nodes")
		}
		if err := tours.DeleteTour(ctx, tourID); err != nil {
			return notFound(err, "tour")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, tourID)
	for _, n := range nodes {
		s.removeMedia(ctx, n.ID)
	}
	s.log.Info().Str("tour_id", tourID.String()).Int("nodes", len(nodes)).Msg("tour deleted")
	return nil
}

// AddNode appends a node to a tour. The node's sequence is taken from the
// tour's counter in the same transaction.
func (s *GraphService) AddNode(ctx context.Context, tourID uuid.UUID, attrs models.NodeAttributes) (*models.TourNode, error) {
	if err := models.Validator().Struct(attrs); err != nil {
		return nil, validationFailure(err, "", "")
	}

	node := &models.TourNode{TourID: tourID}
	applyAttributes(node, attrs)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tours := s.tours.WithTx(tx)
		seq, err := tours.NextNodeSequence(ctx, tourID)
		if err != nil {
			return notFound(err, "tour")
		}
		node.Sequence = seq
		return errors.Wrap(tours.CreateNode(ctx, node), "failed to create node")
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, tourID)
	return node, nil
}

// UpdateNode replaces the writable attributes of a node.
func (s *GraphService) UpdateNode(ctx context.Context, tourID, nodeID uuid.UUID, attrs models.NodeAttributes) (*models.TourNode, error) {
	if err := models.Validator().Struct(attrs); err != nil {
		return nil, validationFailure(err, "", "")
	}
	node, err := s.updateNode(ctx, tourID, nodeID, func(n *models.TourNode) { applyAttributes(n, attrs) })
	if err != nil {
		return nil, errors.Wrap(err, "failed to update node")
	}
	return node, nil
}

// SetNodeMedia records the media keys of an uploaded panorama. Empty
// arguments leave the current value.
func (s *GraphService) SetNodeMedia(ctx context.Context, tourID, nodeID uuid.UUID, panoramaRef, thumbnailRef string) (*models.TourNode, error) {
	node, err := s.updateNode(ctx, tourID, nodeID, func(n *models.TourNode) {
		if panoramaRef != "" {
			n.PanoramaRef = panoramaRef
		}
		if thumbnailRef != "" {
			n.ThumbnailRef = thumbnailRef
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to update node media")
	}
	return node, nil
}

// updateNode reads the node under a row lock, applies change and writes the
// attribute columns back. The start flag is never written from here.
func (s *GraphService) updateNode(ctx context.Context, tourID, nodeID uuid.UUID, change func(*models.TourNode)) (*models.TourNode, error) {
	var node *models.TourNode
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tours := s.tours.WithTx(tx)
		var err error
		node, err = tours.GetNodeForUpdate(ctx, nodeID)
		if err != nil {
			return notFound(err, "node")
		}
		if node.TourID != tourID {
			return errors.Wrap(ErrNotFound, "node")
		}
		change(node)
		if err := tours.UpdateNode(ctx, node); err != nil {
			return notFound(err, "node")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, tourID)
	return node, nil
}

// GetNode returns a node of the tour. A node of another tour is reported as
// not found.
func (s *GraphService) GetNode(ctx context.Context, tourID, nodeID uuid.UUID) (*models.TourNode, error) {
	node, err := s.tours.GetNode(ctx, nodeID)
	if err != nil {
		return nil, notFound(err, "node")
	}
	if node.TourID != tourID {
		return nil, errors.Wrap(ErrNotFound, "node")
	}
	return node, nil
}

func (s *GraphService) ListNodes(ctx context.Context, tourID uuid.UUID) ([]models.TourNode, error) {
	if _, err := s.GetTour(ctx, tourID); err != nil {
		return nil, err
	}
	nodes, err := s.tours.ListNodes(ctx, tourID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list nodes")
	}
	return nodes, nil
}

// DeleteNode removes a node, every link into or out of it and every
// annotation anchored to it, in one transaction. Annotations on other nodes
// that linked to it stay as plain annotations.
func (s *GraphService) DeleteNode(ctx context.Context, tourID, nodeID uuid.UUID) error {
	var links, annotations, unlinked int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tours := s.tours.WithTx(tx)
		node, err := tours.GetNodeForUpdate(ctx, nodeID)
		if err != nil {
			return notFound(err, "node")
		}
		if node.TourID != tourID {
			return errors.Wrap(ErrNotFound, "node")
		}
		if links, err = tours.DeleteLinksTouching(ctx, nodeID); err != nil {
			return errors.Wrap(err, "failed to delete node links")
		}
		anns := s.annotations.WithTx(tx)
		if unlinked, err = anns.ClearLinkTargets(ctx, nodeID); err != nil {
			return errors.Wrap(err, "failed to unlink annotations targeting node")
		}
		if annotations, err = anns.DeleteByNode(ctx, nodeID); err != nil {
			return errors.Wrap(err, "failed to delete node annotations")
		}
		if err := tours.DeleteNode(ctx, nodeID); err != nil {
			return notFound(err, "node")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, tourID)
	s.removeMedia(ctx, nodeID)
	s.log.Info().
		Str("tour_id", tourID.String()).
		Str("node_id", nodeID.String()).
		Int64("links", links).
		Int64("annotations", annotations).
		Int64("unlinked_annotations", unlinked).
		Msg("node deleted")
	return nil
}

// LinkNodes adds a directed link. Both endpoints must belong to the tour.
func (s *GraphService) LinkNodes(ctx context.Context, tourID uuid.UUID, req models.LinkNodesRequest) (*models.TourLink, error) {
	if err := models.Validator().Struct(req); err != nil {
		return nil, validationFailure(err, "", "")
	}

	link := &models.TourLink{
		TourID:     tourID,
		FromNodeID: req.FromNodeID,
		ToNodeID:   req.ToNodeID,
		Position:   req.Position,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tours := s.tours.WithTx(tx)
		if _, err := tours.GetTour(ctx, tourID); err != nil {
			return notFound(err, "tour")
		}
		for _, id := range []uuid.UUID{req.FromNodeID, req.ToNodeID} {
			if err := s.requireNodeInTour(ctx, tours, tourID, id); err != nil {
				return err
			}
		}
		return errors.Wrap(tours.CreateLink(ctx, link), "failed to create link")
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, tourID)
	return link, nil
}

// UnlinkNodes removes one link of the tour.
func (s *GraphService) UnlinkNodes(ctx context.Context, tourID, linkID uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tours := s.tours.WithTx(tx)
		link, err := tours.GetLink(ctx, linkID)
		if err != nil {
			return notFound(err, "link")
		}
		if link.TourID != tourID {
			return errors.Wrap(ErrNotFound, "link")
		}
		if err := tours.DeleteLink(ctx, linkID); err != nil {
			return notFound(err, "link")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, tourID)
	return nil
}

func (s *GraphService) ListLinks(ctx context.Context, tourID uuid.UUID) ([]models.TourLink, error) {
	links, err := s.tours.ListLinks(ctx, tourID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list links")
	}
	return links, nil
}

// SetStartNode makes nodeID the tour's only start node.
func (s *GraphService) SetStartNode(ctx context.Context, tourID, nodeID uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tours := s.tours.WithTx(tx)
		if _, err := tours.GetTour(ctx, tourID); err != nil {
			return notFound(err, "tour")
		}
		if err := s.requireNodeInTour(ctx, tours, tourID, nodeID); err != nil {
			return err
		}
		if err := tours.ClearStartNode(ctx, tourID); err != nil {
			return errors.Wrap(err, "failed to clear start node")
		}
		return errors.Wrap(tours.MarkStartNode(ctx, nodeID), "failed to mark start node")
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, tourID)
	return nil
}

// NodesNear returns the tour's geotagged nodes within radiusMeters of the
// given point. A non-positive radius uses the configured default.
func (s *GraphService) NodesNear(ctx context.Context, tourID uuid.UUID, lat, lng, radiusMeters float64) ([]models.TourNode, error) {
	if err := models.Validator().Struct(models.GPS{Latitude: lat, Longitude: lng}); err != nil {
		return nil, validationFailure(err, "", "")
	}
	if radiusMeters <= 0 {
		radiusMeters = s.nearbyRadius
	}
	if _, err := s.GetTour(ctx, tourID); err != nil {
		return nil, err
	}
	nodes, err := s.tours.FindNodesWithinRadius(ctx, tourID, lat, lng, radiusMeters)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find nearby nodes")
	}
	return nodes, nil
}

func (s *GraphService) requireNodeInTour(ctx context.Context, tours repository.TourRepository, tourID, nodeID uuid.UUID) error {
	node, err := tours.GetNode(ctx, nodeID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return invalidRef("node %s does not exist", nodeID)
	}
	if err != nil {
		return errors.Wrap(err, "failed to load node")
	}
	if node.TourID != tourID {
		return invalidRef("node %s belongs to another tour", nodeID)
	}
	return nil
}

func (s *GraphService) invalidate(ctx context.Context, tourID uuid.UUID) {
	if s.exports != nil {
		s.exports.Invalidate(ctx, tourID)
	}
}

func (s *GraphService) removeMedia(ctx context.Context, nodeID uuid.UUID) {
	if s.media == nil {
		return
	}
	if err := s.media.RemoveAll(ctx, models.EntityRef{Kind: models.EntityNode, ID: nodeID}); err != nil {
		s.log.Warn().Err(err).Str("node_id", nodeID.String()).Msg("failed to remove node media")
	}
}

func applyAttributes(node *models.TourNode, attrs models.NodeAttributes) {
	node.Name = attrs.Name
	node.Caption = attrs.Caption
	node.PanoramaRef = attrs.PanoramaRef
	node.ThumbnailRef = attrs.ThumbnailRef
	node.GPS = attrs.GPS
	node.SphereCorrection = attrs.SphereCorrection
}
