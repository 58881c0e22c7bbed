package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"tour-service/internal/models"
	"tour-service/internal/repository"
	"tour-service/internal/utils"
)

// MediaURLResolver turns a stored media key into a URL the viewer can load.
type MediaURLResolver interface {
	URL(ctx context.Context, key string) (string, error)
}

// ExportService assembles the viewer document of a tour. It only reads.
type ExportService struct {
	tours       repository.TourRepository
	annotations repository.AnnotationRepository
	media       MediaURLResolver
	cache       *ExportCache
	group       singleflight.Group
	metrics     *utils.Metrics
	log         zerolog.Logger
}

// ExportOption configures optional collaborators of an ExportService.
type ExportOption func(*ExportService)

func WithMediaURLs(m MediaURLResolver) ExportOption {
	return func(s *ExportService) { s.media = m }
}

func WithExportCache(c *ExportCache) ExportOption {
	return func(s *ExportService) { s.cache = c }
}

func WithExportMetrics(m *utils.Metrics) ExportOption {
	return func(s *ExportService) { s.metrics = m }
}

func WithExportLogger(l zerolog.Logger) ExportOption {
	return func(s *ExportService) { s.log = l }
}

func NewExportService(tours repository.TourRepository, annotations repository.AnnotationRepository, opts ...ExportOption) *ExportService {
	s := &ExportService{
		tours:       tours,
		annotations: annotations,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AssembleTour returns the viewer document of a tour together with the
// dangling references dropped while building it. Concurrent calls for one
// tour share a single assembly.
func (s *ExportService) AssembleTour(ctx context.Context, tourID uuid.UUID) (*models.ExportResult, error) {
	if s.cache == nil {
		return s.assemble(ctx, tourID)
	}
	gen, err := s.cache.Generation(ctx, tourID)
	if err != nil {
		s.log.Warn().Err(err).Str("tour_id", tourID.String()).Msg("export cache unavailable, assembling directly")
		return s.assemble(ctx, tourID)
	}
	if result, ok := s.cache.Get(ctx, tourID, gen); ok {
		return result, nil
	}

	v, err, _ := s.group.Do(fmt.Sprintf("%s:%d", tourID, gen), func() (any, error) {
		actx := context.WithoutCancel(ctx)
		result, err := s.assemble(actx, tourID)
		if err != nil {
			return nil, err
		}
		s.cache.Put(actx, tourID, gen, result)
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.ExportResult), nil
}

func (s *ExportService) assemble(ctx context.Context, tourID uuid.UUID) (*models.ExportResult, error) {
	start := time.Now()

	tour, err := s.tours.GetTour(ctx, tourID)
	if err != nil {
		return nil, notFound(err, "tour")
	}
	nodes, err := s.tours.ListNodes(ctx, tourID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list nodes")
	}
	links, err := s.tours.ListLinks(ctx, tourID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list links")
	}

	nodeIDs := make([]uuid.UUID, len(nodes))
	exists := make(map[uuid.UUID]struct{}, len(nodes))
	for i, n := range nodes {
		nodeIDs[i] = n.ID
		exists[n.ID] = struct{}{}
	}
	annotations, err := s.annotations.ListByNodes(ctx, nodeIDs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list annotations")
	}

	linksFrom := make(map[uuid.UUID][]models.TourLink)
	for _, l := range links {
		linksFrom[l.FromNodeID] = append(linksFrom[l.FromNodeID], l)
	}
	annotationsOf := make(map[uuid.UUID][]models.Annotation)
	for _, a := range annotations {
		annotationsOf[a.NodeID] = append(annotationsOf[a.NodeID], a)
	}

	startID := startNodeID(nodes)
	doc := &models.TourDocument{TourID: tour.ID, Name: tour.Name, Nodes: make([]models.ExportNode, 0, len(nodes))}
	var warnings []models.MissingReference

	for _, n := range nodes {
		en := models.ExportNode{
			ID:               n.ID,
			PanoramaURL:      s.resolveURL(ctx, n.PanoramaRef),
			ThumbnailURL:     s.resolveURL(ctx, n.ThumbnailRef),
			Name:             n.Name,
			Caption:          n.Caption,
			GPS:              n.GPS,
			SphereCorrection: n.SphereCorrection,
			IsStartNode:      n.ID == startID,
			Links:            []models.ExportLink{},
			Markers:          []models.ExportMarker{},
		}

		for _, l := range linksFrom[n.ID] {
			if _, ok := exists[l.ToNodeID]; !ok {
				warnings = append(warnings, models.MissingReference{
					NodeID: n.ID, Source: "link", SourceID: l.ID.String(), TargetNodeID: l.ToNodeID,
				})
				continue
			}
			en.Links = append(en.Links, models.ExportLink{TargetNodeID: l.ToNodeID, Position: l.Position})
		}

		for i := range annotationsOf[n.ID] {
			a := &annotationsOf[n.ID][i]
			if a.TargetNodeID != nil {
				if _, ok := exists[*a.TargetNodeID]; !ok {
					warnings = append(warnings, models.MissingReference{
						NodeID: n.ID, Source: "marker", SourceID: a.ClientID, TargetNodeID: *a.TargetNodeID,
					})
					continue
				}
			}
			marker, err := markerFromRow(a)
			if err != nil {
				return nil, err
			}
			en.Markers = append(en.Markers, marker)
		}

		doc.Nodes = append(doc.Nodes, en)
	}

	elapsed := float64(time.Since(start).Microseconds()) / 1000.0
	s.metrics.RecordExport(elapsed, len(warnings))
	for _, w := range warnings {
		s.log.Warn().
			Str("tour_id", tourID.String()).
			Str("node_id", w.NodeID.String()).
			Str("source", w.Source).
			Str("source_id", w.SourceID).
			Str("target_node_id", w.TargetNodeID.String()).
			Msg("dropped dangling reference from export")
	}
	s.log.Debug().Str("tour_id", tourID.String()).Int("nodes", len(doc.Nodes)).Float64("latency_ms", elapsed).Msg("tour assembled")

	return &models.ExportResult{Document: doc, Warnings: warnings}, nil
}

// startNodeID returns the flagged start node, or the first node by sequence
// when none is flagged. nodes must be in sequence order.
func startNodeID(nodes []models.TourNode) uuid.UUID {
	for _, n := range nodes {
		if n.IsStartNode {
			return n.ID
		}
	}
	if len(nodes) > 0 {
		return nodes[0].ID
	}
	return uuid.Nil
}

func markerFromRow(a *models.Annotation) (models.ExportMarker, error) {
	marker := models.ExportMarker{ID: a.ID, Kind: a.Kind, TargetNodeID: copyID(a.TargetNodeID)}
	switch a.Kind {
	case models.KindPolygon:
		p, err := polygonFromRow(a)
		if err != nil {
			return marker, err
		}
		marker.Position = utils.Centroid(p.Points)
		marker.Polygon = &p
	case models.KindText:
		t, err := textFromRow(a)
		if err != nil {
			return marker, err
		}
		marker.Position = t.Position
		marker.Text = &t
	default:
		return marker, errors.Errorf("unknown annotation kind %q", a.Kind)
	}
	return marker, nil
}

// resolveURL maps a media key to a URL. Absolute URLs and keys that cannot
// be resolved are returned unchanged.
func (s *ExportService) resolveURL(ctx context.Context, ref string) string {
	if ref == "" || s.media == nil || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	u, err := s.media.URL(ctx, ref)
	if err != nil {
		s.log.Warn().Err(err).Str("ref", ref).Msg("failed to resolve media URL")
		return ref
	}
	return u
}
