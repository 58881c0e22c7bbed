package services

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"tour-service/internal/extraction"
	"tour-service/internal/metrics"
	"tour-service/internal/models"
)

// ErrMediaUnavailable is returned when no media store is configured.
var ErrMediaUnavailable = errors.New("media storage is not configured")

// MediaStore is the media collaborator: it stores files for an entity and
// hands out URLs for them.
type MediaStore interface {
	AttachFile(ctx context.Context, ref models.EntityRef, collection, filename string, r io.Reader, size int64, contentType string) (string, error)
	URL(ctx context.Context, key string) (string, error)
	RemoveAll(ctx context.Context, ref models.EntityRef) error
}

// MediaService attaches panoramas to nodes and imports panorama archives.
type MediaService struct {
	graph *GraphService
	store MediaStore
	log   zerolog.Logger
}

// NewMediaService creates a MediaService. store may be nil, in which case
// every upload fails with ErrMediaUnavailable.
func NewMediaService(graph *GraphService, store MediaStore, logger zerolog.Logger) *MediaService {
	return &MediaService{graph: graph, store: store, log: logger}
}

// ImportResult is the outcome of an archive import.
type ImportResult struct {
	Nodes   []models.TourNode      `json:"nodes"`
	Metrics *metrics.ImportMetrics `json:"metrics"`
}

// UploadPanorama stores an image in the node's collection and records its key
// on the node.
func (s *MediaService) UploadPanorama(ctx context.Context, tourID, nodeID uuid.UUID, collection, filename string, r io.Reader, size int64) (*models.TourNode, error) {
	if s.store == nil {
		return nil, ErrMediaUnavailable
	}
	if collection != models.CollectionPanorama && collection != models.CollectionThumbnail {
		return nil, &ValidationError{Field: "collection", Constraint: "oneof=panorama thumbnail"}
	}
	contentType := extraction.PanoramaContentType(filename)
	if contentType == "" {
		return nil, &ValidationError{Field: "file", Constraint: "image"}
	}
	if _, err := s.graph.GetNode(ctx, tourID, nodeID); err != nil {
		return nil, err
	}

	key, err := s.store.AttachFile(ctx, models.EntityRef{Kind: models.EntityNode, ID: nodeID}, collection, filename, r, size, contentType)
	if err != nil {
		return nil, err
	}

	if collection == models.CollectionThumbnail {
		return s.graph.SetNodeMedia(ctx, tourID, nodeID, "", key)
	}
	return s.graph.SetNodeMedia(ctx, tourID, nodeID, key, "")
}

// ImportArchive creates one node per panorama image found in the archive at
// archivePath, in lexical path order. Other entries are skipped. If any
// panorama fails to import, the nodes created so far are deleted again.
func (s *MediaService) ImportArchive(ctx context.Context, tourID uuid.UUID, archivePath string) (*ImportResult, error) {
	if s.store == nil {
		return nil, ErrMediaUnavailable
	}
	if _, err := s.graph.GetTour(ctx, tourID); err != nil {
		return nil, err
	}

	im := metrics.NewImportMetrics()
	files, dir, err := extraction.ExtractArchive(ctx, archivePath)
	if errors.Is(err, extraction.ErrNotArchive) {
		return nil, &ValidationError{Field: "file", Constraint: "archive"}
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to extract archive")
	}
	defer os.RemoveAll(dir)

	result := &ImportResult{Nodes: []models.TourNode{}, Metrics: im}
	for _, path := range files {
		rel, _ := filepath.Rel(dir, path)
		im.FileCount++
		contentType := extraction.PanoramaContentType(rel)
		if extraction.ShouldIgnore(rel) || contentType == "" {
			im.Skipped = append(im.Skipped, filepath.ToSlash(rel))
			continue
		}

		node, size, err := s.importFile(ctx, tourID, path, rel, contentType)
		if err != nil {
			s.discard(ctx, tourID, result.Nodes)
			return nil, errors.Wrapf(err, "failed to import %s", rel)
		}
		im.TotalSize += size
		im.NodesCreated++
		result.Nodes = append(result.Nodes, *node)
	}
	im.Finish()

	s.log.Info().Str("tour_id", tourID.String()).Msg(im.GetSummary())
	return result, nil
}

// discard deletes nodes created by an import that did not complete.
func (s *MediaService) discard(ctx context.Context, tourID uuid.UUID, nodes []models.TourNode) {
	ctx = context.WithoutCancel(ctx)
	for _, n := range nodes {
		if err := s.graph.DeleteNode(ctx, tourID, n.ID); err != nil {
			s.log.Error().Err(err).
				Str("tour_id", tourID.String()).
				Str("node_id", n.ID.String()).
				Msg("failed to discard imported node")
		}
	}
}

func (s *MediaService) importFile(ctx context.Context, tourID uuid.UUID, path, rel, contentType string) (*models.TourNode, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, 0, err
	}

	name := strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))
	node, err := s.graph.AddNode(ctx, tourID, models.NodeAttributes{Name: name})
	if err != nil {
		return nil, 0, err
	}
	key, err := s.store.AttachFile(ctx, models.EntityRef{Kind: models.EntityNode, ID: node.ID}, models.CollectionPanorama, rel, f, info.Size(), contentType)
	if err != nil {
		s.discard(ctx, tourID, []models.TourNode{*node})
		return nil, 0, err
	}
	updated, err := s.graph.SetNodeMedia(ctx, tourID, node.ID, key, "")
	if err != nil {
		s.discard(ctx, tourID, []models.TourNode{*node})
		return nil, 0, err
	}
	return updated, info.Size(), nil
}
