package services

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tour-service/internal/models"
)

func writeArchive(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "panoramas.zip")
	out, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(out)
	for name, body := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())
	return path
}

func TestUploadPanorama(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tour := f.newTour(t, "Villa")
	node := f.newNode(t, tour.ID, "Lobby")
	media := NewMediaService(f.graph, f.media, zerolog.Nop())

	updated, err := media.UploadPanorama(ctx, tour.ID, node.ID, models.CollectionPanorama, "lobby.jpg", strings.NewReader("jpeg"), 4)
	require.NoError(t, err)
	assert.Equal(t, "node/"+node.ID.String()+"/panorama/lobby.jpg", updated.PanoramaRef)
	assert.Empty(t, updated.ThumbnailRef)

	updated, err = media.UploadPanorama(ctx, tour.ID, node.ID, models.CollectionThumbnail, "lobby-small.png", strings.NewReader("png"), 3)
	require.NoError(t, err)
	assert.Equal(t, "node/"+node.ID.String()+"/panorama/lobby.jpg", updated.PanoramaRef)
	assert.Equal(t, "node/"+node.ID.String()+"/thumbnail/lobby-small.png", updated.ThumbnailRef)
	assert.Len(t, f.media.files, 2)
}

func TestUploadPanoramaRejects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tour := f.newTour(t, "Villa")
	node := f.newNode(t, tour.ID, "Lobby")
	media := NewMediaService(f.graph, f.media, zerolog.Nop())

	var verr *ValidationError
	_, err := media.UploadPanorama(ctx, tour.ID, node.ID, "video", "lobby.jpg", strings.NewReader("x"), 1)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "collection", verr.Field)

	_, err = media.UploadPanorama(ctx, tour.ID, node.ID, models.CollectionPanorama, "notes.txt", strings.NewReader("x"), 1)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "file", verr.Field)

	_, err = media.UploadPanorama(ctx, tour.ID, uuid.New(), models.CollectionPanorama, "lobby.jpg", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, ErrNotFound)

	unconfigured := NewMediaService(f.graph, nil, zerolog.Nop())
	_, err = unconfigured.UploadPanorama(ctx, tour.ID, node.ID, models.CollectionPanorama, "lobby.jpg", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, ErrMediaUnavailable)
	assert.Empty(t, f.media.files)
}

func TestImportArchiveCreatesNodesInPathOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tour := f.newTour(t, "Villa")
	media := NewMediaService(f.graph, f.media, zerolog.Nop())

	path := writeArchive(t, map[string]string{
		"b-hall.jpg":             "hall",
		"a-lobby.png":            "lobby",
		"floor2/c-roof.webp":     "roof",
		"readme.txt":             "skip me",
		"__MACOSX/._a-lobby.png": "resource fork",
	})

	result, err := media.ImportArchive(ctx, tour.ID, path)
	require.NoError(t, err)

	require.Len(t, result.Nodes, 3)
	assert.Equal(t, "a-lobby", result.Nodes[0].Name)
	assert.Equal(t, "b-hall", result.Nodes[1].Name)
	assert.Equal(t, "c-roof", result.Nodes[2].Name)
	for _, n := range result.Nodes {
		assert.NotEmpty(t, n.PanoramaRef)
	}

	assert.Equal(t, 5, result.Metrics.FileCount)
	assert.Equal(t, 3, result.Metrics.NodesCreated)
	assert.ElementsMatch(t, []string{"readme.txt", "__MACOSX/._a-lobby.png"}, result.Metrics.Skipped)
	assert.Equal(t, int64(len("hall")+len("lobby")+len("roof")), result.Metrics.TotalSize)

	nodes, err := f.graph.ListNodes(ctx, tour.ID)
	require.NoError(t, err)
	assert.Len(t, nodes, 3)
}

func TestImportArchiveUnknownTour(t *testing.T) {
	f := newFixture(t)
	media := NewMediaService(f.graph, f.media, zerolog.Nop())

	_, err := media.ImportArchive(context.Background(), uuid.New(), writeArchive(t, map[string]string{"a.jpg": "a"}))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestImportArchiveDiscardsNodesOnFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tour := f.newTour(t, "Villa")
	media := NewMediaService(f.graph, f.media, zerolog.Nop())
	f.media.failOn = "b-hall.jpg"

	path := writeArchive(t, map[string]string{
		"a-lobby.png": "lobby",
		"b-hall.jpg":  "hall",
		"c-roof.jpg":  "roof",
	})

	_, err := media.ImportArchive(ctx, tour.ID, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b-hall.jpg")

	nodes, err := f.graph.ListNodes(ctx, tour.ID)
	require.NoError(t, err)
	assert.Empty(t, nodes)
	assert.Len(t, f.media.removed, 2)
	assert.Empty(t, f.media.files)
}

func TestImportArchiveClassifiesExtractionErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tour := f.newTour(t, "Villa")
	media := NewMediaService(f.graph, f.media, zerolog.Nop())

	notes := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("not an archive"), 0o644))

	var verr *ValidationError
	_, err := media.ImportArchive(ctx, tour.ID, notes)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "archive", verr.Constraint)

	_, err = media.ImportArchive(ctx, tour.ID, filepath.Join(t.TempDir(), "gone.zip"))
	require.Error(t, err)
	assert.False(t, errors.As(err, &verr))
}
