package extraction

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bundle.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestExtractArchive(t *testing.T) {
	path := writeZip(t, map[string]string{
		"b-hall.jpg":        "hall",
		"a-lobby.png":       "lobby",
		"floor2/c-roof.jpg": "roof",
	})

	files, dir, err := ExtractArchive(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	require.Len(t, files, 3)
	assert.Equal(t, filepath.Join(dir, "a-lobby.png"), files[0])
	assert.Equal(t, filepath.Join(dir, "b-hall.jpg"), files[1])
	assert.Equal(t, filepath.Join(dir, "floor2", "c-roof.jpg"), files[2])

	body, err := os.ReadFile(files[2])
	require.NoError(t, err)
	assert.Equal(t, "roof", string(body))
}

func TestExtractArchiveRejectsNonArchives(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("just some notes"), 0o644))

	_, _, err := ExtractArchive(context.Background(), path)
	assert.ErrorIs(t, err, ErrNotArchive)

	_, _, err = ExtractArchive(context.Background(), filepath.Join(t.TempDir(), "missing.zip"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotArchive)
	assert.True(t, os.IsNotExist(err))
}

func TestShouldIgnore(t *testing.T) {
	for name, want := range map[string]bool{
		"lobby.jpg":               false,
		"floor/lobby.jpg":         false,
		".DS_Store":               true,
		"floor/._lobby.jpg":       true,
		"Thumbs.db":               true,
		"__MACOSX/floor/lobb.jpg": true,
	} {
		assert.Equal(t, want, ShouldIgnore(name), name)
	}
}

func TestPanoramaContentType(t *testing.T) {
	assert.Equal(t, "image/jpeg", PanoramaContentType("A.JPG"))
	assert.Equal(t, "image/png", PanoramaContentType("b.png"))
	assert.Empty(t, PanoramaContentType("model.glb"))
}
