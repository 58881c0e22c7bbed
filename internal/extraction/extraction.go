package extraction

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mholt/archives"
	"github.com/pkg/errors"
)

// ErrNotArchive is returned when the file is not an archive format that can
// be extracted.
var ErrNotArchive = errors.New("not an extractable archive")

var panoramaExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

// PanoramaContentType returns the content type for a supported panorama
// image, or "" when the file is not one.
func PanoramaContentType(filename string) string {
	return panoramaExtensions[strings.ToLower(filepath.Ext(filename))]
}

// ShouldIgnore reports whether an archive entry is a system or hidden file.
func ShouldIgnore(name string) bool {
	base := filepath.Base(name)
	switch {
	case base == "" || strings.HasSuffix(name, "/"):
		return true
	case strings.HasPrefix(base, "."): // includes ._ resource forks and .DS_Store
		return true
	case strings.EqualFold(base, "thumbs.db"):
		return true
	case strings.Contains(filepath.ToSlash(name), "__MACOSX/"):
		return true
	}
	return false
}

// ExtractArchive extracts the contents of a ZIP, RAR, 7z or tar archive to a
// temporary directory. Files are returned in lexical order of their path in
// the archive. The caller removes the directory. Unrecognised input yields
// ErrNotArchive; read failures are returned as they are.
func ExtractArchive(ctx context.Context, archivePath string) ([]string, string, error) {
	if err := identify(ctx, archivePath); err != nil {
		return nil, "", err
	}

	destDir, err := os.MkdirTemp("", "extract-*")
	if err != nil {
		return nil, "", err
	}

	fsys, err := archives.FileSystem(ctx, archivePath, nil)
	if err != nil {
		os.RemoveAll(destDir)
		return nil, "", err
	}

	var files []string
	err = fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		destPath := filepath.Join(destDir, filepath.FromSlash(path))
		if err := copyEntry(fsys, path, destPath); err != nil {
			return err
		}
		files = append(files, destPath)
		return nil
	})
	if err != nil {
		os.RemoveAll(destDir)
		return nil, "", err
	}

	sort.Strings(files)
	return files, destDir, nil
}

func identify(ctx context.Context, archivePath string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	format, _, err := archives.Identify(ctx, filepath.Base(archivePath), f)
	if errors.Is(err, archives.NoMatch) {
		return ErrNotArchive
	}
	if err != nil {
		return errors.Wrap(ErrNotArchive, err.Error())
	}
	if _, ok := format.(archives.Extractor); !ok {
		return ErrNotArchive
	}
	return nil
}

func copyEntry(fsys fs.FS, path, destPath string) error {
	reader, err := fsys.Open(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	outFile, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer outFile.Close()

	_, err = io.Copy(outFile, reader)
	return err
}
