package services

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tour-service/internal/models"
	"tour-service/internal/repository"
)

// newTestDB opens a fresh SQLite database with the service schema. A single
// connection keeps transactions serialized the way row locks would.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "tours.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.VirtualTour{}, &models.TourNode{}, &models.TourLink{}, &models.Annotation{}))
	return db
}

type recordingInvalidator struct {
	mu    sync.Mutex
	tours []uuid.UUID
}

func (r *recordingInvalidator) Invalidate(_ context.Context, tourID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tours = append(r.tours, tourID)
}

func (r *recordingInvalidator) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tours)
}

// fakeMediaStore keeps attached files in memory.
type fakeMediaStore struct {
	mu      sync.Mutex
	files   map[string][]byte
	removed []models.EntityRef
	failOn  string
}

func newFakeMediaStore() *fakeMediaStore {
	return &fakeMediaStore{files: make(map[string][]byte)}
}

func (f *fakeMediaStore) AttachFile(_ context.Context, ref models.EntityRef, collection, filename string, r io.Reader, _ int64, _ string) (string, error) {
	if f.failOn != "" && filepath.Base(filename) == f.failOn {
		return "", errors.New("bucket unavailable")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	key := string(ref.Kind) + "/" + ref.ID.String() + "/" + collection + "/" + filepath.Base(filename)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[key] = data
	return key, nil
}

func (f *fakeMediaStore) URL(_ context.Context, key string) (string, error) {
	return "https://media.test/" + key, nil
}

func (f *fakeMediaStore) RemoveAll(_ context.Context, ref models.EntityRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, ref)
	prefix := string(ref.Kind) + "/" + ref.ID.String() + "/"
	for key := range f.files {
		if strings.HasPrefix(key, prefix) {
			delete(f.files, key)
		}
	}
	return nil
}

type fixture struct {
	db          *gorm.DB
	tours       *repository.TourRepositoryImpl
	annotations *repository.AnnotationRepositoryImpl
	invalidated *recordingInvalidator
	media       *fakeMediaStore
	graph       *GraphService
	engine      *DrawingSyncEngine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	f := &fixture{
		db:          db,
		tours:       repository.NewTourRepository(db),
		annotations: repository.NewAnnotationRepository(db),
		invalidated: &recordingInvalidator{},
		media:       newFakeMediaStore(),
	}
	f.graph = NewGraphService(db, f.tours, f.annotations,
		WithExportInvalidator(f.invalidated),
		WithMediaRemover(f.media),
	)
	f.engine = NewDrawingSyncEngine(db, f.tours, f.annotations, WithSyncExportInvalidator(f.invalidated))
	return f
}

func (f *fixture) newTour(t *testing.T, name string) *models.VirtualTour {
	t.Helper()
	tour, err := f.graph.CreateTour(context.Background(), models.CreateTourRequest{
		Name:  name,
		Owner: models.OwnerRef{Kind: models.OwnerProperty, ID: uuid.New()},
	})
	require.NoError(t, err)
	return tour
}

func (f *fixture) newNode(t *testing.T, tourID uuid.UUID, name string) *models.TourNode {
	t.Helper()
	node, err := f.graph.AddNode(context.Background(), tourID, models.NodeAttributes{Name: name})
	require.NoError(t, err)
	return node
}

func square(clientID string, size float64) models.Polygon {
	return models.Polygon{
		ClientID: clientID,
		Points:   []models.Point{{X: 0, Y: 0}, {X: size, Y: 0}, {X: size, Y: size}, {X: 0, Y: size}},
		Color:    "#ff0000",
		Opacity:  0.5,
	}
}

func label(clientID, content string) models.Text {
	return models.Text{
		ClientID:   clientID,
		Content:    content,
		Position:   models.Point{X: 10, Y: 20},
		FontFamily: "Arial",
		FontSize:   14,
		FontWeight: "bold",
	}
}
