package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tour-service/internal/models"
	"tour-service/internal/repository"
	"tour-service/internal/services"
	"tour-service/internal/services/caches"
)

func newTestApp(t *testing.T) *fiber.App {
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

	memory := caches.NewMemoryCache(1<<20, time.Minute, zerolog.Nop())
	t.Cleanup(memory.Close)
	exportCache := services.NewExportCache(nil, zerolog.Nop(), nil, memory)

	tours := repository.NewTourRepository(db)
	annotations := repository.NewAnnotationRepository(db)
	graph := services.NewGraphService(db, tours, annotations, services.WithExportInvalidator(exportCache))
	engine := services.NewDrawingSyncEngine(db, tours, annotations, services.WithSyncExportInvalidator(exportCache))
	export := services.NewExportService(tours, annotations, services.WithExportCache(exportCache))

	app := fiber.New()
	Handlers{
		Tours:    NewTourHandler(graph),
		Drawings: NewDrawingHandler(graph, engine),
		Export:   NewExportHandler(export, exportCache),
		Media:    NewMediaHandler(services.NewMediaService(graph, nil, zerolog.Nop())),
	}.Register(app.Group("/api/tours"))
	return app
}

// call sends a request and decodes a JSON response into out when out is non-nil.
func call(t *testing.T, app *fiber.App, method, path string, body any, out any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			data, err := json.Marshal(body)
			require.NoError(t, err)
			raw = string(data)
		}
		reader = bytes.NewBufferString(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	if out != nil {
		defer resp.Body.Close()
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func createTour(t *testing.T, app *fiber.App) models.VirtualTour {
	t.Helper()
	var tour models.VirtualTour
	resp := call(t, app, "POST", "/api/tours/", models.CreateTourRequest{
		Name:  "Villa",
		Owner: models.OwnerRef{Kind: models.OwnerProperty, ID: uuid.New()},
	}, &tour)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	return tour
}

func addNode(t *testing.T, app *fiber.App, tourID uuid.UUID, name string) models.TourNode {
	t.Helper()
	var node models.TourNode
	resp := call(t, app, "POST", "/api/tours/"+tourID.String()+"/nodes", models.NodeAttributes{Name: name}, &node)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	return node
}

func TestTourRoutes(t *testing.T) {
	app := newTestApp(t)
	tour := createTour(t, app)
	base := "/api/tours/" + tour.ID.String()

	a := addNode(t, app, tour.ID, "A")
	b := addNode(t, app, tour.ID, "B")

	var link models.TourLink
	resp := call(t, app, "POST", base+"/links", models.LinkNodesRequest{FromNodeID: a.ID, ToNodeID: b.ID}, &link)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var got models.VirtualTour
	resp = call(t, app, "GET", base, nil, &got)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Villa", got.Name)
	assert.Len(t, got.Nodes, 2)
	assert.Len(t, got.Links, 1)

	resp = call(t, app, "PUT", base+"/start-node", models.SetStartNodeRequest{NodeID: b.ID}, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp = call(t, app, "DELETE", base+"/nodes/"+b.ID.String(), nil, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp = call(t, app, "GET", base+"/nodes/"+b.ID.String(), nil, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = call(t, app, "DELETE", base, nil, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	resp = call(t, app, "GET", base, nil, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestErrorStatusMapping(t *testing.T) {
	app := newTestApp(t)
	tour := createTour(t, app)
	other := createTour(t, app)
	base := "/api/tours/" + tour.ID.String()
	a := addNode(t, app, tour.ID, "A")
	foreign := addNode(t, app, other.ID, "Foreign")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"malformed uuid", "GET", "/api/tours/not-a-uuid", nil, fiber.StatusBadRequest},
		{"malformed body", "POST", base + "/nodes", "{", fiber.StatusBadRequest},
		{"unknown tour", "GET", "/api/tours/" + uuid.NewString(), nil, fiber.StatusNotFound},
		{"invalid tour", "POST", "/api/tours/", models.CreateTourRequest{Name: "x"}, fiber.StatusUnprocessableEntity},
		{"cross-tour link", "POST", base + "/links", models.LinkNodesRequest{FromNodeID: a.ID, ToNodeID: foreign.ID}, fiber.StatusConflict},
		{"node of another tour", "GET", base + "/nodes/" + foreign.ID.String(), nil, fiber.StatusNotFound},
		{"bad coordinates", "GET", base + "/nodes/nearby?lat=x&lng=1", nil, fiber.StatusBadRequest},
		{"out of range coordinates", "GET", base + "/nodes/nearby?lat=95&lng=1", nil, fiber.StatusUnprocessableEntity},
		{"import without file", "POST", base + "/import", nil, fiber.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body map[string]any
			resp := call(t, app, tt.method, tt.path, tt.body, &body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, true, body["error"])
		})
	}
}

func TestSaveAndLoadDrawings(t *testing.T) {
	app := newTestApp(t)
	tour := createTour(t, app)
	node := addNode(t, app, tour.ID, "Lobby")
	path := "/api/tours/" + tour.ID.String() + "/nodes/" + node.ID.String() + "/drawings"

	save := `{
		"polygons": [{"clientId": "p1", "points": [{"x":0,"y":0},{"x":4,"y":0},{"x":4,"y":4}], "color": "#f00", "data": {"layer": 1}}],
		"texts": [{"clientId": "t1", "content": "Kitchen", "position": {"x": 5, "y": 6}}]
	}`
	var applied models.AppliedSet
	resp := call(t, app, "PUT", path, save, &applied)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, applied.Success)
	assert.Equal(t, models.SyncStats{Inserted: 1}, *applied.PolygonStats)
	assert.Equal(t, models.SyncStats{Inserted: 1}, *applied.TextStats)

	var cleared models.AppliedSet
	resp = call(t, app, "PUT", path, `{"polygons": [], "texts": [{"clientId": "t1", "content": "Kitchen", "position": {"x": 5, "y": 6}}]}`, &cleared)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, models.SyncStats{Deleted: 1}, *cleared.PolygonStats)
	assert.Equal(t, models.SyncStats{Unchanged: 1}, *cleared.TextStats)

	var set models.DrawingSet
	resp = call(t, app, "GET", path, nil, &set)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, set.Polygons)
	require.Len(t, set.Texts, 1)
	assert.Equal(t, "Kitchen", set.Texts[0].Content)
}

func TestSaveDrawingsRequiresCompleteSet(t *testing.T) {
	app := newTestApp(t)
	tour := createTour(t, app)
	node := addNode(t, app, tour.ID, "Lobby")
	path := "/api/tours/" + tour.ID.String() + "/nodes/" + node.ID.String() + "/drawings"

	resp := call(t, app, "PUT", path, `{"polygons": [], "texts": [{"clientId": "t1", "content": "Kitchen"}]}`, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	for _, body := range []string{
		`{}`,
		`{"polygons": []}`,
		`{"texts": []}`,
		`{"polygons": [], "texts": null}`,
	} {
		resp = call(t, app, "PUT", path, body, nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, body)
	}

	var set models.DrawingSet
	resp = call(t, app, "GET", path, nil, &set)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Len(t, set.Texts, 1, "rejected partial saves leave the stored set alone")
}

func TestSaveDrawingsValidationFailure(t *testing.T) {
	app := newTestApp(t)
	tour := createTour(t, app)
	node := addNode(t, app, tour.ID, "Lobby")
	path := "/api/tours/" + tour.ID.String() + "/nodes/" + node.ID.String() + "/drawings"

	var body map[string]any
	resp := call(t, app, "PUT", path, `{"polygons": [{"clientId": "p1", "points": [{"x":0,"y":0}]}], "texts": []}`, &body)
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, false, body["success"])

	validation, ok := body["validation"].(map[string]any)
	require.True(t, ok, "body: %v", body)
	assert.Equal(t, "p1", validation["clientId"])
	assert.Equal(t, "points", validation["field"])
	assert.Equal(t, "min=3", validation["constraint"])

	resp = call(t, app, "PUT", "/api/tours/"+tour.ID.String()+"/nodes/"+uuid.NewString()+"/drawings", `{"polygons": [], "texts": []}`, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestExportTour(t *testing.T) {
	app := newTestApp(t)
	tour := createTour(t, app)
	a := addNode(t, app, tour.ID, "A")
	b := addNode(t, app, tour.ID, "B")
	base := "/api/tours/" + tour.ID.String()

	door := `{"polygons": [{"clientId": "door", "points": [{"x":0,"y":0},{"x":2,"y":0},{"x":2,"y":2},{"x":0,"y":2}], "isLink": true, "targetNodeId": "` + b.ID.String() + `"}], "texts": []}`
	resp := call(t, app, "PUT", base+"/nodes/"+a.ID.String()+"/drawings", door, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var doc models.TourDocument
	resp = call(t, app, "GET", base+"/export", nil, &doc)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "0", resp.Header.Get("X-Export-Warnings"))
	require.Len(t, doc.Nodes, 2)
	assert.True(t, doc.Nodes[0].IsStartNode)
	require.Len(t, doc.Nodes[0].Markers, 1)
	assert.Equal(t, models.Point{X: 1, Y: 1}, doc.Nodes[0].Markers[0].Position)

	resp = call(t, app, "DELETE", base+"/nodes/"+b.ID.String(), nil, nil)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	var result models.ExportResult
	resp = call(t, app, "GET", base+"/export?warnings=true", nil, &result)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "0", resp.Header.Get("X-Export-Warnings"))
	assert.Empty(t, result.Warnings)
	require.Len(t, result.Document.Nodes, 1)
	require.Len(t, result.Document.Nodes[0].Markers, 1)
	assert.Nil(t, result.Document.Nodes[0].Markers[0].TargetNodeID, "the door no longer leads anywhere")

	var stats services.ExportCacheStats
	resp = call(t, app, "GET", "/api/tours/cache/stats", nil, &stats)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Len(t, stats.Layers, 1)
	assert.Equal(t, 1, stats.Layers[0].Objects)

	resp = call(t, app, "POST", "/api/tours/cache/clear", nil, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
