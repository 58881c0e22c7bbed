package handlers

import "github.com/gofiber/fiber/v2"

// Handlers groups the HTTP handlers of the tour API.
type Handlers struct {
	Tours    *TourHandler
	Drawings *DrawingHandler
	Export   *ExportHandler
	Media    *MediaHandler
}

// Register mounts all tour routes on api. Static paths come before the
// :tourId routes that would shadow them.
func (h Handlers) Register(api fiber.Router) {
	api.Get("/cache/stats", h.Export.GetCacheStats)
	api.Post("/cache/clear", h.Export.ClearCache)

	api.Post("/", h.Tours.CreateTour)
	api.Get("/", h.Tours.ListTours)
	api.Get("/:tourId", h.Tours.GetTour)
	api.Put("/:tourId", h.Tours.RenameTour)
	api.Delete("/:tourId", h.Tours.DeleteTour)

	api.Post("/:tourId/nodes", h.Tours.AddNode)
	api.Get("/:tourId/nodes", h.Tours.ListNodes)
	api.Get("/:tourId/nodes/nearby", h.Tours.NearbyNodes)
	api.Get("/:tourId/nodes/:nodeId", h.Tours.GetNode)
	api.Put("/:tourId/nodes/:nodeId", h.Tours.UpdateNode)
	api.Delete("/:tourId/nodes/:nodeId", h.Tours.DeleteNode)
	api.Put("/:tourId/start-node", h.Tours.SetStartNode)

	api.Post("/:tourId/links", h.Tours.CreateLink)
	api.Delete("/:tourId/links/:linkId", h.Tours.DeleteLink)

	api.Get("/:tourId/nodes/:nodeId/drawings", h.Drawings.LoadDrawings)
	api.Put("/:tourId/nodes/:nodeId/drawings", h.Drawings.SaveDrawings)

	api.Get("/:tourId/export", h.Export.ExportTour)

	api.Post("/:tourId/nodes/:nodeId/panorama", h.Media.UploadPanorama)
	api.Post("/:tourId/import", h.Media.ImportArchive)
}
